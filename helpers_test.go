package tasktree

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// memFS maps directories to their entry names. Anything that is not a key
// is a file.
type memFS map[string][]string

func (m memFS) ReadDir(path string) ([]string, error) {
	names, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return names, nil
}

func (m memFS) IsDir(path string) (bool, error) {
	_, ok := m[path]
	return ok, nil
}

// newMemFS builds a memFS from file paths.
func newMemFS(files ...string) memFS {
	m := memFS{}
	seen := map[string]bool{}
	for _, f := range files {
		child := f
		for dir := filepath.Dir(f); ; dir = filepath.Dir(dir) {
			if !seen[child] {
				seen[child] = true
				m[dir] = append(m[dir], filepath.Base(child))
			}
			if _, ok := m[dir]; !ok {
				m[dir] = nil
			}
			if dir == filepath.Dir(dir) {
				break
			}
			child = dir
		}
	}
	for dir := range m {
		sort.Strings(m[dir])
	}
	return m
}

type fakeWatch struct {
	sources []string
	opts    WatchOptions
	cb      Unit
}

type fakeWatcher struct {
	closed bool
}

func (w *fakeWatcher) Close() error {
	w.closed = true
	return nil
}

// fakeRuntime is an in-memory Runtime.
type fakeRuntime struct {
	mu       sync.Mutex
	units    map[string]Unit
	usage    map[string]string
	order    []string
	watches  []fakeWatch
	watchers []*fakeWatcher
	fileOps  []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{units: map[string]Unit{}, usage: map[string]string{}}
}

func (f *fakeRuntime) Register(id, usage string, u Unit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[id] = u
	f.usage[id] = usage
	f.order = append(f.order, id)
	return nil
}

func (f *fakeRuntime) Series(units ...Unit) Unit {
	return func(ctx context.Context) error {
		for _, u := range units {
			if err := u(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func (f *fakeRuntime) Parallel(units ...Unit) Unit {
	return func(ctx context.Context) error {
		g, gCtx := errgroup.WithContext(ctx)
		for _, u := range units {
			g.Go(func() error { return u(gCtx) })
		}
		return g.Wait()
	}
}

func (f *fakeRuntime) Watch(_ context.Context, sources []string, opts WatchOptions, cb Unit) (Watcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWatcher{}
	f.watches = append(f.watches, fakeWatch{sources: sources, opts: opts, cb: cb})
	f.watchers = append(f.watchers, w)
	return w, nil
}

func (f *fakeRuntime) fileOp(op string, paths []string, opts FileOptions) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileOps = append(f.fileOps, op+" "+opts.Cwd+" "+strings.Join(paths, ","))
	return paths
}

func (f *fakeRuntime) Src(globs []string, opts FileOptions) ([]string, error) {
	return f.fileOp("src", globs, opts), nil
}

func (f *fakeRuntime) Dest(files []string, _ string, opts FileOptions) ([]string, error) {
	return f.fileOp("dest", files, opts), nil
}

func (f *fakeRuntime) Symlink(files []string, _ string, opts FileOptions) ([]string, error) {
	return f.fileOp("symlink", files, opts), nil
}

func (f *fakeRuntime) Exec(_ context.Context, dir, name string, args ...string) error {
	f.fileOp("exec", append([]string{name}, args...), FileOptions{Cwd: dir})
	return nil
}

func (f *fakeRuntime) unit(id string) Unit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[id]
}

// recorder collects the names of invokables as they run.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

// recordFn returns an invokable without parameters that records name.
func (r *recorder) fn(name string) *Invokable {
	return &Invokable{
		Name: name,
		Fn: func(context.Context, []any) error {
			r.add(name)
			return nil
		},
	}
}

// testBuild returns a build wired to a fake runtime.
func testBuild(opts Options) (*build, *fakeRuntime) {
	rt := newFakeRuntime()
	if opts.Runtime == nil {
		opts.Runtime = rt
	}
	opts.Output = DiscardOutput()
	return newBuild(opts), rt
}

// addRecords normalizes sources keyed by id into b.
func addRecords(b *build, sources map[string]TaskSource, order ...string) error {
	for _, id := range order {
		leaf := &Leaf{Path: filepath.Join("proj", "tasks", id+".lua"), Cwd: "proj"}
		rec, err := b.normalize(leaf, id, sources[id])
		if err != nil {
			return err
		}
		b.add(rec)
	}
	return nil
}
