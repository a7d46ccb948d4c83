// Package fswatch runs a callback when files matching glob patterns change.
package fswatch

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/match"
)

// DefaultDebounce is the quiet period before changes are reported.
const DefaultDebounce = 100 * time.Millisecond

// ErrClosed is returned when using a closed watcher.
var ErrClosed = errors.New("watcher is closed")

// DefaultIgnoreDirs are never descended into.
var DefaultIgnoreDirs = []string{".git", "node_modules"}

// Config configures a Watcher.
type Config struct {
	// Root is the directory relative patterns are resolved against.
	Root string
	// Patterns select the files to report. A * matches any run of
	// characters, including path separators. Patterns starting with !
	// exclude matches.
	Patterns []string
	// Debounce collapses bursts of changes. Defaults to DefaultDebounce.
	Debounce time.Duration
	// IgnoreDirs are directory names that are not watched.
	IgnoreDirs []string
}

// Watcher reports changed files matching its patterns.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	include  []string
	exclude  []string
	debounce time.Duration
	ignore   []string
	onChange func(paths []string)

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
	timer   *time.Timer
	lastErr error
	watched map[string]bool

	runMu   sync.Mutex
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New starts watching. onChange receives the sorted set of changed paths
// after each quiet period; calls never overlap.
func New(cfg Config, onChange func(paths []string)) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: cfg.Debounce,
		ignore:   cfg.IgnoreDirs,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		watched:  make(map[string]bool),
		closeCh:  make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.ignore == nil {
		w.ignore = DefaultIgnoreDirs
	}
	for _, p := range cfg.Patterns {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			w.exclude = append(w.exclude, w.absPattern(rest))
			continue
		}
		w.include = append(w.include, w.absPattern(p))
	}

	for _, p := range w.include {
		if err := w.watchRecursive(baseDir(p)); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// absPattern makes a pattern absolute and slash-separated.
func (w *Watcher) absPattern(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.root, p)
	}
	return filepath.ToSlash(p)
}

// baseDir returns the longest directory prefix of pattern without
// wildcards, as an OS path.
func baseDir(pattern string) string {
	segments := strings.Split(pattern, "/")
	static := segments[:0:0]
	for _, seg := range segments {
		if strings.ContainsAny(seg, "*?") {
			return filepath.FromSlash(strings.Join(static, "/"))
		}
		static = append(static, seg)
	}
	return filepath.Dir(filepath.FromSlash(pattern))
}

// Matches reports whether path is selected by the patterns.
func (w *Watcher) Matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	p := filepath.ToSlash(abs)
	for _, ex := range w.exclude {
		if match.Match(p, ex) {
			return false
		}
	}
	for _, in := range w.include {
		if match.Match(p, in) {
			return true
		}
	}
	return false
}

func (w *Watcher) watchRecursive(dir string) error {
	if dir == "" {
		dir = "/"
	}
	info, err := os.Stat(dir)
	if err != nil {
		// The directory may appear later; its parent is watched instead.
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		return w.watchRecursive(parent)
	}
	if !info.IsDir() {
		return w.add(filepath.Dir(dir))
	}
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && slices.Contains(w.ignore, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil {
			w.recordError(err)
		}
		return nil
	})
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.recordError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !slices.Contains(w.ignore, filepath.Base(ev.Name)) {
				_ = w.watchRecursive(ev.Name)
			}
			return
		}
	}
	if ev.Op == fsnotify.Chmod || !w.Matches(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[ev.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	slices.Sort(paths)
	w.runMu.Lock()
	defer w.runMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) recordError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// Err returns the last error reported by the underlying watcher.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Close stops the watcher. It waits for a running callback to return.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	err := w.fsw.Close()
	w.runMu.Lock()
	defer w.runMu.Unlock()
	return err
}
