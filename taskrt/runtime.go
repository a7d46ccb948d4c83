// Package taskrt is the goyek-backed implementation of tasktree.Runtime.
//
// Compiled units are registered as goyek tasks on a flow, composed with
// errgroup, and run through the flow's own executor so that the usual
// goyek flags (-v, -dry-run, -skip) keep working.
package taskrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/fredrikaverpil/tasktree"
	"github.com/goyek/goyek/v3"
)

// ErrUnknownTask is returned by Run for ids that were never registered.
var ErrUnknownTask = errors.New("unknown task")

// Options configures a Runtime.
type Options struct {
	// Flow is the goyek flow tasks are defined on. Defaults to
	// goyek.DefaultFlow so that boot.Main picks them up.
	Flow *goyek.Flow
	// Output receives watch errors and other runtime diagnostics.
	// Defaults to tasktree.StdOutput.
	Output *tasktree.Output
	// Debounce is used by Watch when WatchOptions.Debounce is zero.
	Debounce time.Duration
	// BinDirs are searched for commands by Exec. Defaults to
	// DefaultBinDirs.
	BinDirs []string
	// Verbose streams command output instead of capturing it.
	Verbose bool
}

// Runtime registers units on a goyek flow.
type Runtime struct {
	flow     *goyek.Flow
	out      *tasktree.Output
	debounce time.Duration
	binDirs  []string
	verbose  bool

	mu    sync.Mutex
	tasks map[string]*goyek.DefinedTask
}

var _ tasktree.Runtime = (*Runtime)(nil)

// New returns a Runtime for opts.
func New(opts Options) *Runtime {
	if opts.Flow == nil {
		opts.Flow = goyek.DefaultFlow
	}
	if opts.Output == nil {
		opts.Output = tasktree.StdOutput()
	}
	if opts.BinDirs == nil {
		opts.BinDirs = DefaultBinDirs
	}
	return &Runtime{
		flow:     opts.Flow,
		out:      opts.Output,
		debounce: opts.Debounce,
		binDirs:  opts.BinDirs,
		verbose:  opts.Verbose,
		tasks:    make(map[string]*goyek.DefinedTask),
	}
}

// Flow returns the flow the runtime defines tasks on.
func (r *Runtime) Flow() *goyek.Flow {
	return r.flow
}

// Register defines id on the flow. An earlier definition under the same id
// is undefined first.
func (r *Runtime) Register(id, usage string, unit tasktree.Unit) (err error) {
	if id == "" {
		return errors.New("register: empty task id")
	}
	if unit == nil {
		return fmt.Errorf("register %s: nil unit", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// goyek reports invalid definitions by panicking.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("register %s: %v", id, rec)
		}
	}()

	if prev, ok := r.tasks[id]; ok {
		r.flow.Undefine(prev)
		delete(r.tasks, id)
	}
	r.tasks[id] = r.flow.Define(goyek.Task{
		Name:  id,
		Usage: usage,
		Action: func(a *goyek.A) {
			w := a.Output()
			ctx := tasktree.WithOutput(a.Context(), &tasktree.Output{Stdout: w, Stderr: w})
			ctx = tasktree.WithTaskID(ctx, id)
			ctx = tasktree.WithVerbose(ctx, r.verbose)
			if err := unit(ctx); err != nil {
				a.Fatal(err)
			}
		},
	})
	return nil
}

// Tasks returns the registered ids, sorted.
func (r *Runtime) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Usage returns the usage text of a registered task.
func (r *Runtime) Usage(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dt, ok := r.tasks[id]
	if !ok {
		return "", false
	}
	return dt.Usage(), true
}

// Run executes the given tasks through the flow.
func (r *Runtime) Run(ctx context.Context, ids ...string) error {
	r.mu.Lock()
	for _, id := range ids {
		if _, ok := r.tasks[id]; !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownTask, id)
		}
	}
	r.mu.Unlock()
	return r.flow.Execute(ctx, ids)
}

// SetOutput redirects the flow's reporter output.
func (r *Runtime) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	r.flow.SetOutput(w)
}
