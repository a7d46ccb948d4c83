package tasktree

import (
	"context"
	"time"
)

// Unit is one executable step of the task graph.
type Unit func(ctx context.Context) error

// Runtime schedules and executes units. The engine only compiles and
// registers; everything that touches execution goes through a Runtime.
type Runtime interface {
	// Register makes unit runnable under id, replacing any earlier unit.
	Register(id, usage string, unit Unit) error
	// Series composes units to run one after another, stopping at the
	// first error.
	Series(units ...Unit) Unit
	// Parallel composes units to run concurrently.
	Parallel(units ...Unit) Unit
	// Watch invokes cb whenever a file matching sources changes, until ctx
	// is done or the returned Watcher is closed.
	Watch(ctx context.Context, sources []string, opts WatchOptions, cb Unit) (Watcher, error)
	// Src expands globs to the matching file paths.
	Src(globs []string, opts FileOptions) ([]string, error)
	// Dest copies files into dir and returns the written paths.
	Dest(files []string, dir string, opts FileOptions) ([]string, error)
	// Symlink links files into dir and returns the created links.
	Symlink(files []string, dir string, opts FileOptions) ([]string, error)
	// Exec runs a command in dir.
	Exec(ctx context.Context, dir, name string, args ...string) error
}

// Watcher is a running filesystem watch.
type Watcher interface {
	Close() error
}

// WatchOptions configures Runtime.Watch.
type WatchOptions struct {
	// Cwd is the directory relative sources are resolved against.
	Cwd string
	// Debounce collapses bursts of events into one callback.
	Debounce time.Duration
}

// FileOptions configures the Runtime file helpers.
type FileOptions struct {
	// Cwd is the directory relative paths are resolved against.
	Cwd string
	// Base is stripped from source paths when computing destinations.
	Base string
}

// FileOption overrides a FileOptions field for one Handle call.
type FileOption func(*FileOptions)

// WithCwd overrides the working directory of a Handle call.
func WithCwd(dir string) FileOption {
	return func(o *FileOptions) { o.Cwd = dir }
}

// WithBase sets the base directory stripped from source paths.
func WithBase(dir string) FileOption {
	return func(o *FileOptions) { o.Base = dir }
}

// Handle is the runtime handle injected into tasks. Its file and watch
// helpers are bound to the task's working directory.
type Handle struct {
	rt  Runtime
	cwd string
}

// NewHandle returns a handle on rt bound to cwd.
func NewHandle(rt Runtime, cwd string) *Handle {
	return &Handle{rt: rt, cwd: cwd}
}

// Cwd returns the directory the handle is bound to.
func (h *Handle) Cwd() string {
	return h.cwd
}

// Runtime returns the underlying runtime.
func (h *Handle) Runtime() Runtime {
	return h.rt
}

func (h *Handle) options(opts []FileOption) FileOptions {
	o := FileOptions{Cwd: h.cwd}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Src expands globs relative to the handle's directory.
func (h *Handle) Src(globs []string, opts ...FileOption) ([]string, error) {
	return h.rt.Src(globs, h.options(opts))
}

// Dest copies files into dir.
func (h *Handle) Dest(files []string, dir string, opts ...FileOption) ([]string, error) {
	return h.rt.Dest(files, dir, h.options(opts))
}

// Symlink links files into dir.
func (h *Handle) Symlink(files []string, dir string, opts ...FileOption) ([]string, error) {
	return h.rt.Symlink(files, dir, h.options(opts))
}

// Exec runs a command in the handle's directory.
func (h *Handle) Exec(ctx context.Context, name string, args ...string) error {
	return h.rt.Exec(ctx, h.cwd, name, args...)
}

// Watch runs cb whenever a file matching sources changes.
func (h *Handle) Watch(ctx context.Context, sources []string, cb Unit, opts ...FileOption) (Watcher, error) {
	o := h.options(opts)
	return h.rt.Watch(ctx, sources, WatchOptions{Cwd: o.Cwd}, cb)
}

// Done is the completion callback injected into tasks that ask for it.
// The task is complete once Done is called; a non-nil error fails it.
type Done func(err error)
