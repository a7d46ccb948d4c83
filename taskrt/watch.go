package taskrt

import (
	"context"
	"sync"

	"github.com/fredrikaverpil/tasktree"
	"github.com/fredrikaverpil/tasktree/internal/fswatch"
)

type watcher struct {
	fw   *fswatch.Watcher
	once sync.Once
	err  error
	stop chan struct{}
}

func (w *watcher) Close() error {
	w.once.Do(func() {
		close(w.stop)
		w.err = w.fw.Close()
	})
	return w.err
}

// Watch runs cb each time files matching sources change. Errors from cb
// are printed and do not stop the watch. The watch ends when ctx is done
// or the returned Watcher is closed.
func (r *Runtime) Watch(ctx context.Context, sources []string, opts tasktree.WatchOptions, cb tasktree.Unit) (tasktree.Watcher, error) {
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = r.debounce
	}
	root := opts.Cwd
	if root == "" {
		root = "."
	}
	// Task output is held back until the task ends, and a watch only
	// ends on cancellation. Report through the runtime output instead.
	out := r.out
	runCtx := tasktree.WithOutput(ctx, out)
	fw, err := fswatch.New(fswatch.Config{
		Root:     root,
		Patterns: sources,
		Debounce: debounce,
	}, func(paths []string) {
		if ctx.Err() != nil {
			return
		}
		if tasktree.VerboseFromContext(ctx) {
			for _, p := range paths {
				out.Printf("changed: %s\n", p)
			}
		}
		if err := cb(runCtx); err != nil {
			out.Errorf("watch %s: %v\n", tasktree.TaskIDFromContext(ctx), err)
		}
	})
	if err != nil {
		return nil, err
	}

	w := &watcher{fw: fw, stop: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.stop:
		}
	}()
	return w, nil
}
