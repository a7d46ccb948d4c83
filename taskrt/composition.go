package taskrt

import (
	"context"
	"sync"

	"github.com/fredrikaverpil/tasktree"
	"golang.org/x/sync/errgroup"
)

// Series runs units one after another and stops at the first error.
func (r *Runtime) Series(units ...tasktree.Unit) tasktree.Unit {
	return func(ctx context.Context) error {
		for _, u := range units {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := u(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Parallel starts all units at once and waits for them. The first error
// cancels the others and is returned. Each unit writes to its own buffer,
// flushed to the parent output as soon as the unit finishes.
func (r *Runtime) Parallel(units ...tasktree.Unit) tasktree.Unit {
	return func(ctx context.Context) error {
		if len(units) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(units) == 1 {
			return units[0](ctx)
		}

		parentOut := tasktree.OutputFromContext(ctx)
		buffers := make([]*bufferedOutput, len(units))
		for i := range units {
			buffers[i] = newBufferedOutput(parentOut)
		}
		var flushMu sync.Mutex

		g, gCtx := errgroup.WithContext(ctx)
		for i, u := range units {
			g.Go(func() error {
				err := u(tasktree.WithOutput(gCtx, buffers[i].Output()))
				flushMu.Lock()
				buffers[i].Flush()
				flushMu.Unlock()
				return err
			})
		}
		return g.Wait()
	}
}
