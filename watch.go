package tasktree

import (
	"context"
	"errors"
	"fmt"
)

// bindWatches rewires every resolved record that has a watch to run once
// and then watch its sources.
func (b *build) bindWatches() error {
	for _, rec := range b.records {
		if err := b.bindWatch(rec); err != nil {
			return err
		}
	}
	return nil
}

// bindWatch replaces rec's unit with one that runs it once, then re-runs
// the callback on every change to the watched sources until the context
// ends. The callback is the trigger list when one is given, else the task
// itself. The watch is cleared, so binding twice is a no-op.
func (b *build) bindWatch(rec *Record) error {
	if rec.Watch == nil || rec.State != Resolved {
		return nil
	}
	spec := rec.Watch
	rec.Watch = nil

	callback := rec.Unit
	if len(spec.Trigger) > 0 {
		u, err := b.compileSteps(rec, spec.Trigger, true)
		switch {
		case err == nil:
			callback = u
		case errors.Is(err, ErrNotRunnable), errors.Is(err, ErrCapabilityNotFound):
			b.warnf("task %s: watch trigger: %v; watching without it", rec.ID, err)
		default:
			return fmt.Errorf("task %s: compile watch trigger: %w", rec.ID, err)
		}
	}

	id := rec.ID
	cwd := rec.Cwd
	sources := b.watchSources(spec.Sources)
	first := rec.Unit
	rt := b.rt
	watched := func(ctx context.Context) error {
		if err := first(ctx); err != nil {
			return err
		}
		w, err := rt.Watch(ctx, sources, WatchOptions{Cwd: cwd}, callback)
		if err != nil {
			return fmt.Errorf("watch %s: %w", id, err)
		}
		defer func() { _ = w.Close() }()
		<-ctx.Done()
		return nil
	}
	b.debugf("task %s watches %v", id, sources)
	return b.register(rec, watched)
}

// watchSources replaces sources naming a task with that task's file.
func (b *build) watchSources(sources []string) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		if rec, ok := b.byID[s]; ok {
			out[i] = rec.File
			continue
		}
		out[i] = s
	}
	return out
}
