package tasktree

import (
	"errors"
	"fmt"
	"path/filepath"
)

// normalize turns a loaded task export into a Record. A record whose spec
// is a single invokable and which has no watch is bound and registered
// right away; everything else is left pending for the compiler.
func (b *build) normalize(leaf *Leaf, id string, src TaskSource) (*Record, error) {
	rec := &Record{ID: id, File: leaf.Path, Cwd: leaf.Cwd}

	var watchFunc WatchFunc
	switch v := src.(type) {
	case *Invokable:
		watchFunc = normalizeInvokable(rec, v)
	case DependencyList:
		rec.Spec = append([]Step{}, v...)
	case *Descriptor:
		watchFunc = b.normalizeDescriptor(rec, v)
	case Alias:
		rec.Spec = []Step{Ref(v)}
	case Invalid:
		b.warnf("task %s: %s export is not a task, using a no-op", id, v.Kind)
		rec.Spec = []Step{}
	default:
		b.warnf("task %s: unsupported export %T, using a no-op", id, src)
		rec.Spec = []Step{}
	}

	if watchFunc != nil {
		spec, err := watchFunc(b.settings)
		if err != nil {
			return nil, fmt.Errorf("task %s: compute watch: %w", id, err)
		}
		rec.Watch = spec
	}

	if call, ok := singleCall(rec.Spec); ok && rec.Watch == nil {
		u, err := b.inject.bind(rec, call.Fn)
		if err != nil {
			if errors.Is(err, ErrCapabilityNotFound) {
				rec.fail(err)
				b.warnf("task %s: %v", id, err)
				return rec, nil
			}
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		if err := b.register(rec, u); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// normalizeInvokable lifts the task-level fields off inv onto rec.
func normalizeInvokable(rec *Record, inv *Invokable) WatchFunc {
	rec.Spec = append(append([]Step{}, inv.Deps...), Call{Fn: inv.bare()})
	rec.Help = inv.Help
	rec.Watch = cloneWatch(inv.Watch)
	rec.Inject = inv.Inject
	if inv.Cwd != "" {
		rec.Cwd = resolveCwd(rec.Cwd, inv.Cwd)
	}
	return inv.WatchFunc
}

func (b *build) normalizeDescriptor(rec *Record, d *Descriptor) WatchFunc {
	var watchFunc WatchFunc
	spec := append([]Step{}, d.Deps...)
	switch fn := d.Fn.(type) {
	case *Invokable:
		if fn.hasSideChannel() {
			watchFunc = normalizeInvokable(rec, fn)
			spec = append(spec, rec.Spec...)
		} else {
			spec = append(spec, Call{Fn: fn})
		}
	case DependencyList:
		spec = append(spec, fn...)
	case Alias:
		spec = append(spec, Ref(fn))
	case nil:
		b.warnf("task %s: descriptor has no fn", rec.ID)
	default:
		b.warnf("task %s: descriptor fn %T is not a task, ignoring it", rec.ID, fn)
	}
	rec.Spec = spec

	if d.Help != "" {
		rec.Help = d.Help
	}
	if d.Watch != nil {
		rec.Watch = cloneWatch(d.Watch)
	}
	if d.WatchFunc != nil {
		watchFunc = d.WatchFunc
	}
	if d.Cwd != "" {
		rec.Cwd = resolveCwd(rec.Cwd, d.Cwd)
	}
	if len(d.Inject) > 0 {
		merged := make(map[string]any, len(rec.Inject)+len(d.Inject))
		for k, v := range rec.Inject {
			merged[k] = v
		}
		for k, v := range d.Inject {
			merged[k] = v
		}
		rec.Inject = merged
	}
	return watchFunc
}

func singleCall(spec []Step) (Call, bool) {
	if len(spec) != 1 {
		return Call{}, false
	}
	call, ok := spec[0].(Call)
	return call, ok && call.Fn != nil
}

func resolveCwd(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

func cloneWatch(w *WatchSpec) *WatchSpec {
	if w == nil {
		return nil
	}
	return &WatchSpec{
		Sources: append([]string{}, w.Sources...),
		Trigger: append([]Step{}, w.Trigger...),
	}
}
