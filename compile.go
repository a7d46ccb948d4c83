package tasktree

import (
	"errors"
	"fmt"
)

// compile resolves every pending record. Each pass tries all pending
// records; a record referencing a task that is not runnable yet waits for
// the next pass. Passes stop once one makes no progress, so cycles and
// dangling references end as Failed records carrying an UnresolvedError.
// A capability failure fails only its record; any other error aborts.
func (b *build) compile() error {
	pending := b.pending()
	maxPasses := len(pending) + 1
	for pass := 1; pass <= maxPasses && len(pending) > 0; pass++ {
		before := len(pending)
		for _, rec := range pending {
			if err := b.compileRecord(rec); err != nil {
				return err
			}
		}
		pending = b.pending()
		b.debugf("compile pass %d: %d resolved, %d pending", pass, before-len(pending), len(pending))
		if len(pending) == before {
			break
		}
	}

	for _, rec := range pending {
		rec.fail(&UnresolvedError{ID: rec.ID, Missing: b.missingRefs(rec.Spec)})
		b.warnf("%v", rec.Err)
	}
	return nil
}

func (b *build) compileRecord(rec *Record) error {
	u, err := b.compileSteps(rec, rec.Spec, true)
	switch {
	case err == nil:
		return b.register(rec, u)
	case errors.Is(err, ErrNotRunnable):
		return nil
	case errors.Is(err, ErrCapabilityNotFound):
		rec.fail(err)
		b.warnf("task %s: %v", rec.ID, err)
		return nil
	default:
		return fmt.Errorf("compile task %s: %w", rec.ID, err)
	}
}

// compileSteps composes steps into one unit. The top level runs serially
// and every nested group flips the mode.
func (b *build) compileSteps(rec *Record, steps []Step, serial bool) (Unit, error) {
	units := make([]Unit, 0, len(steps))
	for _, s := range steps {
		switch v := s.(type) {
		case Ref:
			target, ok := b.byID[string(v)]
			if !ok || target.State != Resolved {
				return nil, &notRunnableError{ref: string(v)}
			}
			units = append(units, target.Unit)
		case Call:
			u, err := b.bindCall(rec, v.Fn)
			if err != nil {
				return nil, err
			}
			units = append(units, u)
		case Group:
			u, err := b.compileSteps(rec, v, !serial)
			if err != nil {
				return nil, err
			}
			units = append(units, u)
		default:
			return nil, fmt.Errorf("unknown step %T", s)
		}
	}
	if serial {
		return b.rt.Series(units...), nil
	}
	return b.rt.Parallel(units...), nil
}

// bindCall binds an inline invokable once per record, so retried passes
// do not load its capabilities again.
func (b *build) bindCall(rec *Record, inv *Invokable) (Unit, error) {
	key := boundKey{rec: rec, inv: inv}
	if u, ok := b.bound[key]; ok {
		return u, nil
	}
	if inv == nil {
		return nil, errors.New("call without invokable")
	}
	u, err := b.inject.bind(rec, inv)
	if err != nil {
		return nil, err
	}
	b.bound[key] = u
	return u, nil
}

type boundKey struct {
	rec *Record
	inv *Invokable
}

// missingRefs lists the references in steps that are not runnable.
func (b *build) missingRefs(steps []Step) []string {
	var out []string
	for _, s := range steps {
		switch v := s.(type) {
		case Ref:
			if target, ok := b.byID[string(v)]; !ok || target.State != Resolved {
				out = append(out, string(v))
			}
		case Group:
			out = append(out, b.missingRefs(v)...)
		}
	}
	return out
}
