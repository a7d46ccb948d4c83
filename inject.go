package tasktree

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/fredrikaverpil/tasktree/settings"
)

// Reserved parameter names. The handle name is configurable.
const (
	DefaultHandleName = "gulp"
	DoneParam         = "done"
	SettingsParam     = "settings"
	// MapperKey is the settings key holding parameter name aliases.
	MapperKey = "injectionMapper"
)

// injector resolves invokable parameters to values and wraps the
// invokable into a Unit.
type injector struct {
	rt         Runtime
	settings   settings.Settings
	source     CapabilitySource
	handleName string
	prefix     string
	families   []FamilyRewrite
	reflector  *reflector
}

// bind resolves every parameter of inv for rec and returns the unit that
// calls it. Capabilities are loaded here, once per binding.
func (in *injector) bind(rec *Record, inv *Invokable) (Unit, error) {
	params := in.reflector.reflect(inv)
	static := make([]any, len(params))
	doneIndex := -1
	for i, p := range params {
		name := in.mapName(p.Name)
		switch name {
		case DoneParam:
			doneIndex = i
			continue
		case SettingsParam:
			static[i] = in.settings
			continue
		case in.handleName:
			static[i] = NewHandle(in.rt, rec.Cwd)
			continue
		}
		v, err := in.capability(rec, name)
		if err != nil {
			// Only a capability that is missing everywhere falls back.
			var cerr *CapabilityNotFoundError
			if p.HasDefault && errors.As(err, &cerr) && cerr.Err == nil {
				static[i] = p.Value
				continue
			}
			return nil, err
		}
		static[i] = v
	}

	fn := inv.Fn
	id := rec.ID
	return func(ctx context.Context) error {
		ctx = WithTaskID(ctx, id)
		args := slices.Clone(static)
		var finished chan error
		if doneIndex >= 0 {
			finished = make(chan error, 1)
			var once sync.Once
			args[doneIndex] = Done(func(err error) {
				once.Do(func() { finished <- err })
			})
		}
		if fn == nil {
			return nil
		}
		if err := fn(ctx, args); err != nil {
			return err
		}
		if finished == nil {
			return nil
		}
		select {
		case err := <-finished:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

// mapName applies the settings' parameter name aliases.
func (in *injector) mapName(name string) string {
	mapper, ok := in.settings[MapperKey].(map[string]any)
	if !ok {
		return name
	}
	if mapped, ok := mapper[name].(string); ok && mapped != "" {
		return mapped
	}
	return name
}

// capability resolves a non-reserved parameter: a per-task override
// first, then the naming convention.
func (in *injector) capability(rec *Record, name string) (any, error) {
	var explicit string
	if override, ok := rec.Inject[name]; ok {
		id, isID := override.(string)
		if !isID {
			return override, nil
		}
		explicit = id
	}

	tried := Candidates(name, explicit, in.prefix, in.families)
	var lastErr error
	for _, id := range tried {
		if in.source == nil {
			break
		}
		v, err := in.source.Load(id, rec.Cwd)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrCapabilityNotFound) {
			lastErr = err
		}
	}
	return nil, &CapabilityNotFoundError{Param: name, Tried: tried, Err: lastErr}
}
