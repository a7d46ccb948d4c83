package luatask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/fredrikaverpil/tasktree"
	"github.com/fredrikaverpil/tasktree/settings"
	lua "github.com/yuin/gopher-lua"
)

// descriptorKeys are the fields that make a table a descriptor.
var descriptorKeys = []string{"fn", "deps", "help", "watch", "cwd", "inject", "defaults"}

// source converts the value a file returns.
func (st *state) source(lv lua.LValue) (tasktree.TaskSource, error) {
	switch v := lv.(type) {
	case lua.LString:
		return tasktree.Alias(v), nil
	case *lua.LFunction:
		return st.invokable(v, st.name), nil
	case *lua.LTable:
		if isDescriptor(v) {
			return st.descriptor(v)
		}
		if !isList(v) {
			return tasktree.Invalid{Kind: "table"}, nil
		}
		steps, err := st.steps(v, "")
		if err != nil {
			return nil, err
		}
		return tasktree.DependencyList(steps), nil
	default:
		return tasktree.Invalid{Kind: lv.Type().String()}, nil
	}
}

func (st *state) descriptor(t *lua.LTable) (*tasktree.Descriptor, error) {
	d := &tasktree.Descriptor{}

	switch fn := t.RawGetString("fn").(type) {
	case *lua.LNilType:
	case *lua.LFunction:
		inv := st.invokable(fn, st.name)
		if defaults, ok := t.RawGetString("defaults").(*lua.LTable); ok {
			applyDefaults(inv, defaults)
		}
		d.Fn = inv
	case lua.LString:
		d.Fn = tasktree.Alias(fn)
	case *lua.LTable:
		steps, err := st.steps(fn, "fn")
		if err != nil {
			return nil, err
		}
		d.Fn = tasktree.DependencyList(steps)
	default:
		return nil, fmt.Errorf("fn: unsupported type %s", fn.Type())
	}

	switch deps := t.RawGetString("deps").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		steps, err := st.steps(deps, "deps")
		if err != nil {
			return nil, err
		}
		d.Deps = steps
	case lua.LString:
		d.Deps = []tasktree.Step{tasktree.Ref(deps)}
	default:
		return nil, fmt.Errorf("deps: unsupported type %s", deps.Type())
	}

	var err error
	if d.Help, err = optString(t, "help"); err != nil {
		return nil, err
	}
	if d.Cwd, err = optString(t, "cwd"); err != nil {
		return nil, err
	}

	switch w := t.RawGetString("watch").(type) {
	case *lua.LNilType:
	case *lua.LFunction:
		d.WatchFunc = st.watchFunc(w)
	default:
		if d.Watch, err = st.watchSpec(w); err != nil {
			return nil, err
		}
	}

	switch inject := t.RawGetString("inject").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		d.Inject = make(map[string]any)
		var keyErr error
		inject.ForEach(func(k, v lua.LValue) {
			name, ok := k.(lua.LString)
			if !ok {
				keyErr = fmt.Errorf("inject: key %s is not a string", k)
				return
			}
			d.Inject[string(name)] = toGo(v)
		})
		if keyErr != nil {
			return nil, keyErr
		}
	default:
		return nil, fmt.Errorf("inject: unsupported type %s", inject.Type())
	}
	return d, nil
}

// steps converts an execution list. Strings name tasks, functions run
// inline and nested lists flip the execution mode.
func (st *state) steps(t *lua.LTable, field string) ([]tasktree.Step, error) {
	if !isList(t) {
		return nil, fmt.Errorf("%s: expected a list", fieldName(field))
	}
	n := t.Len()
	steps := make([]tasktree.Step, 0, n)
	for i := 1; i <= n; i++ {
		at := fmt.Sprintf("%s[%d]", field, i)
		switch v := t.RawGetInt(i).(type) {
		case lua.LString:
			steps = append(steps, tasktree.Ref(v))
		case *lua.LFunction:
			name := fmt.Sprintf("%s:%s", st.name, at)
			steps = append(steps, tasktree.Call{Fn: st.invokable(v, name)})
		case *lua.LTable:
			group, err := st.steps(v, at)
			if err != nil {
				return nil, err
			}
			steps = append(steps, tasktree.Group(group))
		default:
			return nil, fmt.Errorf("%s: unsupported step type %s", at, v.Type())
		}
	}
	return steps, nil
}

func (st *state) watchSpec(lv lua.LValue) (*tasktree.WatchSpec, error) {
	switch v := lv.(type) {
	case lua.LString:
		return &tasktree.WatchSpec{Sources: []string{string(v)}}, nil
	case *lua.LTable:
		if isList(v) && v.Len() > 0 {
			sources, err := stringList(v, "watch")
			if err != nil {
				return nil, err
			}
			return &tasktree.WatchSpec{Sources: sources}, nil
		}
		spec := &tasktree.WatchSpec{}
		switch src := v.RawGetString("sources").(type) {
		case lua.LString:
			spec.Sources = []string{string(src)}
		case *lua.LTable:
			sources, err := stringList(src, "watch.sources")
			if err != nil {
				return nil, err
			}
			spec.Sources = sources
		default:
			return nil, fmt.Errorf("watch.sources: unsupported type %s", src.Type())
		}
		switch trig := v.RawGetString("trigger").(type) {
		case *lua.LNilType:
		case lua.LString:
			spec.Trigger = []tasktree.Step{tasktree.Ref(trig)}
		case *lua.LTable:
			steps, err := st.steps(trig, "watch.trigger")
			if err != nil {
				return nil, err
			}
			spec.Trigger = steps
		default:
			return nil, fmt.Errorf("watch.trigger: unsupported type %s", trig.Type())
		}
		return spec, nil
	default:
		return nil, fmt.Errorf("watch: unsupported type %s", lv.Type())
	}
}

// watchFunc calls fn with the settings table and converts its result.
func (st *state) watchFunc(fn *lua.LFunction) tasktree.WatchFunc {
	return func(s settings.Settings) (*tasktree.WatchSpec, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		res, err := st.call(context.Background(), fn, 1, st.toLua(s))
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		if res[0] == lua.LNil {
			return nil, nil
		}
		return st.watchSpec(res[0])
	}
}

// invokable wraps a Lua function. Parameter names come from the
// function's debug information.
func (st *state) invokable(fn *lua.LFunction, name string) *tasktree.Invokable {
	inv := &tasktree.Invokable{Name: name}
	if !fn.IsG && fn.Proto != nil {
		n := int(fn.Proto.NumParameters)
		for i := 0; i < n && i < len(fn.Proto.DbgLocals); i++ {
			inv.Params = append(inv.Params, tasktree.Param{Name: fn.Proto.DbgLocals[i].Name})
		}
	}
	inv.Fn = func(ctx context.Context, args []any) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		lvs := make([]lua.LValue, len(args))
		for i, a := range args {
			if m, ok := a.(Module); ok {
				mod, err := st.module(m)
				if err != nil {
					return err
				}
				lvs[i] = mod
				continue
			}
			lvs[i] = st.toLua(a)
		}
		res, err := st.call(ctx, fn, 2, lvs...)
		if err != nil {
			return err
		}
		return resultError(res[0], res[1])
	}
	return inv
}

// resultError maps the Lua convention of returning false or nil plus a
// message to an error.
func resultError(ok, msg lua.LValue) error {
	if ok == lua.LFalse || (ok == lua.LNil && msg != lua.LNil) {
		if msg == lua.LNil {
			return errors.New("task returned false")
		}
		return errors.New(lua.LVAsString(msg))
	}
	return nil
}

// applyDefaults sets the default expression of each parameter named in
// defaults.
func applyDefaults(inv *tasktree.Invokable, defaults *lua.LTable) {
	for i, p := range inv.Params {
		if v := defaults.RawGetString(p.Name); v != lua.LNil {
			inv.Params[i].Default = defaultExpr(v)
		}
	}
}

// defaultExpr renders a Lua value as a default expression.
func defaultExpr(lv lua.LValue) string {
	switch v := lv.(type) {
	case lua.LString:
		return `"` + string(v) + `"`
	case lua.LBool:
		return strconv.FormatBool(bool(v))
	case lua.LNumber:
		return v.String()
	case *lua.LTable:
		data, err := json.Marshal(toGo(v))
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// toLua converts a Go value for use in st. Callers hold mu.
func (st *state) toLua(v any) lua.LValue {
	L := st.L
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case *tasktree.Handle:
		return newHandle(L, st, val)
	case tasktree.Done:
		return L.NewFunction(func(L *lua.LState) int {
			val(errorArg(L, 1))
			return 0
		})
	case Module:
		mod, err := st.module(val)
		if err != nil {
			return lua.LNil
		}
		return mod
	case lua.LGFunction:
		return L.NewFunction(val)
	case settings.Settings:
		return st.toLua(map[string]any(val))
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		t := L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, st.toLua(e))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, e := range val {
			t.RawSetString(k, st.toLua(e))
		}
		return t
	case error:
		return lua.LString(val.Error())
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

// errorArg reads an optional error argument: nil means success.
func errorArg(L *lua.LState, n int) error {
	switch v := L.Get(n).(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		if v {
			return errors.New("failed")
		}
		return nil
	case *lua.LUserData:
		if err, ok := v.Value.(error); ok {
			return err
		}
	}
	return errors.New(L.ToStringMeta(L.Get(n)).String())
}

// toGo converts a Lua value to plain Go data. Functions are kept as Lua
// values so they can be passed back into the state.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, make(map[*lua.LTable]bool))
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LFunction:
		return v
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		if isList(v) && v.Len() > 0 {
			out := make([]any, v.Len())
			for i := range out {
				out[i] = toGoVisited(v.RawGetInt(i+1), visited)
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			out[lua.LVAsString(k)] = toGoVisited(val, visited)
		})
		return out
	default:
		return nil
	}
}

// isList reports whether t only has the keys 1..n.
func isList(t *lua.LTable) bool {
	n := t.Len()
	count := 0
	list := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		num, ok := k.(lua.LNumber)
		if !ok {
			list = false
			return
		}
		i := int(num)
		if float64(i) != float64(num) || i < 1 || i > n {
			list = false
		}
	})
	return list && count == n
}

func isDescriptor(t *lua.LTable) bool {
	for _, k := range descriptorKeys {
		if t.RawGetString(k) != lua.LNil {
			return true
		}
	}
	return false
}

func optString(t *lua.LTable, key string) (string, error) {
	switch v := t.RawGetString(key).(type) {
	case *lua.LNilType:
		return "", nil
	case lua.LString:
		return string(v), nil
	default:
		return "", fmt.Errorf("%s: expected a string, got %s", key, v.Type())
	}
}

func stringList(t *lua.LTable, field string) ([]string, error) {
	if !isList(t) {
		return nil, fmt.Errorf("%s: expected a list", field)
	}
	out := make([]string, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		s, ok := t.RawGetInt(i).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected a string", field, i)
		}
		out = append(out, string(s))
	}
	return out, nil
}

func fieldName(field string) string {
	if field == "" {
		return "export"
	}
	return field
}
