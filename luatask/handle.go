package luatask

import (
	"context"

	"github.com/fredrikaverpil/tasktree"
	lua "github.com/yuin/gopher-lua"
)

const handleType = "tasktree.handle"

type luaHandle struct {
	h  *tasktree.Handle
	st *state
}

var handleMethods = map[string]lua.LGFunction{
	"cwd":     handleCwd,
	"src":     handleSrc,
	"dest":    handleDest,
	"symlink": handleSymlink,
	"watch":   handleWatch,
	"exec":    handleExec,
}

func registerHandle(L *lua.LState) {
	mt := L.NewTypeMetatable(handleType)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), handleMethods))
}

func newHandle(L *lua.LState, st *state, h *tasktree.Handle) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = &luaHandle{h: h, st: st}
	L.SetMetatable(ud, L.GetTypeMetatable(handleType))
	return ud
}

func checkHandle(L *lua.LState) *luaHandle {
	ud := L.CheckUserData(1)
	if h, ok := ud.Value.(*luaHandle); ok {
		return h
	}
	L.ArgError(1, "handle expected")
	return nil
}

// fileOptions reads an optional { cwd = ..., base = ... } table.
func fileOptions(L *lua.LState, n int) []tasktree.FileOption {
	t, ok := L.Get(n).(*lua.LTable)
	if !ok {
		return nil
	}
	var opts []tasktree.FileOption
	if cwd, ok := t.RawGetString("cwd").(lua.LString); ok {
		opts = append(opts, tasktree.WithCwd(string(cwd)))
	}
	if base, ok := t.RawGetString("base").(lua.LString); ok {
		opts = append(opts, tasktree.WithBase(string(base)))
	}
	return opts
}

// checkStrings reads a string or a list of strings.
func checkStrings(L *lua.LState, n int) []string {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		out, err := stringList(v, "argument")
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return out
	default:
		L.TypeError(n, lua.LTString)
		return nil
	}
}

func pushStrings(L *lua.LState, items []string) {
	t := L.CreateTable(len(items), 0)
	for i, s := range items {
		t.RawSetInt(i+1, lua.LString(s))
	}
	L.Push(t)
}

func handleCwd(L *lua.LState) int {
	L.Push(lua.LString(checkHandle(L).h.Cwd()))
	return 1
}

func handleSrc(L *lua.LState) int {
	h := checkHandle(L)
	files, err := h.h.Src(checkStrings(L, 2), fileOptions(L, 3)...)
	if err != nil {
		L.RaiseError("src: %v", err)
	}
	pushStrings(L, files)
	return 1
}

func handleDest(L *lua.LState) int {
	h := checkHandle(L)
	files, err := h.h.Dest(checkStrings(L, 2), L.CheckString(3), fileOptions(L, 4)...)
	if err != nil {
		L.RaiseError("dest: %v", err)
	}
	pushStrings(L, files)
	return 1
}

func handleSymlink(L *lua.LState) int {
	h := checkHandle(L)
	files, err := h.h.Symlink(checkStrings(L, 2), L.CheckString(3), fileOptions(L, 4)...)
	if err != nil {
		L.RaiseError("symlink: %v", err)
	}
	pushStrings(L, files)
	return 1
}

// handleWatch runs fn on changes for as long as the calling task runs.
func handleWatch(L *lua.LState) int {
	h := checkHandle(L)
	sources := checkStrings(L, 2)
	fn := L.CheckFunction(3)
	st := h.st
	cb := func(ctx context.Context) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		res, err := st.call(ctx, fn, 2)
		if err != nil {
			return err
		}
		return resultError(res[0], res[1])
	}
	if _, err := h.h.Watch(contextOf(L), sources, cb, fileOptions(L, 4)...); err != nil {
		L.RaiseError("watch: %v", err)
	}
	return 0
}

// handleExec runs a command in the handle's directory.
func handleExec(L *lua.LState) int {
	h := checkHandle(L)
	name := L.CheckString(2)
	args := make([]string, 0, L.GetTop()-2)
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, L.CheckString(i))
	}
	if err := h.h.Exec(contextOf(L), name, args...); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}
