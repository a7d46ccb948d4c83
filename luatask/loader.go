// Package luatask loads task files written in Lua.
//
// A task file returns its export:
//
//	return function(gulp, done, settings) ... end   -- an invokable
//	return { "clean", { "js", "css" } }              -- a dependency list
//	return { fn = function(gulp) end, help = "..." } -- a descriptor
//	return "build"                                   -- an alias
//
// Each file gets its own Lua state. Calls into a state are serialized.
package luatask

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fredrikaverpil/tasktree"
	lua "github.com/yuin/gopher-lua"
)

// ErrClosed is returned when loading through a closed Loader.
var ErrClosed = errors.New("lua loader is closed")

// Loader implements tasktree.Loader for Lua task files.
type Loader struct {
	mu     sync.Mutex
	states []*state
	closed bool
}

var _ tasktree.Loader = (*Loader)(nil)

// New creates a Loader.
func New() *Loader {
	return &Loader{}
}

// Load runs the file at path and converts its return value.
func (l *Loader) Load(path string) (tasktree.TaskSource, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.mu.Unlock()

	st := newState(path)
	export, err := st.run()
	if err != nil {
		st.close()
		return nil, err
	}
	src, err := st.source(export)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		st.close()
		return nil, ErrClosed
	}
	l.states = append(l.states, st)
	return src, nil
}

// Close releases all Lua states. Invokables loaded earlier fail afterwards.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for _, st := range l.states {
		st.close()
	}
	l.states = nil
	return nil
}

// state wraps the Lua state of one task file.
//
// gopher-lua states are not goroutine-safe; every access holds mu.
type state struct {
	mu      sync.Mutex
	L       *lua.LState
	path    string
	name    string
	modules map[string]lua.LValue
	closed  bool
}

func newState(path string) *state {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	st := &state{
		L:       L,
		path:    path,
		name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		modules: make(map[string]lua.LValue),
	}
	L.SetGlobal("print", L.NewFunction(st.print))
	registerHandle(L)
	return st
}

func (st *state) close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.closed {
		st.closed = true
		st.L.Close()
	}
}

// run executes the file and returns its first return value.
func (st *state) run() (export lua.LValue, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	err = st.protect(func() error {
		top := st.L.GetTop()
		if err := st.L.DoFile(st.path); err != nil {
			return err
		}
		export = lua.LNil
		if st.L.GetTop() > top {
			export = st.L.Get(top + 1)
		}
		st.L.SetTop(top)
		return nil
	})
	return export, err
}

// protect runs fn and converts a panic into an error.
func (st *state) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic in %s: %v", st.path, r)
		}
	}()
	return fn()
}

// call invokes fn with args and returns its results. Callers hold mu.
func (st *state) call(ctx context.Context, fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if st.closed {
		return nil, ErrClosed
	}
	if ctx != nil {
		st.L.SetContext(ctx)
		defer st.L.RemoveContext()
	}
	var results []lua.LValue
	err := st.protect(func() error {
		top := st.L.GetTop()
		if err := st.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
			return err
		}
		results = make([]lua.LValue, nret)
		for i := range nret {
			results[i] = st.L.Get(top + 1 + i)
		}
		st.L.SetTop(top)
		return nil
	})
	return results, err
}

// print writes to the output of the running task.
func (st *state) print(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	tasktree.Println(contextOf(L), strings.Join(parts, "\t"))
	return 0
}

func contextOf(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
