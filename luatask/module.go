package luatask

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fredrikaverpil/tasktree"
	lua "github.com/yuin/gopher-lua"
)

// DefaultModuleDir is where ModuleSource looks for capability modules,
// relative to the task working directory.
const DefaultModuleDir = "lua_modules"

// Module is a capability implemented as a Lua file. It is loaded into
// the state of each task file that receives it.
type Module struct {
	ID   string
	Path string
}

// ModuleSource finds capabilities as Lua modules on disk. A capability id
// resolves to <cwd>/<Dir>/<id>.lua or <cwd>/<Dir>/<id>/init.lua.
type ModuleSource struct {
	// Dir defaults to DefaultModuleDir. Absolute paths are used as is.
	Dir string
}

var _ tasktree.CapabilitySource = ModuleSource{}

// Load implements tasktree.CapabilitySource.
func (m ModuleSource) Load(id, cwd string) (any, error) {
	dir := m.Dir
	if dir == "" {
		dir = DefaultModuleDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}
	for _, p := range []string{
		filepath.Join(dir, id+".lua"),
		filepath.Join(dir, id, "init.lua"),
	} {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return Module{ID: id, Path: p}, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("module %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("module %s: %w", id, tasktree.ErrCapabilityNotFound)
}

// module runs m in st once and returns its value. Callers hold mu.
func (st *state) module(m Module) (lua.LValue, error) {
	if v, ok := st.modules[m.Path]; ok {
		return v, nil
	}
	var mod lua.LValue = lua.LNil
	err := st.protect(func() error {
		top := st.L.GetTop()
		if err := st.L.DoFile(m.Path); err != nil {
			return err
		}
		if st.L.GetTop() > top {
			mod = st.L.Get(top + 1)
		}
		st.L.SetTop(top)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load module %s: %w", m.ID, err)
	}
	st.modules[m.Path] = mod
	return mod, nil
}
