package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fredrikaverpil/tasktree"
	"github.com/fredrikaverpil/tasktree/luatask"
	"github.com/fredrikaverpil/tasktree/settings"
	"github.com/fredrikaverpil/tasktree/taskrt"
	"github.com/goyek/goyek/v3"
)

// engineConfig holds the options the engine reads from settings.
type engineConfig struct {
	Roots      []string
	Dirs       []string
	Filter     *regexp.Regexp
	Verbose    bool
	Prefix     string
	HandleName string
	ModuleDir  string
}

// engineConfigFrom reads the engine options from resolved settings.
// Relative roots are resolved against cwd.
func engineConfigFrom(s settings.Settings, cwd string) (engineConfig, error) {
	cfg := engineConfig{
		Roots:      s.Strings("roots"),
		Dirs:       s.Strings("dirs"),
		Filter:     tasktree.DefaultFilter,
		Prefix:     s.String("prefix"),
		HandleName: s.String("handle"),
		ModuleDir:  s.String("modules"),
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	for i, r := range cfg.Roots {
		if !filepath.IsAbs(r) {
			cfg.Roots[i] = filepath.Join(cwd, r)
		}
	}
	if len(cfg.Dirs) == 0 {
		cfg.Dirs = tasktree.DefaultDirs
	}
	if expr := s.String("filter"); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return cfg, fmt.Errorf("filter: %w", err)
		}
		cfg.Filter = re
	}
	for _, key := range []string{"verbose", "v"} {
		if v, ok := s.Get(key); ok {
			if b, ok := v.(bool); ok && b {
				cfg.Verbose = true
			}
		}
	}
	return cfg, nil
}

// env is a built task tree and everything it was built from.
type env struct {
	cwd      string
	settings settings.Settings
	config   engineConfig
	rt       *taskrt.Runtime
	loader   *luatask.Loader
	tree     *tasktree.Tree
}

func (e *env) Close() error {
	return e.loader.Close()
}

// findProjectDir walks up from dir to the nearest directory holding the
// package metadata file. It returns dir when there is none.
func findProjectDir(dir string) string {
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, settings.DefaultMetadataFile)); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

// resolve parses args and resolves the settings for the project containing
// the current directory.
func resolve(args []string) (settings.Settings, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting current directory: %w", err)
	}
	cwd := findProjectDir(wd)
	s, err := settings.Resolve(settings.Options{
		Cwd:  cwd,
		Args: settings.ParseArgs(args),
	})
	if err != nil {
		return nil, "", fmt.Errorf("resolving settings: %w", err)
	}
	return s, cwd, nil
}

// build resolves settings and builds the task tree on flow.
func build(ctx context.Context, args []string, flow *goyek.Flow, out *tasktree.Output) (*env, error) {
	s, cwd, err := resolve(args)
	if err != nil {
		return nil, err
	}
	cfg, err := engineConfigFrom(s, cwd)
	if err != nil {
		return nil, err
	}

	rt := taskrt.New(taskrt.Options{Flow: flow, Output: out, Verbose: cfg.Verbose})
	loader := luatask.New()
	roots := make([]tasktree.Root, len(cfg.Roots))
	for i, r := range cfg.Roots {
		roots[i] = tasktree.Root{Path: r}
	}
	tree, err := tasktree.Build(ctx, roots, tasktree.Options{
		Filter:   cfg.Filter,
		Dirs:     cfg.Dirs,
		Loader:   loader,
		Runtime:  rt,
		Settings: s,
		Capabilities: tasktree.Sources{
			luatask.ModuleSource{Dir: cfg.ModuleDir},
		},
		Prefix:     cfg.Prefix,
		HandleName: cfg.HandleName,
		Output:     out,
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		_ = loader.Close()
		return nil, err
	}
	return &env{
		cwd:      cwd,
		settings: s,
		config:   cfg,
		rt:       rt,
		loader:   loader,
		tree:     tree,
	}, nil
}

// positional returns the positional arguments as strings.
func positional(s settings.Settings) []string {
	v, ok := s[settings.PositionalKey].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, item := range v {
		out = append(out, fmt.Sprint(item))
	}
	return out
}
