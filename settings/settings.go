// Package settings resolves the configuration handed to every task.
//
// Settings are merged from several sources, later sources overriding
// earlier ones:
//
//  1. {"cwd": <dir>, "goVersion": <major.minor>}
//  2. the reserved section of the package metadata file
//  3. copied property paths from the package metadata
//  4. a local override file
//  5. parsed command-line arguments
//  6. the nested "settings" command-line argument
//
// The merged value then has its ${name} placeholders substituted.
package settings

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/fredrikaverpil/tasktree/internal/metadata"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// DefaultID is the reserved section of the package metadata.
	DefaultID = "gulp"
	// DefaultMetadataFile is read from the working directory.
	DefaultMetadataFile = "package.json"
	// DefaultLocalFile is the local override file when the reserved
	// section names none.
	DefaultLocalFile = "local.json"
	// SettingsArg is the command-line argument merged last.
	SettingsArg = "settings"
)

// Settings is the resolved configuration. It is built once and must not be
// modified after Resolve returns.
type Settings map[string]any

// Get returns the value at a dot-separated path.
func (s Settings) Get(path string) (any, bool) {
	return GetByPath(s, path)
}

// String returns the string at path, or "" if absent or not a string.
func (s Settings) String(path string) string {
	v, _ := s.Get(path)
	str, _ := v.(string)
	return str
}

// Strings returns the string elements at path.
func (s Settings) Strings(path string) []string {
	v, ok := s.Get(path)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return list
	case string:
		return []string{list}
	}
	return nil
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	return Settings(cloneValue(map[string]any(s)).(map[string]any))
}

// MetadataLoader reads a metadata file and returns an empty map when the
// file does not exist.
type MetadataLoader func(path string) (map[string]any, error)

// Options configures Resolve.
type Options struct {
	// Cwd is the project directory. Defaults to ".".
	Cwd string
	// ID names the reserved section of the package metadata.
	ID string
	// MetadataFile is the package metadata file name relative to Cwd.
	MetadataFile string
	// CopyProps lists dotted package metadata paths copied into the
	// settings. The reserved section may list more under "copyProps".
	CopyProps []string
	// Defaults holds fallback values for CopyProps, keyed by path.
	Defaults map[string]any
	// Args are the parsed command-line arguments, see ParseArgs.
	Args map[string]any
	// MaxPasses bounds placeholder substitution.
	MaxPasses int
	// Load reads metadata files. Defaults to metadata.Load.
	Load MetadataLoader
}

// Resolve builds the settings for one invocation.
func Resolve(opts Options) (Settings, error) {
	if opts.Cwd == "" {
		opts.Cwd = "."
	}
	if opts.ID == "" {
		opts.ID = DefaultID
	}
	if opts.MetadataFile == "" {
		opts.MetadataFile = DefaultMetadataFile
	}
	if opts.Load == nil {
		opts.Load = metadata.Load
	}

	pkg, err := opts.Load(filepath.Join(opts.Cwd, opts.MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("load package metadata: %w", err)
	}
	section, _ := pkg[opts.ID].(map[string]any)

	merged := map[string]any{
		"cwd":       opts.Cwd,
		"goVersion": goVersion(),
	}
	DeepMerge(merged, section)

	copyProps := append(append([]string{}, opts.CopyProps...), stringList(section["copyProps"])...)
	copied, err := copyProperties(pkg, copyProps, opts.Defaults)
	if err != nil {
		return nil, err
	}
	copied, err = aliasProperties(copied, copyProps)
	if err != nil {
		return nil, err
	}
	DeepMerge(merged, copied)

	localName := DefaultLocalFile
	if name, ok := section["local"].(string); ok && name != "" {
		localName = name
	}
	local, err := opts.Load(filepath.Join(opts.Cwd, localName))
	if err != nil {
		return nil, fmt.Errorf("load local settings: %w", err)
	}
	DeepMerge(merged, local)

	args := cloneValue(opts.Args)
	argMap, _ := args.(map[string]any)
	var nested map[string]any
	if argMap != nil {
		nested, _ = argMap[SettingsArg].(map[string]any)
		delete(argMap, SettingsArg)
	}
	DeepMerge(merged, argMap)
	if nested != nil {
		NormalizeNumericKeys(nested)
		DeepMerge(merged, nested)
	}

	out, err := Substitute(Settings(merged), opts.MaxPasses)
	if err != nil {
		return nil, fmt.Errorf("substitute settings: %w", err)
	}
	return out, nil
}

// copyProperties picks the given dotted paths out of pkg, keeping their
// nesting. A path missing from pkg takes its value from defaults.
func copyProperties(pkg map[string]any, paths []string, defaults map[string]any) (map[string]any, error) {
	if len(paths) == 0 {
		return map[string]any{}, nil
	}
	src, err := encode(pkg)
	if err != nil {
		return nil, err
	}
	doc := []byte("{}")
	for _, path := range paths {
		var value any
		if res := gjson.GetBytes(src, path); res.Exists() {
			value = res.Value()
		} else if def, ok := defaults[path]; ok {
			value = def
		} else {
			continue
		}
		doc, err = sjson.SetBytes(doc, path, value)
		if err != nil {
			return nil, fmt.Errorf("copy property %s: %w", path, err)
		}
	}
	out := map[string]any{}
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("decode copied properties: %w", err)
	}
	return out, nil
}

// aliasProperties also exposes every multi-segment copied path under the
// path without its first segment, so "repository.url" is reachable as
// "url".
func aliasProperties(copied map[string]any, paths []string) (map[string]any, error) {
	if len(paths) == 0 {
		return copied, nil
	}
	doc, err := encode(copied)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		value, ok := GetByPath(copied, path)
		if !ok {
			continue
		}
		_, target, found := strings.Cut(path, ".")
		if !found {
			continue
		}
		doc, err = sjson.SetBytes(doc, target, value)
		if err != nil {
			return nil, fmt.Errorf("alias property %s: %w", path, err)
		}
	}
	out := map[string]any{}
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("decode aliased properties: %w", err)
	}
	return out, nil
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// goVersion returns the running Go release as major.minor.
func goVersion() float64 {
	v := strings.TrimPrefix(runtime.Version(), "go")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return 0
	}
	minor := parts[1]
	if i := strings.IndexFunc(minor, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minor = minor[:i]
	}
	f, err := strconv.ParseFloat(parts[0]+"."+minor, 64)
	if err != nil {
		return 0
	}
	return f
}
