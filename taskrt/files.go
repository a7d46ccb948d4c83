package taskrt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/fredrikaverpil/tasktree"
	"github.com/tidwall/match"
)

const windows = "windows"

// Src expands globs relative to opts.Cwd. A * matches any run of
// characters, path separators included. Globs starting with ! remove
// earlier matches. The result is sorted and free of duplicates.
func (r *Runtime) Src(globs []string, opts tasktree.FileOptions) ([]string, error) {
	cwd := opts.Cwd
	if cwd == "" {
		cwd = "."
	}
	var include, exclude []string
	for _, g := range globs {
		if neg, ok := strings.CutPrefix(g, "!"); ok {
			exclude = append(exclude, absGlob(cwd, neg))
			continue
		}
		include = append(include, absGlob(cwd, g))
	}

	seen := make(map[string]bool)
	var out []string
	for _, g := range include {
		if !hasMeta(g) {
			if _, err := os.Stat(filepath.FromSlash(g)); err == nil && !excluded(g, exclude) && !seen[g] {
				seen[g] = true
				out = append(out, filepath.FromSlash(g))
			}
			continue
		}
		root := globBase(g)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			p := filepath.ToSlash(path)
			if seen[p] || !match.Match(p, g) || excluded(p, exclude) {
				return nil
			}
			seen[p] = true
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("src %s: %w", g, err)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Dest copies files into dir, keeping their path relative to opts.Base
// (or opts.Cwd when Base is empty).
func (r *Runtime) Dest(files []string, dir string, opts tasktree.FileOptions) ([]string, error) {
	targets, err := destinations(files, dir, opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for i, src := range files {
		dst := targets[i]
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return out, fmt.Errorf("create dir: %w", err)
		}
		if err := CopyFile(resolve(opts.Cwd, src), dst); err != nil {
			return out, fmt.Errorf("dest %s: %w", src, err)
		}
		out = append(out, dst)
	}
	return out, nil
}

// Symlink creates relative symlinks in dir pointing at files. On Windows,
// files are copied instead since symlinks require admin privileges.
func (r *Runtime) Symlink(files []string, dir string, opts tasktree.FileOptions) ([]string, error) {
	targets, err := destinations(files, dir, opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for i, src := range files {
		src = resolve(opts.Cwd, src)
		link := targets[i]
		if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
			return out, fmt.Errorf("create dir: %w", err)
		}
		if _, err := os.Lstat(link); err == nil {
			if err := os.Remove(link); err != nil {
				return out, fmt.Errorf("remove existing file: %w", err)
			}
		}
		if runtime.GOOS == windows {
			if err := CopyFile(src, link); err != nil {
				return out, fmt.Errorf("copy %s: %w", src, err)
			}
			out = append(out, link)
			continue
		}
		rel, err := filepath.Rel(filepath.Dir(link), src)
		if err != nil {
			return out, fmt.Errorf("compute relative path: %w", err)
		}
		if err := os.Symlink(rel, link); err != nil {
			return out, fmt.Errorf("create symlink: %w", err)
		}
		out = append(out, link)
	}
	return out, nil
}

// CopyFile copies src to dst, keeping the source file mode.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return nil
}

func destinations(files []string, dir string, opts tasktree.FileOptions) ([]string, error) {
	base := opts.Base
	if base == "" {
		base = opts.Cwd
	}
	base = resolve(opts.Cwd, base)
	dir = resolve(opts.Cwd, dir)
	out := make([]string, len(files))
	for i, f := range files {
		abs := resolve(opts.Cwd, f)
		rel, err := filepath.Rel(base, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(abs)
		}
		out[i] = filepath.Join(dir, rel)
	}
	return out, nil
}

func resolve(cwd, p string) string {
	if filepath.IsAbs(p) || cwd == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}

func absGlob(cwd, g string) string {
	return filepath.ToSlash(resolve(cwd, filepath.FromSlash(g)))
}

func hasMeta(g string) bool {
	return strings.ContainsAny(g, "*?")
}

func globBase(g string) string {
	segments := strings.Split(g, "/")
	for i, seg := range segments {
		if hasMeta(seg) {
			base := strings.Join(segments[:i], "/")
			switch {
			case base != "":
			case strings.HasPrefix(g, "/"):
				base = "/"
			default:
				base = "."
			}
			return filepath.FromSlash(base)
		}
	}
	return filepath.Dir(filepath.FromSlash(g))
}

func excluded(p string, exclude []string) bool {
	for _, ex := range exclude {
		if match.Match(p, ex) {
			return true
		}
	}
	return false
}
