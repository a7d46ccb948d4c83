package tasktree

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/sync/errgroup"
)

// DefaultFilter matches task files.
var DefaultFilter = regexp.MustCompile(`\.lua$`)

// DefaultDirs are the sub-directories scanned under each root.
var DefaultDirs = []string{"tasks"}

// FileSystem is the read access the scanner needs.
type FileSystem interface {
	// ReadDir lists the entry names of a directory.
	ReadDir(path string) ([]string, error)
	// IsDir reports whether path is a directory.
	IsDir(path string) (bool, error)
}

// OSFileSystem implements FileSystem using the real OS file system.
type OSFileSystem struct{}

// ReadDir implements FileSystem.
func (OSFileSystem) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// IsDir implements FileSystem. Symlinks are followed.
func (OSFileSystem) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Root is a directory to scan for task files.
type Root struct {
	Path string
	// Cwd is the directory task ids are relative to. Defaults to Path.
	Cwd string
}

// Node is a Leaf or a DirGroup.
type Node interface {
	node()
}

// Leaf is a discovered task file.
type Leaf struct {
	Path string
	// Cwd is the owning directory the id is derived relative to.
	Cwd string
	// Label is the scoped sub-directory the file was found under.
	Label string
}

// DirGroup holds sibling nodes. Its order carries no meaning.
type DirGroup []Node

func (*Leaf) node() {}
func (DirGroup) node() {}

// Leaves flattens n into its leaves.
func Leaves(n Node) []*Leaf {
	var out []*Leaf
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *Leaf:
			out = append(out, v)
		case DirGroup:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(n)
	return out
}

// Scan walks every root, restricted to the dirs sub-directories of each,
// and returns the files whose path matches filter. An empty entry in dirs
// scans the root itself. A nil filter matches every file.
//
// Unreadable roots and sub-directories contribute empty groups, and
// entries that cannot be stat'ed are skipped: Scan never fails.
func Scan(ctx context.Context, fsys FileSystem, roots []Root, filter *regexp.Regexp, dirs []string) DirGroup {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	s := &scanner{fsys: fsys, filter: filter}

	type job struct {
		dir, cwd, label string
	}
	var jobs []job
	for _, root := range roots {
		path := filepath.Clean(root.Path)
		cwd := path
		if root.Cwd != "" {
			cwd = filepath.Clean(root.Cwd)
		}
		for _, label := range dirs {
			jobs = append(jobs, job{dir: filepath.Join(path, label), cwd: cwd, label: label})
		}
	}

	tree := make(DirGroup, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			tree[i] = s.scan(gCtx, j.dir, j.cwd, j.label)
			return nil
		})
	}
	_ = g.Wait()
	return tree
}

type scanner struct {
	fsys   FileSystem
	filter *regexp.Regexp
}

func (s *scanner) scan(ctx context.Context, dir, cwd, label string) DirGroup {
	if ctx.Err() != nil {
		return DirGroup{}
	}
	names, err := s.fsys.ReadDir(dir)
	if err != nil {
		return DirGroup{}
	}

	// Each entry owns one slot so siblings can be filled concurrently.
	slots := make([]Node, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		if name == "." || name == ".." {
			continue
		}
		path := filepath.Join(dir, name)
		isDir, err := s.fsys.IsDir(path)
		if err != nil {
			continue
		}
		if isDir {
			g.Go(func() error {
				slots[i] = s.scan(gCtx, path, cwd, label)
				return nil
			})
			continue
		}
		if s.filter == nil || s.filter.MatchString(path) {
			slots[i] = &Leaf{Path: path, Cwd: cwd, Label: label}
		}
	}
	_ = g.Wait()

	group := make(DirGroup, 0, len(slots))
	for _, n := range slots {
		if n != nil {
			group = append(group, n)
		}
	}
	return group
}
