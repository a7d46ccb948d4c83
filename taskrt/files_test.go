package taskrt

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/fredrikaverpil/tasktree"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSrc(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "src/a.js", "src/b.js", "src/lib/c.js", "src/d.css", "README.md")
	r := New(Options{})

	tests := []struct {
		name  string
		globs []string
		want  []string
	}{
		{"star crosses directories", []string{"src/*.js"}, []string{"src/a.js", "src/b.js", "src/lib/c.js"}},
		{"negation", []string{"src/*.js", "!src/lib/*"}, []string{"src/a.js", "src/b.js"}},
		{"literal path", []string{"README.md"}, []string{"README.md"}},
		{"missing literal", []string{"nope.txt"}, nil},
		{"missing base", []string{"other/*.js"}, nil},
		{"duplicates removed", []string{"src/a.js", "src/a*"}, []string{"src/a.js"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Src(tt.globs, tasktree.FileOptions{Cwd: dir})
			if err != nil {
				t.Fatal(err)
			}
			var rel []string
			for _, p := range got {
				rp, err := filepath.Rel(dir, p)
				if err != nil {
					t.Fatal(err)
				}
				rel = append(rel, filepath.ToSlash(rp))
			}
			if !slices.Equal(rel, tt.want) {
				t.Errorf("Src(%v) = %v, want %v", tt.globs, rel, tt.want)
			}
		})
	}
}

func TestDest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "src/a.txt", "src/sub/b.txt")
	r := New(Options{})

	got, err := r.Dest([]string{"src/a.txt", "src/sub/b.txt"}, "out", tasktree.FileOptions{Cwd: dir, Base: "src"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "out", "a.txt"), filepath.Join(dir, "out", "sub", "b.txt")}
	if !slices.Equal(got, want) {
		t.Errorf("Dest = %v, want %v", got, want)
	}
	data, err := os.ReadFile(want[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "src/sub/b.txt" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestDest_DefaultsBaseToCwd(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "src/a.txt")
	r := New(Options{})

	got, err := r.Dest([]string{"src/a.txt"}, "out", tasktree.FileOptions{Cwd: dir})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "out", "src", "a.txt"); len(got) != 1 || got[0] != want {
		t.Errorf("Dest = %v, want [%s]", got, want)
	}
}

func TestSymlink(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "bin/tool")
	r := New(Options{})

	got, err := r.Symlink([]string{"bin/tool"}, "links", tasktree.FileOptions{Cwd: dir, Base: "bin"})
	if err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "links", "tool")
	if len(got) != 1 || got[0] != link {
		t.Fatalf("Symlink = %v, want [%s]", got, link)
	}
	if runtime.GOOS != windows {
		target, err := os.Readlink(link)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.IsAbs(target) {
			t.Errorf("expected relative link target, got %s", target)
		}
	}
	data, err := os.ReadFile(link)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "bin/tool" {
		t.Errorf("unexpected content %q", data)
	}

	// Linking again replaces the existing link.
	if _, err := r.Symlink([]string{"bin/tool"}, "links", tasktree.FileOptions{Cwd: dir, Base: "bin"}); err != nil {
		t.Errorf("relink: %v", err)
	}
}

func TestCopyFile_KeepsMode(t *testing.T) {
	if runtime.GOOS == windows {
		t.Skip("file modes are not preserved on windows")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "x")
	if err := os.WriteFile(src, []byte("x"), 0o700); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "y")
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("expected mode 0700, got %v", info.Mode().Perm())
	}
}
