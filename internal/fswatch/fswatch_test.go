package fswatch

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestBaseDir(t *testing.T) {
	tests := map[string]string{
		"/proj/src/*.css":     filepath.FromSlash("/proj/src"),
		"/proj/src/**/a/*.js": filepath.FromSlash("/proj/src"),
		"/proj/tasks/x.lua":   filepath.FromSlash("/proj/tasks"),
		"/proj/a?/b.txt":      filepath.FromSlash("/proj"),
	}
	for in, want := range tests {
		if got := baseDir(in); got != want {
			t.Errorf("baseDir(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatches(t *testing.T) {
	root := t.TempDir()
	w, err := New(Config{Root: root, Patterns: []string{"src/*.css", "!src/vendor*"}}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	tests := map[string]bool{
		filepath.Join(root, "src", "a.css"):           true,
		filepath.Join(root, "src", "deep", "b.css"):   true,
		filepath.Join(root, "src", "vendor", "x.css"): false,
		filepath.Join(root, "src", "a.js"):            false,
		filepath.Join(root, "other", "a.css"):         false,
	}
	for path, want := range tests {
		if got := w.Matches(path); got != want {
			t.Errorf("Matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	changes := make(chan []string, 10)
	w, err := New(Config{
		Root:     root,
		Patterns: []string{"src/*.txt"},
		Debounce: 20 * time.Millisecond,
	}, func(paths []string) { changes <- paths })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	target := filepath.Join(root, "src", "a.txt")
	if err := os.WriteFile(filepath.Join(root, "src", "ignored.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changes:
		if !slices.Contains(paths, target) {
			t.Errorf("expected %s in %v", target, paths)
		}
		for _, p := range paths {
			if filepath.Ext(p) != ".txt" {
				t.Errorf("unexpected path %s", p)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := New(Config{Root: t.TempDir(), Patterns: []string{"*"}}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}
}
