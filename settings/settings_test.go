package settings

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_MergeOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"name": "app",
		"version": "1.2.0",
		"repository": {"type": "git", "url": "https://example.com/app.git"},
		"gulp": {"out": "build", "level": "package", "copyProps": ["version"]}
	}`)
	writeFile(t, dir, "local.json", `{"level": "local", "extra": true}`)

	s, err := Resolve(Options{
		Cwd:       dir,
		CopyProps: []string{"name", "repository.url", "license"},
		Defaults:  map[string]any{"license": "MIT"},
		Args: map[string]any{
			"level": "args",
			"settings": map[string]any{
				"out":  "dist",
				"list": map[string]any{"0": "a", "1": "b"},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := map[string]any{
		"cwd":            dir,
		"name":           "app",
		"version":        "1.2.0",
		"repository.url": "https://example.com/app.git",
		"url":            "https://example.com/app.git",
		"license":        "MIT",
		"extra":          true,
		"level":          "args",
		"out":            "dist",
	}
	for path, want := range checks {
		got, ok := s.Get(path)
		if !ok {
			t.Errorf("expected %s to be set", path)
			continue
		}
		if got != want {
			t.Errorf("%s = %v, want %v", path, got, want)
		}
	}
	if _, ok := s.Get("repository.type"); ok {
		t.Error("expected repository.type to stay uncopied")
	}
	if got := s["list"]; !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("expected list [a b], got %v", got)
	}
	if _, ok := s["settings"]; ok {
		t.Error("expected settings argument to be merged, not kept")
	}
	if v, ok := s["goVersion"].(float64); !ok || v <= 0 {
		t.Errorf("expected positive goVersion, got %v", s["goVersion"])
	}
}

func TestResolve_LocalFileFromSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"gulp": {"local": "local.yaml", "mode": "pkg"}}`)
	writeFile(t, dir, "local.yaml", "mode: yaml\n")

	s, err := Resolve(Options{Cwd: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.String("mode") != "yaml" {
		t.Errorf("expected mode=yaml, got %v", s["mode"])
	}
}

func TestResolve_Substitutes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"gulp": {"out": "${cwd}/dist", "js": "${out}/js"}}`)

	s, err := Resolve(Options{Cwd: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := dir + "/dist/js"; s.String("js") != want {
		t.Errorf("expected js=%s, got %v", want, s["js"])
	}
}

func TestResolve_MalformedMetadataIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"gulp":`)

	if _, err := Resolve(Options{Cwd: dir}); err == nil {
		t.Fatal("expected error for malformed package.json")
	}
}

func TestResolve_MissingFiles(t *testing.T) {
	s, err := Resolve(Options{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s["cwd"]; !ok {
		t.Error("expected cwd to be set")
	}
}

func TestResolve_CustomLoader(t *testing.T) {
	files := map[string]map[string]any{
		filepath.Join("proj", "package.json"): {"tasks": map[string]any{"a": 1.0}},
	}
	s, err := Resolve(Options{
		Cwd: "proj",
		ID:  "tasks",
		Load: func(path string) (map[string]any, error) {
			if m, ok := files[path]; ok {
				return m, nil
			}
			return map[string]any{}, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s["a"] != 1.0 {
		t.Errorf("expected a=1, got %v", s["a"])
	}
}

func TestResolve_LoaderError(t *testing.T) {
	errBoom := errors.New("boom")
	_, err := Resolve(Options{Load: func(string) (map[string]any, error) { return nil, errBoom }})
	if !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
}

func TestResolve_DoesNotMutateArgs(t *testing.T) {
	args := map[string]any{"settings": map[string]any{"list": map[string]any{"0": "a"}}}
	if _, err := Resolve(Options{Cwd: t.TempDir(), Args: args}); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"settings": map[string]any{"list": map[string]any{"0": "a"}}}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args were modified: %v", args)
	}
}

func TestSettings_Strings(t *testing.T) {
	s := Settings{"a": []any{"x", 1.0, "y"}, "b": "z"}
	if got := s.Strings("a"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("expected [x y], got %v", got)
	}
	if got := s.Strings("b"); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("expected [z], got %v", got)
	}
	if got := s.Strings("missing"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSettings_Clone(t *testing.T) {
	s := Settings{"a": map[string]any{"b": []any{"c"}}}
	c := s.Clone()
	c["a"].(map[string]any)["b"].([]any)[0] = "changed"
	if s["a"].(map[string]any)["b"].([]any)[0] != "c" {
		t.Error("clone shares nested state with the original")
	}
}
