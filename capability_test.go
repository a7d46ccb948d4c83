package tasktree

import (
	"errors"
	"slices"
	"testing"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name     string
		param    string
		explicit string
		want     []string
	}{
		{name: "convention", param: "myPlugin", want: []string{"gulp-my-plugin", "my-plugin", "myPlugin"}},
		{name: "already kebab", param: "sass", want: []string{"gulp-sass", "sass"}},
		{
			name:  "family",
			param: "rollupBabel",
			want:  []string{"gulp-rollup-babel", "rollup-plugin-babel", "rollup-babel", "rollupBabel"},
		},
		{name: "explicit id", param: "css", explicit: "clean-css", want: []string{"clean-css", "css"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(tt.param, tt.explicit, DefaultPrefix, DefaultFamilies)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.RegisterValue("gulp-sass", "sass")
	r.Register("cwd-aware", func(cwd string) (any, error) { return "in " + cwd, nil })

	if !r.Has("gulp-sass") || r.Has("missing") {
		t.Error("unexpected Has result")
	}
	if v, err := r.Load("gulp-sass", "/p"); err != nil || v != "sass" {
		t.Errorf("expected sass, got %v, %v", v, err)
	}
	if v, err := r.Load("cwd-aware", "/p"); err != nil || v != "in /p" {
		t.Errorf("expected in /p, got %v, %v", v, err)
	}
	if _, err := r.Load("missing", "/p"); !errors.Is(err, ErrCapabilityNotFound) {
		t.Errorf("expected ErrCapabilityNotFound, got %v", err)
	}
}

func TestSources(t *testing.T) {
	errBroken := errors.New("broken")
	a := NewRegistry()
	a.RegisterValue("x", "from a")
	b := NewRegistry()
	b.RegisterValue("x", "from b")
	b.RegisterValue("y", "from b")
	b.Register("z", func(string) (any, error) { return nil, errBroken })

	s := Sources{a, b}
	if v, _ := s.Load("x", ""); v != "from a" {
		t.Errorf("expected first source to win, got %v", v)
	}
	if v, _ := s.Load("y", ""); v != "from b" {
		t.Errorf("expected fallback to second source, got %v", v)
	}
	if _, err := s.Load("z", ""); !errors.Is(err, errBroken) {
		t.Errorf("expected errBroken, got %v", err)
	}
	if _, err := s.Load("none", ""); !errors.Is(err, ErrCapabilityNotFound) {
		t.Errorf("expected ErrCapabilityNotFound, got %v", err)
	}
}
