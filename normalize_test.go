package tasktree

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fredrikaverpil/tasktree/settings"
)

func TestNormalize_Variants(t *testing.T) {
	noop := func(context.Context, []any) error { return nil }
	lifted := &Invokable{
		Name:   "lifted",
		Fn:     noop,
		Deps:   []Step{Ref("clean")},
		Help:   "build things",
		Cwd:    "web",
		Inject: map[string]any{"x": 1},
	}
	tests := []struct {
		name      string
		src       TaskSource
		wantState State
		check     func(t *testing.T, r *Record)
	}{
		{
			name:      "single invokable registers immediately",
			src:       &Invokable{Fn: noop},
			wantState: Resolved,
		},
		{
			name:      "invokable side channels are lifted",
			src:       lifted,
			wantState: Pending,
			check: func(t *testing.T, r *Record) {
				if r.Help != "build things" || r.Cwd != filepath.Join("proj", "web") || r.Inject["x"] != 1 {
					t.Errorf("side channels not lifted: %+v", r)
				}
				if len(r.Spec) != 2 || r.Spec[0] != Ref("clean") {
					t.Fatalf("expected deps before the call, got %v", r.Spec)
				}
				call := r.Spec[1].(Call)
				if call.Fn == lifted || call.Fn.hasSideChannel() {
					t.Error("expected a stripped copy of the invokable")
				}
				if len(lifted.Deps) != 1 {
					t.Error("the loaded invokable must not be modified")
				}
			},
		},
		{
			name:      "dependency list verbatim",
			src:       DependencyList{Ref("a"), Group{Ref("b")}},
			wantState: Pending,
			check: func(t *testing.T, r *Record) {
				if !reflect.DeepEqual(r.Spec, []Step{Ref("a"), Group{Ref("b")}}) {
					t.Errorf("unexpected spec %v", r.Spec)
				}
			},
		},
		{
			name: "descriptor",
			src: &Descriptor{
				Fn:   DependencyList{Ref("b"), Ref("c")},
				Deps: []Step{Ref("a")},
				Help: "desc",
				Cwd:  "/abs",
			},
			wantState: Pending,
			check: func(t *testing.T, r *Record) {
				if !reflect.DeepEqual(r.Spec, []Step{Ref("a"), Ref("b"), Ref("c")}) {
					t.Errorf("unexpected spec %v", r.Spec)
				}
				if r.Help != "desc" || r.Cwd != "/abs" {
					t.Errorf("unexpected record %+v", r)
				}
			},
		},
		{
			name:      "descriptor with single invokable registers immediately",
			src:       &Descriptor{Fn: &Invokable{Fn: noop}, Help: "one"},
			wantState: Resolved,
		},
		{
			name:      "alias",
			src:       Alias("other"),
			wantState: Pending,
			check: func(t *testing.T, r *Record) {
				if !reflect.DeepEqual(r.Spec, []Step{Ref("other")}) {
					t.Errorf("unexpected spec %v", r.Spec)
				}
			},
		},
		{
			name:      "invalid is a no-op",
			src:       Invalid{Kind: "number"},
			wantState: Pending,
			check: func(t *testing.T, r *Record) {
				if r.Spec == nil || len(r.Spec) != 0 {
					t.Errorf("expected empty spec, got %v", r.Spec)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := testBuild(Options{})
			leaf := &Leaf{Path: filepath.Join("proj", "tasks", "t.lua"), Cwd: "proj"}
			r, err := b.normalize(leaf, "t", tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if r.State != tt.wantState {
				t.Errorf("expected state %v, got %v", tt.wantState, r.State)
			}
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestNormalize_InvalidWarns(t *testing.T) {
	b, _ := testBuild(Options{})
	if _, err := b.normalize(&Leaf{Path: "x.lua"}, "x", Invalid{Kind: "boolean"}); err != nil {
		t.Fatal(err)
	}
	if len(b.warnings) != 1 {
		t.Errorf("expected one warning, got %v", b.warnings)
	}
}

func TestNormalize_WatchFuncError(t *testing.T) {
	errBad := errors.New("bad watch")
	b, _ := testBuild(Options{})
	inv := &Invokable{
		Fn:        func(context.Context, []any) error { return nil },
		WatchFunc: func(settings.Settings) (*WatchSpec, error) { return nil, errBad },
	}
	if _, err := b.normalize(&Leaf{Path: "x.lua"}, "x", inv); !errors.Is(err, errBad) {
		t.Errorf("expected errBad, got %v", err)
	}
}

func TestNormalize_CapabilityFailureMarksRecord(t *testing.T) {
	b, rt := testBuild(Options{Capabilities: NewRegistry()})
	inv := &Invokable{Params: params("unknownPlugin"), Fn: func(context.Context, []any) error { return nil }}
	r, err := b.normalize(&Leaf{Path: "x.lua"}, "x", inv)
	if err != nil {
		t.Fatalf("expected task-local failure, got %v", err)
	}
	if r.State != Failed || !errors.Is(r.Err, ErrCapabilityNotFound) {
		t.Errorf("expected failed record, got %v (%v)", r.State, r.Err)
	}
	if rt.unit("x") != nil {
		t.Error("expected nothing registered")
	}
}
