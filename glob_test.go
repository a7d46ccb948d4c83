package tasktree

import (
	"reflect"
	"testing"
)

func TestExpandSteps(t *testing.T) {
	ids := []string{"build:js", "deploy", "build:css"}
	tests := []struct {
		name string
		in   []Step
		want []Step
	}{
		{
			name: "wildcard in discovery order",
			in:   []Step{Ref("build:*")},
			want: []Step{Ref("build:js"), Ref("build:css")},
		},
		{
			name: "spliced in place",
			in:   []Step{Ref("clean"), Ref("build:*"), Ref("deploy")},
			want: []Step{Ref("clean"), Ref("build:js"), Ref("build:css"), Ref("deploy")},
		},
		{
			name: "no match unchanged",
			in:   []Step{Ref("test:*"), Ref("deploy")},
			want: []Step{Ref("test:*"), Ref("deploy")},
		},
		{
			name: "nested groups",
			in:   []Step{Group{Ref("*:css"), Ref("deploy")}},
			want: []Step{Group{Ref("build:css"), Ref("deploy")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandSteps(tt.in, ids, "self")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExpandGlobs_Records(t *testing.T) {
	all := &Record{ID: "all", Spec: []Step{Ref("*")}}
	js := &Record{ID: "build:js", State: Resolved}
	w := &Record{ID: "watcher", State: Resolved, Watch: &WatchSpec{
		Sources: []string{"src/*.go", "build:*"},
	}}
	records := []*Record{all, js, w}

	expandGlobs(records)

	if want := []Step{Ref("build:js"), Ref("watcher")}; !reflect.DeepEqual(all.Spec, want) {
		t.Errorf("expected %v without self, got %v", want, all.Spec)
	}
	if want := []string{"src/*.go", "build:js"}; !reflect.DeepEqual(w.Watch.Sources, want) {
		t.Errorf("expected %v, got %v", want, w.Watch.Sources)
	}
}

func TestMatchIDs(t *testing.T) {
	ids := []string{"a:b:c", "a:x", "b"}
	if got := MatchIDs("a:*", ids, ""); !reflect.DeepEqual(got, []string{"a:b:c", "a:x"}) {
		t.Errorf("unexpected matches %v", got)
	}
	if got := MatchIDs("*:c", ids, "a:b:c"); got != nil {
		t.Errorf("expected self excluded, got %v", got)
	}
}

func TestMatchIDs_OnlyStarIsWildcard(t *testing.T) {
	ids := []string{"ab", "a?", `a\b`, "a?:x"}
	if got := MatchIDs("a?", ids, ""); !reflect.DeepEqual(got, []string{"a?"}) {
		t.Errorf("expected ? to match itself only, got %v", got)
	}
	if got := MatchIDs("a?*", ids, ""); !reflect.DeepEqual(got, []string{"a?", "a?:x"}) {
		t.Errorf("unexpected matches %v", got)
	}
	if got := MatchIDs(`a\*`, ids, ""); !reflect.DeepEqual(got, []string{`a\b`}) {
		t.Errorf("expected backslash to be literal, got %v", got)
	}
}
