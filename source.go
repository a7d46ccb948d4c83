package tasktree

import (
	"context"
	"fmt"

	"github.com/fredrikaverpil/tasktree/settings"
)

// Loader loads the export of one task file.
type Loader interface {
	Load(path string) (TaskSource, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (TaskSource, error)

// Load calls f.
func (f LoaderFunc) Load(path string) (TaskSource, error) {
	return f(path)
}

// TaskSource is what a task file exports. It is one of *Invokable,
// DependencyList, *Descriptor, Alias or Invalid.
type TaskSource interface {
	taskSource()
}

// Step is one entry of an execution list. It is one of Ref, Call or Group.
type Step interface {
	step()
}

// Ref names another task. It may contain * wildcards before expansion.
type Ref string

// Call runs an invokable inline.
type Call struct {
	Fn *Invokable
}

// Group is a nested list that runs in the opposite mode of its parent.
type Group []Step

func (Ref) step()   {}
func (Call) step()  {}
func (Group) step() {}

// Param is one declared parameter of an invokable.
type Param struct {
	Name string
	// Default is the textual default expression, or "" for none.
	Default string
}

// WatchFunc computes a watch specification from the resolved settings.
type WatchFunc func(s settings.Settings) (*WatchSpec, error)

// Invokable is a task function with its declared parameters.
type Invokable struct {
	// Name is used in diagnostics only.
	Name string
	// Params lists the values the function requests, in call order.
	Params []Param
	// Fn is called with one argument per parameter.
	Fn func(ctx context.Context, args []any) error

	// Deps run before the function.
	Deps []Step
	// Help is the task usage text.
	Help string
	// Watch binds a filesystem watch to the task.
	Watch *WatchSpec
	// WatchFunc computes Watch from the settings.
	WatchFunc WatchFunc
	// Cwd overrides the task's working directory.
	Cwd string
	// Inject maps parameter names to values or capability ids.
	Inject map[string]any
}

func (inv *Invokable) String() string {
	if inv.Name != "" {
		return inv.Name
	}
	return fmt.Sprintf("invokable(%d params)", len(inv.Params))
}

// hasSideChannel reports whether any task-level field is set on inv.
func (inv *Invokable) hasSideChannel() bool {
	return len(inv.Deps) > 0 || inv.Help != "" || inv.Watch != nil ||
		inv.WatchFunc != nil || inv.Cwd != "" || len(inv.Inject) > 0
}

// bare returns a copy of inv without its task-level fields.
func (inv *Invokable) bare() *Invokable {
	return &Invokable{Name: inv.Name, Params: inv.Params, Fn: inv.Fn}
}

// DependencyList is an execution list. Its top level runs serially.
type DependencyList []Step

// Descriptor is a task declared as a table of properties.
type Descriptor struct {
	// Fn is the task body: an *Invokable, a DependencyList or an Alias.
	Fn        TaskSource
	Deps      []Step
	Help      string
	Watch     *WatchSpec
	WatchFunc WatchFunc
	Cwd       string
	Inject    map[string]any
}

// Alias makes the task an alias of another task id.
type Alias string

// Invalid is an export that has no task meaning.
type Invalid struct {
	// Kind describes what was exported.
	Kind string
}

func (*Invokable) taskSource()    {}
func (DependencyList) taskSource() {}
func (*Descriptor) taskSource()    {}
func (Alias) taskSource()          {}
func (Invalid) taskSource()        {}

// WatchSpec describes a watch bound to a task.
type WatchSpec struct {
	// Sources are globs, relative to the task cwd. Entries naming tasks
	// are expanded like dependency wildcards.
	Sources []string
	// Trigger runs on change instead of the task itself.
	Trigger []Step
}
