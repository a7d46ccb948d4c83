// Package tasktree builds an executable task graph from a directory of
// task files.
//
// A file's location gives the task its id, for example tasks/build/js.lua
// becomes "build:js". What the file exports decides what the task does: a
// function, a list of dependencies, a descriptor table or an alias of
// another task. Dependency lists run serially, and every nested list flips
// between parallel and serial. References may use * wildcards, and a task
// may bind a filesystem watch.
//
// Build runs the whole pipeline and registers every runnable task with a
// Runtime.
package tasktree

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/fredrikaverpil/tasktree/settings"
	"github.com/google/uuid"
)

// Options configures Build.
type Options struct {
	// Filter selects task files by path. Defaults to DefaultFilter.
	Filter *regexp.Regexp
	// Dirs are the sub-directories scanned under each root. Defaults to
	// DefaultDirs; an empty entry scans the root itself.
	Dirs []string
	// FS is the filesystem scanned. Defaults to OSFileSystem.
	FS FileSystem
	// Loader loads task files. Required.
	Loader Loader
	// Runtime registers and runs tasks. Required.
	Runtime Runtime
	// Settings are injected into tasks that ask for them.
	Settings settings.Settings
	// Capabilities resolve non-reserved parameters.
	Capabilities CapabilitySource
	// Prefix is the capability naming convention prefix. Defaults to
	// DefaultPrefix.
	Prefix string
	// HandleName is the parameter that receives the runtime Handle.
	// Defaults to DefaultHandleName.
	HandleName string
	// Families are extra naming conventions. Defaults to DefaultFamilies.
	Families []FamilyRewrite
	// Output receives warnings and, when Verbose is set, debug output.
	Output  *Output
	Verbose bool
}

// Tree is the compiled task table.
type Tree struct {
	// RunID identifies this build in diagnostics.
	RunID    string
	records  []*Record
	byID     map[string]*Record
	warnings []string
}

// Records returns the records in discovery order.
func (t *Tree) Records() []*Record {
	return append([]*Record{}, t.records...)
}

// Get returns the record with the given id.
func (t *Tree) Get(id string) (*Record, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// Failed returns the records that could not be compiled.
func (t *Tree) Failed() []*Record {
	var out []*Record
	for _, r := range t.records {
		if r.State == Failed {
			out = append(out, r)
		}
	}
	return out
}

// Unresolved returns the failed records whose references never became
// runnable.
func (t *Tree) Unresolved() []*Record {
	var out []*Record
	for _, r := range t.Failed() {
		var uerr *UnresolvedError
		if errors.As(r.Err, &uerr) {
			out = append(out, r)
		}
	}
	return out
}

// Warnings returns the non-fatal problems found while building.
func (t *Tree) Warnings() []string {
	return append([]string{}, t.warnings...)
}

// Build scans roots for task files, loads and normalizes each one, expands
// wildcard references, compiles dependency lists and binds watches. Every
// runnable task is registered with opts.Runtime.
//
// Load failures and errors other than missing capabilities or unresolved
// references are fatal. Those two only fail the affected tasks, which the
// returned Tree reports.
func Build(ctx context.Context, roots []Root, opts Options) (*Tree, error) {
	if opts.Runtime == nil {
		return nil, errors.New("build task tree: no runtime")
	}
	if opts.Loader == nil {
		return nil, errors.New("build task tree: no loader")
	}
	b := newBuild(opts)
	b.debugf("build %s: scanning %d roots", b.runID, len(roots))

	tree := Scan(ctx, opts.FS, roots, b.filter, b.dirs)
	for _, leaf := range Leaves(tree) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := DeriveID(leaf, b.filter)
		src, err := opts.Loader.Load(leaf.Path)
		if err != nil {
			return nil, &LoadError{Path: leaf.Path, Err: err}
		}
		rec, err := b.normalize(leaf, id, src)
		if err != nil {
			return nil, err
		}
		b.add(rec)
	}

	expandGlobs(b.records)
	if err := b.compile(); err != nil {
		return nil, err
	}
	if err := b.bindWatches(); err != nil {
		return nil, err
	}

	return &Tree{
		RunID:    b.runID,
		records:  b.records,
		byID:     b.byID,
		warnings: b.warnings,
	}, nil
}

// build is the state threaded through one Build call.
type build struct {
	runID    string
	filter   *regexp.Regexp
	dirs     []string
	rt       Runtime
	settings settings.Settings
	inject   *injector
	out      *Output
	verbose  bool

	records  []*Record
	byID     map[string]*Record
	bound    map[boundKey]Unit
	warnings []string
}

func newBuild(opts Options) *build {
	b := &build{
		runID:    uuid.NewString(),
		filter:   opts.Filter,
		dirs:     opts.Dirs,
		rt:       opts.Runtime,
		settings: opts.Settings,
		out:      opts.Output,
		verbose:  opts.Verbose,
		byID:     make(map[string]*Record),
		bound:    make(map[boundKey]Unit),
	}
	if b.filter == nil {
		b.filter = DefaultFilter
	}
	if b.dirs == nil {
		b.dirs = DefaultDirs
	}
	if b.settings == nil {
		b.settings = settings.Settings{}
	}
	if b.out == nil {
		b.out = StdOutput()
	}
	in := &injector{
		rt:         opts.Runtime,
		settings:   b.settings,
		source:     opts.Capabilities,
		handleName: opts.HandleName,
		prefix:     opts.Prefix,
		families:   opts.Families,
		reflector:  &reflector{},
	}
	if in.handleName == "" {
		in.handleName = DefaultHandleName
	}
	if in.prefix == "" {
		in.prefix = DefaultPrefix
	}
	if in.families == nil {
		in.families = DefaultFamilies
	}
	b.inject = in
	return b
}

// add stores rec. A record with an id seen before replaces the earlier one
// in place.
func (b *build) add(rec *Record) {
	if prev, ok := b.byID[rec.ID]; ok {
		b.warnf("task %s: %s overrides %s", rec.ID, rec.File, prev.File)
		for i, r := range b.records {
			if r == prev {
				b.records[i] = rec
			}
		}
	} else {
		b.records = append(b.records, rec)
	}
	b.byID[rec.ID] = rec
}

func (b *build) pending() []*Record {
	var out []*Record
	for _, r := range b.records {
		if r.State == Pending {
			out = append(out, r)
		}
	}
	return out
}

func (b *build) register(rec *Record, u Unit) error {
	if err := b.rt.Register(rec.ID, rec.Help, u); err != nil {
		return fmt.Errorf("register task %s: %w", rec.ID, err)
	}
	rec.resolve(u)
	return nil
}

func (b *build) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.warnings = append(b.warnings, msg)
	if b.verbose {
		_, _ = b.out.Errorf("warning: %s\n", msg)
	}
}

func (b *build) debugf(format string, args ...any) {
	if b.verbose {
		_, _ = b.out.Errorf(format+"\n", args...)
	}
}
