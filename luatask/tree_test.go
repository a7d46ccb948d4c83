package luatask

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/fredrikaverpil/tasktree"
	"github.com/fredrikaverpil/tasktree/settings"
	"github.com/fredrikaverpil/tasktree/taskrt"
	"github.com/goyek/goyek/v3"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBuild_LuaTasks(t *testing.T) {
	dir := t.TempDir()
	writeLua(t, dir, "tasks/clean.lua", `return function(done) print("clean") done() end`)
	writeLua(t, dir, "tasks/styles/css.lua", `return function() print("css") end`)
	writeLua(t, dir, "tasks/styles/sass.lua", `return function() print("sass") end`)
	writeLua(t, dir, "tasks/build.lua", `
return {
  help = "build everything",
  fn = { "clean", { "styles:*" }, function(settings) print("env=" .. settings.env) end },
}`)
	writeLua(t, dir, "tasks/default.lua", `return "build"`)

	flow := &goyek.Flow{}
	var reporter syncBuffer
	flow.SetOutput(&reporter)
	rt := taskrt.New(taskrt.Options{Flow: flow, Output: tasktree.DiscardOutput()})
	l := New()
	defer func() { _ = l.Close() }()

	tree, err := tasktree.Build(context.Background(), []tasktree.Root{{Path: dir}}, tasktree.Options{
		Loader:       l,
		Runtime:      rt,
		Settings:     settings.Settings{"env": "test"},
		Capabilities: ModuleSource{},
		Output:       tasktree.DiscardOutput(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if failed := tree.Failed(); len(failed) != 0 {
		t.Fatalf("unexpected failed records: %v", failed)
	}
	want := []string{"build", "clean", "default", "styles:css", "styles:sass"}
	if got := rt.Tasks(); !slices.Equal(got, want) {
		t.Fatalf("tasks = %v, want %v", got, want)
	}
	if usage, _ := rt.Usage("build"); usage != "build everything" {
		t.Errorf("usage = %q", usage)
	}

	if err := rt.Run(context.Background(), "default"); err != nil {
		t.Fatalf("run: %v\n%s", err, reporter.String())
	}
}
