package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/fredrikaverpil/tasktree"
	"github.com/goyek/goyek/v3"
	"github.com/goyek/x/boot"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

// defaultTask runs when no task is named.
const defaultTask = "default"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tasktree",
		Short: "Build a task graph from task files and run it",
		Long: `tasktree scans task directories for Lua task files, derives task ids
from their paths, compiles them into series and parallel units and runs
them through goyek.

Any --key=value arguments are merged into the settings handed to tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListCmd(), newSettingsCmd(), newRunCmd())
	return root
}

// settingsCommand creates a command that parses its own arguments as
// settings.
func settingsCommand(use, short string, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if slices.Contains(args, "-h") || slices.Contains(args, "--help") {
				return cmd.Help()
			}
			return run(cmd, args)
		},
	}
}

func newListCmd() *cobra.Command {
	return settingsCommand("list [--key=value ...]", "List tasks and their state", func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		out := &tasktree.Output{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
		e, err := build(ctx, args, &goyek.Flow{}, out)
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		printWarnings(out.Stderr, e.tree.Warnings())
		printTasks(out.Stdout, e.tree)
		failed := len(e.tree.Failed())
		printStatus(out.Stderr, failed == 0, "%d tasks, %d not runnable", len(e.tree.Records()), failed)
		return nil
	})
}

// printTasks writes one line per task: id, state and help.
func printTasks(w io.Writer, tree *tasktree.Tree) {
	records := tree.Records()
	width := 0
	for _, r := range records {
		width = max(width, len(r.ID))
	}
	for _, r := range records {
		state := fmt.Sprintf("%-8s", r.State)
		switch r.State {
		case tasktree.Resolved:
			state = okColor.Sprint(state)
		case tasktree.Failed:
			state = failColor.Sprint(state)
		default:
			state = warnColor.Sprint(state)
		}
		line := fmt.Sprintf("%-*s  %s  %s", width, r.ID, state, r.Help)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
		if r.Err != nil {
			dimColor.Fprintf(w, "%*s  %v\n", width, "", r.Err)
		}
	}
}

func newSettingsCmd() *cobra.Command {
	return settingsCommand("settings [--yaml] [--key=value ...]", "Print the resolved settings", func(cmd *cobra.Command, args []string) error {
		args, asYAML := cutFlag(args, "--yaml")
		s, _, err := resolve(args)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if asYAML {
			data, err := yaml.Marshal(map[string]any(s))
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		data = pretty.Pretty(data)
		if isTerminal(w) && !color.NoColor {
			data = pretty.Color(data, nil)
		}
		_, err = w.Write(data)
		return err
	})
}

func newRunCmd() *cobra.Command {
	return settingsCommand("run [task ...] [--key=value ...]", "Run tasks", func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := &tasktree.Output{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
		e, err := build(ctx, args, goyek.DefaultFlow, out)
		if err != nil {
			return err
		}
		printWarnings(out.Stderr, e.tree.Warnings())

		tasks := positional(e.settings)
		if len(tasks) == 0 {
			tasks = []string{defaultTask}
		}
		if err := checkRunnable(e.tree, tasks); err != nil {
			_ = e.Close()
			return err
		}

		// boot.Main parses os.Args and exits.
		os.Args = append([]string{os.Args[0]}, bootArgs(e.config.Verbose, tasks)...)
		boot.Main()
		return nil
	})
}

// checkRunnable returns an error for tasks that are unknown or failed to
// compile.
func checkRunnable(tree *tasktree.Tree, tasks []string) error {
	for _, id := range tasks {
		rec, ok := tree.Get(id)
		if !ok {
			return fmt.Errorf("task %q not found", id)
		}
		if rec.State != tasktree.Resolved && rec.Err == nil {
			return fmt.Errorf("task %q is %s", id, rec.State)
		}
		if rec.State != tasktree.Resolved {
			return fmt.Errorf("task %q is not runnable: %w", id, rec.Err)
		}
	}
	return nil
}

// bootArgs builds the goyek command line.
func bootArgs(verbose bool, tasks []string) []string {
	var args []string
	if verbose {
		args = append(args, "-v")
	}
	return append(args, tasks...)
}

// cutFlag removes every occurrence of flag from args.
func cutFlag(args []string, flag string) ([]string, bool) {
	found := false
	out := args[:0:0]
	for _, a := range args {
		if a == flag {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}
