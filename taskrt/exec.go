package taskrt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fredrikaverpil/tasktree"
	"golang.org/x/term"
)

// WaitDelay is the time to wait after interrupting a cancelled command
// before it is killed.
const WaitDelay = 5 * time.Second

// DefaultBinDirs are searched for commands before PATH, relative to the
// command's directory.
var DefaultBinDirs = []string{filepath.Join("node_modules", ".bin")}

var (
	colorEnvOnce sync.Once
	colorEnvVars []string
)

// colorForceEnvVars are the environment variables set to force color output.
var colorForceEnvVars = []string{
	"FORCE_COLOR=1",       // Node.js, chalk, many modern tools
	"CLICOLOR_FORCE=1",    // BSD/macOS convention
	"COLORTERM=truecolor", // Indicates color support
}

// computeColorEnv returns the env vars forcing color output, if any.
func computeColorEnv(isTTY, noColorSet bool) []string {
	// Respect NO_COLOR convention (https://no-color.org/).
	if noColorSet || !isTTY {
		return nil
	}
	return colorForceEnvVars
}

func initColorEnv() {
	_, noColor := os.LookupEnv("NO_COLOR")
	colorEnvVars = computeColorEnv(term.IsTerminal(int(os.Stdout.Fd())), noColor)
}

// Exec runs name in dir with the existing bin directories of dir
// prepended to PATH.
//
// In verbose mode the output streams to the task output. Otherwise it is
// captured and only included in the error.
//
// Cancelled commands are interrupted first and killed after WaitDelay.
func (r *Runtime) Exec(ctx context.Context, dir, name string, args ...string) error {
	colorEnvOnce.Do(initColorEnv)

	var bins []string
	for _, b := range r.binDirs {
		if !filepath.IsAbs(b) {
			b = filepath.Join(dir, b)
		}
		if info, err := os.Stat(b); err == nil && info.IsDir() {
			bins = append(bins, b)
		}
	}

	// exec.Command resolves name with the PATH of this process, not cmd.Env.
	if !strings.ContainsAny(name, `/\`) {
		for _, b := range bins {
			if p := filepath.Join(b, name); fileExists(p) {
				name = p
				break
			}
		}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(prependPath(os.Environ(), bins...), colorEnvVars...)
	cmd.WaitDelay = WaitDelay
	setGracefulShutdown(cmd)

	out := tasktree.OutputFromContext(ctx)
	if tasktree.VerboseFromContext(ctx) {
		cmd.Stdout = out.Stdout
		cmd.Stderr = out.Stderr
		return cmd.Run()
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w\n%s", filepath.Base(name), strings.Join(args, " "), err, buf.String())
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// prependPath prepends dirs to the PATH in env.
func prependPath(env []string, dirs ...string) []string {
	if len(dirs) == 0 {
		return env
	}
	prefix := strings.Join(dirs, string(os.PathListSeparator))
	result := make([]string, 0, len(env)+1)
	pathSet := false
	for _, e := range env {
		if oldPath, found := strings.CutPrefix(e, "PATH="); found {
			result = append(result, "PATH="+prefix+string(os.PathListSeparator)+oldPath)
			pathSet = true
		} else {
			result = append(result, e)
		}
	}
	if !pathSet {
		result = append(result, "PATH="+prefix)
	}
	return result
}
