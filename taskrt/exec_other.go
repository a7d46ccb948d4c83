//go:build !unix

package taskrt

import "os/exec"

// setGracefulShutdown is a no-op where SIGINT is not available; the
// command is killed on cancellation.
func setGracefulShutdown(_ *exec.Cmd) {}
