//go:build unix

package taskrt

import (
	"os/exec"
	"syscall"
)

// setGracefulShutdown makes a cancelled command receive SIGINT.
func setGracefulShutdown(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
}
