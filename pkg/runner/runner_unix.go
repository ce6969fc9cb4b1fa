//go:build !windows

package runner

import (
	"context"
	"os/exec"

	"golang.org/x/sys/unix"
)

// createCommand puts the tool into its own process group so that cancelling
// the context also stops the processes it spawned (pip builds, compilers).
func (e *Executor) createCommand(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cmd := e.commandContext(ctx, name, arg...)
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	return cmd
}
