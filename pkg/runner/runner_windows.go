//go:build windows

package runner

import (
	"context"
	"os/exec"

	"golang.org/x/sys/windows"
)

// createCommand starts the tool in a new process group.
func (e *Executor) createCommand(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cmd := e.commandContext(ctx, name, arg...)
	cmd.SysProcAttr = &windows.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
	return cmd
}
