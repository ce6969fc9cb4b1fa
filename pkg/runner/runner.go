// Package runner executes the external tools of a bootstrap (the environment
// creator, pip and the per-project setup scripts) one at a time, captures
// their combined output, and turns a non-zero exit into a CommandError.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/paulschiretz/venv-bootstrap/pkg/metrics"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// Command is one external tool invocation. Args[0] is the program.
type Command struct {
	Args []string
	// Dir is the working directory of the tool. Empty means the current one.
	Dir string
}

// String renders the command the way a user would type it in a shell.
func (c Command) String() string {
	return util.QuoteArgs(c.Args)
}

type Result struct {
	ExitCode int
	Output   []byte
}

// CommandError reports a tool that could not be started or exited non-zero.
// ExitCode is -1 when the tool never ran.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("command %s could not be run: %v", util.QuoteArgs(e.Args), e.Err)
	}
	return fmt.Sprintf("command %s failed with exit code %d", util.QuoteArgs(e.Args), e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Recorder receives every finished command, successful or not.
type Recorder interface {
	Record(args []string, dir string, exitCode int, output []byte) error
}

type Executor struct {
	// commandContext allows mocking os/exec for testing.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
	recorder       Recorder
	metrics        metrics.Metrics
}

// NewExecutor creates an Executor. recorder and m may be nil.
func NewExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd, recorder Recorder, m metrics.Metrics) *Executor {
	if m == nil {
		m = &metrics.NoopMetrics{}
	}
	return &Executor{
		commandContext: commandContext,
		recorder:       recorder,
		metrics:        m,
	}
}

// Run executes c and waits for it. The tool's stdout and stderr are captured
// together and never reach the program's own stdout. A non-zero exit is
// logged with the full output and returned as a *CommandError.
func (e *Executor) Run(ctx context.Context, c Command) (Result, error) {
	if len(c.Args) == 0 {
		return Result{}, errors.New("empty command")
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	plog.Info("Running", "command", c.String(), "dir", c.Dir)

	cmd := e.createCommand(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	e.metrics.AddCommand(exitCode, int64(len(output)), elapsed)

	if e.recorder != nil {
		if recErr := e.recorder.Record(c.Args, c.Dir, exitCode, output); recErr != nil {
			plog.Warn("Failed to write transcript entry", "command", c.String(), "error", recErr)
		}
	}

	if err != nil {
		// A cancelled context kills the tool, which surfaces as an exit error.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{ExitCode: exitCode, Output: output}, ctxErr
		}
		plog.Error("Failure running", "command", c.String(), "exit_code", exitCode, "output", strings.TrimRight(string(output), "\n"))
		return Result{ExitCode: exitCode, Output: output}, &CommandError{
			Args:     c.Args,
			Dir:      c.Dir,
			ExitCode: exitCode,
			Output:   output,
			Err:      err,
		}
	}

	plog.Debug("Command finished", "command", c.String(), "duration", elapsed.Round(time.Millisecond), "output_bytes", len(output))
	return Result{ExitCode: exitCode, Output: output}, nil
}
