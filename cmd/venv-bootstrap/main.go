package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/paulschiretz/venv-bootstrap/cmd"
	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
	"github.com/paulschiretz/venv-bootstrap/pkg/config"
	"github.com/paulschiretz/venv-bootstrap/pkg/flagparse"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
)

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

// run executes the program with args (program name first) and returns its
// exit code. stdout only ever receives the activation path, the version or
// the blank line of a refused run.
func run(args []string, stdout io.Writer) int {
	// An active environment is refused before the command line is looked at.
	if err := cmd.CheckActiveEnvironment(os.LookupEnv, stdout); err != nil {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The default is only needed for the help text here; the config layer
	// resolves it again after the config file was read.
	defaultEnvDir, err := config.DefaultEnvDir(os.LookupEnv)
	if err != nil {
		defaultEnvDir = ""
	}

	action, flagMap, err := flagparse.Parse(args[1:], defaultEnvDir)
	if err != nil {
		plog.Error("Invalid arguments", "error", err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", buildinfo.Name)
		return 2
	}

	switch action {
	case flagparse.Help:
		return 0
	case flagparse.Version:
		err = cmd.RunVersion(stdout, buildinfo.Name, buildinfo.Version)
	case flagparse.InitConfig:
		err = cmd.RunInitConfig(flagMap, os.Stdin, os.Stderr)
	case flagparse.Bootstrap:
		err = cmd.RunBootstrap(ctx, flagMap, cmd.Env{
			Lookup:         os.LookupEnv,
			Stdout:         stdout,
			CommandContext: exec.CommandContext,
			ExecName:       args[0],
		})
	default:
		err = fmt.Errorf("unknown action: %s", action)
	}

	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, context.Canceled):
		plog.Warn(buildinfo.Name + " was interrupted")
	default:
		plog.Error(buildinfo.Name+" failed", "error", err)
	}
	return 1
}
