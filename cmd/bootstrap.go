package cmd

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
	"github.com/paulschiretz/venv-bootstrap/pkg/config"
	"github.com/paulschiretz/venv-bootstrap/pkg/engine"
	"github.com/paulschiretz/venv-bootstrap/pkg/hints"
	"github.com/paulschiretz/venv-bootstrap/pkg/metrics"
	"github.com/paulschiretz/venv-bootstrap/pkg/planner"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/preflight"
	"github.com/paulschiretz/venv-bootstrap/pkg/runner"
	"github.com/paulschiretz/venv-bootstrap/pkg/transcript"
)

// Env is what a command needs from the process it runs in.
type Env struct {
	// Lookup reads environment variables, usually os.LookupEnv.
	Lookup config.LookupFunc
	// Stdout receives the activation path and nothing else.
	Stdout io.Writer
	// CommandContext creates the external tool processes, usually exec.CommandContext.
	CommandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
	// ExecName is the program name used in the activation hint.
	ExecName string
}

// CheckActiveEnvironment refuses to run from inside an activated
// environment. It must run before anything else, flag parsing included.
func CheckActiveEnvironment(lookup config.LookupFunc, stdout io.Writer) error {
	if err := preflight.CheckNoActiveEnvironment(lookup); err != nil {
		plog.Warn("A virtualenv is already active. Please deactivate it first and then run this script again.")
		// Emit an empty line so `source $(...)` sources nothing useful.
		fmt.Fprintln(stdout)
		return err
	}
	return nil
}

// RunBootstrap handles the main bootstrap execution. On success the path of
// the activation script is written to env.Stdout as the only line, after
// all logging. Callers run CheckActiveEnvironment first.
func RunBootstrap(ctx context.Context, flagMap map[string]any, env Env) error {
	configPath, _ := flagMap["config"].(string)
	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(loadedConfig, flagMap)

	if err := runConfig.Validate(env.Lookup); err != nil {
		return err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))
	plog.SetQuiet(runConfig.Runtime.Quiet)
	runConfig.LogSummary()

	startTime := time.Now()

	bootstrapPlan, err := planner.GenerateBootstrapPlan(runConfig)
	if err != nil {
		return err
	}

	recorder, closeTranscript, err := openTranscript(runConfig, startTime)
	if err != nil {
		return err
	}

	var runMetrics metrics.Metrics = &metrics.NoopMetrics{}
	if runConfig.Runtime.Metrics {
		runMetrics = &metrics.RunMetrics{}
	}

	executor := runner.NewExecutor(env.CommandContext, recorder, runMetrics)
	res, err := engine.NewRunner(preflight.NewValidator(), executor).Execute(ctx, bootstrapPlan)

	// Everything that logs is finished before the activation path goes out.
	runMetrics.Log()
	closeTranscript()
	if err != nil {
		return err // The error will be logged with full details by main()
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)

	execName := env.ExecName
	if execName == "" {
		execName = buildinfo.Name
	}
	plog.Info(fmt.Sprintf("You can activate the virtualenv with\n    source $(%s)", filepath.Base(execName)))

	fmt.Fprintln(env.Stdout, res.Activate)
	return nil
}

// openTranscript creates the transcript the config asks for. The returned
// recorder is nil when transcripts are disabled; the close function is never nil.
func openTranscript(cfg config.Config, startTime time.Time) (runner.Recorder, func(), error) {
	format, err := transcript.ParseFormat(cfg.Transcript.Format)
	if err != nil {
		return nil, func() {}, err
	}
	if cfg.Runtime.DryRun && format != transcript.None {
		plog.Info("[DRY RUN] No transcript is written")
		return nil, func() {}, nil
	}

	w, err := transcript.Create(cfg.Transcript.Dir, format, startTime)
	if err != nil {
		if hints.Is(err, transcript.ErrDisabled) {
			return nil, func() {}, nil
		}
		return nil, func() {}, fmt.Errorf("failed to open transcript: %w", err)
	}

	return w, func() {
		if err := w.Close(); err != nil {
			plog.Warn("Failed to finalize transcript", "path", w.Path(), "error", err)
			return
		}
		plog.Info("Transcript written", "path", w.Path())
	}, nil
}
