// Package engine runs a bootstrap plan: it decides from the state of the
// environment directory which steps apply, runs their commands in order and
// stops at the first failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
	"github.com/paulschiretz/venv-bootstrap/pkg/hints"
	"github.com/paulschiretz/venv-bootstrap/pkg/lockfile"
	"github.com/paulschiretz/venv-bootstrap/pkg/metafile"
	"github.com/paulschiretz/venv-bootstrap/pkg/planner"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/preflight"
	"github.com/paulschiretz/venv-bootstrap/pkg/runner"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// ErrNothingToInstall is returned by the install step when the environment
// already existed and no reinstall was forced.
var ErrNothingToInstall = hints.New("environment exists and reinstall was not forced")

// ErrAlreadyExists is returned by the create step for an existing environment.
var ErrAlreadyExists = hints.New("environment already exists")

type Validator interface {
	Run(ctx context.Context, absTargetPath string, absSubprojectPaths []string, p *preflight.Plan, state preflight.State) error
}

type CommandRunner interface {
	Run(ctx context.Context, c runner.Command) (runner.Result, error)
}

// Result describes what a run did.
type Result struct {
	// Activate is the activation script of the environment.
	Activate  string
	Created   bool
	Installed bool
}

type Runner struct {
	validator Validator
	commands  CommandRunner
	// acquireLock allows replacing the lock file in tests.
	acquireLock func(ctx context.Context, absEnvPath string) (func(), error)
}

// NewRunner creates a new Runner.
func NewRunner(v Validator, c CommandRunner) *Runner {
	return &Runner{
		validator:   v,
		commands:    c,
		acquireLock: acquireEnvLock,
	}
}

// Execute brings the environment described by p into shape. A missing
// environment is created and its packaging tools upgraded. The subprojects
// are installed when the environment is new or p.Force is set. Nothing after
// a failed command runs.
func (r *Runner) Execute(ctx context.Context, p *planner.BootstrapPlan) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	exists, err := util.Exists(p.Target)
	if err != nil {
		return Result{}, fmt.Errorf("cannot access environment directory %s: %w", p.Target, err)
	}
	state := preflight.State{Exists: exists, Install: !exists || p.Force}

	if err := r.validator.Run(ctx, p.Target, p.Subprojects, p.Preflight, state); err != nil {
		return Result{}, fmt.Errorf("preflight failed: %w", err)
	}

	if !p.DryRun && (state.Install || !state.Exists) {
		release, err := r.acquireLock(ctx, p.Target)
		if err != nil {
			return Result{}, err
		}
		defer release()

		// Another bootstrap may have created the environment while we waited.
		if exists, err = util.Exists(p.Target); err != nil {
			return Result{}, fmt.Errorf("cannot access environment directory %s: %w", p.Target, err)
		}
		if exists && !state.Exists {
			plog.Notice("Environment appeared while acquiring the lock", "path", p.Target)
		}
		state.Exists = exists
	}

	res := Result{Activate: p.Activate}

	if err := r.create(ctx, p, state); err != nil {
		if !hints.IsHint(err) {
			return Result{}, err
		}
		plog.Info("Virtualenv already exists, skipping creation", "path", p.Target)
		logRecord(p.Target)
	} else {
		res.Created = true
	}

	if err := r.install(ctx, p, state); err != nil {
		if !hints.IsHint(err) {
			return Result{}, err
		}
		plog.Info("Use --force to reinstall the subprojects into the existing virtualenv")
	} else {
		res.Installed = true
	}

	if p.DryRun {
		plog.Info("[DRY RUN] Bootstrap completed, nothing was changed", "path", p.Target)
	} else {
		if res.Created || res.Installed {
			updateRecord(p, res, time.Now().UTC())
		}
		plog.Info("Bootstrap completed", "path", p.Target, "created", res.Created, "installed", res.Installed)
	}
	return res, nil
}

// create runs the create and upgrade steps for a missing environment.
func (r *Runner) create(ctx context.Context, p *planner.BootstrapPlan, state preflight.State) error {
	if state.Exists {
		return ErrAlreadyExists
	}
	plog.Info("Creating virtualenv", "path", p.Target)
	if err := r.runStep(ctx, planner.Create, p); err != nil {
		return err
	}
	return r.runStep(ctx, planner.Upgrade, p)
}

// install runs the develop-mode installs of the subprojects.
func (r *Runner) install(ctx context.Context, p *planner.BootstrapPlan, state preflight.State) error {
	if state.Exists && !p.Force {
		return ErrNothingToInstall
	}
	plog.Info("Installing subprojects in develop mode", "count", len(p.Install))
	return r.runStep(ctx, planner.Install, p)
}

func (r *Runner) runStep(ctx context.Context, s planner.Step, p *planner.BootstrapPlan) error {
	for _, c := range p.Commands(s) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.DryRun {
			plog.Info("[DRY RUN] Would run", "step", s, "command", c.String(), "dir", c.Dir)
			continue
		}
		if _, err := r.commands.Run(ctx, c); err != nil {
			return fmt.Errorf("%s step failed: %w", s, err)
		}
	}
	return nil
}

// acquireEnvLock takes the lock guarding absEnvPath and returns its release
// function.
func acquireEnvLock(ctx context.Context, absEnvPath string) (func(), error) {
	plog.Debug("Attempting to acquire lock", "path", lockfile.PathFor(absEnvPath))
	lock, err := lockfile.Acquire(ctx, absEnvPath)
	if err != nil {
		var lockErr *lockfile.ErrLockActive
		if errors.As(err, &lockErr) {
			return nil, fmt.Errorf("another bootstrap is running for %s: %w", absEnvPath, lockErr)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	plog.Debug("Lock acquired", "path", lock.Path())
	return lock.Release, nil
}

// updateRecord refreshes the bootstrap record of the environment. The record
// is informational, so failing to write it only warns.
func updateRecord(p *planner.BootstrapPlan, res Result, nowUTC time.Time) {
	content, err := metafile.Read(p.Target)
	if err != nil && !os.IsNotExist(err) {
		plog.Debug("Replacing unreadable bootstrap record", "error", err)
	}
	content.Version = buildinfo.Version
	if res.Created {
		content.CreatedUTC = nowUTC
		content.Python = p.Python
	}
	if res.Installed {
		content.InstalledUTC = nowUTC
		content.Subprojects = p.Subprojects
	}
	if err := metafile.Write(p.Target, &content); err != nil {
		plog.Warn("Could not write bootstrap record", "error", err)
	}
}

// logRecord reports what the record of an existing environment says.
func logRecord(target string) {
	content, err := metafile.Read(target)
	if err != nil {
		plog.Debug("No bootstrap record found", "path", target, "error", err)
		return
	}
	args := []any{"version", content.Version, "python", content.Python}
	if !content.CreatedUTC.IsZero() {
		args = append(args, "created", content.CreatedUTC.Local().Format(time.DateTime))
	}
	if !content.InstalledUTC.IsZero() {
		args = append(args, "installed", content.InstalledUTC.Local().Format(time.DateTime))
	}
	plog.Notice("Bootstrap record", args...)
}
