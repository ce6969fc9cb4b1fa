// Package preflight holds the checks that run before the bootstrap touches
// anything: the guard against an already active environment and the
// validation of the target directory and the subprojects. Apart from creating
// the parent of a new environment, the checks do not change the system.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// ActivationMarker is set by the activation script of a virtualenv.
const ActivationMarker = "VIRTUAL_ENV"

// SetupScript is the per-project installer every subproject must carry.
const SetupScript = "setup.py"

// subprojectCheckWorkers bounds the concurrent stat calls of CheckSubprojects.
const subprojectCheckWorkers = 4

// ActiveEnvironmentError reports that the program was started from inside an
// activated environment.
type ActiveEnvironmentError struct {
	Path string
}

func (e *ActiveEnvironmentError) Error() string {
	return fmt.Sprintf("a virtualenv is active (%s=%s), run deactivate first", ActivationMarker, e.Path)
}

// CheckNoActiveEnvironment fails when the activation marker is set to a
// non-empty value. lookup is usually os.LookupEnv.
func CheckNoActiveEnvironment(lookup func(string) (string, bool)) error {
	if path, ok := lookup(ActivationMarker); ok && path != "" {
		return &ActiveEnvironmentError{Path: path}
	}
	return nil
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Run performs the checks selected by p for the target and the subproject
// directories. All paths are expected to be absolute.
func (v *Validator) Run(ctx context.Context, absTargetPath string, absSubprojectPaths []string, p *Plan, state State) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p.TargetUsable {
		if err := CheckTargetUsable(absTargetPath); err != nil {
			return err
		}
	}

	if !state.Exists && p.ParentWritable {
		parent := filepath.Dir(absTargetPath)
		if p.EnsureParentExists {
			if p.DryRun {
				plog.Info("[DRY RUN] Would create parent directory", "path", parent)
			} else if err := os.MkdirAll(parent, util.UserWritableDirPerms); err != nil {
				return fmt.Errorf("failed to create parent directory %s: %w", parent, err)
			}
		}
		if err := CheckParentWritable(parent, p.DryRun); err != nil {
			return err
		}
	}

	if state.Install && p.SubprojectsInstallable {
		if err := CheckSubprojects(ctx, absSubprojectPaths); err != nil {
			return err
		}
	}
	return nil
}

// CheckTargetUsable rejects a target that is a filesystem root or that exists
// but is not a directory. A missing target is fine; the creation tool makes it.
func CheckTargetUsable(absTargetPath string) error {
	if isUnsafeRoot(absTargetPath) {
		return fmt.Errorf("refusing to use %s as the environment directory", absTargetPath)
	}

	info, err := os.Stat(absTargetPath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", absTargetPath)
	}
	return nil
}

// CheckParentWritable verifies that a new environment can be created in
// parentPath. In a dry run a missing parent is only logged, since it would
// have been created.
func CheckParentWritable(parentPath string, dryRun bool) error {
	info, err := os.Stat(parentPath)
	if os.IsNotExist(err) {
		if dryRun {
			plog.Debug("Parent directory does not exist yet", "path", parentPath)
			return nil
		}
		return fmt.Errorf("parent directory %s does not exist", parentPath)
	} else if err != nil {
		return fmt.Errorf("cannot access parent directory %s: %w", parentPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("parent path %s is not a directory", parentPath)
	}
	if err := checkDirWritable(parentPath); err != nil {
		return fmt.Errorf("parent directory %s is not writable: %w", parentPath, err)
	}
	return nil
}

// CheckSubprojects verifies that every path is a directory containing a
// setup.py. The checks only stat the filesystem and run concurrently.
func CheckSubprojects(ctx context.Context, absSubprojectPaths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(subprojectCheckWorkers)

	for _, path := range absSubprojectPaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return checkSubproject(path)
		})
	}
	return g.Wait()
}

func checkSubproject(absPath string) error {
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("subproject directory %s does not exist", absPath)
		}
		return fmt.Errorf("cannot stat subproject directory %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("subproject path %s is not a directory", absPath)
	}

	script := filepath.Join(absPath, SetupScript)
	info, err = os.Stat(script)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("subproject %s has no %s", absPath, SetupScript)
		}
		return fmt.Errorf("cannot stat %s: %w", script, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", script)
	}
	return nil
}
