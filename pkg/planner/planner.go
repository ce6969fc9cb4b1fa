// Package planner turns a validated configuration into the exact commands a
// bootstrap may run. Whether each group runs is decided later by the engine,
// once it knows if the environment already exists.
package planner

import (
	"fmt"
	"path/filepath"

	"github.com/paulschiretz/venv-bootstrap/pkg/config"
	"github.com/paulschiretz/venv-bootstrap/pkg/preflight"
	"github.com/paulschiretz/venv-bootstrap/pkg/runner"
)

// BinDir is the directory inside an environment holding its tools.
const BinDir = "bin"

type BootstrapPlan struct {
	// Target is the absolute environment directory.
	Target string
	// Activate is the activation script printed at the end of a run.
	Activate string
	// Python is the interpreter the environment is created with.
	Python string

	Force  bool
	DryRun bool

	// Subprojects are the absolute subproject directories, in install order.
	Subprojects []string

	Preflight *preflight.Plan

	// Create makes a new environment. Upgrade runs right after it.
	Create  runner.Command
	Upgrade []runner.Command
	// Install holds one develop-mode install per subproject.
	Install []runner.Command
}

// Commands returns the commands of step s.
func (p *BootstrapPlan) Commands(s Step) []runner.Command {
	switch s {
	case Create:
		return []runner.Command{p.Create}
	case Upgrade:
		return p.Upgrade
	case Install:
		return p.Install
	default:
		return nil
	}
}

// EnvTool is the path of an executable inside the environment at target.
func EnvTool(target, name string) string {
	return filepath.Join(target, BinDir, name)
}

// GenerateBootstrapPlan builds the plan for cfg. cfg must have been validated
// so that EnvDir and Root are absolute.
func GenerateBootstrapPlan(cfg config.Config) (*BootstrapPlan, error) {
	target := cfg.EnvDir
	if !filepath.IsAbs(target) {
		return nil, fmt.Errorf("environment directory must be absolute, got %q", target)
	}
	if !filepath.IsAbs(cfg.Root) {
		return nil, fmt.Errorf("repository root must be absolute, got %q", cfg.Root)
	}

	pip := EnvTool(target, "pip")
	python := EnvTool(target, "python")

	createArgs := []string{cfg.Tools.Creator}
	createArgs = append(createArgs, cfg.Tools.CreatorFlags...)
	createArgs = append(createArgs, "--python", cfg.Tools.Python, target)

	upgrade := make([]runner.Command, 0, len(cfg.Tools.Upgrade))
	for _, pkg := range cfg.Tools.Upgrade {
		upgrade = append(upgrade, runner.Command{Args: []string{pip, "install", "-U", pkg}})
	}

	subprojects := make([]string, 0, len(cfg.Subprojects))
	install := make([]runner.Command, 0, len(cfg.Subprojects))
	for _, sub := range cfg.Subprojects {
		dir := sub
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Root, sub)
		}
		dir = filepath.Clean(dir)
		subprojects = append(subprojects, dir)
		install = append(install, runner.Command{
			Args: []string{python, filepath.Join(dir, preflight.SetupScript), "develop"},
			Dir:  dir,
		})
	}

	return &BootstrapPlan{
		Target:      target,
		Activate:    EnvTool(target, "activate"),
		Python:      cfg.Tools.Python,
		Force:       cfg.Runtime.Force,
		DryRun:      cfg.Runtime.DryRun,
		Subprojects: subprojects,
		Preflight: &preflight.Plan{
			TargetUsable:           true,
			ParentWritable:         true,
			EnsureParentExists:     true,
			SubprojectsInstallable: true,
			DryRun:                 cfg.Runtime.DryRun,
		},
		Create:  runner.Command{Args: createArgs},
		Upgrade: upgrade,
		Install: install,
	}, nil
}
