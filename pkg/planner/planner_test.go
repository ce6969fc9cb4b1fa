package planner_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/paulschiretz/venv-bootstrap/pkg/config"
	"github.com/paulschiretz/venv-bootstrap/pkg/planner"
	"github.com/paulschiretz/venv-bootstrap/pkg/runner"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewDefault()
	cfg.EnvDir = filepath.Join(base, "share", "letsencrypt")
	cfg.Root = filepath.Join(base, "src")
	return cfg
}

func TestGenerateBootstrapPlan(t *testing.T) {
	cfg := testConfig(t)
	target := cfg.EnvDir
	root := cfg.Root

	plan, err := planner.GenerateBootstrapPlan(cfg)
	if err != nil {
		t.Fatalf("GenerateBootstrapPlan() error = %v", err)
	}

	if plan.Target != target {
		t.Errorf("expected target %q, got %q", target, plan.Target)
	}
	if want := filepath.Join(target, "bin", "activate"); plan.Activate != want {
		t.Errorf("expected activate path %q, got %q", want, plan.Activate)
	}

	wantCreate := []string{"virtualenv", "--no-site-packages", "--python", "python3", target}
	if !reflect.DeepEqual(plan.Create.Args, wantCreate) {
		t.Errorf("create args = %q, want %q", plan.Create.Args, wantCreate)
	}
	if plan.Create.Dir != "" {
		t.Errorf("expected create to run in the working directory, got %q", plan.Create.Dir)
	}

	pip := filepath.Join(target, "bin", "pip")
	wantUpgrade := []runner.Command{
		{Args: []string{pip, "install", "-U", "setuptools"}},
		{Args: []string{pip, "install", "-U", "pip"}},
	}
	if !reflect.DeepEqual(plan.Upgrade, wantUpgrade) {
		t.Errorf("upgrade = %v, want %v", plan.Upgrade, wantUpgrade)
	}

	python := filepath.Join(target, "bin", "python")
	wantDirs := []string{
		filepath.Join(root, "acme"),
		root,
		filepath.Join(root, "letsencrypt-apache"),
		filepath.Join(root, "letsencrypt-nginx"),
	}
	if !reflect.DeepEqual(plan.Subprojects, wantDirs) {
		t.Errorf("subprojects = %q, want %q", plan.Subprojects, wantDirs)
	}
	if len(plan.Install) != len(wantDirs) {
		t.Fatalf("expected %d install commands, got %d", len(wantDirs), len(plan.Install))
	}
	for i, dir := range wantDirs {
		want := runner.Command{
			Args: []string{python, filepath.Join(dir, "setup.py"), "develop"},
			Dir:  dir,
		}
		if !reflect.DeepEqual(plan.Install[i], want) {
			t.Errorf("install[%d] = %v, want %v", i, plan.Install[i], want)
		}
	}

	if plan.Preflight == nil || !plan.Preflight.TargetUsable || !plan.Preflight.SubprojectsInstallable {
		t.Errorf("expected preflight checks to be enabled, got %+v", plan.Preflight)
	}
}

func TestGenerateBootstrapPlan_Options(t *testing.T) {
	tests := []struct {
		name      string
		configMod func(*config.Config)
		validate  func(*testing.T, *planner.BootstrapPlan)
	}{
		{
			name: "Force and dry run are carried over",
			configMod: func(c *config.Config) {
				c.Runtime.Force = true
				c.Runtime.DryRun = true
			},
			validate: func(t *testing.T, p *planner.BootstrapPlan) {
				if !p.Force || !p.DryRun || !p.Preflight.DryRun {
					t.Errorf("expected force and dry run to be set, got force=%v dryRun=%v preflightDryRun=%v", p.Force, p.DryRun, p.Preflight.DryRun)
				}
			},
		},
		{
			name: "Custom interpreter and no creator flags",
			configMod: func(c *config.Config) {
				c.Tools.Python = "python2.7"
				c.Tools.CreatorFlags = nil
			},
			validate: func(t *testing.T, p *planner.BootstrapPlan) {
				want := []string{"virtualenv", "--python", "python2.7", p.Target}
				if !reflect.DeepEqual(p.Create.Args, want) {
					t.Errorf("create args = %q, want %q", p.Create.Args, want)
				}
			},
		},
		{
			name: "Empty upgrade list",
			configMod: func(c *config.Config) {
				c.Tools.Upgrade = nil
			},
			validate: func(t *testing.T, p *planner.BootstrapPlan) {
				if len(p.Upgrade) != 0 {
					t.Errorf("expected no upgrade commands, got %v", p.Upgrade)
				}
			},
		},
		{
			name: "Absolute subproject is kept",
			configMod: func(c *config.Config) {
				c.Subprojects = []string{filepath.Join(c.Root, "..", "elsewhere")}
			},
			validate: func(t *testing.T, p *planner.BootstrapPlan) {
				want := filepath.Join(filepath.Dir(p.Subprojects[0]), "elsewhere")
				if p.Subprojects[0] != want || p.Install[0].Dir != want {
					t.Errorf("expected subproject %q, got %q (dir %q)", want, p.Subprojects[0], p.Install[0].Dir)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.configMod(&cfg)
			plan, err := planner.GenerateBootstrapPlan(cfg)
			if err != nil {
				t.Fatalf("GenerateBootstrapPlan() error = %v", err)
			}
			tc.validate(t, plan)
		})
	}
}

func TestGenerateBootstrapPlan_RelativePaths(t *testing.T) {
	cfg := config.NewDefault()
	cfg.EnvDir = "relative/env"
	cfg.Root = "/"
	if _, err := planner.GenerateBootstrapPlan(cfg); err == nil {
		t.Error("expected an error for a relative environment directory")
	}
}

func TestPlanCommands(t *testing.T) {
	plan, err := planner.GenerateBootstrapPlan(testConfig(t))
	if err != nil {
		t.Fatalf("GenerateBootstrapPlan() error = %v", err)
	}
	if got := plan.Commands(planner.Create); len(got) != 1 {
		t.Errorf("expected 1 create command, got %d", len(got))
	}
	if got := plan.Commands(planner.Upgrade); len(got) != 2 {
		t.Errorf("expected 2 upgrade commands, got %d", len(got))
	}
	if got := plan.Commands(planner.Install); len(got) != 4 {
		t.Errorf("expected 4 install commands, got %d", len(got))
	}
}

func TestStepString(t *testing.T) {
	want := map[planner.Step]string{planner.Create: "create", planner.Upgrade: "upgrade", planner.Install: "install"}
	for s, name := range want {
		if got := s.String(); got != name {
			t.Errorf("%d.String() = %q, want %q", int(s), got, name)
		}
	}
	if got := planner.Step(9).String(); got != "unknown_step(9)" {
		t.Errorf("unexpected string for unknown step: %q", got)
	}
}
