package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/venv-bootstrap/cmd"
	"github.com/paulschiretz/venv-bootstrap/pkg/config"
)

func TestPromptForConfirmation(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		prompt     string
		defaultYes bool
		want       bool
		wantPrompt string
	}{
		{"Explicit Yes", "y\n", "Continue?", false, true, "Continue? [y/N]: "},
		{"Explicit No", "n\n", "Continue?", true, false, "Continue? [Y/n]: "},
		{"Default Yes (Empty)", "\n", "Sure?", true, true, "Sure? [Y/n]: "},
		{"Default No (Empty)", "\n", "Sure?", false, false, "Sure? [y/N]: "},
		{"Default On EOF", "", "Sure?", false, false, "Sure? [y/N]: "},
		{"Case Insensitive", "YES\n", "Go?", false, true, "Go? [y/N]: "},
		{"Whitespace Handling", "   y   \n", "Clean?", false, true, "Clean? [y/N]: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := cmd.PromptForConfirmation(strings.NewReader(tt.input), &out, tt.prompt, tt.defaultYes)
			if got != tt.want {
				t.Errorf("PromptForConfirmation() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), tt.wantPrompt) {
				t.Errorf("Output = %q, want substring %q", out.String(), tt.wantPrompt)
			}
		})
	}
}

func TestRunInitConfig(t *testing.T) {
	t.Run("Writes new file with flags applied", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bootstrap.yaml")
		flags := map[string]any{"config": path, "python": "python3.11"}

		if err := cmd.RunInitConfig(flags, strings.NewReader(""), &bytes.Buffer{}); err != nil {
			t.Fatalf("RunInitConfig() error = %v", err)
		}
		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("failed to load written config: %v", err)
		}
		if cfg.Tools.Python != "python3.11" {
			t.Errorf("expected python 'python3.11', got %q", cfg.Tools.Python)
		}
		if cfg.EnvDir != "" {
			t.Errorf("expected the environment directory to stay at its default, got %q", cfg.EnvDir)
		}
	})

	t.Run("Declined overwrite keeps file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.jsonc")
		original := []byte(`{"tools": {"python": "python2.7"}}`)
		if err := os.WriteFile(path, original, 0644); err != nil {
			t.Fatal(err)
		}

		var out bytes.Buffer
		flags := map[string]any{"config": path, "python": "python3.12"}
		if err := cmd.RunInitConfig(flags, strings.NewReader("n\n"), &out); err != nil {
			t.Fatalf("RunInitConfig() error = %v", err)
		}
		if !strings.Contains(out.String(), "already exists") {
			t.Errorf("expected a warning about the existing file, got %q", out.String())
		}
		data, _ := os.ReadFile(path)
		if !bytes.Equal(data, original) {
			t.Errorf("expected file to be unchanged, got %s", data)
		}
	})

	t.Run("Force overwrites and keeps existing settings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.jsonc")
		if err := os.WriteFile(path, []byte(`{"tools": {"python": "python2.7"}, "logLevel": "debug"}`), 0644); err != nil {
			t.Fatal(err)
		}

		flags := map[string]any{"config": path, "force": true, "upgrade": []string{"pip"}}
		if err := cmd.RunInitConfig(flags, strings.NewReader(""), &bytes.Buffer{}); err != nil {
			t.Fatalf("RunInitConfig() error = %v", err)
		}
		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("failed to load written config: %v", err)
		}
		if cfg.Tools.Python != "python2.7" || cfg.LogLevel != "debug" {
			t.Errorf("expected existing settings to survive, got python=%q logLevel=%q", cfg.Tools.Python, cfg.LogLevel)
		}
		if len(cfg.Tools.Upgrade) != 1 || cfg.Tools.Upgrade[0] != "pip" {
			t.Errorf("expected upgrade list from flags, got %v", cfg.Tools.Upgrade)
		}
	})

	t.Run("Invalid flags are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.jsonc")
		flags := map[string]any{"config": path, "log-level": "loud"}
		if err := cmd.RunInitConfig(flags, strings.NewReader(""), &bytes.Buffer{}); err == nil {
			t.Fatal("expected an error for an invalid log level")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected no file to be written")
		}
	})

	t.Run("Dry run writes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.jsonc")
		flags := map[string]any{"config": path, "dry-run": true}
		if err := cmd.RunInitConfig(flags, strings.NewReader(""), &bytes.Buffer{}); err != nil {
			t.Fatalf("RunInitConfig() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected no file to be written in dry run")
		}
	})
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := cmd.RunVersion(&out, "venv-bootstrap", "1.2.3"); err != nil {
		t.Fatalf("RunVersion() error = %v", err)
	}
	if got, want := out.String(), "venv-bootstrap version 1.2.3\n"; got != want {
		t.Errorf("RunVersion() printed %q, want %q", got, want)
	}
}
