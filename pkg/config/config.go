package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/transcript"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

const (
	// AppDirName is the directory below the XDG config and state homes.
	AppDirName = "venv-bootstrap"
	// ConfigFileName is the config file looked up below $XDG_CONFIG_HOME/venv-bootstrap.
	ConfigFileName = "config.jsonc"
	// DataHomeVar names the variable that moves the default environment location.
	DataHomeVar = "XDG_DATA_HOME"
)

// LookupFunc reads one variable from the process environment. os.LookupEnv
// satisfies it; tests pass a map-backed function instead.
type LookupFunc func(key string) (string, bool)

// ToolsConfig describes the external tools and how they are called.
type ToolsConfig struct {
	// Creator is the environment-creation tool.
	Creator string `json:"creator" yaml:"creator"`
	// CreatorFlags are passed to the creator before --python. The default asks
	// for an environment that does not inherit the system site-packages.
	CreatorFlags []string `json:"creatorFlags" yaml:"creatorFlags"`
	// Python is the interpreter requested from the creator.
	Python string `json:"python" yaml:"python"`
	// Upgrade lists the packages pip upgrades, one invocation each, right
	// after a new environment was created.
	Upgrade []string `json:"upgrade" yaml:"upgrade"`
}

type TranscriptConfig struct {
	Format string `json:"format" yaml:"format"`
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

type RuntimeConfig struct {
	Force      bool
	DryRun     bool
	Quiet      bool
	Metrics    bool
	ConfigPath string
}

type Config struct {
	Version string `json:"version" yaml:"version"`
	// EnvDir is the target environment. Empty means the XDG data home default.
	EnvDir string `json:"envDir,omitempty" yaml:"envDir,omitempty"`
	// Root is the repository root. Empty means the working directory.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
	// Subprojects are installed in develop mode, in this order.
	Subprojects []string         `json:"subprojects" yaml:"subprojects"`
	LogLevel    string           `json:"logLevel" yaml:"logLevel"`
	Tools       ToolsConfig      `json:"tools" yaml:"tools"`
	Transcript  TranscriptConfig `json:"transcript" yaml:"transcript"`
	Runtime     RuntimeConfig    `json:"-" yaml:"-"` // Never read from a config file
}

// NewDefault returns the built-in configuration.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		EnvDir:   "", // Resolved from XDG_DATA_HOME or the home directory in Validate.
		Root:     "", // Resolved to the working directory in Validate.
		LogLevel: "info",
		Subprojects: []string{
			"acme",
			".",
			"letsencrypt-apache",
			"letsencrypt-nginx",
		},
		Tools: ToolsConfig{
			Creator:      "virtualenv",
			CreatorFlags: []string{"--no-site-packages"},
			Python:       "python3",
			Upgrade:      []string{"setuptools", "pip"},
		},
		Transcript: TranscriptConfig{
			Format: transcript.None.String(),
		},
	}
}

// DefaultEnvDir is $XDG_DATA_HOME/<product> when the variable is set and
// non-empty, and ~/.local/share/<product> otherwise.
func DefaultEnvDir(lookup LookupFunc) (string, error) {
	if dataHome, ok := lookup(DataHomeVar); ok && dataHome != "" {
		return filepath.Join(dataHome, buildinfo.Product), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", buildinfo.Product), nil
}

// DefaultTranscriptDir is $XDG_STATE_HOME/venv-bootstrap/transcripts.
func DefaultTranscriptDir() string {
	return filepath.Join(xdg.StateHome, AppDirName, "transcripts")
}

// Load reads the configuration file at path over the defaults. With an empty
// path the per-user file below $XDG_CONFIG_HOME is used when it exists and the
// defaults are returned when it does not. An explicit path must exist.
//
// Files ending in .yaml or .yml are YAML; everything else is JSON with
// comments and trailing commas allowed. Relative paths inside the file are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	if path == "" {
		found, err := xdg.SearchConfigFile(filepath.Join(AppDirName, ConfigFileName))
		if err != nil {
			return NewDefault(), nil // No per-user config file, which is the normal case.
		}
		path = found
	}

	absPath, err := util.AbsPath(path)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file %s: %w", absPath, err)
	}

	plog.Info("Loading configuration", "path", absPath)
	// Start with default values, then overwrite with the file's content so
	// missing keys keep their defaults.
	config := NewDefault()
	if err := decode(absPath, data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", absPath, err)
	}

	baseDir := filepath.Dir(absPath)
	config.EnvDir = resolveRelative(baseDir, config.EnvDir)
	config.Root = resolveRelative(baseDir, config.Root)
	config.Transcript.Dir = resolveRelative(baseDir, config.Transcript.Dir)

	config.Runtime.ConfigPath = absPath
	config.Version = buildinfo.Version
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		stripped := jsonc.ToJSON(data)
		if len(bytes.TrimSpace(stripped)) == 0 {
			return nil
		}
		dec := json.NewDecoder(bytes.NewReader(stripped))
		dec.DisallowUnknownFields()
		return dec.Decode(config)
	}
}

// resolveRelative anchors a relative, non-home path to baseDir.
func resolveRelative(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "~") {
		return path
	}
	return filepath.Join(baseDir, path)
}

// DefaultConfigPath is the per-user config file Load searches for. Its
// directory is created if needed.
func DefaultConfigPath() (string, error) {
	path, err := xdg.ConfigFile(filepath.Join(AppDirName, ConfigFileName))
	if err != nil {
		return "", fmt.Errorf("could not determine config file location: %w", err)
	}
	return path, nil
}

// Generate writes c to path in the format its extension selects, the same
// way Load reads it. Runtime settings are not written.
func Generate(c Config, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		if err == nil {
			header := fmt.Sprintf("// %s configuration. Comments and trailing commas are allowed.\n", buildinfo.Name)
			data = append([]byte(header), data...)
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", path)
	return nil
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. setFlags contains only the flags explicitly provided by the user.
func MergeConfigWithFlags(base Config, setFlags map[string]any) Config {
	merged := base
	merged.Subprojects = slices.Clone(base.Subprojects)
	merged.Tools.CreatorFlags = slices.Clone(base.Tools.CreatorFlags)
	merged.Tools.Upgrade = slices.Clone(base.Tools.Upgrade)

	for name, value := range setFlags {
		switch name {
		case "env":
			merged.EnvDir = value.(string)
		case "force":
			merged.Runtime.Force = value.(bool)
		case "python":
			merged.Tools.Python = value.(string)
		case "root":
			merged.Root = value.(string)
		case "subprojects":
			merged.Subprojects = slices.Clone(value.([]string))
		case "upgrade":
			merged.Tools.Upgrade = slices.Clone(value.([]string))
		case "config":
			merged.Runtime.ConfigPath = value.(string)
		case "transcript":
			merged.Transcript.Format = value.(string)
		case "transcript-dir":
			merged.Transcript.Dir = value.(string)
		case "log-level":
			merged.LogLevel = value.(string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "quiet":
			merged.Runtime.Quiet = value.(bool)
		case "metrics":
			merged.Runtime.Metrics = value.(bool)
		default:
			plog.Debug("Ignoring unknown flag during merge", "flag", name)
		}
	}
	return merged
}

// Validate checks the configuration for logical errors and resolves every
// path into its canonical absolute form: the environment directory falls back
// to DefaultEnvDir, the root to the working directory.
func (c *Config) Validate(lookup LookupFunc) error {
	if !plog.IsValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %q. Must be 'debug', 'notice', 'info', 'warn' or 'error'", c.LogLevel)
	}
	if strings.TrimSpace(c.Tools.Creator) == "" {
		return fmt.Errorf("the environment creation tool cannot be empty")
	}
	if strings.TrimSpace(c.Tools.Python) == "" {
		return fmt.Errorf("the python interpreter cannot be empty")
	}
	for _, pkg := range c.Tools.Upgrade {
		if strings.TrimSpace(pkg) == "" || strings.HasPrefix(pkg, "-") {
			return fmt.Errorf("invalid package in upgrade list: %q", pkg)
		}
	}

	format, err := transcript.ParseFormat(c.Transcript.Format)
	if err != nil {
		return err
	}
	c.Transcript.Format = format.String()

	if len(c.Subprojects) == 0 {
		return fmt.Errorf("at least one subproject is required")
	}
	for _, sub := range c.Subprojects {
		if strings.TrimSpace(sub) == "" {
			return fmt.Errorf("subproject paths cannot be empty")
		}
	}
	if deduped := util.Deduplicate(c.Subprojects); len(deduped) != len(c.Subprojects) {
		plog.Warn("Ignoring duplicate subprojects", "subprojects", strings.Join(c.Subprojects, ", "))
		c.Subprojects = deduped
	}

	if c.EnvDir == "" {
		if c.EnvDir, err = DefaultEnvDir(lookup); err != nil {
			return err
		}
	}
	if c.EnvDir, err = util.AbsPath(c.EnvDir); err != nil {
		return fmt.Errorf("invalid environment directory: %w", err)
	}

	if c.Root == "" {
		c.Root = "."
	}
	if c.Root, err = util.AbsPath(c.Root); err != nil {
		return fmt.Errorf("invalid repository root: %w", err)
	}

	if format != transcript.None {
		if c.Transcript.Dir == "" {
			c.Transcript.Dir = DefaultTranscriptDir()
		}
		if c.Transcript.Dir, err = util.AbsPath(c.Transcript.Dir); err != nil {
			return fmt.Errorf("invalid transcript directory: %w", err)
		}
	}
	return nil
}

// LogSummary logs the final configuration of the run.
func (c *Config) LogSummary() {
	logArgs := []any{
		"env", c.EnvDir,
		"root", c.Root,
		"force", c.Runtime.Force,
		"dry_run", c.Runtime.DryRun,
		"log_level", c.LogLevel,
		"creator", c.Tools.Creator,
		"python", c.Tools.Python,
		"subprojects", strings.Join(c.Subprojects, ", "),
	}
	if len(c.Tools.CreatorFlags) > 0 {
		logArgs = append(logArgs, "creator_flags", strings.Join(c.Tools.CreatorFlags, " "))
	}
	if len(c.Tools.Upgrade) > 0 {
		logArgs = append(logArgs, "upgrade", strings.Join(c.Tools.Upgrade, ", "))
	}
	if c.Transcript.Format != transcript.None.String() {
		logArgs = append(logArgs, "transcript", fmt.Sprintf("%s (%s)", c.Transcript.Format, c.Transcript.Dir))
	}
	if c.Runtime.ConfigPath != "" {
		logArgs = append(logArgs, "config_file", c.Runtime.ConfigPath)
	}
	plog.Info("Configuration loaded", logArgs...)
}
