package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
	"github.com/paulschiretz/venv-bootstrap/pkg/config"
	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// RunInitConfig writes the configuration a bootstrap with the same flags
// would use to the config file: the --config path if given, the per-user
// file otherwise. An existing file is only overwritten after confirmation on
// in, or when --force is set.
func RunInitConfig(flagMap map[string]any, in io.Reader, out io.Writer) error {
	configPath, _ := flagMap["config"].(string)
	if configPath == "" {
		var err error
		if configPath, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	absConfigPath, err := util.AbsPath(configPath)
	if err != nil {
		return err
	}

	exists, err := util.Exists(absConfigPath)
	if err != nil {
		return fmt.Errorf("cannot access config file %s: %w", absConfigPath, err)
	}

	baseConfig := config.NewDefault()
	if exists {
		// Start from the existing file so settings not given as flags survive.
		if baseConfig, err = config.Load(absConfigPath); err != nil {
			plog.Warn("Could not load existing configuration, starting with defaults.", "reason", err)
			baseConfig = config.NewDefault()
		}

		force, _ := flagMap["force"].(bool)
		if !force {
			fmt.Fprintf(out, "Configuration file already exists at %s.\n", absConfigPath)
			if !PromptForConfirmation(in, out, "Overwrite it?", false) {
				plog.Info(buildinfo.Name + " init-config operation canceled.")
				return nil
			}
		}
	}

	runConfig := config.MergeConfigWithFlags(baseConfig, flagMap)

	// Validate a copy so the written file keeps unresolved defaults such as
	// the XDG based environment directory.
	check := runConfig
	if err := check.Validate(os.LookupEnv); err != nil {
		return err
	}

	if runConfig.Runtime.DryRun {
		plog.Info("[DRY RUN] Would write config file", "path", absConfigPath)
		return nil
	}
	return config.Generate(runConfig, absConfigPath)
}

// PromptForConfirmation writes prompt to out and reads a yes/no answer from in.
func PromptForConfirmation(in io.Reader, out io.Writer, prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s: ", prompt, suffix)

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
