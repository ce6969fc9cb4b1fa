package flagparse

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/paulschiretz/venv-bootstrap/pkg/buildinfo"
)

// cliFlags holds pointers to all command-line flags.
type cliFlags struct {
	Env           *string
	Force         *bool
	Python        *string
	Root          *string
	Subprojects   *string
	Upgrade       *string
	Config        *string
	Transcript    *string
	TranscriptDir *string
	LogLevel      *string
	Quiet         *bool
	DryRun        *bool
	Metrics       *bool
	Version       *bool
	InitConfig    *bool
	Help          *bool
}

func registerFlags(fs *pflag.FlagSet, f *cliFlags, defaultEnvDir string) {
	f.Env = fs.StringP("env", "e", defaultEnvDir, "Full path to the target environment `DIRECTORY`.")
	f.Force = fs.BoolP("force", "f", false, "Reinstall the subprojects even if the environment already exists.")
	f.Python = fs.String("python", "", "Interpreter the environment is created with (default from config, 'python3').")
	f.Root = fs.String("root", "", "Repository root the subproject paths are resolved against (default: current directory).")
	f.Subprojects = fs.String("subprojects", "", "Comma-separated list of subproject directories, relative to the root, installed in develop mode.")
	f.Upgrade = fs.String("upgrade", "", "Comma-separated list of packages pip upgrades in a new environment (default 'setuptools,pip').")
	f.Config = fs.StringP("config", "c", "", "Path to a .json, .jsonc, .yaml or .yml config file.")
	f.Transcript = fs.String("transcript", "", "Write a compressed transcript of every command: 'none', 'gz' or 'zst'.")
	f.TranscriptDir = fs.String("transcript-dir", "", "Directory the transcript is written to.")
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	f.Quiet = fs.BoolP("quiet", "q", false, "Only log warnings and errors.")
	f.DryRun = fs.Bool("dry-run", false, "Log the commands that would run without running them.")
	f.Metrics = fs.Bool("metrics", false, "Log a summary of the tool invocations at the end of the run.")
	f.Version = fs.Bool("version", false, "Print the application version and exit.")
	f.InitConfig = fs.Bool("init-config", false, "Write the effective configuration to the config file and exit. Asks before overwriting unless --force is given.")
	f.Help = fs.BoolP("help", "h", false, "Show this help.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the
// action and a map holding only the flags the user explicitly set.
// defaultEnvDir is shown in the help text as the default of --env.
func Parse(args []string, defaultEnvDir string) (Action, map[string]any, error) {
	return parse(args, defaultEnvDir, os.Stderr)
}

func parse(args []string, defaultEnvDir string, out io.Writer) (Action, map[string]any, error) {
	f := &cliFlags{}
	fs := pflag.NewFlagSet(buildinfo.Name, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false
	registerFlags(fs, f, defaultEnvDir)
	fs.Usage = func() { printUsage(fs, out) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Help, nil, nil
		}
		return None, nil, err
	}

	if *f.Help {
		printUsage(fs, out)
		return Help, nil, nil
	}
	if *f.Version {
		return Version, nil, nil
	}
	if rest := fs.Args(); len(rest) > 0 {
		return None, nil, fmt.Errorf("unexpected argument(s): %s", strings.Join(rest, " "))
	}

	action := Bootstrap
	if *f.InitConfig {
		action = InitConfig
	}
	flagMap, err := flagsToMap(fs, f)
	if err != nil {
		return None, nil, err
	}
	return action, flagMap, nil
}

func flagsToMap(fs *pflag.FlagSet, f *cliFlags) (map[string]any, error) {
	// Only the flags the user set end up in the map, so they can be laid over
	// the defaults and the config file without clobbering either.
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *pflag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "env", f.Env)
	addIfUsed(flagMap, usedFlags, "force", f.Force)
	addIfUsed(flagMap, usedFlags, "python", f.Python)
	addIfUsed(flagMap, usedFlags, "root", f.Root)
	addIfUsed(flagMap, usedFlags, "config", f.Config)
	addIfUsed(flagMap, usedFlags, "transcript", f.Transcript)
	addIfUsed(flagMap, usedFlags, "transcript-dir", f.TranscriptDir)
	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "quiet", f.Quiet)
	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "metrics", f.Metrics)

	addParsedIfUsed(flagMap, usedFlags, "subprojects", f.Subprojects, ParseList)
	addParsedIfUsed(flagMap, usedFlags, "upgrade", f.Upgrade, ParseList)
	if v, ok := flagMap["subprojects"].([]string); ok && len(v) == 0 {
		return nil, fmt.Errorf("the --subprojects flag needs at least one directory")
	}

	for _, name := range []string{"env", "python", "root", "config", "transcript-dir"} {
		if v, ok := flagMap[name].(string); ok && strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("the --%s flag cannot be empty", name)
		}
	}
	return flagMap, nil
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]any, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// addParsedIfUsed adds the parsed value of ptr to flagMap if ptr is not nil and the flag was set.
func addParsedIfUsed(flagMap map[string]any, usedFlags map[string]bool, name string, ptr *string, parser func(string) []string) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = parser(*ptr)
	}
}

// printUsage prints the help message.
func printUsage(fs *pflag.FlagSet, out io.Writer) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(out, "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(out, "Create or refresh the developer virtualenv for %s.\n\n", buildinfo.Product)
	fmt.Fprintf(out, "Usage: %s [flags]\n\n", execName)
	fmt.Fprintf(out, "The path of the activation script is printed on stdout, so a shell can run:\n")
	fmt.Fprintf(out, "  source $(%s)\n\n", execName)
	fmt.Fprintf(out, "Flags:\n")
	fs.PrintDefaults()
}
