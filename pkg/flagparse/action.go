package flagparse

import "fmt"

// Action is what the parsed command line asks the program to do.
type Action int

const (
	None Action = iota
	Bootstrap
	Version
	Help
	InitConfig
)

var actionToString = map[Action]string{
	None:       "none",
	Bootstrap:  "bootstrap",
	Version:    "version",
	Help:       "help",
	InitConfig: "init-config",
}

func (a Action) String() string {
	if str, ok := actionToString[a]; ok {
		return str
	}
	return fmt.Sprintf("unknown_action(%d)", a)
}
