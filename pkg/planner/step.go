package planner

import "fmt"

// Step is one phase of a bootstrap.
type Step int

const (
	Create Step = iota
	Upgrade
	Install
)

var stepToString = map[Step]string{
	Create:  "create",
	Upgrade: "upgrade",
	Install: "install",
}

func (s Step) String() string {
	if str, ok := stepToString[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown_step(%d)", s)
}
