// Package hints labels errors that mark a skipped step instead of a failure.
//
// The bootstrap sequence has steps that are legitimately not executed on a run:
// creation is skipped when the environment already exists, installation is
// skipped when nothing asks for it. Those steps report a hint so that the
// orchestrator can log and move on, while real failures still abort the run.
// Callers branch on IsHint, or on Is when one specific skip matters.
package hints

import "errors"

type hintErr struct {
	err error
}

func (h *hintErr) Error() string {
	if h == nil || h.err == nil {
		return "unknown hint"
	}
	return h.err.Error()
}
func (h *hintErr) IsHint() bool  { return true }
func (h *hintErr) Unwrap() error { return h.err }

// New creates a hint from a string.
func New(msg string) error {
	return &hintErr{err: errors.New(msg)}
}

// IsHint checks if any error in the chain behaves like a hint.
func IsHint(err error) bool {
	var h interface{ IsHint() bool }
	return errors.As(err, &h) && h.IsHint()
}

// Is checks if the error is a hint AND matches the target error.
func Is(err, target error) bool {
	return IsHint(err) && errors.Is(err, target)
}
