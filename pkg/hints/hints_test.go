package hints_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/paulschiretz/venv-bootstrap/pkg/hints"
)

var (
	errEnvExists     = hints.New("environment already exists")
	errInstallFailed = errors.New("setup.py develop failed")
)

func TestIsHint(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil", nil, false},
		{"PlainError", errInstallFailed, false},
		{"Hint", errEnvExists, true},
		{"HintBehindFmtWrap", fmt.Errorf("create step: %w", errEnvExists), true},
		{"PlainBehindFmtWrap", fmt.Errorf("install step: %w", errInstallFailed), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hints.IsHint(tc.err); got != tc.expected {
				t.Errorf("IsHint() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("skipping: %w", errEnvExists)
	if !hints.Is(wrapped, errEnvExists) {
		t.Error("expected wrapped hint to match its sentinel")
	}
	if hints.Is(errInstallFailed, errInstallFailed) {
		t.Error("a plain error must not be reported as a hint, even when it matches")
	}
	if got := errEnvExists.Error(); got != "environment already exists" {
		t.Errorf("unexpected message %q", got)
	}
}
