// Package metrics counts the external tool invocations of a run.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/paulschiretz/venv-bootstrap/pkg/plog"
)

// Metrics defines the interface for collecting and reporting tool statistics.
type Metrics interface {
	AddCommand(exitCode int, outputBytes int64, elapsed time.Duration)
	Log()
}

// RunMetrics holds the atomic counters of a run.
type RunMetrics struct {
	CommandsRun    atomic.Int64
	CommandsFailed atomic.Int64
	OutputBytes    atomic.Int64
	ToolTime       atomic.Int64 // nanoseconds
}

func (m *RunMetrics) AddCommand(exitCode int, outputBytes int64, elapsed time.Duration) {
	m.CommandsRun.Add(1)
	if exitCode != 0 {
		m.CommandsFailed.Add(1)
	}
	m.OutputBytes.Add(outputBytes)
	m.ToolTime.Add(int64(elapsed))
}

// Log prints a summary of the tool invocations.
func (m *RunMetrics) Log() {
	plog.Info("SUM",
		"commandsRun", m.CommandsRun.Load(),
		"commandsFailed", m.CommandsFailed.Load(),
		"outputBytes", m.OutputBytes.Load(),
		"toolTime", time.Duration(m.ToolTime.Load()).Round(time.Millisecond),
	)
}

// NoopMetrics disables collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddCommand(exitCode int, outputBytes int64, elapsed time.Duration) {}
func (m *NoopMetrics) Log()                                                              {}

var _ Metrics = (*RunMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
