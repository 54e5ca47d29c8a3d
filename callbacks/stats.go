package callbacks

import (
	"context"
	"sync/atomic"

	"github.com/effective-security/askmodel/dispatcher"
)

// RunStats is a snapshot of the tool call counters.
type RunStats struct {
	ToolsCalls          uint32 `json:"tools_calls" yaml:"tools_calls"`
	ToolsCallsSucceeded uint32 `json:"tools_calls_succeeded" yaml:"tools_calls_succeeded"`
	ToolsCallsFailed    uint32 `json:"tools_calls_failed" yaml:"tools_calls_failed"`
}

// Stats counts the tool calls for the lifetime of the process.
type Stats struct {
	calls     atomic.Uint32
	succeeded atomic.Uint32
	failed    atomic.Uint32
}

func NewStats() *Stats {
	return &Stats{}
}

// GetStats returns a snapshot of the counters.
func (s *Stats) GetStats() RunStats {
	return RunStats{
		ToolsCalls:          s.calls.Load(),
		ToolsCallsSucceeded: s.succeeded.Load(),
		ToolsCallsFailed:    s.failed.Load(),
	}
}

func (s *Stats) OnToolStart(ctx context.Context, toolName string, args map[string]any) {
	s.calls.Add(1)
}

func (s *Stats) OnToolEnd(ctx context.Context, toolName string, args *dispatcher.ResolvedArguments, resp *dispatcher.Envelope) {
	s.succeeded.Add(1)
}

func (s *Stats) OnToolError(ctx context.Context, toolName string, err error) {
	s.failed.Add(1)
}
