package dispatcher

import "context"

// Callback receives the tool call lifecycle events.
type Callback interface {
	OnToolStart(ctx context.Context, toolName string, args map[string]any)
	OnToolEnd(ctx context.Context, toolName string, args *ResolvedArguments, resp *Envelope)
	OnToolError(ctx context.Context, toolName string, err error)
}
