package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/askmodel/dispatcher"
	"github.com/effective-security/askmodel/pkg/llmutils"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ dispatcher.Callback = (*Printer)(nil)
	_ dispatcher.Callback = (*PackageLogger)(nil)
	_ dispatcher.Callback = (*Fanout)(nil)
	_ dispatcher.Callback = (*Stats)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []dispatcher.Callback
}

func NewFanout(callbacks ...dispatcher.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback dispatcher.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnToolStart(ctx context.Context, toolName string, args map[string]any) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, toolName, args)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, toolName string, args *dispatcher.ResolvedArguments, resp *dispatcher.Envelope) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, toolName, args, resp)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, toolName string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, toolName, err)
	}
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnToolStart(ctx context.Context, toolName string, args map[string]any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", toolName)
	fmt.Fprintf(l.Out, "Input: %s\n", llmutils.ToJSON(args))
}

func (l *Printer) OnToolEnd(ctx context.Context, toolName string, args *dispatcher.ResolvedArguments, resp *dispatcher.Envelope) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s (%s)\n", toolName, args.Model)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", resp.Text)
	}
}

func (l *Printer) OnToolError(ctx context.Context, toolName string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", toolName, err.Error())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnToolStart(ctx context.Context, toolName string, args map[string]any) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", toolName,
		"input", llmutils.ToJSON(args),
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, toolName string, args *dispatcher.ResolvedArguments, resp *dispatcher.Envelope) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", toolName,
		"model", args.Model,
		"output_size", len(resp.Text),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, toolName string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", toolName,
		"kind", dispatcher.ErrorKind(err),
		"err", err.Error(),
	)
}
