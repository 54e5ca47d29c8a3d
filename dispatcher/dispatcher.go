package dispatcher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/pkg/metricskey"
	"github.com/effective-security/askmodel/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/askmodel", "dispatcher")

// Backend answers the routed tool calls.
type Backend interface {
	// AnswerText answers a text query.
	AnswerText(ctx context.Context, query, model string, temperature float64, maxTokens int) (string, error)
	// AnswerImage answers a query about the image at imageRef.
	AnswerImage(ctx context.Context, query, imageRef, model string, temperature float64, maxTokens int) (string, error)
}

type route struct {
	label string
	call  func(ctx context.Context, b Backend, args *ResolvedArguments) (string, error)
}

var routes = map[string]route{
	tools.AskModel: {
		label: "OpenAI Response",
		call: func(ctx context.Context, b Backend, args *ResolvedArguments) (string, error) {
			return b.AnswerText(ctx, args.Query, args.Model, args.Temperature, args.MaxOutputTokens)
		},
	},
	tools.AskModelVision: {
		label: "OpenAI Vision Response",
		call: func(ctx context.Context, b Backend, args *ResolvedArguments) (string, error) {
			return b.AnswerImage(ctx, args.Query, args.ImageReference, args.Model, args.Temperature, args.MaxOutputTokens)
		},
	},
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for dispatch failures.
func WithLogger(l *xlog.PackageLogger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithStrictValidation enables enforcement of the enum and range
// constraints before the backend is called.
func WithStrictValidation(strict bool) Option {
	return func(d *Dispatcher) {
		d.strict = strict
	}
}

// WithCallTimeout limits the duration of each call, zero means no limit.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithCallback sets the tool lifecycle callback.
func WithCallback(cb Callback) Option {
	return func(d *Dispatcher) {
		d.callback = cb
	}
}

// Dispatcher routes tool invocations to the backend.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	catalog  *tools.Catalog
	backend  Backend
	logger   *xlog.PackageLogger
	strict   bool
	timeout  time.Duration
	callback Callback
}

// New returns a Dispatcher for the tools in the catalog.
// Every tool in the catalog must have a backend route.
func New(catalog *tools.Catalog, backend Backend, opts ...Option) (*Dispatcher, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	for _, desc := range catalog.List() {
		if _, ok := routes[desc.Name]; !ok {
			return nil, errors.Newf("no route for tool: %s", desc.Name)
		}
	}

	d := &Dispatcher{
		catalog: catalog,
		backend: backend,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Catalog returns the catalog of the dispatched tools.
func (d *Dispatcher) Catalog() *tools.Catalog {
	return d.catalog
}

// Dispatch executes the invocation and returns the response envelope.
// Every failure, including a panic in the backend, is returned as
// an error envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation) (env *Envelope) {
	if inv == nil {
		inv = &Invocation{}
	}
	toolName := inv.ToolName

	desc, ok := d.catalog.Get(toolName)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		d.logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"tool", toolName,
		)
		return errorEnvelope(errors.Mark(errors.Newf("Unknown tool: %s", toolName), ErrValidation))
	}

	if len(inv.Arguments) == 0 {
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		d.logger.ContextKV(ctx, xlog.WARNING,
			"status", "no_arguments",
			"tool", toolName,
		)
		return errorEnvelope(errors.Mark(ErrNoArguments, ErrValidation))
	}

	if d.callback != nil {
		d.callback.OnToolStart(ctx, toolName, inv.Arguments)
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			env = d.failed(ctx, toolName, started, errors.Newf("internal error: %v", r))
		}
	}()

	args, err := Resolve(desc, inv.Arguments, d.strict)
	if err != nil {
		return d.failed(ctx, toolName, started, err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	rt := routes[toolName]
	text, err := rt.call(ctx, d.backend, args)
	if err != nil {
		return d.failed(ctx, toolName, started, err)
	}

	metricskey.PerfToolCall.MeasureSince(started, toolName)
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)

	env = okEnvelope(rt.label, text)
	if d.callback != nil {
		d.callback.OnToolEnd(ctx, toolName, args, env)
	}
	return env
}

func (d *Dispatcher) failed(ctx context.Context, toolName string, started time.Time, err error) *Envelope {
	metricskey.PerfToolCall.MeasureSince(started, toolName)
	metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)

	d.logger.ContextKV(ctx, xlog.ERROR,
		"status", "tool_failed",
		"tool", toolName,
		"kind", ErrorKind(err),
		"err", err.Error(),
	)
	if d.callback != nil {
		d.callback.OnToolError(ctx, toolName, err)
	}
	return errorEnvelope(err)
}
