// Package dispatcher implements the Tool Dispatcher (spec §4.7): a registry
// mapping tool name to { schema, handler }, argument validation,
// per-caller rate limiting, and envelope shaping, wrapping every handler
// invocation in an OpenTelemetry span and panic recovery.
//
// Shape is adapted from the teacher's agent/protocol/mcp.MCPHandler.dispatch
// (a method-name switch returning a JSON-RPC envelope); generalized here to
// a data-driven registry since this kernel's tool set is fixed at startup
// rather than negotiated per LLM session.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetricsRecorder receives one observation per completed tool call. A
// *metrics.Collector satisfies this by duck typing so the dispatcher
// doesn't need to import the metrics package.
type MetricsRecorder interface {
	RecordToolCall(tool string, isError bool, duration time.Duration)
}

// WithMetrics attaches a recorder that observes every tool call's outcome
// and duration.
func WithMetrics(rec MetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = rec }
}

// Handler executes one tool call inside the dispatcher's envelope and
// recovery machinery. It receives the already-validated caller identity
// and the raw argument payload so it can decode into its own typed input.
type Handler func(ctx context.Context, call Call) (any, error)

// Call carries one inbound tool invocation.
type Call struct {
	Tool string
	Args json.RawMessage
}

// ToolSpec describes one registered tool: its JSON Schema (for
// tools/list) and the handler that implements it.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Dispatcher is the tool registry plus the per-call pipeline (validate,
// rate-limit, trace, recover, shape reply) described in spec §4.7.
//
// In-flight calls are bounded by sem, a buffered channel sized
// max(runtime.NumCPU(), 2), the same way the teacher's
// internal/database.PoolConfig sizes its connection pool off the number of
// CPUs; wg lets Wait block on whatever is still running to finish before a
// server shuts down the transports underneath it.
type Dispatcher struct {
	tools    map[string]ToolSpec
	limiters *limiterSet
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  MetricsRecorder
	sem      chan struct{}
	wg       sync.WaitGroup
}

// DefaultConcurrency is the bounded semaphore's default size.
func DefaultConcurrency() int {
	if n := runtime.NumCPU(); n > 2 {
		return n
	}
	return 2
}

// WithConcurrency overrides the default bounded semaphore size.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = make(chan struct{}, n)
		}
	}
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithRateLimit overrides the default per-caller token bucket.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) { d.limiters = newLimiterSet(perSecond, burst) }
}

// WithLogger attaches a structured logger used for panic/error logging.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tools:    make(map[string]ToolSpec),
		limiters: newLimiterSet(DefaultRateLimit, DefaultRateBurst),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("agentmail/dispatcher"),
		sem:      make(chan struct{}, DefaultConcurrency()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a tool to the registry. Registering a name twice panics;
// this only happens at startup wiring time, never on the request path.
func (d *Dispatcher) Register(spec ToolSpec) {
	if _, exists := d.tools[spec.Name]; exists {
		panic(fmt.Sprintf("dispatcher: tool %q registered twice", spec.Name))
	}
	d.tools[spec.Name] = spec
}

// ToolDefinition is one entry of the tools/list reply (spec §6.2).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListTools returns every registered tool's definition, stable-ordered by
// name so tools/list is identical across transports and across calls
// within one running process (spec §4.7).
func (d *Dispatcher) ListTools() []ToolDefinition {
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		spec := d.tools[name]
		defs = append(defs, ToolDefinition{Name: spec.Name, Description: spec.Description, InputSchema: spec.InputSchema})
	}
	return defs
}

// callerKey identifies the caller for rate-limiting purposes: rate limits
// bind to (project_key, agent_name) pairs. Both are best-effort sniffed
// out of the raw arguments since every tool takes them under those names.
func callerKey(args json.RawMessage) string {
	var probe struct {
		ProjectKey string `json:"project_key"`
		AgentName  string `json:"agent_name"`
		SenderName string `json:"sender_name"`
	}
	_ = json.Unmarshal(args, &probe)
	name := probe.AgentName
	if name == "" {
		name = probe.SenderName
	}
	return probe.ProjectKey + "\x00" + name
}

// Call runs one tool invocation through validation, rate limiting,
// tracing, and panic recovery, returning a reply envelope that is never
// itself an error — failures are carried inside the envelope per §4.7.
func (d *Dispatcher) Call(ctx context.Context, tool string, args json.RawMessage) *Envelope {
	spec, ok := d.tools[tool]
	if !ok {
		return errorEnvelope(errs.Newf(errs.InvalidArgument, "unknown tool %q", tool))
	}

	if !d.limiters.allow(callerKey(args)) {
		return errorEnvelope(errs.Newf(errs.RateLimited, "rate limit exceeded for tool %q", tool))
	}

	d.wg.Add(1)
	defer d.wg.Done()
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	ctx, span := d.tracer.Start(ctx, "dispatcher.tool_call", trace.WithAttributes(
		attribute.String("tool.name", tool),
	))
	defer span.End()

	start := time.Now()
	result, err := d.invoke(ctx, spec, args)
	if err != nil {
		appErr, ok := errs.As(err)
		if !ok {
			appErr = errs.Newf(errs.InternalError, "%v", err)
		}
		span.SetStatus(codes.Error, string(appErr.Code))
		span.SetAttributes(attribute.String("tool.error_code", string(appErr.Code)))
		if d.metrics != nil {
			d.metrics.RecordToolCall(tool, true, time.Since(start))
		}
		return errorEnvelope(appErr)
	}

	span.SetStatus(codes.Ok, "")
	if d.metrics != nil {
		d.metrics.RecordToolCall(tool, false, time.Since(start))
	}
	return successEnvelope(result)
}

// Wait blocks until every in-flight Call has returned, for servers that
// want to drain the dispatcher before tearing down the transports above it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// invoke calls spec.Handler, recovering any panic into an InternalError
// carrying a correlation id so an operator can find the matching log line
// (spec §7).
func (d *Dispatcher) invoke(ctx context.Context, spec ToolSpec, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.logger.Error("tool handler panicked",
				zap.String("tool", spec.Name),
				zap.String("correlation_id", correlationID),
				zap.Any("panic", r),
			)
			err = errs.Newf(errs.InternalError, "internal error (correlation_id=%s)", correlationID)
		}
	}()
	return spec.Handler(ctx, Call{Tool: spec.Name, Args: args})
}
