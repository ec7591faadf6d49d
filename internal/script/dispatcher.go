package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DispatchState is the progress of a single dispatch
type DispatchState int

const (
	DispatchIdle DispatchState = iota
	DispatchArgsBuilt
	DispatchDispatching
	DispatchStopped
	DispatchCompleted
)

func (s DispatchState) String() string {
	switch s {
	case DispatchIdle:
		return "idle"
	case DispatchArgsBuilt:
		return "args_built"
	case DispatchDispatching:
		return "dispatching"
	case DispatchStopped:
		return "stopped"
	case DispatchCompleted:
		return "completed"
	default:
		return fmt.Sprintf("DispatchState(%d)", int(s))
	}
}

// Dispatch records what happened during one Invoke
type Dispatch struct {
	Event           ScriptEvent
	State           DispatchState
	Args            EventArgs
	HandlersRun     int
	Errors          []*ScriptError
	SnapshotVersion uint64
	Elapsed         time.Duration
}

// Dispatched reports whether at least one handler was bound
func (d *Dispatch) Dispatched() bool {
	return d.State != DispatchIdle
}

// Limits bounds handler execution
type Limits struct {
	// MaxExecutionTime is the deadline for a single handler call. Zero disables it.
	MaxExecutionTime time.Duration
}

// Dispatcher invokes the handlers bound to an event.
//
// Every call takes exactly one snapshot from its source and runs on the
// caller's goroutine. Handler failures are reported and never returned.
type Dispatcher struct {
	source   SnapshotSource
	reporter *ErrorReporter
	limits   Limits
	tracer   trace.Tracer
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithLimits sets the per-handler watchdog
func WithLimits(limits Limits) DispatcherOption {
	return func(d *Dispatcher) { d.limits = limits }
}

// WithErrorReporter records handler failures in er
func WithErrorReporter(er *ErrorReporter) DispatcherOption {
	return func(d *Dispatcher) { d.reporter = er }
}

// WithTracer records a span per dispatch and per handler
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = tracer }
}

// NewDispatcher creates a dispatcher reading handlers from source
func NewDispatcher(source SnapshotSource, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		source: source,
		tracer: noop.NewTracerProvider().Tracer("scripthost"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HasHandlers reports whether any handler is bound to the event
func (d *Dispatcher) HasHandlers(event ScriptEvent) bool {
	return len(d.source.Snapshot().Handlers(event)) > 0
}

// Invoke dispatches an event and returns the shared args. It returns nil
// without calling factory when no handler is bound, and allocates nothing on
// that path.
func (d *Dispatcher) Invoke(ctx context.Context, event ScriptEvent, factory ArgsFactory) EventArgs {
	snapshot := d.source.Snapshot()
	if len(snapshot.Handlers(event)) == 0 {
		return nil
	}
	return d.dispatch(ctx, snapshot, event, factory).Args
}

// InvokeWithResult dispatches an event and returns the full dispatch record
func (d *Dispatcher) InvokeWithResult(ctx context.Context, event ScriptEvent, factory ArgsFactory) *Dispatch {
	return d.dispatch(ctx, d.source.Snapshot(), event, factory)
}

func (d *Dispatcher) dispatch(ctx context.Context, snapshot *Snapshot, event ScriptEvent, factory ArgsFactory) *Dispatch {
	handlers := snapshot.Handlers(event)

	result := &Dispatch{
		Event:           event,
		State:           DispatchIdle,
		SnapshotVersion: snapshot.Version(),
	}
	if len(handlers) == 0 {
		return result
	}

	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "script.dispatch "+string(event),
		trace.WithAttributes(
			attribute.String("script.event", string(event)),
			attribute.Int("script.handlers", len(handlers)),
			attribute.Int64("script.snapshot_version", int64(snapshot.Version())),
		),
	)
	defer span.End()

	args, factoryErr := buildArgs(event, factory)
	if factoryErr != nil {
		// No handler runs and the caller sees "no dispatch".
		result.Errors = append(result.Errors, factoryErr)
		d.report(factoryErr)
		span.RecordError(factoryErr)
		span.SetStatus(codes.Error, factoryErr.Error())
		return result
	}
	result.Args = args
	result.State = DispatchArgsBuilt

	for _, reg := range handlers {
		result.State = DispatchDispatching
		result.HandlersRun++

		if err := d.invokeHandler(ctx, reg, event, args); err != nil {
			result.Errors = append(result.Errors, err)
			d.report(err)
		}

		if args.Base().PropagationStopped {
			result.State = DispatchStopped
			break
		}
	}
	if result.State != DispatchStopped {
		result.State = DispatchCompleted
	}

	result.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("script.handlers_run", result.HandlersRun),
		attribute.Bool("script.propagation_stopped", result.State == DispatchStopped),
	)
	if len(result.Errors) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handler(s) failed", len(result.Errors)))
	}
	LogDispatch(event, result.HandlersRun, len(result.Errors), result.Elapsed, result.State == DispatchStopped)

	return result
}

// ArgsFactorySource is the path recorded for errors raised by an args factory.
const ArgsFactorySource = "(host args factory)"

// buildArgs calls the factory exactly once. A panicking factory yields a
// panic error and nil args.
func buildArgs(event ScriptEvent, factory ArgsFactory) (args EventArgs, scriptErr *ScriptError) {
	if factory == nil {
		return NewArgs(nil), nil
	}

	defer func() {
		if r := recover(); r != nil {
			args = nil
			scriptErr = NewRuntimeError(ErrorTypePanic, ArgsFactorySource, event, "args factory panicked", fmt.Errorf("%v", r))
		}
	}()

	if args = factory(); args != nil {
		return args, nil
	}
	return NewArgs(nil), nil
}

// invokeHandler runs one handler and converts any failure into a runtime error.
func (d *Dispatcher) invokeHandler(ctx context.Context, reg *Registration, event ScriptEvent, args EventArgs) (scriptErr *ScriptError) {
	ctx, span := d.tracer.Start(ctx, "script.handler",
		trace.WithAttributes(
			attribute.String("script.path", reg.Path),
			attribute.String("script.language", string(reg.Language)),
		),
	)
	defer span.End()

	if d.limits.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.limits.MaxExecutionTime)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			scriptErr = NewRuntimeError(ErrorTypePanic, reg.Path, event, "script handler panicked", fmt.Errorf("%v", r))
		}
		if scriptErr != nil {
			span.RecordError(scriptErr)
			span.SetStatus(codes.Error, scriptErr.Error())
		}
	}()

	err := reg.Invoke(ctx, event, args)
	if err == nil {
		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			LogExecution(slog.LevelDebug, "Script handler completed", reg.Path, event)
		}
		return nil
	}

	var typed *ScriptError
	if errors.As(err, &typed) && typed.IsRuntimeError() {
		if typed.Event == "" {
			typed.Event = event
		}
		return typed
	}
	if ctx.Err() != nil {
		return NewRuntimeError(ErrorTypeTimeout, reg.Path, event, "script handler exceeded its deadline", err)
	}
	return NewRuntimeError(ErrorTypeExecution, reg.Path, event, "script handler failed", err)
}

func (d *Dispatcher) report(err *ScriptError) {
	if d.reporter != nil {
		d.reporter.Report(err)
		return
	}
	LogError(slog.LevelWarn, err)
}
