package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/scripthost/internal/pubsub"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
)

// Options configures an Engine
type Options struct {
	// Dirs are the script directories, loaded in order.
	Dirs []string

	// HotReload starts the file monitor on Initialize.
	HotReload bool

	// ReloadDebounce is the quiet period before a changed file is reloaded.
	ReloadDebounce time.Duration

	// Limits are applied to every language engine.
	Limits SecurityLimits

	// Events is the event catalog. The default catalog is used when empty.
	Events EventSet
}

// Dependencies holds the services the Engine requires to operate
type Dependencies struct {
	Options   Options
	Fs        afero.Fs
	Publisher pubsub.Publisher
	Tracer    trace.Tracer
}

// Engine ties the registry, dispatcher and monitor together
type Engine struct {
	options    Options
	factory    *Factory
	registry   *Registry
	dispatcher *Dispatcher
	monitor    *Monitor
	reporter   *ErrorReporter
}

// NewEngine creates a new script engine with the given dependencies
func NewEngine(deps Dependencies) *Engine {
	opts := deps.Options
	if opts.Events.Len() == 0 {
		opts.Events = DefaultEventSet()
	}
	if opts.ReloadDebounce <= 0 {
		opts.ReloadDebounce = DefaultReloadDebounce
	}
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	reporter := NewErrorReporter()
	factory := NewFactory(opts.Limits)

	registryOpts := []RegistryOption{
		WithFs(fs),
		WithEventSet(opts.Events),
		WithReporter(reporter),
	}
	if deps.Publisher != nil {
		registryOpts = append(registryOpts, WithPublisher(deps.Publisher))
	}
	registry := NewRegistry(factory, registryOpts...)

	dispatcherOpts := []DispatcherOption{
		WithErrorReporter(reporter),
		WithLimits(Limits{MaxExecutionTime: opts.Limits.MaxExecutionTime}),
	}
	if deps.Tracer != nil {
		dispatcherOpts = append(dispatcherOpts, WithTracer(deps.Tracer))
	}

	return &Engine{
		options:    opts,
		factory:    factory,
		registry:   registry,
		dispatcher: NewDispatcher(registry, dispatcherOpts...),
		monitor: NewMonitor(registry,
			WithDebounce(opts.ReloadDebounce),
			WithMonitorFs(fs),
			WithMonitorReporter(reporter),
		),
		reporter: reporter,
	}
}

// Initialize loads every configured directory and starts hot reload when enabled
func (e *Engine) Initialize(ctx context.Context) (LoadReport, error) {
	slog.Info("Initializing script engine",
		"dirs", e.options.Dirs,
		"hot_reload", e.options.HotReload,
		"languages", e.factory.SupportedLanguages(),
	)

	report := e.registry.ReloadAll(e.options.Dirs...)

	if e.options.HotReload {
		if err := e.monitor.Start(ctx, e.options.Dirs); err != nil {
			// Scripts stay loaded; only live reload is lost.
			slog.Error("Failed to start script monitor", "error", err)
		}
	}

	slog.Info("Script engine initialized",
		"total_scripts", e.registry.Snapshot().Len(),
		"failed", report.Failed(),
	)
	return report, nil
}

// Invoke dispatches an event to its handlers
func (e *Engine) Invoke(ctx context.Context, event ScriptEvent, factory ArgsFactory) EventArgs {
	return e.dispatcher.Invoke(ctx, event, factory)
}

// InvokeWithResult dispatches an event and returns the dispatch record
func (e *Engine) InvokeWithResult(ctx context.Context, event ScriptEvent, factory ArgsFactory) *Dispatch {
	return e.dispatcher.InvokeWithResult(ctx, event, factory)
}

// HasHandlers reports whether any script is bound to event
func (e *Engine) HasHandlers(event ScriptEvent) bool {
	return e.dispatcher.HasHandlers(event)
}

// Reload rebuilds the registry from the configured directories
func (e *Engine) Reload() LoadReport {
	return e.registry.ReloadAll(e.options.Dirs...)
}

// ResolveEvent maps a name onto the event catalog
func (e *Engine) ResolveEvent(name string) (ScriptEvent, error) {
	event, ok := e.options.Events.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown event %q", name)
	}
	return event, nil
}

// Events returns the event catalog
func (e *Engine) Events() EventSet {
	return e.options.Events
}

// Dirs returns the configured script directories
func (e *Engine) Dirs() []string {
	return e.options.Dirs
}

// Snapshot returns the active registry snapshot
func (e *Engine) Snapshot() *Snapshot {
	return e.registry.Snapshot()
}

// Registrations returns all loaded scripts in load order
func (e *Engine) Registrations() []*Registration {
	return e.registry.Registrations()
}

// SupportedLanguages returns all supported script languages
func (e *Engine) SupportedLanguages() []ScriptLanguage {
	return e.factory.SupportedLanguages()
}

// SetSecurityLimits applies new limits to every language engine. Loaded
// scripts keep the limits they were compiled with until the next Reload, and
// the dispatch watchdog keeps its startup value.
func (e *Engine) SetSecurityLimits(limits SecurityLimits) error {
	if err := e.factory.SetSecurityLimits(limits); err != nil {
		return fmt.Errorf("failed to apply security limits: %w", err)
	}
	LogSystem(slog.LevelInfo, "Script security limits updated",
		slog.Any("allowed_packages", limits.AllowedPackages),
	)
	return nil
}

// ErrorSummary returns aggregated error statistics
func (e *Engine) ErrorSummary() *ErrorSummary {
	return e.reporter.Summary()
}

// ClearErrors clears error tracking history
func (e *Engine) ClearErrors() {
	e.reporter.Clear()
}

// Shutdown stops the monitor
func (e *Engine) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down script engine")
	e.monitor.Stop()
	slog.Info("Script engine shutdown complete")
	return nil
}
