package script

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"
)

// ScriptLogger provides centralized logging for the script system
type ScriptLogger struct {
	baseFields []slog.Attr
}

// NewScriptLogger creates a new script logger with base fields
func NewScriptLogger() *ScriptLogger {
	return &ScriptLogger{
		baseFields: []slog.Attr{
			slog.String("component", "script_engine"),
		},
	}
}

func (sl *ScriptLogger) fields(eventType string, extra int) []slog.Attr {
	fields := make([]slog.Attr, 0, len(sl.baseFields)+1+extra)
	fields = append(fields, sl.baseFields...)
	return append(fields, slog.String("event_type", eventType))
}

func scriptAttrs(path string) []slog.Attr {
	return []slog.Attr{
		slog.String("script", filepath.Base(path)),
		slog.String("path", path),
	}
}

// LogScriptExecution logs a handler invocation
func (sl *ScriptLogger) LogScriptExecution(level slog.Level, message string, path string, event ScriptEvent, additionalFields ...slog.Attr) {
	fields := sl.fields("script_execution", 3+len(additionalFields))
	fields = append(fields, scriptAttrs(path)...)
	fields = append(fields, slog.String("event", string(event)))
	fields = append(fields, additionalFields...)

	slog.LogAttrs(context.TODO(), level, message, fields...)
}

// LogScriptError logs script errors with their full context
func (sl *ScriptLogger) LogScriptError(level slog.Level, err *ScriptError, additionalFields ...slog.Attr) {
	fields := sl.fields("script_error", 7+len(additionalFields))
	fields = append(fields, scriptAttrs(err.Path)...)
	fields = append(fields,
		slog.String("error_type", string(err.Type)),
		slog.String("error_message", err.Message),
		slog.Time("error_timestamp", err.Timestamp),
	)
	if err.Event != "" {
		fields = append(fields, slog.String("event", string(err.Event)))
	}
	if err.Cause != nil {
		fields = append(fields, slog.String("cause", err.Cause.Error()))
	}
	fields = append(fields, additionalFields...)

	slog.LogAttrs(context.TODO(), level, "Script error", fields...)
}

// LogScriptLifecycle logs script lifecycle events (loading, unloading, etc.)
func (sl *ScriptLogger) LogScriptLifecycle(level slog.Level, message string, path string, additionalFields ...slog.Attr) {
	fields := sl.fields("script_lifecycle", 2+len(additionalFields))
	fields = append(fields, scriptAttrs(path)...)
	fields = append(fields, additionalFields...)

	slog.LogAttrs(context.TODO(), level, message, fields...)
}

// LogSystemEvent logs system-level script events
func (sl *ScriptLogger) LogSystemEvent(level slog.Level, message string, additionalFields ...slog.Attr) {
	fields := sl.fields("script_system", len(additionalFields))
	fields = append(fields, additionalFields...)

	slog.LogAttrs(context.TODO(), level, message, fields...)
}

// LogDispatchMetrics logs the outcome of one dispatch
func (sl *ScriptLogger) LogDispatchMetrics(event ScriptEvent, handlers, failed int, elapsed time.Duration, stopped bool) {
	level := slog.LevelDebug
	if failed > 0 {
		level = slog.LevelWarn
	}
	if !slog.Default().Enabled(context.Background(), level) {
		return
	}

	fields := sl.fields("script_dispatch", 5)
	fields = append(fields,
		slog.String("event", string(event)),
		slog.Int("handlers_run", handlers),
		slog.Int("handlers_failed", failed),
		slog.Duration("elapsed", elapsed),
		slog.Bool("propagation_stopped", stopped),
	)

	slog.LogAttrs(context.TODO(), level, "Script dispatch completed", fields...)
}

// LogHotReload logs hot-reload events
func (sl *ScriptLogger) LogHotReload(action string, path string, success bool, err error) {
	fields := sl.fields("hot_reload", 5)
	fields = append(fields, scriptAttrs(path)...)
	fields = append(fields,
		slog.String("action", action),
		slog.Bool("success", success),
	)
	if err != nil {
		fields = append(fields, slog.String("error", err.Error()))
	}

	level := slog.LevelInfo
	if !success {
		level = slog.LevelError
	}

	slog.LogAttrs(context.TODO(), level, "Script hot-reload "+action, fields...)
}

// Global script logger instance
var scriptLogger = NewScriptLogger()

// LogExecution logs a handler invocation
func LogExecution(level slog.Level, message string, path string, event ScriptEvent, additionalFields ...slog.Attr) {
	scriptLogger.LogScriptExecution(level, message, path, event, additionalFields...)
}

// LogError logs a script error
func LogError(level slog.Level, err *ScriptError, additionalFields ...slog.Attr) {
	scriptLogger.LogScriptError(level, err, additionalFields...)
}

// LogLifecycle logs a script lifecycle event
func LogLifecycle(level slog.Level, message string, path string, additionalFields ...slog.Attr) {
	scriptLogger.LogScriptLifecycle(level, message, path, additionalFields...)
}

// LogSystem logs a system-level event
func LogSystem(level slog.Level, message string, additionalFields ...slog.Attr) {
	scriptLogger.LogSystemEvent(level, message, additionalFields...)
}

// LogDispatch logs dispatch metrics
func LogDispatch(event ScriptEvent, handlers, failed int, elapsed time.Duration, stopped bool) {
	scriptLogger.LogDispatchMetrics(event, handlers, failed, elapsed, stopped)
}

// LogHotReloadEvent logs hot-reload events
func LogHotReloadEvent(action string, path string, success bool, err error) {
	scriptLogger.LogHotReload(action, path, success, err)
}
