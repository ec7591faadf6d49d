package script

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrorSeverity categorizes the impact of errors
type ErrorSeverity string

const (
	SeverityHigh   ErrorSeverity = "high"   // Script cannot run at all
	SeverityMedium ErrorSeverity = "medium" // Handler failed for one dispatch
	SeverityLow    ErrorSeverity = "low"    // Minor issues
)

// repeatedFailureThreshold promotes a recurring runtime failure to high severity.
const repeatedFailureThreshold = 3

// ErrorReporter records script errors. Dispatch reports each failed handler
// exactly once; the reporter counts occurrences per path, event and type.
type ErrorReporter struct {
	mu     sync.Mutex
	counts map[errorKey]int
	last   map[errorKey]*ScriptError
}

type errorKey struct {
	path      string
	event     ScriptEvent
	errorType ErrorType
}

// ErrorReport describes one reported error
type ErrorReport struct {
	Error           *ScriptError
	Severity        ErrorSeverity
	Occurrences     int
	FirstOccurrence bool
	SuggestedAction string
}

// ErrorSummary provides aggregated error information
type ErrorSummary struct {
	TotalErrors   int                 `json:"total_errors"`
	ErrorsByType  map[ErrorType]int   `json:"errors_by_type"`
	ErrorsByPath  map[string]int      `json:"errors_by_path"`
	ErrorsByEvent map[ScriptEvent]int `json:"errors_by_event"`
	Recent        []ErrorEntry        `json:"recent"`
	LastErrorTime time.Time           `json:"last_error_time"`
}

// ErrorEntry is the latest error for one path/event/type
type ErrorEntry struct {
	Path      string      `json:"path"`
	Event     ScriptEvent `json:"event,omitempty"`
	Type      ErrorType   `json:"type"`
	Message   string      `json:"message"`
	Count     int         `json:"count"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewErrorReporter creates an empty error reporter
func NewErrorReporter() *ErrorReporter {
	return &ErrorReporter{
		counts: make(map[errorKey]int),
		last:   make(map[errorKey]*ScriptError),
	}
}

// Report records and logs a script error
func (er *ErrorReporter) Report(err *ScriptError) *ErrorReport {
	key := errorKey{path: err.Path, event: err.Event, errorType: err.Type}

	er.mu.Lock()
	er.counts[key]++
	er.last[key] = err
	count := er.counts[key]
	er.mu.Unlock()

	report := &ErrorReport{
		Error:           err,
		Severity:        determineSeverity(err, count),
		Occurrences:     count,
		FirstOccurrence: count == 1,
		SuggestedAction: suggestAction(err),
	}
	logReport(report)
	return report
}

// Count returns how often an error of the type was reported for path and event
func (er *ErrorReporter) Count(path string, event ScriptEvent, errorType ErrorType) int {
	er.mu.Lock()
	defer er.mu.Unlock()
	return er.counts[errorKey{path: path, event: event, errorType: errorType}]
}

// Summary returns aggregated error statistics
func (er *ErrorReporter) Summary() *ErrorSummary {
	er.mu.Lock()
	defer er.mu.Unlock()

	summary := &ErrorSummary{
		ErrorsByType:  make(map[ErrorType]int),
		ErrorsByPath:  make(map[string]int),
		ErrorsByEvent: make(map[ScriptEvent]int),
		Recent:        make([]ErrorEntry, 0, len(er.counts)),
	}

	for key, count := range er.counts {
		summary.TotalErrors += count
		summary.ErrorsByType[key.errorType] += count
		summary.ErrorsByPath[key.path] += count
		if key.event != "" {
			summary.ErrorsByEvent[key.event] += count
		}

		last := er.last[key]
		summary.Recent = append(summary.Recent, ErrorEntry{
			Path:      key.path,
			Event:     key.event,
			Type:      key.errorType,
			Message:   last.Error(),
			Count:     count,
			Timestamp: last.Timestamp,
		})
		if last.Timestamp.After(summary.LastErrorTime) {
			summary.LastErrorTime = last.Timestamp
		}
	}

	sort.Slice(summary.Recent, func(i, j int) bool {
		return summary.Recent[i].Timestamp.After(summary.Recent[j].Timestamp)
	})
	return summary
}

// Clear drops the error history
func (er *ErrorReporter) Clear() {
	er.mu.Lock()
	er.counts = make(map[errorKey]int)
	er.last = make(map[errorKey]*ScriptError)
	er.mu.Unlock()

	slog.Info("Script error history cleared")
}

// determineSeverity categorizes error severity based on type and recurrence
func determineSeverity(err *ScriptError, count int) ErrorSeverity {
	switch {
	case err.IsLoadError(), err.Type == ErrorTypeMonitor:
		return SeverityHigh
	case err.Type == ErrorTypePanic:
		return SeverityHigh
	case err.IsRuntimeError() && count > repeatedFailureThreshold:
		return SeverityHigh
	case err.IsRuntimeError():
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// suggestAction provides actionable suggestions for error resolution
func suggestAction(err *ScriptError) string {
	switch err.Type {
	case ErrorTypeSyntax:
		return "Fix the syntax error; the script stays unregistered until it compiles."
	case ErrorTypeUnknownEvent:
		return "Declare a known event in the @events header or rename the file after an event."
	case ErrorTypeIO:
		return "Check that the script file or directory exists and is readable."
	case ErrorTypeUnsupportedLanguage:
		return "Use a file extension claimed by a registered script engine."
	case ErrorTypeExecution:
		return "Review script logic and the fields it reads from args."
	case ErrorTypeTimeout:
		return "Shorten the handler or raise SCRIPT_MAX_EXECUTION_TIME. Check for infinite loops."
	case ErrorTypePanic:
		if err.Path == ArgsFactorySource {
			return "Fix the host callback that builds the event args; no handler ran."
		}
		return "The script engine panicked; report the script that triggers it."
	case ErrorTypeMonitor:
		return "Hot reload is disabled for this directory; check permissions and watch limits."
	default:
		return "Review error details and script implementation."
	}
}

// logReport logs the error with a level matching its severity
func logReport(report *ErrorReport) {
	level := slog.LevelWarn
	if report.Severity == SeverityHigh {
		level = slog.LevelError
	}

	LogError(level, report.Error,
		slog.String("severity", string(report.Severity)),
		slog.Int("occurrences", report.Occurrences),
		slog.Bool("first_occurrence", report.FirstOccurrence),
		slog.String("suggestion", report.SuggestedAction),
	)
}
