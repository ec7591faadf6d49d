package script

import (
	"time"
)

// ScriptLanguage represents supported scripting languages
type ScriptLanguage string

const (
	LanguageTengo ScriptLanguage = "tengo"
	LanguageLua   ScriptLanguage = "lua"
)

// ErrorType categorizes different types of script errors
type ErrorType string

const (
	// Load errors keep a script out of the active snapshot.
	ErrorTypeSyntax              ErrorType = "syntax"
	ErrorTypeUnknownEvent        ErrorType = "unknown_event"
	ErrorTypeIO                  ErrorType = "io"
	ErrorTypeUnsupportedLanguage ErrorType = "unsupported_language"

	// Runtime errors are raised by a single handler invocation.
	ErrorTypeExecution ErrorType = "execution"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypePanic     ErrorType = "panic"

	// Monitor errors disable watching for one path.
	ErrorTypeMonitor ErrorType = "monitor"
)

// Script represents a script file read from disk
type Script struct {
	Path         string
	Language     ScriptLanguage
	Content      string
	LastModified time.Time
	Checksum     string
}

// CompiledScript represents a compiled script ready for invocation
type CompiledScript struct {
	Script   *Script
	Events   []ScriptEvent
	Compiled interface{} // language-specific compiled representation
}

// SecurityLimits defines resource constraints for script execution
type SecurityLimits struct {
	// MaxExecutionTime bounds a single handler call. Zero disables the watchdog.
	MaxExecutionTime time.Duration
	AllowedPackages  []string
}

// ScriptError represents script-related errors with context
type ScriptError struct {
	Type      ErrorType
	Path      string
	Event     ScriptEvent
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *ScriptError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// IsLoadError reports whether the error kept a script from being registered.
func (e *ScriptError) IsLoadError() bool {
	switch e.Type {
	case ErrorTypeSyntax, ErrorTypeUnknownEvent, ErrorTypeIO, ErrorTypeUnsupportedLanguage:
		return true
	}
	return false
}

// IsRuntimeError reports whether the error was raised by a handler invocation.
func (e *ScriptError) IsRuntimeError() bool {
	switch e.Type {
	case ErrorTypeExecution, ErrorTypeTimeout, ErrorTypePanic:
		return true
	}
	return false
}

// NewScriptError creates a new ScriptError with the given parameters
func NewScriptError(errorType ErrorType, path, message string, cause error) *ScriptError {
	return &ScriptError{
		Type:      errorType,
		Path:      path,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewRuntimeError creates a ScriptError for a failed handler invocation
func NewRuntimeError(errorType ErrorType, path string, event ScriptEvent, message string, cause error) *ScriptError {
	err := NewScriptError(errorType, path, message, cause)
	err.Event = event
	return err
}
