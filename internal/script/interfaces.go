package script

import (
	"context"
)

// EngineFactory creates language-specific script engines
type EngineFactory interface {
	// EngineFor returns the engine responsible for the given language
	EngineFor(language ScriptLanguage) (LanguageEngine, error)

	// LanguageForPath maps a script file to its language by extension
	LanguageForPath(path string) (ScriptLanguage, bool)

	// SupportedLanguages returns all supported script languages
	SupportedLanguages() []ScriptLanguage
}

// LanguageEngine is the capability set every scripting language adapter provides.
// Registry and Dispatcher depend only on this interface.
type LanguageEngine interface {
	// Compile parses and prepares a script. Syntax problems are reported as
	// a ScriptError of type ErrorTypeSyntax.
	Compile(script *Script) (*CompiledScript, error)

	// DeclaredEvents returns the events the compiled script binds to
	DeclaredEvents(compiled *CompiledScript) []ScriptEvent

	// Invoke runs the compiled script for one event. Handlers communicate
	// back only through the flags on args.
	Invoke(ctx context.Context, compiled *CompiledScript, event ScriptEvent, args EventArgs) error

	// SetSecurityLimits configures resource and security constraints
	SetSecurityLimits(limits SecurityLimits) error
}

// SnapshotSource provides the active registry snapshot to readers
type SnapshotSource interface {
	Snapshot() *Snapshot
}

// Reloader is the part of the registry the file monitor drives
type Reloader interface {
	Load(path string) (*Registration, error)
	Unload(path string) bool
	IsEligible(path string) bool
}
