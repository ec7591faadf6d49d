package script

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNoEngine is returned when no engine is registered for a language.
var ErrNoEngine = errors.New("no engine registered for language")

// Factory implements the EngineFactory interface
type Factory struct {
	mu         sync.RWMutex
	engines    map[ScriptLanguage]LanguageEngine
	extensions map[string]ScriptLanguage
}

// NewFactory creates a factory with the tengo and Lua engines registered
func NewFactory(limits SecurityLimits) *Factory {
	f := NewEmptyFactory()
	f.Register(LanguageTengo, NewTengoEngine(limits), ".tengo")
	f.Register(LanguageLua, NewLuaEngine(), ".lua")
	return f
}

// NewEmptyFactory creates a factory without any engines
func NewEmptyFactory() *Factory {
	return &Factory{
		engines:    make(map[ScriptLanguage]LanguageEngine),
		extensions: make(map[string]ScriptLanguage),
	}
}

// Register adds an engine for a language and claims the given file extensions
func (f *Factory) Register(language ScriptLanguage, engine LanguageEngine, extensions ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.engines[language] = engine
	for _, ext := range extensions {
		f.extensions[strings.ToLower(ext)] = language
	}
}

// EngineFor returns the engine for the specified language
func (f *Factory) EngineFor(language ScriptLanguage) (LanguageEngine, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	engine, ok := f.engines[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEngine, language)
	}
	return engine, nil
}

// LanguageForPath maps a file to a language by its extension
func (f *Factory) LanguageForPath(path string) (ScriptLanguage, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	language, ok := f.extensions[strings.ToLower(filepath.Ext(path))]
	return language, ok
}

// SetSecurityLimits applies limits to every registered engine
func (f *Factory) SetSecurityLimits(limits SecurityLimits) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for language, engine := range f.engines {
		if err := engine.SetSecurityLimits(limits); err != nil {
			return fmt.Errorf("failed to set limits for %s: %w", language, err)
		}
	}
	return nil
}

// SupportedLanguages returns all supported script languages
func (f *Factory) SupportedLanguages() []ScriptLanguage {
	f.mu.RLock()
	defer f.mu.RUnlock()

	languages := make([]ScriptLanguage, 0, len(f.engines))
	for language := range f.engines {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i] < languages[j] })
	return languages
}
