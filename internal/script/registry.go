package script

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/scripthost/internal/pubsub"
	"github.com/spf13/afero"
)

// Lifecycle notifications published by the registry
var (
	ScriptLoaded     = pubsub.NewEvent[LifecycleNotice]("script.loaded", "A script was registered or replaced")
	ScriptUnloaded   = pubsub.NewEvent[LifecycleNotice]("script.unloaded", "A script was removed from the registry")
	ScriptLoadFailed = pubsub.NewEvent[LifecycleNotice]("script.load_failed", "A script could not be loaded")
)

// Registry owns every loaded script and the active snapshot.
//
// Readers call Snapshot and never block. Writers build a new snapshot and
// install it with a single atomic store while holding mu.
type Registry struct {
	mu       sync.Mutex
	active   atomic.Pointer[Snapshot]
	sequence atomic.Uint64

	fs        afero.Fs
	factory   EngineFactory
	events    EventSet
	publisher pubsub.Publisher
	reporter  *ErrorReporter
}

// LoadFailure records why one file was not registered
type LoadFailure struct {
	Path string
	Err  error
}

// LoadReport summarizes a batch load
type LoadReport struct {
	Succeeded int
	Failures  []LoadFailure
}

// Failed returns the number of files that could not be loaded
func (r LoadReport) Failed() int { return len(r.Failures) }

func (r *LoadReport) merge(other LoadReport) {
	r.Succeeded += other.Succeeded
	r.Failures = append(r.Failures, other.Failures...)
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithFs reads scripts from the given filesystem instead of the OS
func WithFs(fs afero.Fs) RegistryOption {
	return func(r *Registry) { r.fs = fs }
}

// WithEventSet sets the catalog declared events are checked against
func WithEventSet(events EventSet) RegistryOption {
	return func(r *Registry) { r.events = events }
}

// WithPublisher publishes lifecycle notifications to p
func WithPublisher(p pubsub.Publisher) RegistryOption {
	return func(r *Registry) { r.publisher = p }
}

// WithReporter records load failures in er
func WithReporter(er *ErrorReporter) RegistryOption {
	return func(r *Registry) { r.reporter = er }
}

// NewRegistry creates an empty registry
func NewRegistry(factory EngineFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		fs:      afero.NewOsFs(),
		factory: factory,
		events:  DefaultEventSet(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.active.Store(NewSnapshot(0, nil))
	return r
}

// Snapshot returns the active snapshot
func (r *Registry) Snapshot() *Snapshot {
	return r.active.Load()
}

// Events returns the event catalog
func (r *Registry) Events() EventSet {
	return r.events
}

// Swap installs next as the active snapshot and returns the previous one
func (r *Registry) Swap(next *Snapshot) *Snapshot {
	if next == nil {
		next = NewSnapshot(0, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.Swap(next)
}

// IsEligible reports whether an engine handles the file's extension
func (r *Registry) IsEligible(path string) bool {
	_, ok := r.factory.LanguageForPath(path)
	return ok
}

// Load compiles the script at path and registers it, replacing any earlier
// registration of the same path. A failed load leaves the snapshot untouched.
func (r *Registry) Load(path string) (*Registration, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, NewScriptError(ErrorTypeIO, path, "failed to resolve script path", err)
	}

	reg, err := r.compile(absPath)
	if err != nil {
		r.loadFailed(absPath, err)
		return nil, err
	}

	r.mu.Lock()
	current := r.active.Load()
	r.active.Store(NewSnapshot(current.Version()+1, current.withRegistration(reg)))
	r.mu.Unlock()

	LogLifecycle(slog.LevelInfo, "Loaded script", absPath,
		slog.String("language", string(reg.Language)),
		slog.Any("events", reg.Events),
	)
	r.notify(ScriptLoaded, absPath, reg, nil)
	return reg, nil
}

// Unload removes the registration loaded from path
func (r *Registry) Unload(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	r.mu.Lock()
	current := r.active.Load()
	remaining, ok := current.withoutPath(absPath)
	if ok {
		r.active.Store(NewSnapshot(current.Version()+1, remaining))
	}
	r.mu.Unlock()

	if ok {
		LogLifecycle(slog.LevelInfo, "Unloaded script", absPath)
		r.notify(ScriptUnloaded, absPath, nil, nil)
	}
	return ok
}

// LoadAll loads every eligible script below dir and installs them with a
// single swap. Per-file failures are collected, never fatal.
func (r *Registry) LoadAll(dir string) LoadReport {
	regs, report := r.collect(dir)
	if len(regs) == 0 {
		return report
	}

	r.mu.Lock()
	current := r.active.Load()
	entries := current.Registrations()
	for _, reg := range regs {
		entries = NewSnapshot(0, entries).withRegistration(reg)
	}
	r.active.Store(NewSnapshot(current.Version()+1, entries))
	r.mu.Unlock()

	for _, reg := range regs {
		r.notify(ScriptLoaded, reg.Path, reg, nil)
	}
	return report
}

// ReloadAll rebuilds the snapshot from scratch out of the given directories.
func (r *Registry) ReloadAll(dirs ...string) LoadReport {
	var (
		all    []*Registration
		report LoadReport
	)
	for _, dir := range dirs {
		regs, dirReport := r.collect(dir)
		all = append(all, regs...)
		report.merge(dirReport)
	}

	entries := dedupeByPath(all)
	r.mu.Lock()
	previous := r.active.Load()
	next := NewSnapshot(previous.Version()+1, entries)
	r.active.Store(next)
	r.mu.Unlock()

	for _, reg := range previous.Registrations() {
		if _, ok := next.Lookup(reg.Path); !ok {
			r.notify(ScriptUnloaded, reg.Path, nil, nil)
		}
	}
	for _, reg := range entries {
		r.notify(ScriptLoaded, reg.Path, reg, nil)
	}

	LogSystem(slog.LevelInfo, "Rebuilt script registry",
		slog.Int("loaded", report.Succeeded),
		slog.Int("failed", report.Failed()),
	)
	return report
}

// Registrations returns all registrations of the active snapshot
func (r *Registry) Registrations() []*Registration {
	return r.Snapshot().Registrations()
}

// collect compiles every eligible file below dir without touching the snapshot.
func (r *Registry) collect(dir string) ([]*Registration, LoadReport) {
	var (
		regs   []*Registration
		report LoadReport
	)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		report.Failures = append(report.Failures, LoadFailure{
			Path: dir,
			Err:  NewScriptError(ErrorTypeIO, dir, "failed to resolve script directory", err),
		})
		return nil, report
	}

	walkErr := afero.Walk(r.fs, absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == absDir {
				return err
			}
			failure := NewScriptError(ErrorTypeIO, path, "failed to read script", err)
			report.Failures = append(report.Failures, LoadFailure{Path: path, Err: failure})
			r.loadFailed(path, failure)
			return nil
		}
		if info.IsDir() || !r.IsEligible(path) {
			return nil
		}

		reg, err := r.compile(path)
		if err != nil {
			report.Failures = append(report.Failures, LoadFailure{Path: path, Err: err})
			r.loadFailed(path, err)
			return nil
		}

		regs = append(regs, reg)
		report.Succeeded++
		return nil
	})
	if walkErr != nil {
		failure := NewScriptError(ErrorTypeIO, absDir, "failed to scan script directory", walkErr)
		report.Failures = append(report.Failures, LoadFailure{Path: absDir, Err: failure})
		r.loadFailed(absDir, failure)
	}

	LogSystem(slog.LevelInfo, "Loaded scripts from directory",
		slog.String("dir", absDir),
		slog.Int("loaded", report.Succeeded),
		slog.Int("failed", report.Failed()),
	)
	return regs, report
}

// compile reads, compiles and validates one script into a registration.
func (r *Registry) compile(path string) (*Registration, error) {
	language, ok := r.factory.LanguageForPath(path)
	if !ok {
		return nil, NewScriptError(ErrorTypeUnsupportedLanguage, path,
			fmt.Sprintf("no script engine for extension %q", filepath.Ext(path)), nil)
	}
	engine, err := r.factory.EngineFor(language)
	if err != nil {
		return nil, NewScriptError(ErrorTypeUnsupportedLanguage, path, "failed to get script engine", err)
	}

	content, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, NewScriptError(ErrorTypeIO, path, "failed to read script", err)
	}

	modTime := time.Now()
	if info, err := r.fs.Stat(path); err == nil {
		modTime = info.ModTime()
	}

	script := &Script{
		Path:         path,
		Language:     language,
		Content:      string(content),
		LastModified: modTime,
		Checksum:     generateChecksum(content),
	}

	compiled, err := engine.Compile(script)
	if err != nil {
		var scriptErr *ScriptError
		if errors.As(err, &scriptErr) {
			return nil, err
		}
		return nil, NewScriptError(ErrorTypeSyntax, path, "failed to compile script", err)
	}

	events, err := r.resolveEvents(path, engine.DeclaredEvents(compiled))
	if err != nil {
		return nil, err
	}

	return &Registration{
		ID:       uuid.NewString(),
		Path:     path,
		Language: language,
		Events:   events,
		Checksum: script.Checksum,
		LoadedAt: time.Now(),
		Sequence: r.sequence.Add(1),
		compiled: compiled,
		engine:   engine,
	}, nil
}

// resolveEvents maps declared names onto the catalog. Any unknown name, or
// no name at all, rejects the script.
func (r *Registry) resolveEvents(path string, declared []ScriptEvent) ([]ScriptEvent, error) {
	if len(declared) == 0 {
		return nil, NewScriptError(ErrorTypeUnknownEvent, path, "script declares no event binding", nil)
	}

	var (
		events  []ScriptEvent
		unknown []string
		seen    = make(map[ScriptEvent]bool, len(declared))
	)
	for _, name := range declared {
		event, ok := r.events.Lookup(string(name))
		if !ok {
			unknown = append(unknown, string(name))
			continue
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	if len(unknown) > 0 {
		return nil, NewScriptError(ErrorTypeUnknownEvent, path,
			fmt.Sprintf("unknown event binding: %s", strings.Join(unknown, ", ")), nil)
	}
	return events, nil
}

// loadFailed reports a load failure and publishes it.
func (r *Registry) loadFailed(path string, err error) {
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		scriptErr = NewScriptError(ErrorTypeIO, path, "failed to load script", err)
	}

	if r.reporter != nil {
		r.reporter.Report(scriptErr)
	} else {
		LogLifecycle(slog.LevelWarn, "Failed to load script", path, slog.String("error", err.Error()))
	}
	r.notify(ScriptLoadFailed, path, nil, err)
}

// notify publishes a lifecycle message when a publisher is configured.
func (r *Registry) notify(event pubsub.Event[LifecycleNotice], path string, reg *Registration, cause error) {
	if r.publisher == nil {
		return
	}

	notice := LifecycleNotice{Path: path}
	if reg != nil {
		notice.ID = reg.ID
		notice.Language = reg.Language
		notice.Events = reg.Events
	}
	if cause != nil {
		notice.Error = cause.Error()
	}

	if err := pubsub.Publish(context.Background(), r.publisher, event, notice); err != nil {
		slog.Error("Failed to publish script lifecycle notice", "topic", event.Name(), "path", path, "error", err)
	}
}

// LifecycleNotice is the payload of script lifecycle notifications
type LifecycleNotice struct {
	Path     string         `json:"path"`
	ID       string         `json:"id,omitempty"`
	Language ScriptLanguage `json:"language,omitempty"`
	Events   []ScriptEvent  `json:"events,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// dedupeByPath keeps the last registration for each path, in first-seen order.
func dedupeByPath(regs []*Registration) []*Registration {
	entries := make([]*Registration, 0, len(regs))
	for _, reg := range regs {
		entries = NewSnapshot(0, entries).withRegistration(reg)
	}
	return entries
}

// generateChecksum creates a checksum for script content
func generateChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("%x", hash)
}
