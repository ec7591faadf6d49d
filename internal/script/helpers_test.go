package script

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const languageFake ScriptLanguage = "fake"

// handlerFunc is the behavior of one fake script, keyed by file name
type handlerFunc func(ctx context.Context, event ScriptEvent, args EventArgs) error

// fakeEngine compiles anything except content containing "SYNTAX ERROR" and
// records every invocation by file name.
type fakeEngine struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{handlers: make(map[string]handlerFunc)}
}

func (e *fakeEngine) on(name string, fn handlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = fn
}

func (e *fakeEngine) invoked() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

func (e *fakeEngine) Compile(script *Script) (*CompiledScript, error) {
	if strings.Contains(script.Content, "SYNTAX ERROR") {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "unexpected token", nil)
	}
	return &CompiledScript{
		Script: script,
		Events: declaredEvents(script, "//"),
	}, nil
}

func (e *fakeEngine) DeclaredEvents(compiled *CompiledScript) []ScriptEvent {
	return compiled.Events
}

func (e *fakeEngine) Invoke(ctx context.Context, compiled *CompiledScript, event ScriptEvent, args EventArgs) error {
	name := filepath.Base(compiled.Script.Path)

	e.mu.Lock()
	e.calls = append(e.calls, name)
	fn := e.handlers[name]
	e.mu.Unlock()

	if rec, ok := args.(*recordingArgs); ok {
		rec.seen = append(rec.seen, name)
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, event, args)
}

func (e *fakeEngine) SetSecurityLimits(SecurityLimits) error { return nil }

// recordingArgs remembers which handlers saw it during one dispatch
type recordingArgs struct {
	BaseArgs
	seen []string
}

func (a *recordingArgs) Fields() map[string]interface{} {
	return map[string]interface{}{}
}

// newFakeRegistry returns a registry over an in-memory filesystem whose only
// engine is a fakeEngine claiming ".fake" files.
func newFakeRegistry(t *testing.T, opts ...RegistryOption) (*Registry, afero.Fs, *fakeEngine) {
	t.Helper()

	fs := afero.NewMemMapFs()
	engine := newFakeEngine()
	factory := NewEmptyFactory()
	factory.Register(languageFake, engine, ".fake")

	opts = append([]RegistryOption{WithFs(fs)}, opts...)
	return NewRegistry(factory, opts...), fs, engine
}

func writeScript(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func handlerNames(regs []*Registration) []string {
	names := make([]string, 0, len(regs))
	for _, reg := range regs {
		names = append(names, filepath.Base(reg.Path))
	}
	return names
}
