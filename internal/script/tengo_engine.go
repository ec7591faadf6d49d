package script

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// TengoEngine implements the LanguageEngine interface for Tengo scripts
type TengoEngine struct {
	mu             sync.RWMutex
	securityLimits SecurityLimits
}

// NewTengoEngine creates a new Tengo engine with the given security limits
func NewTengoEngine(limits SecurityLimits) *TengoEngine {
	return &TengoEngine{
		securityLimits: limits,
	}
}

// SetSecurityLimits configures resource and security constraints.
// Scripts compiled earlier keep the modules they were compiled with.
func (e *TengoEngine) SetSecurityLimits(limits SecurityLimits) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.securityLimits = limits
	return nil
}

// Compile prepares a script for invocation. The program is compiled once with
// placeholder globals; every invocation runs a clone of it.
func (e *TengoEngine) Compile(script *Script) (*CompiledScript, error) {
	startTime := time.Now()

	tengoScript := tengo.NewScript([]byte(script.Content))
	tengoScript.SetImports(e.buildModuleMap())

	// The globals must exist at compile time so Set can replace them later.
	if err := tengoScript.Add("event", ""); err != nil {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "failed to declare event variable", err)
	}
	if err := tengoScript.Add("args", map[string]interface{}{}); err != nil {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "failed to declare args variable", err)
	}
	if err := tengoScript.Add("log", tengoLogFunction(script.Path)); err != nil {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "failed to add logging function", err)
	}

	compiled, err := tengoScript.Compile()
	if err != nil {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "failed to compile Tengo script", err)
	}

	slog.Debug("Tengo script compiled successfully",
		"path", script.Path,
		"compilation_time", time.Since(startTime),
	)

	return &CompiledScript{
		Script:   script,
		Events:   declaredEvents(script, "//"),
		Compiled: compiled,
	}, nil
}

// DeclaredEvents returns the events named in the script header
func (e *TengoEngine) DeclaredEvents(compiled *CompiledScript) []ScriptEvent {
	return compiled.Events
}

// Invoke runs the script once for an event. The script sees the globals
// `event` and `args`; flags it sets on `args` are copied back.
func (e *TengoEngine) Invoke(ctx context.Context, compiled *CompiledScript, event ScriptEvent, args EventArgs) error {
	program, ok := compiled.Compiled.(*tengo.Compiled)
	if !ok {
		return NewRuntimeError(ErrorTypeExecution, compiled.Script.Path, event,
			"invalid compiled script type for Tengo engine", nil)
	}

	run := program.Clone()
	if err := run.Set("event", string(event)); err != nil {
		return NewRuntimeError(ErrorTypeExecution, compiled.Script.Path, event, "failed to set event variable", err)
	}
	if err := run.Set("args", scriptPayload(args)); err != nil {
		return NewRuntimeError(ErrorTypeExecution, compiled.Script.Path, event, "failed to set args variable", err)
	}

	if err := run.RunContext(ctx); err != nil {
		if ctx.Err() != nil {
			return NewRuntimeError(ErrorTypeTimeout, compiled.Script.Path, event, "script execution cancelled", err)
		}
		return NewRuntimeError(ErrorTypeExecution, compiled.Script.Path, event, "script execution failed", err)
	}

	if values := run.Get("args").Map(); values != nil {
		applyFlags(args, values)
	}
	return nil
}

// buildModuleMap creates the allowed modules map based on security limits
func (e *TengoEngine) buildModuleMap() *tengo.ModuleMap {
	e.mu.RLock()
	allowed := e.securityLimits.AllowedPackages
	e.mu.RUnlock()

	modules := tengo.NewModuleMap()
	for _, pkg := range allowed {
		if module, exists := stdlib.BuiltinModules[pkg]; exists {
			modules.AddBuiltinModule(pkg, module)
			continue
		}
		if source, exists := stdlib.SourceModules[pkg]; exists {
			modules.AddSourceModule(pkg, []byte(source))
			continue
		}
		slog.Warn("Unknown Tengo module in allowed packages", "module", pkg)
	}

	return modules
}

// tengoLogFunction exposes log(...) to scripts, routed to slog
func tengoLogFunction(path string) *tengo.UserFunction {
	return &tengo.UserFunction{
		Name: "log",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) == 0 {
				return nil, tengo.ErrWrongNumArguments
			}

			parts := make([]string, 0, len(args))
			for _, arg := range args {
				if s, ok := tengo.ToString(arg); ok {
					parts = append(parts, s)
				} else {
					parts = append(parts, arg.String())
				}
			}

			slog.Info("Script log", "message", strings.Join(parts, " "), "path", path, "source", "tengo_script")
			return tengo.UndefinedValue, nil
		},
	}
}
