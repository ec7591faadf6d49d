package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// LuaEngine implements the LanguageEngine interface for Lua scripts.
//
// An LState is not goroutine-safe, so each invocation runs the shared
// compiled prototype in a fresh sandboxed state.
type LuaEngine struct{}

// NewLuaEngine creates a new Lua engine
func NewLuaEngine() *LuaEngine {
	return &LuaEngine{}
}

// SetSecurityLimits configures resource and security constraints. The Lua
// sandbox is fixed (base, table, string and math libraries); execution time
// is bounded by the invocation context.
func (e *LuaEngine) SetSecurityLimits(limits SecurityLimits) error {
	return nil
}

// Compile parses the script into a function prototype
func (e *LuaEngine) Compile(script *Script) (*CompiledScript, error) {
	chunk, err := parse.Parse(strings.NewReader(script.Content), script.Path)
	if err != nil {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "failed to parse Lua script", err)
	}

	proto, err := lua.Compile(chunk, script.Path)
	if err != nil {
		return nil, NewScriptError(ErrorTypeSyntax, script.Path, "failed to compile Lua script", err)
	}

	return &CompiledScript{
		Script:   script,
		Events:   declaredEvents(script, "--"),
		Compiled: proto,
	}, nil
}

// DeclaredEvents returns the events named in the script header
func (e *LuaEngine) DeclaredEvents(compiled *CompiledScript) []ScriptEvent {
	return compiled.Events
}

// Invoke runs the script once for an event with globals `event`, `args` and `log`
func (e *LuaEngine) Invoke(ctx context.Context, compiled *CompiledScript, event ScriptEvent, args EventArgs) (err error) {
	proto, ok := compiled.Compiled.(*lua.FunctionProto)
	if !ok {
		return NewRuntimeError(ErrorTypeExecution, compiled.Script.Path, event,
			"invalid compiled script type for Lua engine", nil)
	}

	L := newSandboxedState()
	defer L.Close()
	if ctx.Done() != nil {
		L.SetContext(ctx)
	}

	L.SetGlobal("event", lua.LString(event))
	L.SetGlobal("args", toLValue(L, scriptPayload(args)))
	L.SetGlobal("log", L.NewFunction(luaLogFunction(compiled.Script.Path)))

	defer func() {
		if r := recover(); r != nil {
			err = NewRuntimeError(ErrorTypePanic, compiled.Script.Path, event, "lua panic", fmt.Errorf("%v", r))
		}
	}()

	L.Push(L.NewFunctionFromProto(proto))
	if callErr := L.PCall(0, lua.MultRet, nil); callErr != nil {
		if ctx.Err() != nil {
			return NewRuntimeError(ErrorTypeTimeout, compiled.Script.Path, event, "script execution cancelled", callErr)
		}
		return NewRuntimeError(ErrorTypeExecution, compiled.Script.Path, event, "script execution failed", callErr)
	}

	if tbl, ok := L.GetGlobal("args").(*lua.LTable); ok {
		applyFlags(args, luaFlags(tbl))
	}
	return nil
}

// newSandboxedState opens only the safe standard libraries.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os, debug and package stay closed, and so do the chunk loaders.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// luaFlags extracts the boolean control flags from the args table.
func luaFlags(tbl *lua.LTable) map[string]interface{} {
	values := make(map[string]interface{}, 2)
	for _, key := range []string{FieldPropagationStopped, FieldCancelled} {
		if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
			values[key] = bool(b)
		}
	}
	return values
}

// toLValue converts a payload value into its Lua representation.
func toLValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []interface{}:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(toLValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLValue(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// luaLogFunction exposes log(...) to scripts, routed to slog
func luaLogFunction(path string) lua.LGFunction {
	return func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		slog.Info("Script log", "message", strings.Join(parts, " "), "path", path, "source", "lua_script")
		return 0
	}
}
