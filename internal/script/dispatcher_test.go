package script

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadChatHandlers(t *testing.T, registry *Registry, fs afero.Fs, names ...string) {
	t.Helper()
	for _, name := range names {
		writeScript(t, fs, "/scripts/chatMessage."+name+".fake", "ok")
	}
	report := registry.LoadAll("/scripts")
	require.Empty(t, report.Failures)
}

func TestDispatcher_NoHandlersSkipsFactory(t *testing.T) {
	registry, _, _ := newFakeRegistry(t)
	dispatcher := NewDispatcher(registry)

	var built int32
	factory := func() EventArgs {
		atomic.AddInt32(&built, 1)
		return NewArgs(nil)
	}

	args := dispatcher.Invoke(context.Background(), EventChatMessage, factory)
	assert.Nil(t, args, "nil means no dispatch occurred")
	assert.Equal(t, int32(0), atomic.LoadInt32(&built))

	result := dispatcher.InvokeWithResult(context.Background(), EventChatMessage, factory)
	assert.Equal(t, DispatchIdle, result.State)
	assert.False(t, result.Dispatched())
	assert.False(t, dispatcher.HasHandlers(EventChatMessage))
	assert.False(t, Stopped(args))
}

func TestDispatcher_NoHandlersDoesNotAllocate(t *testing.T) {
	if raceEnabled {
		t.Skip("allocation counts are not reliable under the race detector")
	}
	registry, fs, _ := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1")
	dispatcher := NewDispatcher(registry)
	ctx := context.Background()

	allocs := testing.AllocsPerRun(1000, func() {
		dispatcher.Invoke(ctx, EventChunkMapCalculated, nil)
	})
	assert.Zero(t, allocs)
}

func TestDispatcher_RunsAllHandlersInOrder(t *testing.T) {
	registry, fs, engine := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1", "2", "3", "4")
	dispatcher := NewDispatcher(registry)

	var built int32
	args := &recordingArgs{}
	result := dispatcher.InvokeWithResult(context.Background(), EventChatMessage, func() EventArgs {
		atomic.AddInt32(&built, 1)
		return args
	})

	want := []string{"chatMessage.1.fake", "chatMessage.2.fake", "chatMessage.3.fake", "chatMessage.4.fake"}
	assert.Equal(t, int32(1), built, "factory runs exactly once")
	assert.Equal(t, want, args.seen)
	assert.Equal(t, want, engine.invoked())
	assert.Equal(t, DispatchCompleted, result.State)
	assert.Equal(t, 4, result.HandlersRun)
	assert.Same(t, args, result.Args)
	assert.True(t, dispatcher.HasHandlers(EventChatMessage))
}

func TestDispatcher_StopsAfterHandlerK(t *testing.T) {
	registry, fs, engine := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1", "2", "3", "4")
	engine.on("chatMessage.2.fake", func(ctx context.Context, event ScriptEvent, args EventArgs) error {
		args.Base().StopPropagation()
		return nil
	})
	dispatcher := NewDispatcher(registry)

	result := dispatcher.InvokeWithResult(context.Background(), EventChatMessage, func() EventArgs { return NewArgs(nil) })

	assert.Equal(t, []string{"chatMessage.1.fake", "chatMessage.2.fake"}, engine.invoked())
	assert.Equal(t, DispatchStopped, result.State)
	assert.Equal(t, 2, result.HandlersRun)
	assert.True(t, Stopped(result.Args))
}

func TestDispatcher_IsolatesHandlerFailures(t *testing.T) {
	reporter := NewErrorReporter()
	registry, fs, engine := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1", "2", "3")
	engine.on("chatMessage.1.fake", func(ctx context.Context, event ScriptEvent, args EventArgs) error {
		return errors.New("boom")
	})
	engine.on("chatMessage.2.fake", func(ctx context.Context, event ScriptEvent, args EventArgs) error {
		panic("handler exploded")
	})
	dispatcher := NewDispatcher(registry, WithErrorReporter(reporter))

	result := dispatcher.InvokeWithResult(context.Background(), EventChatMessage, nil)

	assert.Equal(t, []string{"chatMessage.1.fake", "chatMessage.2.fake", "chatMessage.3.fake"}, engine.invoked())
	assert.Equal(t, DispatchCompleted, result.State)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, ErrorTypeExecution, result.Errors[0].Type)
	assert.Equal(t, EventChatMessage, result.Errors[0].Event)
	assert.Equal(t, ErrorTypePanic, result.Errors[1].Type)
	assert.True(t, result.Errors[1].IsRuntimeError())
	assert.NotNil(t, result.Args, "nil factory still yields args")

	assert.Equal(t, 1, reporter.Count("/scripts/chatMessage.1.fake", EventChatMessage, ErrorTypeExecution))
	assert.Equal(t, 1, reporter.Count("/scripts/chatMessage.2.fake", EventChatMessage, ErrorTypePanic))
	assert.Equal(t, 2, reporter.Summary().TotalErrors)
}

func TestDispatcher_NilFactoryResult(t *testing.T) {
	registry, fs, _ := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1")
	dispatcher := NewDispatcher(registry)

	args := dispatcher.Invoke(context.Background(), EventChatMessage, func() EventArgs { return nil })
	require.NotNil(t, args)
	assert.False(t, Stopped(args))
	assert.False(t, Cancelled(args))
}

func TestDispatcher_PanickingFactory(t *testing.T) {
	reporter := NewErrorReporter()
	registry, fs, engine := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1")
	dispatcher := NewDispatcher(registry, WithErrorReporter(reporter))

	factory := func() EventArgs {
		var fields map[string]interface{}
		fields["message"] = "hi"
		return NewArgs(fields)
	}

	var args EventArgs
	require.NotPanics(t, func() {
		args = dispatcher.Invoke(context.Background(), EventChatMessage, factory)
	})
	assert.Nil(t, args, "a failed factory means no dispatch")
	assert.Empty(t, engine.invoked())
	assert.Equal(t, 1, reporter.Count(ArgsFactorySource, EventChatMessage, ErrorTypePanic))

	result := dispatcher.InvokeWithResult(context.Background(), EventChatMessage, factory)
	assert.False(t, result.Dispatched())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "args factory panicked")
}

func TestDispatcher_Watchdog(t *testing.T) {
	reporter := NewErrorReporter()
	registry, fs, engine := newFakeRegistry(t)
	loadChatHandlers(t, registry, fs, "1", "2")
	engine.on("chatMessage.1.fake", func(ctx context.Context, event ScriptEvent, args EventArgs) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	dispatcher := NewDispatcher(registry,
		WithErrorReporter(reporter),
		WithLimits(Limits{MaxExecutionTime: 20 * time.Millisecond}),
	)

	start := time.Now()
	result := dispatcher.InvokeWithResult(context.Background(), EventChatMessage, nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorTypeTimeout, result.Errors[0].Type)
	assert.Equal(t, 2, result.HandlersRun, "later handlers still run")
}

func TestDispatcher_SnapshotAtomicity(t *testing.T) {
	registry, fs, _ := newFakeRegistry(t)
	writeScript(t, fs, "/old/chatMessage.a1.fake", "ok")
	writeScript(t, fs, "/old/chatMessage.a2.fake", "ok")
	writeScript(t, fs, "/new/chatMessage.b1.fake", "ok")
	writeScript(t, fs, "/new/chatMessage.b2.fake", "ok")
	writeScript(t, fs, "/new/chatMessage.b3.fake", "ok")

	registry.ReloadAll("/old")
	oldSnap := registry.Snapshot()
	registry.ReloadAll("/new")
	newSnap := registry.Snapshot()

	oldSet := []string{"chatMessage.a1.fake", "chatMessage.a2.fake"}
	newSet := []string{"chatMessage.b1.fake", "chatMessage.b2.fake", "chatMessage.b3.fake"}

	dispatcher := NewDispatcher(registry)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			if i%2 == 0 {
				registry.Swap(oldSnap)
			} else {
				registry.Swap(newSnap)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		args := &recordingArgs{}
		dispatcher.Invoke(context.Background(), EventChatMessage, func() EventArgs { return args })
		if len(args.seen) == len(oldSet) {
			assert.Equal(t, oldSet, args.seen)
		} else {
			assert.Equal(t, newSet, args.seen)
		}
	}

	close(done)
	wg.Wait()
}

func TestDispatcher_SwapDuringDispatch(t *testing.T) {
	registry, fs, engine := newFakeRegistry(t)
	writeScript(t, fs, "/old/chatMessage.a1.fake", "ok")
	writeScript(t, fs, "/old/chatMessage.a2.fake", "ok")
	writeScript(t, fs, "/old/chatMessage.a3.fake", "ok")
	writeScript(t, fs, "/new/chatMessage.b1.fake", "ok")

	registry.ReloadAll("/new")
	newSnap := registry.Snapshot()
	registry.ReloadAll("/old")

	engine.on("chatMessage.a1.fake", func(ctx context.Context, event ScriptEvent, args EventArgs) error {
		registry.Swap(newSnap)
		return nil
	})
	dispatcher := NewDispatcher(registry)

	first := &recordingArgs{}
	dispatcher.Invoke(context.Background(), EventChatMessage, func() EventArgs { return first })
	assert.Equal(t, []string{"chatMessage.a1.fake", "chatMessage.a2.fake", "chatMessage.a3.fake"}, first.seen,
		"the dispatch finishes on the snapshot it started with")
	assert.Same(t, newSnap, registry.Snapshot())

	second := &recordingArgs{}
	dispatcher.Invoke(context.Background(), EventChatMessage, func() EventArgs { return second })
	assert.Equal(t, []string{"chatMessage.b1.fake"}, second.seen)
}

func TestDispatchState_String(t *testing.T) {
	assert.Equal(t, "idle", DispatchIdle.String())
	assert.Equal(t, "stopped", DispatchStopped.String())
	assert.Equal(t, "completed", DispatchCompleted.String())
	assert.Equal(t, "DispatchState(42)", DispatchState(42).String())
}
