package host

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nfrund/scripthost/internal/script"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDispatcher builds args only for events listed in bound, like the real
// dispatcher does for events without handlers.
type stubDispatcher struct {
	bound  map[script.ScriptEvent]func(script.EventArgs)
	events []script.ScriptEvent
	built  []script.EventArgs
}

func (d *stubDispatcher) Invoke(_ context.Context, event script.ScriptEvent, factory script.ArgsFactory) script.EventArgs {
	d.events = append(d.events, event)
	handler, ok := d.bound[event]
	if !ok {
		return nil
	}
	args := factory()
	d.built = append(d.built, args)
	if handler != nil {
		handler(args)
	}
	return args
}

func (d *stubDispatcher) HasHandlers(event script.ScriptEvent) bool {
	_, ok := d.bound[event]
	return ok
}

func TestAdapter_NoHandlersBuildsNothing(t *testing.T) {
	d := &stubDispatcher{}
	a := NewAdapter(d)
	ctx := context.Background()

	assert.Nil(t, a.GameAwake(ctx))
	assert.Nil(t, a.PlayerLogin(ctx, &Client{PlayerID: "76561"}, "1.0"))
	assert.Nil(t, a.SavePlayerData(ctx, &Client{PlayerID: "76561"}))
	assert.True(t, a.ChatMessage(ctx, nil, "Chat", "Server", "hello"))
	assert.Nil(t, a.ChunkMapCalculated(ctx, ChunkKey(3, -4)))

	// Events without captured arguments still go through Invoke; the rest
	// stop at HasHandlers.
	assert.Equal(t, []script.ScriptEvent{script.EventGameAwake}, d.events)
	assert.Empty(t, d.built)
}

func TestAdapter_SavePlayerDataWithoutClient(t *testing.T) {
	d := &stubDispatcher{bound: map[script.ScriptEvent]func(script.EventArgs){
		script.EventPlayerSaveData: nil,
	}}
	a := NewAdapter(d, WithPlayerDataDir("Saves/Player"))

	var args script.EventArgs
	require.NotPanics(t, func() { args = a.SavePlayerData(context.Background(), nil) })
	save := args.(*PlayerSaveDataArgs)
	assert.Empty(t, save.PlayerDataFile)
	_, hasClient := save.Fields()["client"]
	assert.False(t, hasClient)
}

func TestAdapter_UnboundEventsDoNotAllocate(t *testing.T) {
	if raceEnabled {
		t.Skip("allocation counts are not reliable under the race detector")
	}

	engine := script.NewEngine(script.Dependencies{
		Options: script.Options{Limits: script.GetDefaultSecurityLimits()},
		Fs:      afero.NewMemMapFs(),
	})
	a := NewAdapter(engine, WithPlayerDataDir("Saves/Player"))
	ctx := context.Background()
	client := &Client{PlayerID: "76561"}

	tests := []struct {
		name string
		call func()
	}{
		{"GameAwake", func() { a.GameAwake(ctx) }},
		{"ChunkMapCalculated", func() { a.ChunkMapCalculated(ctx, 16777217) }},
		{"ChatMessage", func() { a.ChatMessage(ctx, client, "Global", "bob", "hi") }},
		{"SavePlayerData", func() { a.SavePlayerData(ctx, client) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Zero(t, testing.AllocsPerRun(1000, tt.call))
		})
	}
}

func TestAdapter_EventPayloads(t *testing.T) {
	d := &stubDispatcher{bound: map[script.ScriptEvent]func(script.EventArgs){
		script.EventPlayerSaveData:       nil,
		script.EventPlayerSpawnedInWorld: nil,
		script.EventChunkMapCalculated:   nil,
		script.EventPlayerDisconnected:   nil,
	}}
	a := NewAdapter(d, WithPlayerDataDir("Saves/Player"))
	client := &Client{PlayerID: "76561", EntityID: 171, PlayerName: "alice", IP: "10.0.0.2"}
	ctx := context.Background()

	save := a.SavePlayerData(ctx, client).(*PlayerSaveDataArgs)
	assert.Equal(t, filepath.Join("Saves", "Player", "76561.ttp"), save.PlayerDataFile)
	assert.Equal(t, save.PlayerDataFile, save.Fields()["playerDataFile"])
	assert.Equal(t, "alice", save.Fields()["client"].(map[string]interface{})["playerName"])

	spawned := a.PlayerSpawnedInWorld(ctx, client, "JoinMultiplayer", Vector3i{X: 1, Y: 2, Z: 3})
	assert.Equal(t, map[string]interface{}{"x": 1, "y": 2, "z": 3}, spawned.Fields()["position"])

	chunk := a.ChunkMapCalculated(ctx, ChunkKey(-7, 12)).(*ChunkMapCalculatedArgs)
	assert.Equal(t, -7, chunk.ChunkX)
	assert.Equal(t, 12, chunk.ChunkZ)

	disconnected := a.PlayerDisconnected(ctx, nil, true)
	_, hasClient := disconnected.Fields()["client"]
	assert.False(t, hasClient)
	assert.Equal(t, true, disconnected.Fields()["shutdown"])
}

func TestAdapter_ChatMessageBroadcast(t *testing.T) {
	d := &stubDispatcher{bound: map[script.ScriptEvent]func(script.EventArgs){
		script.EventChatMessage: func(args script.EventArgs) {
			if args.Fields()["message"] == "badword" {
				args.Base().StopPropagation()
			}
		},
	}}
	a := NewAdapter(d)

	assert.True(t, a.ChatMessage(context.Background(), nil, "Global", "bob", "hi"))
	assert.False(t, a.ChatMessage(context.Background(), nil, "Global", "bob", "badword"))
}

func TestChunkKeyRoundTrip(t *testing.T) {
	for _, c := range []struct{ x, z int }{{0, 0}, {1, 1}, {-1, -1}, {8388607, -8388608}, {-300, 42}} {
		x, z := ChunkXZ(ChunkKey(c.x, c.z))
		assert.Equal(t, c.x, x)
		assert.Equal(t, c.z, z)
	}
}

func TestAdapter_WithScriptEngine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/scripts/filter.lua", []byte(`-- @events: chatMessage
if args.message == "badword" then
  args.propagationStopped = true
end
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/scripts/playerLogin.tengo", []byte(
		`args.cancelled = args.client.playerName == "banned"`), 0o644))

	engine := script.NewEngine(script.Dependencies{
		Options: script.Options{Dirs: []string{"/scripts"}, Limits: script.GetDefaultSecurityLimits()},
		Fs:      fs,
	})
	report, err := engine.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.Failed())
	defer engine.Shutdown(context.Background())

	a := NewAdapter(engine)
	ctx := context.Background()

	assert.False(t, a.ChatMessage(ctx, &Client{PlayerName: "bob"}, "Global", "bob", "badword"))
	assert.True(t, a.ChatMessage(ctx, &Client{PlayerName: "bob"}, "Global", "bob", "hello"))

	assert.True(t, script.Cancelled(a.PlayerLogin(ctx, &Client{PlayerName: "banned"}, "1.0")))
	assert.False(t, script.Cancelled(a.PlayerLogin(ctx, &Client{PlayerName: "alice"}, "1.0")))
	assert.Nil(t, a.GameAwake(ctx))
}
