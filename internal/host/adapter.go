// Package host translates host callbacks into script dispatches.
//
// Every method builds its payload inside the args factory, so nothing is
// allocated or computed when no script listens to the event. Methods whose
// factory captures arguments check for handlers first, before the closure
// exists.
package host

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/nfrund/scripthost/internal/script"
)

// Dispatcher is the part of the script engine the adapter needs.
type Dispatcher interface {
	Invoke(ctx context.Context, event script.ScriptEvent, factory script.ArgsFactory) script.EventArgs
	HasHandlers(event script.ScriptEvent) bool
}

// Adapter exposes one method per host event.
type Adapter struct {
	dispatcher    Dispatcher
	playerDataDir string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPlayerDataDir sets the directory player save files live in.
func WithPlayerDataDir(dir string) Option {
	return func(a *Adapter) {
		a.playerDataDir = dir
	}
}

// NewAdapter creates an adapter dispatching through d.
func NewAdapter(d Dispatcher, opts ...Option) *Adapter {
	a := &Adapter{dispatcher: d}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) invoke(ctx context.Context, event script.ScriptEvent, factory script.ArgsFactory) script.EventArgs {
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.DebugContext(ctx, "Host event", "event", event)
	}
	return a.dispatcher.Invoke(ctx, event, factory)
}

func emptyArgs() script.EventArgs {
	return &script.BaseArgs{}
}

// GameAwake runs before the world exists.
func (a *Adapter) GameAwake(ctx context.Context) script.EventArgs {
	return a.invoke(ctx, script.EventGameAwake, emptyArgs)
}

// GameStartDone runs once the world is ready.
func (a *Adapter) GameStartDone(ctx context.Context) script.EventArgs {
	return a.invoke(ctx, script.EventGameStartDone, emptyArgs)
}

func (a *Adapter) GameShutdown(ctx context.Context) script.EventArgs {
	return a.invoke(ctx, script.EventGameShutdown, emptyArgs)
}

func (a *Adapter) PlayerLogin(ctx context.Context, client *Client, compatibilityVersion string) script.EventArgs {
	if !a.dispatcher.HasHandlers(script.EventPlayerLogin) {
		return nil
	}
	return a.invoke(ctx, script.EventPlayerLogin, func() script.EventArgs {
		return &PlayerLoginArgs{Client: client, CompatibilityVersion: compatibilityVersion}
	})
}

func (a *Adapter) PlayerSpawning(ctx context.Context, client *Client, chunkViewDim int) script.EventArgs {
	if !a.dispatcher.HasHandlers(script.EventPlayerSpawning) {
		return nil
	}
	return a.invoke(ctx, script.EventPlayerSpawning, func() script.EventArgs {
		return &PlayerSpawningArgs{Client: client, ChunkViewDim: chunkViewDim}
	})
}

func (a *Adapter) PlayerSpawnedInWorld(ctx context.Context, client *Client, reason string, pos Vector3i) script.EventArgs {
	if !a.dispatcher.HasHandlers(script.EventPlayerSpawnedInWorld) {
		return nil
	}
	return a.invoke(ctx, script.EventPlayerSpawnedInWorld, func() script.EventArgs {
		return &PlayerSpawnedInWorldArgs{Client: client, Reason: reason, Position: pos}
	})
}

func (a *Adapter) PlayerDisconnected(ctx context.Context, client *Client, shutdown bool) script.EventArgs {
	if !a.dispatcher.HasHandlers(script.EventPlayerDisconnected) {
		return nil
	}
	return a.invoke(ctx, script.EventPlayerDisconnected, func() script.EventArgs {
		return &PlayerDisconnectedArgs{Client: client, Shutdown: shutdown}
	})
}

// SavePlayerData runs after the host wrote the player's save file. A nil
// client dispatches without a save file path.
func (a *Adapter) SavePlayerData(ctx context.Context, client *Client) script.EventArgs {
	if !a.dispatcher.HasHandlers(script.EventPlayerSaveData) {
		return nil
	}
	return a.invoke(ctx, script.EventPlayerSaveData, func() script.EventArgs {
		args := &PlayerSaveDataArgs{Client: client}
		if client != nil {
			args.PlayerDataFile = a.PlayerDataFile(client.PlayerID)
		}
		return args
	})
}

// PlayerDataFile returns the save file path for a player.
func (a *Adapter) PlayerDataFile(playerID string) string {
	return filepath.Join(filepath.FromSlash(a.playerDataDir), playerID+"."+PlayerDataExt)
}

// ChatMessage dispatches a chat line and reports whether the host should
// still broadcast it.
func (a *Adapter) ChatMessage(ctx context.Context, client *Client, messageType, from, message string) bool {
	if !a.dispatcher.HasHandlers(script.EventChatMessage) {
		return true
	}
	args := a.invoke(ctx, script.EventChatMessage, func() script.EventArgs {
		return &ChatMessageArgs{Client: client, MessageType: messageType, From: from, Message: message}
	})
	return !script.Stopped(args)
}

// ChunkMapCalculated runs after the map colors of a chunk were computed.
func (a *Adapter) ChunkMapCalculated(ctx context.Context, chunkKey int64) script.EventArgs {
	if !a.dispatcher.HasHandlers(script.EventChunkMapCalculated) {
		return nil
	}
	return a.invoke(ctx, script.EventChunkMapCalculated, func() script.EventArgs {
		x, z := ChunkXZ(chunkKey)
		return &ChunkMapCalculatedArgs{ChunkKey: chunkKey, ChunkX: x, ChunkZ: z}
	})
}
