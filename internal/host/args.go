package host

import "github.com/nfrund/scripthost/internal/script"

// PlayerDataExt is the extension of the per-player save file.
const PlayerDataExt = "ttp"

// Client identifies the connected player an event is about.
type Client struct {
	PlayerID   string
	EntityID   int
	PlayerName string
	IP         string
}

func (c *Client) fields() map[string]interface{} {
	if c == nil {
		return nil
	}
	return map[string]interface{}{
		"playerId":   c.PlayerID,
		"entityId":   c.EntityID,
		"playerName": c.PlayerName,
		"ip":         c.IP,
	}
}

// Vector3i is a block position in the world.
type Vector3i struct {
	X, Y, Z int
}

func (v Vector3i) fields() map[string]interface{} {
	return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}
}

// withClient adds the client under "client" when there is one.
func withClient(c *Client, values map[string]interface{}) map[string]interface{} {
	if client := c.fields(); client != nil {
		values["client"] = client
	}
	return values
}

type PlayerLoginArgs struct {
	script.BaseArgs
	Client               *Client
	CompatibilityVersion string
}

func (a *PlayerLoginArgs) Fields() map[string]interface{} {
	return withClient(a.Client, map[string]interface{}{
		"compatibilityVersion": a.CompatibilityVersion,
	})
}

type PlayerSpawningArgs struct {
	script.BaseArgs
	Client       *Client
	ChunkViewDim int
}

func (a *PlayerSpawningArgs) Fields() map[string]interface{} {
	return withClient(a.Client, map[string]interface{}{
		"chunkViewDim": a.ChunkViewDim,
	})
}

type PlayerSpawnedInWorldArgs struct {
	script.BaseArgs
	Client   *Client
	Reason   string
	Position Vector3i
}

func (a *PlayerSpawnedInWorldArgs) Fields() map[string]interface{} {
	return withClient(a.Client, map[string]interface{}{
		"reason":   a.Reason,
		"position": a.Position.fields(),
	})
}

type PlayerDisconnectedArgs struct {
	script.BaseArgs
	Client   *Client
	Shutdown bool
}

func (a *PlayerDisconnectedArgs) Fields() map[string]interface{} {
	return withClient(a.Client, map[string]interface{}{
		"shutdown": a.Shutdown,
	})
}

// PlayerSaveDataArgs points scripts at the file the host just wrote.
type PlayerSaveDataArgs struct {
	script.BaseArgs
	Client         *Client
	PlayerDataFile string
}

func (a *PlayerSaveDataArgs) Fields() map[string]interface{} {
	return withClient(a.Client, map[string]interface{}{
		"playerDataFile": a.PlayerDataFile,
	})
}

// ChatMessageArgs carries a chat line. Client is nil for messages the
// server itself sends.
type ChatMessageArgs struct {
	script.BaseArgs
	Client      *Client
	MessageType string
	From        string
	Message     string
}

func (a *ChatMessageArgs) Fields() map[string]interface{} {
	return withClient(a.Client, map[string]interface{}{
		"messageType": a.MessageType,
		"from":        a.From,
		"message":     a.Message,
	})
}

type ChunkMapCalculatedArgs struct {
	script.BaseArgs
	ChunkKey int64
	ChunkX   int
	ChunkZ   int
}

func (a *ChunkMapCalculatedArgs) Fields() map[string]interface{} {
	return map[string]interface{}{
		"chunkKey": a.ChunkKey,
		"chunkPos": map[string]interface{}{"x": a.ChunkX, "z": a.ChunkZ},
	}
}
