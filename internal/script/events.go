package script

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ScriptEvent identifies a host lifecycle or gameplay occurrence scripts can bind to.
type ScriptEvent string

func (e ScriptEvent) String() string { return string(e) }

// Default event catalog of the game host.
const (
	EventGameAwake            ScriptEvent = "gameAwake"
	EventGameStartDone        ScriptEvent = "gameStartDone"
	EventGameShutdown         ScriptEvent = "gameShutdown"
	EventPlayerLogin          ScriptEvent = "playerLogin"
	EventPlayerSpawning       ScriptEvent = "playerSpawning"
	EventPlayerSpawnedInWorld ScriptEvent = "playerSpawnedInWorld"
	EventPlayerDisconnected   ScriptEvent = "playerDisconnected"
	EventPlayerSaveData       ScriptEvent = "playerSaveData"
	EventChatMessage          ScriptEvent = "chatMessage"
	EventChunkMapCalculated   ScriptEvent = "chunkMapCalculated"
)

// DefaultEvents lists the catalog used when no event set is configured.
var DefaultEvents = []ScriptEvent{
	EventGameAwake,
	EventGameStartDone,
	EventGameShutdown,
	EventPlayerLogin,
	EventPlayerSpawning,
	EventPlayerSpawnedInWorld,
	EventPlayerDisconnected,
	EventPlayerSaveData,
	EventChatMessage,
	EventChunkMapCalculated,
}

// EventSet is the immutable catalog of events scripts may declare.
// Lookups are case-insensitive; the catalog spelling is canonical.
type EventSet struct {
	byKey map[string]ScriptEvent
}

// foldName normalizes an event name for lookup. A Caser is stateful, so one
// is created per call.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// NewEventSet builds a catalog from the given names. Blank names are ignored.
func NewEventSet(events ...ScriptEvent) EventSet {
	set := EventSet{byKey: make(map[string]ScriptEvent, len(events))}
	for _, e := range events {
		name := strings.TrimSpace(string(e))
		if name == "" {
			continue
		}
		set.byKey[foldName(name)] = ScriptEvent(name)
	}
	return set
}

// DefaultEventSet returns the catalog built from DefaultEvents.
func DefaultEventSet() EventSet {
	return NewEventSet(DefaultEvents...)
}

// Lookup resolves a declared name to its canonical event.
func (s EventSet) Lookup(name string) (ScriptEvent, bool) {
	e, ok := s.byKey[foldName(name)]
	return e, ok
}

// Contains reports whether the event is part of the catalog.
func (s EventSet) Contains(e ScriptEvent) bool {
	_, ok := s.Lookup(string(e))
	return ok
}

// Events returns the catalog sorted by name.
func (s EventSet) Events() []ScriptEvent {
	events := make([]ScriptEvent, 0, len(s.byKey))
	for _, e := range s.byKey {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// Len returns the number of events in the catalog.
func (s EventSet) Len() int {
	return len(s.byKey)
}
