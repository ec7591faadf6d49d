package script

import (
	"context"
	"time"
)

// Registration binds one loaded script to the events it declared. A reload
// produces a new Registration; existing ones are never mutated.
type Registration struct {
	ID       string
	Path     string
	Language ScriptLanguage
	Events   []ScriptEvent
	Checksum string
	LoadedAt time.Time
	Sequence uint64

	compiled *CompiledScript
	engine   LanguageEngine
}

// Invoke runs the registered script for one event through its engine
func (r *Registration) Invoke(ctx context.Context, event ScriptEvent, args EventArgs) error {
	return r.engine.Invoke(ctx, r.compiled, event, args)
}

// Snapshot is an immutable view of the event-to-handler mapping. Handlers of
// an event are ordered by their position in the registration list.
type Snapshot struct {
	version uint64
	entries []*Registration
	byEvent map[ScriptEvent][]*Registration
	byPath  map[string]*Registration
}

// NewSnapshot indexes the given registrations. The slice is owned by the snapshot.
func NewSnapshot(version uint64, entries []*Registration) *Snapshot {
	s := &Snapshot{
		version: version,
		entries: entries,
		byEvent: make(map[ScriptEvent][]*Registration),
		byPath:  make(map[string]*Registration, len(entries)),
	}
	for _, reg := range entries {
		s.byPath[reg.Path] = reg
		for _, event := range reg.Events {
			s.byEvent[event] = append(s.byEvent[event], reg)
		}
	}
	return s
}

// Version increases with every swap
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of registered scripts
func (s *Snapshot) Len() int { return len(s.entries) }

// Handlers returns the registrations bound to an event in dispatch order.
// The returned slice must not be modified.
func (s *Snapshot) Handlers(event ScriptEvent) []*Registration {
	return s.byEvent[event]
}

// Lookup returns the registration loaded from path
func (s *Snapshot) Lookup(path string) (*Registration, bool) {
	reg, ok := s.byPath[path]
	return reg, ok
}

// Registrations returns a copy of all registrations in load order
func (s *Snapshot) Registrations() []*Registration {
	out := make([]*Registration, len(s.entries))
	copy(out, s.entries)
	return out
}

// HandlerCounts returns the number of handlers per bound event
func (s *Snapshot) HandlerCounts() map[ScriptEvent]int {
	counts := make(map[ScriptEvent]int, len(s.byEvent))
	for event, regs := range s.byEvent {
		counts[event] = len(regs)
	}
	return counts
}

// withRegistration returns a new entry list where reg replaces the entry for
// the same path, or is appended when the path is new.
func (s *Snapshot) withRegistration(reg *Registration) []*Registration {
	out := make([]*Registration, 0, len(s.entries)+1)
	replaced := false
	for _, existing := range s.entries {
		if existing.Path == reg.Path {
			out = append(out, reg)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, reg)
	}
	return out
}

// withoutPath returns a new entry list without the registration for path.
func (s *Snapshot) withoutPath(path string) ([]*Registration, bool) {
	if _, ok := s.byPath[path]; !ok {
		return nil, false
	}
	out := make([]*Registration, 0, len(s.entries)-1)
	for _, existing := range s.entries {
		if existing.Path != path {
			out = append(out, existing)
		}
	}
	return out, true
}
