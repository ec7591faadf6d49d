package script

import (
	"path/filepath"
	"strings"
	"unicode"
)

// EventsDirective marks the header comment line that lists a script's events:
//
//	// @events: chatMessage, playerLogin
const EventsDirective = "@events"

// parseEventDirective collects event names from @events lines in the leading
// comment block of content. Scanning stops at the first line that is neither
// blank nor a comment.
func parseEventDirective(content, commentPrefix string) ([]string, bool) {
	var names []string
	found := false

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(line, "#!") {
			continue
		}
		if !strings.HasPrefix(line, commentPrefix) {
			break
		}

		text := strings.TrimSpace(strings.TrimPrefix(line, commentPrefix))
		if !strings.HasPrefix(text, EventsDirective) {
			continue
		}
		found = true

		rest := strings.TrimPrefix(text, EventsDirective)
		rest = strings.TrimPrefix(strings.TrimSpace(rest), ":")
		names = append(names, strings.FieldsFunc(rest, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}

	return names, found
}

// declaredEvents returns the raw event names a script binds to: the @events
// directive if present, otherwise the file name up to the first dot.
func declaredEvents(script *Script, commentPrefix string) []ScriptEvent {
	names, found := parseEventDirective(script.Content, commentPrefix)
	if !found {
		base := filepath.Base(script.Path)
		if idx := strings.IndexByte(base, '.'); idx > 0 {
			base = base[:idx]
		}
		names = []string{base}
	}

	events := make([]ScriptEvent, 0, len(names))
	for _, name := range names {
		events = append(events, ScriptEvent(name))
	}
	return events
}
