package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventDirective(t *testing.T) {
	tests := []struct {
		name    string
		content string
		prefix  string
		want    []string
		found   bool
	}{
		{
			name:    "comma separated",
			content: "// @events: chatMessage, playerLogin\nx := 1",
			prefix:  "//",
			want:    []string{"chatMessage", "playerLogin"},
			found:   true,
		},
		{
			name:    "space separated without colon",
			content: "-- @events gameAwake gameShutdown\n",
			prefix:  "--",
			want:    []string{"gameAwake", "gameShutdown"},
			found:   true,
		},
		{
			name:    "several directive lines after other comments",
			content: "// Welcome script\n\n// @events: playerLogin\n// @events: playerSpawnedInWorld\n",
			prefix:  "//",
			want:    []string{"playerLogin", "playerSpawnedInWorld"},
			found:   true,
		},
		{
			name:    "shebang skipped",
			content: "#!/usr/bin/env lua\n-- @events: chatMessage\n",
			prefix:  "--",
			want:    []string{"chatMessage"},
			found:   true,
		},
		{
			name:    "directive after code is ignored",
			content: "x := 1\n// @events: chatMessage\n",
			prefix:  "//",
			want:    nil,
			found:   false,
		},
		{
			name:    "other language comment prefix is ignored",
			content: "-- @events: chatMessage\n",
			prefix:  "//",
			want:    nil,
			found:   false,
		},
		{
			name:    "empty directive",
			content: "// @events:\n",
			prefix:  "//",
			want:    nil,
			found:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := parseEventDirective(tt.content, tt.prefix)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeclaredEventsFallsBackToFileName(t *testing.T) {
	tests := []struct {
		path string
		want ScriptEvent
	}{
		{"/scripts/chatMessage.tengo", "chatMessage"},
		{"/scripts/chatMessage.welcome.lua", "chatMessage"},
		{"/scripts/nested/playerLogin.01.tengo", "playerLogin"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := declaredEvents(&Script{Path: tt.path, Content: "x := 1"}, "//")
			assert.Equal(t, []ScriptEvent{tt.want}, got)
		})
	}
}
