package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSet_LookupIsCaseInsensitive(t *testing.T) {
	set := DefaultEventSet()
	require.Equal(t, len(DefaultEvents), set.Len())

	for _, name := range []string{"chatMessage", "CHATMESSAGE", "chatmessage", "  ChatMessage "} {
		event, ok := set.Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, EventChatMessage, event, "canonical spelling is returned")
	}

	_, ok := set.Lookup("chat_message")
	assert.False(t, ok)
}

func TestEventSet_Custom(t *testing.T) {
	set := NewEventSet("onTick", "", "  ", "onBlockPlaced")

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("ONTICK"))
	assert.False(t, set.Contains(EventChatMessage))
	assert.Equal(t, []ScriptEvent{"onBlockPlaced", "onTick"}, set.Events())
}

func TestEventSet_ZeroValue(t *testing.T) {
	var set EventSet

	assert.Equal(t, 0, set.Len())
	_, ok := set.Lookup("chatMessage")
	assert.False(t, ok)
	assert.Empty(t, set.Events())
}
