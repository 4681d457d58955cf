package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
)

func testRegistry() *persona.Registry {
	return persona.NewRegistry(
		persona.Persona{Handle: "luna", Name: "Luna Nightshade"},
		persona.Persona{Handle: "tomas", Name: "Tomás"},
	)
}

func TestFromMessageMatchesProxyAuthor(t *testing.T) {
	msg := platform.Message{Proxy: true, Bot: true, AuthorName: "Luna Nightshade"}
	handle, ok := FromMessage(msg, testRegistry())
	require.True(t, ok)
	assert.Equal(t, "luna", handle)
}

func TestFromMessageNormalizesDdecoratedNames(t *testing.T) {
	// Proxy identities often carry emoji or punctuation decorations.
	msg := platform.Message{Proxy: true, Bot: true, AuthorName: "Tomás 🎭!!"}
	handle, ok := FromMessage(msg, testRegistry())
	require.True(t, ok)
	assert.Equal(t, "tomas", handle)
}

func TestFromMessageRequiresProxySignal(t *testing.T) {
	// A human using a persona's exact name must not be attributed to it.
	msg := platform.Message{AuthorName: "Luna Nightshade"}
	_, ok := FromMessage(msg, testRegistry())
	assert.False(t, ok)
}

func TestFromMessageNoMatch(t *testing.T) {
	msg := platform.Message{Proxy: true, Bot: true, AuthorName: "Stranger"}
	_, ok := FromMessage(msg, testRegistry())
	assert.False(t, ok)

	msg.AuthorName = "🎭🎭"
	_, ok = FromMessage(msg, testRegistry())
	assert.False(t, ok)
}
