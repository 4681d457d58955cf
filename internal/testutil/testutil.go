// Package testutil provides small builders shared by package tests.
package testutil

import (
	"fmt"

	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
)

// Persona builds a minimal valid persona with the handle doubling as the
// display name (capitalization aside).
func Persona(handle string) persona.Persona {
	return persona.Persona{
		Handle:       handle,
		Name:         titleCase(handle),
		Instructions: fmt.Sprintf("You are %s.", handle),
		Model:        persona.DefaultModel,
	}
}

// NamedPersona builds a minimal valid persona with an explicit display name.
func NamedPersona(handle, name string) persona.Persona {
	p := Persona(handle)
	p.Name = name
	return p
}

// HumanMessage builds a plain human-authored message.
func HumanMessage(channelID, content string) platform.Message {
	return platform.Message{
		ID:         "m1",
		ChannelID:  channelID,
		AuthorID:   "user-1",
		AuthorName: "Alice",
		Content:    content,
	}
}

// ProxyMessage builds a message authored through the proxy identity of a
// persona, as activation deliveries appear on the platform.
func ProxyMessage(channelID, authorName, content string) platform.Message {
	return platform.Message{
		ID:         "m2",
		ChannelID:  channelID,
		AuthorID:   "webhook-1",
		AuthorName: authorName,
		Content:    content,
		Bot:        true,
		Proxy:      true,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
