// Package identity matches asynchronous chat events back to personas by
// their proxy display identity. Proxy mechanisms let a message appear under
// an arbitrary name and avatar; the only reliable way to attribute such a
// message to a persona is to compare normalized display names.
package identity

import (
	"github.com/zzpDavid2/discord-entities/internal/util"
	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
)

// NormalizeName reduces a display name to letters (any script), digits and
// single spaces. Emojis, punctuation and other symbols are removed; runs of
// whitespace collapse to one space.
func NormalizeName(name string) string {
	return util.NormalizeName(name)
}

// FromMessage returns the handle of the persona whose proxy identity
// authored the message. It requires the platform-level proxy signal and an
// exact match of normalized display names, scanning the registry in
// iteration order and returning the first match. Normalized-name collisions
// across personas are not prevented; they resolve to the first iterated
// match.
func FromMessage(msg platform.Message, reg *persona.Registry) (string, bool) {
	if !msg.Proxy {
		return "", false
	}
	author := NormalizeName(msg.AuthorName)
	if author == "" {
		return "", false
	}
	for _, p := range reg.Personas() {
		if NormalizeName(p.Name) == author {
			return p.Handle, true
		}
	}
	return "", false
}
