// Package platform defines the chat platform collaborator consumed by the
// persona engine. The engine never talks to a concrete chat service directly;
// it fetches history, resolves reply references and delivers messages through
// the Adapter interface so transports stay pluggable. An in-memory adapter is
// provided for tests and local development.
package platform

import (
	"context"
	"fmt"
)

// ErrMessageNotFound is returned when a referenced message does not exist in
// the channel it was looked up in.
var ErrMessageNotFound = fmt.Errorf("message not found")

// Message is the normalized inbound chat event. Transports are responsible
// for classifying the author: Bot marks regular automated accounts, Proxy
// marks messages delivered through a persona's proxy display identity
// (e.g. a webhook). Proxy deliveries usually carry the Bot flag too; Proxy
// is the stronger signal and wins wherever the two disagree.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string // display name as shown in the channel
	Content     string
	Bot         bool   // regular automated author
	Proxy       bool   // authored through a persona proxy identity
	MentionsBot bool   // explicitly addresses the bot's own account
	ReplyToID   string // id of the referenced message when this is a reply
}

// Human reports whether the message was authored by a human account.
func (m Message) Human() bool { return !m.Bot && !m.Proxy }

// IsReply reports whether the message references another message.
func (m Message) IsReply() bool { return m.ReplyToID != "" }

// Adapter is the transport surface the engine depends on.
//
// History returns up to limit messages in chronological order (oldest
// first). FetchMessage resolves a reply reference. Send delivers a plain
// message as the bot account; SendAs delivers through a proxy display
// identity carrying the given name and avatar.
type Adapter interface {
	History(ctx context.Context, channelID string, limit int) ([]Message, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	Send(ctx context.Context, channelID, text string) error
	SendAs(ctx context.Context, channelID, text, displayName, avatarURL string) error
}

// MessageFetcher is the subset of Adapter needed to resolve reply chains.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
}
