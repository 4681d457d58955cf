package platform

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryAdapter is a volatile Adapter implementation storing channel
// history in process-local maps. It is safe for concurrent access and best
// suited for tests or local demo runs.
type InMemoryAdapter struct {
	mu       sync.RWMutex
	channels map[string][]Message
	nextID   int
}

// NewInMemoryAdapter constructs an empty in-memory adapter.
func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{channels: make(map[string][]Message)}
}

// Post appends an externally authored message (a test fixture or simulated
// user input) to a channel and returns it with an assigned id.
func (a *InMemoryAdapter) Post(msg Message) Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	if msg.ID == "" {
		a.nextID++
		msg.ID = fmt.Sprintf("msg-%d", a.nextID)
	}
	a.channels[msg.ChannelID] = append(a.channels[msg.ChannelID], msg)
	return msg
}

// History returns up to limit messages in chronological order.
func (a *InMemoryAdapter) History(_ context.Context, channelID string, limit int) ([]Message, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	msgs := a.channels[channelID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// FetchMessage resolves a single message by id within a channel.
func (a *InMemoryAdapter) FetchMessage(_ context.Context, channelID, messageID string) (Message, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, m := range a.channels[channelID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return Message{}, fmt.Errorf("fetch %s in %s: %w", messageID, channelID, ErrMessageNotFound)
}

// Send records a plain bot-authored message.
func (a *InMemoryAdapter) Send(_ context.Context, channelID, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	a.channels[channelID] = append(a.channels[channelID], Message{
		ID:        fmt.Sprintf("msg-%d", a.nextID),
		ChannelID: channelID,
		Content:   text,
		Bot:       true,
	})
	return nil
}

// SendAs records a message delivered through a persona proxy identity.
func (a *InMemoryAdapter) SendAs(_ context.Context, channelID, text, displayName, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	a.channels[channelID] = append(a.channels[channelID], Message{
		ID:         fmt.Sprintf("msg-%d", a.nextID),
		ChannelID:  channelID,
		AuthorName: displayName,
		Content:    text,
		Bot:        true,
		Proxy:      true,
	})
	return nil
}
