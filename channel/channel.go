// Package channel tracks per-channel activity state: a time-boxed cooldown
// entered by the stop command and the set of personas currently bound to a
// scheduled chat in that channel. State cells are created lazily on first
// reference and live for the process lifetime; the engine does not evict
// inactive channels, so memory grows with the number of channels actually
// seen (a few dozen bytes each).
package channel

import (
	"sync"
	"time"
)

// StopDuration is the cooldown window entered by Stop. A stopped channel
// decays back to active automatically once the window elapses; there is no
// explicit resume transition.
const StopDuration = 30 * time.Second

// state is one channel's cell. Each cell has its own lock so channels never
// contend with each other.
type state struct {
	mu           sync.Mutex
	lastStop     time.Time
	participants map[string]struct{}
}

// Store holds the state cells, keyed by channel id. The zero value is not
// usable; construct with NewStore. All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	cells map[string]*state
	now   func() time.Time
}

// Options configures a Store.
type Options struct {
	// Now supplies the current time; override in tests to control the
	// cooldown clock.
	Now func() time.Time
}

// NewStore constructs an empty store.
func NewStore(optFns ...func(o *Options)) *Store {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{cells: make(map[string]*state), now: opts.Now}
}

// cell returns the channel's state, creating it lazily. New channels start
// active with an empty participant set.
func (s *Store) cell(channelID string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[channelID]
	if !ok {
		c = &state{participants: make(map[string]struct{})}
		s.cells[channelID] = c
	}
	return c
}

// Stop places the channel in the stopped state for StopDuration and clears
// its participant set.
func (s *Store) Stop(channelID string) {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStop = s.now()
	c.participants = make(map[string]struct{})
}

// IsStopped reports whether the channel is inside its cooldown window.
func (s *Store) IsStopped(channelID string) bool {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.now().Sub(c.lastStop) < StopDuration
}

// StopRemaining returns how much of the cooldown window is left, or zero
// when the channel is active.
func (s *Store) StopRemaining(channelID string) time.Duration {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := StopDuration - s.now().Sub(c.lastStop)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AddParticipant marks a persona handle as active in the channel's chat.
// Works regardless of cooldown state.
func (s *Store) AddParticipant(channelID, handle string) {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants[handle] = struct{}{}
}

// RemoveParticipant removes a persona handle from the channel's chat.
func (s *Store) RemoveParticipant(channelID, handle string) {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.participants, handle)
}

// ClearParticipants empties the channel's participant set.
func (s *Store) ClearParticipants(channelID string) {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants = make(map[string]struct{})
}

// IsInChat reports whether a persona handle is currently bound to a chat in
// the channel.
func (s *Store) IsInChat(channelID, handle string) bool {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.participants[handle]
	return ok
}

// Participants returns a snapshot of the channel's active participant
// handles, in no particular order.
func (s *Store) Participants(channelID string) []string {
	c := s.cell(channelID)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.participants))
	for h := range c.participants {
		out = append(out, h)
	}
	return out
}
