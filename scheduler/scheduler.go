// Package scheduler runs multi-turn conversations among personas in one
// channel. Turn order follows a soft round-robin: the next speaker is drawn
// uniformly from the front half of an ephemeral queue and requeued at the
// tail, trading strict fairness for variety while preventing starvation and
// back-to-back repeats. Cancellation is cooperative: the stop state is
// polled at turn boundaries only, so an in-flight activation always runs to
// completion.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/zzpDavid2/discord-entities/channel"
	"github.com/zzpDavid2/discord-entities/logging"
	"github.com/zzpDavid2/discord-entities/persona"
)

// ErrSessionActive is returned when a session is started on a channel that
// already has one running. The turn queue is owned exclusively by a single
// session; overlapping sessions would corrupt the participant set.
var ErrSessionActive = fmt.Errorf("a scheduled session is already active in this channel")

// ErrNeedTwoPersonas is returned when Run is invoked with fewer than two
// personas.
var ErrNeedTwoPersonas = fmt.Errorf("a chat session needs at least 2 personas")

// Inter-turn delay bounds. Sessions pause longer than sequences so the
// conversation reads at a human pace.
const (
	chatDelayMin     = 2 * time.Second
	chatDelayMax     = 10 * time.Second
	sequenceDelayMin = 1 * time.Second
	sequenceDelayMax = 3 * time.Second
)

// ActivateFunc invokes the external activation pipeline for one persona.
type ActivateFunc func(ctx context.Context, p persona.Persona) error

// TurnError records a single persona's activation failure. A failed turn
// never aborts the session.
type TurnError struct {
	Turn   int
	Handle string
	Err    error
}

// Error implements the error interface.
func (e TurnError) Error() string {
	return fmt.Sprintf("turn %d (%s): %v", e.Turn, e.Handle, e.Err)
}

// Report describes how a session or sequence ended.
type Report struct {
	Turns   int    // turns executed (including failed ones)
	Stopped bool   // aborted because the channel entered cooldown
	Reason  string // "completed", "stopped" or "cancelled"
	Errors  []TurnError
}

// Scheduler drives multi-persona sessions, consulting the channel store at
// every turn boundary.
type Scheduler struct {
	channels *channel.Store
	rng      *rand.Rand
	rngMu    sync.Mutex
	sleep    func(ctx context.Context, d time.Duration) error
	logger   logging.Logger

	sessionMu sync.Mutex
	sessions  map[string]struct{} // channels with a running session
}

// Options configures a Scheduler.
type Options struct {
	// Rand drives queue shuffling, speaker selection and delay jitter. Seed
	// it in tests to assert exact sequences. Defaults to a time-seeded
	// generator.
	Rand *rand.Rand
	// Sleep implements the inter-turn delay. Override in tests to avoid
	// waiting. The default honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// New constructs a Scheduler over the given channel store.
func New(channels *channel.Store, optFns ...func(o *Options)) *Scheduler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Scheduler{
		channels: channels,
		rng:      opts.Rand,
		sleep:    opts.Sleep,
		logger:   opts.Logger,
		sessions: make(map[string]struct{}),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// acquire claims the channel's session slot.
func (s *Scheduler) acquire(channelID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if _, busy := s.sessions[channelID]; busy {
		return ErrSessionActive
	}
	s.sessions[channelID] = struct{}{}
	return nil
}

func (s *Scheduler) release(channelID string) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	delete(s.sessions, channelID)
}

// Run executes a multi-turn session among the given personas.
//
// The queue starts shuffled. Each turn the speaker is drawn uniformly from
// the front half of the queue (half = max(1, (len+1)/2)), removed and
// appended at the tail, so with more than one persona no speaker takes two
// consecutive turns. Activation failures are recorded per turn and the
// session continues. The channel's active-participant set is populated on
// entry and cleared on every exit path.
func (s *Scheduler) Run(ctx context.Context, channelID string, personas []persona.Persona, turns int, activate ActivateFunc) (Report, error) {
	if len(personas) < 2 {
		return Report{}, ErrNeedTwoPersonas
	}
	if err := s.acquire(channelID); err != nil {
		return Report{}, err
	}
	defer s.release(channelID)

	for _, p := range personas {
		s.channels.AddParticipant(channelID, p.Handle)
	}
	defer s.channels.ClearParticipants(channelID)

	queue := make([]persona.Persona, len(personas))
	copy(queue, personas)
	s.shuffle(queue)

	report := Report{Reason: "completed"}
	for turn := 1; turn <= turns; turn++ {
		if err := ctx.Err(); err != nil {
			report.Reason = "cancelled"
			return report, err
		}
		if s.channels.IsStopped(channelID) {
			s.logger.Info("chat session stopped", "channel_id", channelID, "turns_done", report.Turns)
			report.Stopped = true
			report.Reason = "stopped"
			return report, nil
		}

		speaker := s.nextSpeaker(&queue)
		s.logger.Debug("chat turn", "channel_id", channelID, "turn", turn, "speaker", speaker.Handle)

		report.Turns++
		if err := activate(ctx, speaker); err != nil {
			s.logger.Warn("persona activation failed, continuing session",
				"channel_id", channelID, "turn", turn, "handle", speaker.Handle, "error", err)
			report.Errors = append(report.Errors, TurnError{Turn: turn, Handle: speaker.Handle, Err: err})
		}

		if turn < turns {
			if err := s.delay(ctx, chatDelayMin, chatDelayMax); err != nil {
				report.Reason = "cancelled"
				return report, err
			}
		}
	}
	return report, nil
}

// RunSequence activates the personas strictly in the given order. Callers
// wanting a random order shuffle before calling. The stop state is checked
// before each activation; failures are recorded and the sequence continues.
func (s *Scheduler) RunSequence(ctx context.Context, channelID string, personas []persona.Persona, activate ActivateFunc) (Report, error) {
	if err := s.acquire(channelID); err != nil {
		return Report{}, err
	}
	defer s.release(channelID)

	report := Report{Reason: "completed"}
	for i, p := range personas {
		if err := ctx.Err(); err != nil {
			report.Reason = "cancelled"
			return report, err
		}
		if s.channels.IsStopped(channelID) {
			s.logger.Info("speak sequence stopped", "channel_id", channelID, "done", report.Turns)
			report.Stopped = true
			report.Reason = "stopped"
			return report, nil
		}

		report.Turns++
		if err := activate(ctx, p); err != nil {
			s.logger.Warn("persona activation failed, continuing sequence",
				"channel_id", channelID, "handle", p.Handle, "error", err)
			report.Errors = append(report.Errors, TurnError{Turn: i + 1, Handle: p.Handle, Err: err})
		}

		if i < len(personas)-1 {
			if err := s.delay(ctx, sequenceDelayMin, sequenceDelayMax); err != nil {
				report.Reason = "cancelled"
				return report, err
			}
		}
	}
	return report, nil
}

// Shuffle randomizes a persona slice in place using the scheduler's random
// source. Exposed so callers of RunSequence can pre-shuffle consistently.
func (s *Scheduler) Shuffle(personas []persona.Persona) {
	s.shuffle(personas)
}

func (s *Scheduler) shuffle(personas []persona.Persona) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(personas), func(i, j int) {
		personas[i], personas[j] = personas[j], personas[i]
	})
}

// nextSpeaker removes the chosen speaker from the queue's front half and
// requeues it at the tail.
func (s *Scheduler) nextSpeaker(queue *[]persona.Persona) persona.Persona {
	q := *queue
	idx := 0
	if len(q) > 1 {
		half := (len(q) + 1) / 2
		if half < 1 {
			half = 1
		}
		idx = s.intn(half)
	}
	speaker := q[idx]
	q = append(q[:idx], q[idx+1:]...)
	q = append(q, speaker)
	*queue = q
	return speaker
}

func (s *Scheduler) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// delay sleeps for a uniformly random duration inside [min, max].
func (s *Scheduler) delay(ctx context.Context, min, max time.Duration) error {
	s.rngMu.Lock()
	d := min + time.Duration(s.rng.Int63n(int64(max-min)+1))
	s.rngMu.Unlock()
	return s.sleep(ctx, d)
}
