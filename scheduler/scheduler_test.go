package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzpDavid2/discord-entities/channel"
	"github.com/zzpDavid2/discord-entities/internal/testutil"
	"github.com/zzpDavid2/discord-entities/persona"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestScheduler(seed int64) (*Scheduler, *channel.Store) {
	channels := channel.NewStore()
	s := New(channels, func(o *Options) {
		o.Rand = rand.New(rand.NewSource(seed))
		o.Sleep = noSleep
	})
	return s, channels
}

func roster(handles ...string) []persona.Persona {
	out := make([]persona.Persona, len(handles))
	for i, h := range handles {
		out[i] = testutil.Persona(h)
	}
	return out
}

func TestRunRequiresTwoPersonas(t *testing.T) {
	s, _ := newTestScheduler(1)

	_, err := s.Run(context.Background(), "general", roster("luna"), 5, nil)
	assert.ErrorIs(t, err, ErrNeedTwoPersonas)
}

func TestRunExecutesAllTurns(t *testing.T) {
	s, _ := newTestScheduler(1)

	var speakers []string
	report, err := s.Run(context.Background(), "general", roster("luna", "sol", "vex"), 12,
		func(_ context.Context, p persona.Persona) error {
			speakers = append(speakers, p.Handle)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, 12, report.Turns)
	assert.Equal(t, "completed", report.Reason)
	assert.False(t, report.Stopped)
	assert.Len(t, speakers, 12)

	// Every persona gets turns; the tail requeue prevents starvation.
	counts := map[string]int{}
	for _, h := range speakers {
		counts[h]++
	}
	assert.Len(t, counts, 3)
}

func TestRunNoConsecutiveRepeats(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		s, _ := newTestScheduler(seed)

		var speakers []string
		_, err := s.Run(context.Background(), "general", roster("luna", "sol", "vex"), 30,
			func(_ context.Context, p persona.Persona) error {
				speakers = append(speakers, p.Handle)
				return nil
			})
		require.NoError(t, err)

		for i := 1; i < len(speakers); i++ {
			require.NotEqual(t, speakers[i-1], speakers[i],
				"seed %d: same speaker twice in a row at turn %d", seed, i)
		}
	}
}

func TestRunTwoPersonasAlternate(t *testing.T) {
	// With two personas the front half has exactly one slot, so the order
	// is a strict alternation after the shuffle.
	s, _ := newTestScheduler(7)

	var speakers []string
	_, err := s.Run(context.Background(), "general", roster("luna", "sol"), 8,
		func(_ context.Context, p persona.Persona) error {
			speakers = append(speakers, p.Handle)
			return nil
		})
	require.NoError(t, err)

	for i := 2; i < len(speakers); i++ {
		assert.Equal(t, speakers[i-2], speakers[i])
	}
}

func TestRunRecordsTurnErrorsAndContinues(t *testing.T) {
	s, _ := newTestScheduler(3)

	report, err := s.Run(context.Background(), "general", roster("luna", "sol"), 6,
		func(_ context.Context, p persona.Persona) error {
			if p.Handle == "sol" {
				return fmt.Errorf("backend down")
			}
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, 6, report.Turns)
	assert.Equal(t, 3, len(report.Errors))
	for _, te := range report.Errors {
		assert.Equal(t, "sol", te.Handle)
		assert.Contains(t, te.Error(), "backend down")
	}
}

func TestRunStopAbortsAtTurnBoundary(t *testing.T) {
	s, channels := newTestScheduler(5)

	turns := 0
	report, err := s.Run(context.Background(), "general", roster("luna", "sol"), 10,
		func(_ context.Context, _ persona.Persona) error {
			turns++
			if turns == 2 {
				channels.Stop("general")
			}
			return nil
		})
	require.NoError(t, err)

	assert.True(t, report.Stopped)
	assert.Equal(t, "stopped", report.Reason)
	assert.Equal(t, 2, report.Turns)
}

func TestRunParticipantsLifecycle(t *testing.T) {
	s, channels := newTestScheduler(2)
	personas := roster("luna", "sol")

	_, err := s.Run(context.Background(), "general", personas, 2,
		func(_ context.Context, _ persona.Persona) error {
			assert.True(t, channels.IsInChat("general", "luna"))
			assert.True(t, channels.IsInChat("general", "sol"))
			return nil
		})
	require.NoError(t, err)
	assert.Empty(t, channels.Participants("general"))
}

func TestRunSessionGuard(t *testing.T) {
	s, _ := newTestScheduler(4)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "general", roster("luna", "sol"), 2,
			func(_ context.Context, _ persona.Persona) error {
				select {
				case started <- struct{}{}:
				default:
				}
				<-release
				return nil
			})
		done <- err
	}()

	<-started
	_, err := s.Run(context.Background(), "general", roster("luna", "sol"), 2, nil)
	assert.ErrorIs(t, err, ErrSessionActive)

	// A different channel is unaffected.
	_, err = s.Run(context.Background(), "random", roster("luna", "sol"), 1,
		func(_ context.Context, _ persona.Persona) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	// The slot frees up once the session finishes.
	_, err = s.Run(context.Background(), "general", roster("luna", "sol"), 1,
		func(_ context.Context, _ persona.Persona) error { return nil })
	require.NoError(t, err)
}

func TestRunCancellation(t *testing.T) {
	s, _ := newTestScheduler(6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := s.Run(ctx, "general", roster("luna", "sol"), 5, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "cancelled", report.Reason)
	assert.Equal(t, 0, report.Turns)
}

func TestRunSequenceStrictOrder(t *testing.T) {
	s, _ := newTestScheduler(8)

	var speakers []string
	report, err := s.RunSequence(context.Background(), "general", roster("luna", "sol", "vex"),
		func(_ context.Context, p persona.Persona) error {
			speakers = append(speakers, p.Handle)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"luna", "sol", "vex"}, speakers)
	assert.Equal(t, 3, report.Turns)
	assert.Equal(t, "completed", report.Reason)
}

func TestRunSequenceStop(t *testing.T) {
	s, channels := newTestScheduler(9)
	channels.Stop("general")

	report, err := s.RunSequence(context.Background(), "general", roster("luna", "sol"), nil)
	require.NoError(t, err)
	assert.True(t, report.Stopped)
	assert.Equal(t, 0, report.Turns)
}

func TestShuffleDeterministicWithSeed(t *testing.T) {
	s1, _ := newTestScheduler(11)
	s2, _ := newTestScheduler(11)

	a := roster("a", "b", "c", "d", "e")
	b := roster("a", "b", "c", "d", "e")
	s1.Shuffle(a)
	s2.Shuffle(b)
	assert.Equal(t, a, b)
}
