// Package engine coordinates the persona roster, mention resolution, channel
// state and the scheduler behind a single message entry point. A platform
// integration feeds every incoming message to HandleMessage and exposes the
// text command surface; everything else is wiring.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zzpDavid2/discord-entities/channel"
	"github.com/zzpDavid2/discord-entities/logging"
	"github.com/zzpDavid2/discord-entities/mention"
	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
	"github.com/zzpDavid2/discord-entities/scheduler"
)

// DefaultChatTurns is the session length used when a chat is started without
// an explicit turn count.
const DefaultChatTurns = 10

// Activator runs the activation pipeline for one persona in one channel.
// Implemented by activation.Pipeline; narrowed to an interface so tests can
// observe activations without a model backend.
type Activator interface {
	Activate(ctx context.Context, channelID string, p persona.Persona) error
}

// Status is a point-in-time view of one channel's orchestration state.
type Status struct {
	ChannelID     string
	Stopped       bool
	StopRemaining time.Duration
	Participants  []string // sorted handles currently in a chat session
	PersonaCount  int
	ModelCounts   map[string]int // roster breakdown by model identifier
}

// Engine is the orchestration core. The registry is held behind an atomic
// pointer so reloads swap the whole roster without blocking readers.
type Engine struct {
	registry atomic.Pointer[persona.Registry]
	source   persona.DefinitionSource

	adapter   platform.Adapter
	channels  *channel.Store
	resolver  *mention.Resolver
	scheduler *scheduler.Scheduler
	activator Activator
	logger    logging.Logger
}

// Options configures an Engine.
type Options struct {
	// Logger defaults to NoOp.
	Logger logging.Logger
	// Scheduler defaults to one built over the engine's channel store.
	Scheduler *scheduler.Scheduler
	// Resolver defaults to one built over the engine's channel store and
	// adapter.
	Resolver *mention.Resolver
}

// New constructs an Engine. The source is retained for reloads; the initial
// roster is loaded leniently so a bad definition file never prevents startup.
func New(adapter platform.Adapter, channels *channel.Store, activator Activator, source persona.DefinitionSource, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	e := &Engine{
		source:    source,
		adapter:   adapter,
		channels:  channels,
		scheduler: opts.Scheduler,
		resolver:  opts.Resolver,
		activator: activator,
		logger:    opts.Logger,
	}
	if e.scheduler == nil {
		e.scheduler = scheduler.New(channels, func(o *scheduler.Options) { o.Logger = opts.Logger })
	}
	if e.resolver == nil {
		e.resolver = mention.NewResolver(channels, adapter, func(o *mention.Options) { o.Logger = opts.Logger })
	}

	reg, err := persona.Load(source, false, func(o *persona.LoadOptions) { o.Logger = opts.Logger })
	if err != nil {
		return nil, fmt.Errorf("load persona definitions: %w", err)
	}
	e.registry.Store(reg)
	e.logger.Info("engine ready", "personas", reg.Len())
	return e, nil
}

// Registry returns the current roster snapshot. Safe for concurrent use; the
// snapshot never mutates after a reload publishes it.
func (e *Engine) Registry() *persona.Registry {
	return e.registry.Load()
}

// Reload re-reads persona definitions from the source and swaps the roster.
// In strict mode any malformed definition aborts the reload and the previous
// roster stays live.
func (e *Engine) Reload(strict bool) (*persona.Registry, error) {
	reg, err := persona.Load(e.source, strict, func(o *persona.LoadOptions) { o.Logger = e.logger })
	if err != nil {
		return nil, fmt.Errorf("reload persona definitions: %w", err)
	}
	e.registry.Store(reg)
	e.logger.Info("persona roster reloaded", "personas", reg.Len(), "conflicts", len(reg.Conflicts()))
	return reg, nil
}

// ListPersonas returns the roster sorted by handle.
func (e *Engine) ListPersonas() []persona.Persona {
	return e.Registry().Personas()
}

// Status reports the channel's stop state and active participants.
func (e *Engine) Status(channelID string) Status {
	participants := e.channels.Participants(channelID)
	sort.Strings(participants)
	reg := e.Registry()
	counts := make(map[string]int)
	for _, p := range reg.Personas() {
		counts[p.Model]++
	}
	return Status{
		ChannelID:     channelID,
		Stopped:       e.channels.IsStopped(channelID),
		StopRemaining: e.channels.StopRemaining(channelID),
		Participants:  participants,
		PersonaCount:  reg.Len(),
		ModelCounts:   counts,
	}
}

// Stop puts the channel into cooldown and clears any running session's
// participant set. A session observes the stop at its next turn boundary.
func (e *Engine) Stop(channelID string) {
	e.channels.Stop(channelID)
	e.logger.Info("channel stopped", "channel_id", channelID, "cooldown", channel.StopDuration)
}

// HandleMessage is the single entry point for incoming platform messages.
// Regular bot messages are ignored. Messages starting with the command
// prefix are dispatched to the command surface. Everything else goes through
// mention resolution, and every resolved persona is activated in order.
func (e *Engine) HandleMessage(ctx context.Context, msg platform.Message) error {
	if msg.Bot && !msg.Proxy {
		return nil
	}
	if !msg.Proxy && strings.HasPrefix(msg.Content, commandPrefix) {
		return e.handleCommand(ctx, msg)
	}

	reg := e.Registry()
	res := e.resolver.Resolve(ctx, msg, reg)
	if res.Blocked {
		e.logger.Info("activation blocked by cooldown",
			"channel_id", msg.ChannelID, "remaining", e.channels.StopRemaining(msg.ChannelID))
		return e.adapter.Send(ctx, msg.ChannelID,
			"**Dropping persona mentions because persona activity is currently stopped in this channel.**")
	}

	var firstErr error
	for _, p := range res.Personas {
		if err := e.activator.Activate(ctx, msg.ChannelID, p); err != nil {
			e.logger.Warn("persona activation failed",
				"channel_id", msg.ChannelID, "handle", p.Handle, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SpeakSequence activates the named personas once each, in the given order,
// with short pauses between them. With no handles the whole roster speaks
// in a shuffled order. Handles that do not resolve are reported back rather
// than silently dropped; a handle listed twice speaks twice.
func (e *Engine) SpeakSequence(ctx context.Context, channelID string, handles []string) (scheduler.Report, []string, error) {
	reg := e.Registry()
	var personas []persona.Persona
	var unknown []string
	if len(handles) == 0 {
		personas = reg.Personas()
		e.scheduler.Shuffle(personas)
	} else {
		personas, unknown = resolveHandles(reg, handles)
	}
	if len(personas) == 0 {
		return scheduler.Report{}, unknown, persona.ErrNotFound
	}
	report, err := e.scheduler.RunSequence(ctx, channelID, personas, func(ctx context.Context, p persona.Persona) error {
		return e.activator.Activate(ctx, channelID, p)
	})
	return report, unknown, err
}

// StartChat runs a multi-turn session among the named personas, or among the
// whole roster when no handles are given. turns <= 0 selects the default
// session length.
func (e *Engine) StartChat(ctx context.Context, channelID string, handles []string, turns int) (scheduler.Report, []string, error) {
	reg := e.Registry()
	var personas []persona.Persona
	var unknown []string
	if len(handles) == 0 {
		personas = reg.Personas()
	} else {
		// The turn queue assumes distinct speakers, so a chat roster is
		// a set even when a handle is listed twice.
		personas, unknown = resolveHandles(reg, handles)
		personas = dedupePersonas(personas)
	}
	if len(personas) < 2 {
		return scheduler.Report{}, unknown, scheduler.ErrNeedTwoPersonas
	}
	if turns <= 0 {
		turns = DefaultChatTurns
	}
	report, err := e.scheduler.Run(ctx, channelID, personas, turns, func(ctx context.Context, p persona.Persona) error {
		return e.activator.Activate(ctx, channelID, p)
	})
	return report, unknown, err
}

// resolveHandles looks up each handle in listed order, splitting results
// into matched personas and unknown handles. Duplicates are preserved: a
// handle listed twice resolves twice. Callers that need a set collapse
// them with dedupePersonas.
func resolveHandles(reg *persona.Registry, handles []string) ([]persona.Persona, []string) {
	var personas []persona.Persona
	var unknown []string
	for _, h := range handles {
		p, ok := reg.Get(h)
		if !ok {
			unknown = append(unknown, h)
			continue
		}
		personas = append(personas, p)
	}
	return personas, unknown
}

// dedupePersonas collapses repeated handles, keeping first-seen order.
func dedupePersonas(personas []persona.Persona) []persona.Persona {
	seen := make(map[string]struct{}, len(personas))
	out := personas[:0]
	for _, p := range personas {
		if _, dup := seen[p.Handle]; dup {
			continue
		}
		seen[p.Handle] = struct{}{}
		out = append(out, p)
	}
	return out
}
