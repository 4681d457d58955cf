// Package entities provides a high-level façade over the persona
// orchestration engine. Most applications interact with this package by:
//  1. Creating an Entities instance via New() with a persona definition
//     source and a platform adapter
//  2. Feeding incoming platform messages to HandleMessage
//  3. Optionally driving sessions directly (Speak, Chat, Stop)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; real deployments supply a platform adapter bound to their chat
// service and a structured logger.
package entities

import (
	"context"

	"github.com/zzpDavid2/discord-entities/activation"
	"github.com/zzpDavid2/discord-entities/channel"
	"github.com/zzpDavid2/discord-entities/engine"
	"github.com/zzpDavid2/discord-entities/logging"
	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
	"github.com/zzpDavid2/discord-entities/scheduler"
)

// Options configures an Entities instance.
type Options struct {
	// Adapter binds the engine to a chat platform. Defaults to an in-memory
	// adapter suitable for tests and local experiments.
	Adapter platform.Adapter

	// Activator runs persona activations. Defaults to an activation.Pipeline
	// over the adapter, routing to real model backends.
	Activator engine.Activator

	// HistoryLimit is passed to the default activation pipeline. Ignored
	// when a custom Activator is supplied.
	HistoryLimit int

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Entities is the high-level façade aggregating the engine and its services.
type Entities struct {
	opts     Options
	engine   *engine.Engine
	channels *channel.Store
}

// New creates an Entities instance loading personas from the given source.
// Any unset service is initialized with a default implementation.
func New(source persona.DefinitionSource, optFns ...func(o *Options)) (*Entities, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Adapter == nil {
		opts.Adapter = platform.NewInMemoryAdapter()
	}
	if opts.Activator == nil {
		opts.Activator = activation.New(opts.Adapter, func(o *activation.Options) {
			o.Logger = opts.Logger
			o.HistoryLimit = opts.HistoryLimit
		})
	}

	channels := channel.NewStore()
	eng, err := engine.New(opts.Adapter, channels, opts.Activator, source, func(o *engine.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}
	return &Entities{opts: opts, engine: eng, channels: channels}, nil
}

// HandleMessage routes one incoming platform message through command
// dispatch and mention resolution.
func (e *Entities) HandleMessage(ctx context.Context, msg platform.Message) error {
	return e.engine.HandleMessage(ctx, msg)
}

// Personas returns the loaded roster sorted by handle.
func (e *Entities) Personas() []persona.Persona {
	return e.engine.ListPersonas()
}

// Reload re-reads persona definitions and swaps the roster.
func (e *Entities) Reload(strict bool) (*persona.Registry, error) {
	return e.engine.Reload(strict)
}

// Status reports one channel's orchestration state.
func (e *Entities) Status(channelID string) engine.Status {
	return e.engine.Status(channelID)
}

// Stop pauses persona activity in the channel for the cooldown window.
func (e *Entities) Stop(channelID string) {
	e.engine.Stop(channelID)
}

// Speak activates the named personas once each in the given order. With no
// handles the whole roster speaks in a shuffled order.
func (e *Entities) Speak(ctx context.Context, channelID string, handles ...string) (scheduler.Report, []string, error) {
	return e.engine.SpeakSequence(ctx, channelID, handles)
}

// Chat runs a multi-turn session among the named personas, or the whole
// roster when no handles are given.
func (e *Entities) Chat(ctx context.Context, channelID string, turns int, handles ...string) (scheduler.Report, []string, error) {
	return e.engine.StartChat(ctx, channelID, handles, turns)
}
