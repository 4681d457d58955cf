// Package mention turns an inbound chat event into the ordered, deduplicated
// set of personas that should respond to it. Resolution combines pseudo-
// mentions in the text, the reply chain, persona-to-persona chaining and the
// channel's cooldown and active-chat state.
package mention

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/zzpDavid2/discord-entities/channel"
	"github.com/zzpDavid2/discord-entities/identity"
	"github.com/zzpDavid2/discord-entities/logging"
	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
)

// pseudoMentionRe matches @word tokens. Only the sigil form activates a
// persona from free text; bare handle substrings are deliberately not
// matched because common words colliding with a handle would produce false
// positives.
var pseudoMentionRe = regexp.MustCompile(`@(\w+)`)

// Result is the outcome of resolving one inbound event.
type Result struct {
	// Personas to activate, ordered and deduplicated by handle.
	Personas []persona.Persona
	// Blocked reports that candidates were discarded because the channel is
	// in its cooldown window. Not an error.
	Blocked bool
	// DirectMention reports that the event explicitly addressed the bot's
	// own account (excluding proxy-authored messages).
	DirectMention bool
}

// Resolver computes persona activations for inbound events.
type Resolver struct {
	channels *channel.Store
	fetcher  platform.MessageFetcher
	rng      *rand.Rand
	logger   logging.Logger
}

// Options configures a Resolver.
type Options struct {
	// Rand drives the random-fallback persona selection. Seed it in tests
	// for deterministic picks. Defaults to a time-seeded generator.
	Rand *rand.Rand
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// NewResolver constructs a resolver over the given channel store and
// message fetcher (used to resolve reply references).
func NewResolver(channels *channel.Store, fetcher platform.MessageFetcher, optFns ...func(o *Options)) *Resolver {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Resolver{channels: channels, fetcher: fetcher, rng: opts.Rand, logger: opts.Logger}
}

// FindByMention scans text for @handle pseudo-mentions and returns the
// matching personas, case-insensitive, deduplicated, in first-seen order.
func FindByMention(text string, reg *persona.Registry) []persona.Persona {
	var out []persona.Persona
	seen := make(map[string]struct{})
	for _, m := range pseudoMentionRe.FindAllStringSubmatch(strings.ToLower(text), -1) {
		handle := m[1]
		if _, dup := seen[handle]; dup {
			continue
		}
		if p, ok := reg.Get(handle); ok {
			out = append(out, p)
			seen[handle] = struct{}{}
		}
	}
	return out
}

// Resolve produces the activation list for an inbound event:
//
//  1. pseudo-mentions in the text, first-seen order;
//  2. when the event replies to a persona proxy message, that persona is
//     prepended unless already present;
//  3. when the event itself is proxy-authored, its mentions chain in after
//     the above;
//  4. a stopped channel discards all candidates (blocked) unless the event
//     is a direct human mention of the bot;
//  5. personas already bound to an active chat are filtered out, again
//     unless the event is a direct human mention;
//  6. a direct mention that resolved nothing summons one persona uniformly
//     at random.
func (r *Resolver) Resolve(ctx context.Context, msg platform.Message, reg *persona.Registry) Result {
	directMention := msg.MentionsBot && !msg.Proxy
	directHuman := directMention && !msg.Bot

	candidates := FindByMention(msg.Content, reg)

	if msg.IsReply() {
		if p, ok := r.replyTarget(ctx, msg, reg); ok {
			candidates = prependUnlessPresent(candidates, p)
		}
	}

	// A persona tagging other personas chains the conversation onward; its
	// mentions were already collected in step 1 and survive the dedupe, so
	// nothing extra to append here beyond keeping order stable.
	candidates = dedupe(candidates)

	if len(candidates) == 0 && !directMention {
		return Result{DirectMention: directMention}
	}

	if r.channels.IsStopped(msg.ChannelID) && !directHuman {
		r.logger.Info("persona mentions blocked, channel stopped",
			"channel_id", msg.ChannelID, "dropped", len(candidates))
		return Result{Blocked: true, DirectMention: directMention}
	}

	if !directHuman {
		candidates = r.filterInChat(msg.ChannelID, candidates)
	}

	if len(candidates) == 0 && directMention && reg.Len() > 0 {
		all := reg.Personas()
		pick := all[r.rng.Intn(len(all))]
		r.logger.Debug("no specific personas requested, summoning random",
			"channel_id", msg.ChannelID, "handle", pick.Handle)
		candidates = []persona.Persona{pick}
	}

	return Result{Personas: candidates, DirectMention: directMention}
}

// replyTarget resolves the referenced message's author to a persona. Fetch
// failures are logged and treated as no reply target, matching the
// best-effort nature of reply chains.
func (r *Resolver) replyTarget(ctx context.Context, msg platform.Message, reg *persona.Registry) (persona.Persona, bool) {
	ref, err := r.fetcher.FetchMessage(ctx, msg.ChannelID, msg.ReplyToID)
	if err != nil {
		r.logger.Debug("could not fetch referenced message",
			"channel_id", msg.ChannelID, "message_id", msg.ReplyToID, "error", err)
		return persona.Persona{}, false
	}
	handle, ok := identity.FromMessage(ref, reg)
	if !ok {
		return persona.Persona{}, false
	}
	return reg.Get(handle)
}

func (r *Resolver) filterInChat(channelID string, candidates []persona.Persona) []persona.Persona {
	out := candidates[:0]
	for _, p := range candidates {
		if r.channels.IsInChat(channelID, p.Handle) {
			r.logger.Info("persona blocked from mention, currently in chat",
				"channel_id", channelID, "handle", p.Handle)
			continue
		}
		out = append(out, p)
	}
	return out
}

func prependUnlessPresent(list []persona.Persona, p persona.Persona) []persona.Persona {
	for _, existing := range list {
		if existing.Handle == p.Handle {
			return list
		}
	}
	return append([]persona.Persona{p}, list...)
}

func dedupe(list []persona.Persona) []persona.Persona {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, p := range list {
		if _, dup := seen[p.Handle]; dup {
			continue
		}
		seen[p.Handle] = struct{}{}
		out = append(out, p)
	}
	return out
}
