// Package activation turns a persona and a channel's recent history into a
// delivered reply. The pipeline fetches history from the platform, shapes it
// into a model request, routes the request to the backend the persona's
// definition calls for, and posts the completion under the persona's display
// identity.
package activation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zzpDavid2/discord-entities/logging"
	"github.com/zzpDavid2/discord-entities/model"
	"github.com/zzpDavid2/discord-entities/model/anthropic"
	"github.com/zzpDavid2/discord-entities/model/openai"
	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
)

const (
	// defaultHistoryLimit is how many messages are fetched per activation.
	defaultHistoryLimit = 50
	// maxHistoryLimit caps caller-supplied limits.
	maxHistoryLimit = 200
	// contextWindow is how many of the trailing history messages become
	// model context.
	contextWindow = 15
	// maxResponseTokens bounds the completion length.
	maxResponseTokens = 400
)

// fallbackMessages are posted in the persona's voice when the backend fails,
// so the channel sees a reaction rather than silence. The real error still
// reaches the caller.
var fallbackMessages = []string{
	"*%s flickers mysteriously and fades away...*",
	"*%s seems lost in thought...*",
	"*%s's presence wavers, unable to manifest words...*",
}

// Error wraps a failed activation with the persona and activation ID for
// log correlation.
type Error struct {
	ActivationID string
	Handle       string
	Err          error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("activation %s (%s): %v", e.ActivationID, e.Handle, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// ModelFactory builds a backend for a persona. Swapped out in tests.
type ModelFactory func(p persona.Persona) (model.Model, error)

// Pipeline executes activations against a platform adapter.
type Pipeline struct {
	adapter platform.Adapter
	factory ModelFactory
	logger  logging.Logger

	historyLimit int

	mu    sync.Mutex
	cache map[string]model.Model // keyed by model name + endpoint
}

// Options configures a Pipeline.
type Options struct {
	// ModelFactory overrides backend construction. Defaults to routing on
	// the persona definition (custom endpoint, then model name prefix).
	ModelFactory ModelFactory
	// HistoryLimit is the number of messages fetched per activation,
	// clamped to [1, 200]. Defaults to 50.
	HistoryLimit int
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// New constructs a Pipeline delivering through the given adapter.
func New(adapter platform.Adapter, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		HistoryLimit: defaultHistoryLimit,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.HistoryLimit > maxHistoryLimit {
		opts.HistoryLimit = maxHistoryLimit
	}
	p := &Pipeline{
		adapter:      adapter,
		factory:      opts.ModelFactory,
		logger:       opts.Logger,
		historyLimit: opts.HistoryLimit,
		cache:        make(map[string]model.Model),
	}
	if p.factory == nil {
		p.factory = defaultFactory
	}
	return p
}

// defaultFactory routes a persona to a backend. A custom endpoint always
// wins; otherwise models named claude* go to Anthropic and everything else
// to OpenAI.
func defaultFactory(p persona.Persona) (model.Model, error) {
	name := p.Model
	if name == "" {
		name = persona.DefaultModel
	}
	switch {
	case p.HasCustomEndpoint():
		return openai.NewModel(name, func(o *openai.Options) {
			o.BaseURL = p.BaseURL
			o.APIKey = p.APIKey
		}), nil
	case strings.HasPrefix(strings.ToLower(name), "claude"):
		return anthropic.NewModel(name, func(o *anthropic.Options) {
			o.APIKey = p.APIKey
		}), nil
	default:
		return openai.NewModel(name, func(o *openai.Options) {
			o.APIKey = p.APIKey
		}), nil
	}
}

// backend returns a cached model for the persona, building one on first use.
// The cache key includes the endpoint so two personas sharing a model name
// but pointing at different servers get separate clients.
func (pl *Pipeline) backend(p persona.Persona) (model.Model, error) {
	key := p.Model + "|" + p.BaseURL
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if m, ok := pl.cache[key]; ok {
		return m, nil
	}
	m, err := pl.factory(p)
	if err != nil {
		return nil, fmt.Errorf("build model backend: %w", err)
	}
	pl.cache[key] = m
	return m, nil
}

// Activate runs the full pipeline for one persona in one channel: fetch
// history, build the request, call the backend and deliver the reply under
// the persona's identity. On backend failure the error is returned and a
// short in-character fallback is posted so the channel is never silently
// skipped.
func (pl *Pipeline) Activate(ctx context.Context, channelID string, p persona.Persona) error {
	activationID := uuid.NewString()
	log := pl.logger

	history, err := pl.adapter.History(ctx, channelID, pl.historyLimit)
	if err != nil {
		return &Error{ActivationID: activationID, Handle: p.Handle, Err: fmt.Errorf("fetch history: %w", err)}
	}

	req := buildRequest(p, history)
	backend, err := pl.backend(p)
	if err != nil {
		return &Error{ActivationID: activationID, Handle: p.Handle, Err: err}
	}

	info := backend.Info()
	log.Debug("activating persona",
		"activation_id", activationID, "handle", p.Handle,
		"model", info.Name, "provider", info.Provider,
		"context_messages", len(req.Messages))

	reply, err := backend.Complete(ctx, req)
	if err != nil {
		log.Error("model completion failed",
			"activation_id", activationID, "handle", p.Handle, "error", err)
		pl.deliverFallback(ctx, channelID, p, activationID)
		return &Error{ActivationID: activationID, Handle: p.Handle, Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		log.Error("model returned empty completion",
			"activation_id", activationID, "handle", p.Handle)
		pl.deliverFallback(ctx, channelID, p, activationID)
		return &Error{ActivationID: activationID, Handle: p.Handle, Err: fmt.Errorf("empty completion")}
	}

	if err := pl.deliver(ctx, channelID, p, reply); err != nil {
		return &Error{ActivationID: activationID, Handle: p.Handle, Err: fmt.Errorf("deliver reply: %w", err)}
	}
	log.Info("persona activated",
		"activation_id", activationID, "handle", p.Handle, "reply_len", len(reply))
	return nil
}

// deliver posts text under the persona's display identity, degrading to a
// prefixed plain message when the platform cannot impersonate.
func (pl *Pipeline) deliver(ctx context.Context, channelID string, p persona.Persona, text string) error {
	if err := pl.adapter.SendAs(ctx, channelID, text, p.Name, p.AvatarURL); err != nil {
		pl.logger.Warn("proxy send failed, falling back to plain message",
			"handle", p.Handle, "error", err)
		return pl.adapter.Send(ctx, channelID, fmt.Sprintf("**%s**: %s", p.Name, text))
	}
	return nil
}

func (pl *Pipeline) deliverFallback(ctx context.Context, channelID string, p persona.Persona, activationID string) {
	// Pick deterministically off the activation ID so retries vary without
	// needing a random source here.
	msg := fallbackMessages[int(activationID[0])%len(fallbackMessages)]
	if err := pl.deliver(ctx, channelID, p, fmt.Sprintf(msg, p.Name)); err != nil {
		pl.logger.Warn("fallback delivery failed",
			"activation_id", activationID, "handle", p.Handle, "error", err)
	}
}

// buildRequest shapes a persona and channel history into a model request.
// Only the trailing window of human and proxy messages becomes context;
// plain bot chatter is excluded so personas respond to people and to each
// other, not to system noise.
func buildRequest(p persona.Persona, history []platform.Message) model.Request {
	var relevant []platform.Message
	for _, m := range history {
		if m.Bot && !m.Proxy {
			continue
		}
		relevant = append(relevant, m)
	}
	if len(relevant) > contextWindow {
		relevant = relevant[len(relevant)-contextWindow:]
	}

	msgs := make([]model.Message, 0, len(relevant))
	for _, m := range relevant {
		if m.Proxy && m.AuthorName == p.Name {
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: m.Content})
			continue
		}
		msgs = append(msgs, model.Message{
			Role:    model.RoleUser,
			Content: fmt.Sprintf("%s: %s", m.AuthorName, m.Content),
		})
	}
	if len(msgs) == 0 {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: "Hello"})
	}

	return model.Request{
		System:      systemPrompt(p),
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   maxResponseTokens,
	}
}

// systemPrompt assembles the persona's instructions into a system message.
func systemPrompt(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, " %s", p.Description)
	}
	if p.Instructions != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Instructions)
	}
	b.WriteString("\n\nStay in character. Reply in a few sentences at most, as one chat message. Do not prefix your reply with your own name.")
	return b.String()
}
