// Package openai implements model.Model on the OpenAI Chat Completions API.
// Because the SDK speaks the de-facto standard completion wire format, the
// same adapter serves personas with a custom OpenAI-compatible endpoint via
// WithBaseURL / WithAPIKey.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zzpDavid2/discord-entities/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	// BaseURL routes requests to an OpenAI-compatible endpoint instead of
	// the default API host.
	BaseURL string
	// APIKey overrides the environment-provided credential.
	APIKey string
	// Temperature is the default applied when a request carries none.
	Temperature float64
}

// WithBaseURL points the adapter at a custom OpenAI-compatible endpoint.
func WithBaseURL(url string) func(o *Options) {
	return func(o *Options) { o.BaseURL = url }
}

// WithAPIKey sets an explicit credential for the endpoint.
func WithAPIKey(key string) func(o *Options) {
	return func(o *Options) { o.APIKey = key }
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client    openai.Client
	modelName string
	opts      Options
}

// NewModel creates an adapter for the named model.
func NewModel(modelName string, optFns ...func(o *Options)) *Model {
	opts := Options{Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}
	var reqOpts []option.RequestOption
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	return &Model{client: openai.NewClient(reqOpts...), modelName: modelName, opts: opts}
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       m.modelName,
		Temperature: openai.Float(temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	provider := "openai"
	if m.opts.BaseURL != "" {
		provider = "openai-compatible"
	}
	return model.Info{Name: m.modelName, Provider: provider}
}
