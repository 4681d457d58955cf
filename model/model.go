// Package model defines the provider-agnostic completion abstraction used by
// the activation pipeline. Providers (OpenAI-compatible, Anthropic) implement
// the Model interface so higher layers stay decoupled from vendor SDKs.
// Personas speak in plain text; the interface is intentionally a single
// non-streaming completion call.
package model

import (
	"context"
	"fmt"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational turn handed to a provider.
type Message struct {
	Role    string // RoleUser or RoleAssistant
	Content string
}

// Request captures the normalized completion input built by the pipeline.
type Request struct {
	System      string // persona instructions
	Messages    []Message
	Temperature *float64 // nil means provider default
	MaxTokens   int64
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string
	Provider string // "openai", "anthropic", ...
}

// Model is the minimal interface the activation pipeline drives.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
	Info() Info
}

// MockModel is a lightweight in-memory Model for tests and examples.
type MockModel struct {
	info      Info
	responses map[string]string
	Err       error // returned by Complete when set
	Requests  []Request
}

// NewMockModel constructs a MockModel identifying as the given model name.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for the last user message.
func (m *MockModel) AddResponse(lastUserContent, response string) {
	m.responses[lastUserContent] = response
}

// Complete implements Model. It records the request and answers with the
// canned response for the last message, or a generic echo.
func (m *MockModel) Complete(_ context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(req.Messages) > 0 {
		last := req.Messages[len(req.Messages)-1].Content
		if resp, ok := m.responses[last]; ok {
			return resp, nil
		}
		return fmt.Sprintf("Mock response to: %s", last), nil
	}
	return "Mock response", nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
