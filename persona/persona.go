// Package persona holds the conversational persona value type and the
// registry that loads and conflict-resolves persona definitions from a
// definition source. A registry is an immutable snapshot: the engine builds
// one wholesale on load or reload and swaps it into place atomically, so
// concurrent readers never observe a partially rebuilt mapping.
package persona

import (
	"fmt"
	"strings"
)

// DefaultModel is the completion model used when a definition omits one.
const DefaultModel = "gpt-4o-mini"

// Persona is a configured conversational character the engine can activate.
// Personas are immutable value records once loaded. Custom endpoint support
// is expressed through optional override fields rather than a separate type;
// use HasCustomEndpoint to branch.
type Persona struct {
	Handle       string   // unique key, lowercase and trimmed
	Name         string   // display name shown through the proxy identity
	Description  string   // short blurb for listings
	Instructions string   // system prompt for the completion backend
	Model        string   // completion model identifier
	Temperature  *float64 // optional sampling temperature in [0,2]
	AvatarURL    string   // optional avatar reference for the proxy identity
	BaseURL      string   // optional custom completion endpoint
	APIKey       string   // optional credential for the custom endpoint
}

// HasCustomEndpoint reports whether the persona routes completions to its
// own endpoint instead of the default backend.
func (p Persona) HasCustomEndpoint() bool { return p.BaseURL != "" }

// String returns a compact description used in logs.
func (p Persona) String() string {
	return fmt.Sprintf("Persona(%s, handle=%q, model=%s)", p.Name, p.Handle, p.Model)
}

// NormalizeHandle applies the canonical handle normalization: lowercase and
// surrounding whitespace trimmed.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Validate checks the persona invariants shared by every load path.
func (p Persona) Validate() error {
	if p.Handle == "" {
		return fmt.Errorf("handle is required")
	}
	if p.Handle != NormalizeHandle(p.Handle) {
		return fmt.Errorf("handle %q is not normalized", p.Handle)
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Description == "" {
		return fmt.Errorf("description is required")
	}
	if p.Instructions == "" {
		return fmt.Errorf("instructions are required")
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0,2]", *p.Temperature)
	}
	if p.BaseURL != "" && !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must begin with http:// or https://", p.BaseURL)
	}
	return nil
}

// FromRecord builds a Persona from an opaque key-value definition record.
// Missing model falls back to DefaultModel; the handle is normalized before
// validation.
func FromRecord(record map[string]any) (Persona, error) {
	p := Persona{
		Handle:       NormalizeHandle(stringField(record, "handle")),
		Name:         stringField(record, "name"),
		Description:  stringField(record, "description"),
		Instructions: stringField(record, "instructions"),
		Model:        stringField(record, "model"),
		AvatarURL:    stringField(record, "avatar"),
		BaseURL:      stringField(record, "base_url"),
		APIKey:       stringField(record, "api_key"),
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if raw, ok := record["temperature"]; ok {
		t, err := floatValue(raw)
		if err != nil {
			return Persona{}, fmt.Errorf("temperature: %w", err)
		}
		p.Temperature = &t
	}
	if err := p.Validate(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

func stringField(record map[string]any, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

// floatValue accepts the numeric shapes JSON and YAML decoders produce.
func floatValue(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}
