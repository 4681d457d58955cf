package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() map[string]any {
	return map[string]any{
		"handle":       "luna",
		"name":         "Luna",
		"description":  "A dreamy night owl.",
		"instructions": "You are Luna.",
	}
}

func TestFromRecordDefaults(t *testing.T) {
	p, err := FromRecord(validRecord())
	require.NoError(t, err)

	assert.Equal(t, "luna", p.Handle)
	assert.Equal(t, "Luna", p.Name)
	assert.Equal(t, DefaultModel, p.Model)
	assert.Nil(t, p.Temperature)
	assert.False(t, p.HasCustomEndpoint())
}

func TestFromRecordNormalizesHandle(t *testing.T) {
	rec := validRecord()
	rec["handle"] = "  LUNA "

	p, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "luna", p.Handle)
}

func TestFromRecordCustomEndpoint(t *testing.T) {
	rec := validRecord()
	rec["model"] = "local-model"
	rec["base_url"] = "http://localhost:8080/v1"
	rec["api_key"] = "secret"

	p, err := FromRecord(rec)
	require.NoError(t, err)
	assert.True(t, p.HasCustomEndpoint())
	assert.Equal(t, "local-model", p.Model)
}

func TestFromRecordTemperature(t *testing.T) {
	rec := validRecord()
	rec["temperature"] = 0.9

	p, err := FromRecord(rec)
	require.NoError(t, err)
	require.NotNil(t, p.Temperature)
	assert.InDelta(t, 0.9, *p.Temperature, 1e-9)

	// YAML decoders hand integers over as int
	rec["temperature"] = 1
	p, err = FromRecord(rec)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, *p.Temperature, 1e-9)

	rec["temperature"] = "hot"
	_, err = FromRecord(rec)
	assert.Error(t, err)
}

func TestFromRecordInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing handle", func(r map[string]any) { delete(r, "handle") }},
		{"missing name", func(r map[string]any) { delete(r, "name") }},
		{"missing description", func(r map[string]any) { delete(r, "description") }},
		{"missing instructions", func(r map[string]any) { delete(r, "instructions") }},
		{"temperature too high", func(r map[string]any) { r["temperature"] = 2.5 }},
		{"temperature negative", func(r map[string]any) { r["temperature"] = -0.1 }},
		{"bad base url", func(r map[string]any) { r["base_url"] = "localhost:8080" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			_, err := FromRecord(rec)
			assert.Error(t, err)
		})
	}
}
