package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func def(fileID, handle string) Definition {
	return Definition{
		FileID: fileID,
		Record: map[string]any{
			"handle":       handle,
			"name":         handle,
			"description":  "Defined in " + fileID,
			"instructions": "You are " + handle + ".",
		},
	}
}

func TestLoadBasic(t *testing.T) {
	reg, err := Load(StaticSource{def("luna.json", "luna"), def("sol.yaml", "sol")}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"luna", "sol"}, reg.Handles())
	assert.Empty(t, reg.Conflicts())

	p, ok := reg.Get("LUNA")
	require.True(t, ok)
	assert.Equal(t, "luna", p.Handle)
}

func TestLoadConflictResolution(t *testing.T) {
	// File base name equal to the handle marks a generated definition.
	tests := []struct {
		name       string
		defs       StaticSource
		wantWinner string
		wantReason string
	}{
		{
			name:       "generated beats earlier manual",
			defs:       StaticSource{def("custom.json", "luna"), def("luna.json", "luna")},
			wantWinner: "luna.json",
			wantReason: "generated beats manual",
		},
		{
			name:       "generated beats later manual",
			defs:       StaticSource{def("luna.json", "luna"), def("zcustom.json", "luna")},
			wantWinner: "luna.json",
			wantReason: "generated beats manual",
		},
		{
			name:       "later manual wins over earlier manual",
			defs:       StaticSource{def("a.json", "luna"), def("b.json", "luna")},
			wantWinner: "b.json",
			wantReason: "later manual file wins",
		},
		{
			name:       "later generated wins over earlier generated",
			defs:       StaticSource{def("luna.json", "luna"), def("luna.yaml", "luna")},
			wantWinner: "luna.yaml",
			wantReason: "later generated file wins",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Load(tt.defs, false)
			require.NoError(t, err)
			require.Equal(t, 1, reg.Len())

			conflicts := reg.Conflicts()
			require.Len(t, conflicts, 1)
			assert.Equal(t, "luna", conflicts[0].Handle)
			assert.Equal(t, tt.wantWinner, conflicts[0].Winner)
			assert.Equal(t, tt.wantReason, conflicts[0].Reason)

			p, ok := reg.Get("luna")
			require.True(t, ok)
			assert.Equal(t, "Defined in "+tt.wantWinner, p.Description)
		})
	}
}

func TestLoadLenientSkipsBadDefinitions(t *testing.T) {
	source := StaticSource{
		def("good.json", "luna"),
		{FileID: "bad.json", Record: map[string]any{"handle": "broken"}},
	}
	reg, err := Load(source, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"luna"}, reg.Handles())
}

func TestLoadStrictFailsOnBadDefinition(t *testing.T) {
	source := StaticSource{
		def("good.json", "luna"),
		{FileID: "bad.json", Record: map[string]any{"handle": "broken"}},
	}
	_, err := Load(source, true)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "bad.json", defErr.File)
}

func TestLoadStrictEmpty(t *testing.T) {
	_, err := Load(StaticSource{}, true)
	assert.ErrorIs(t, err, ErrEmptyRegistry)

	reg, err := Load(StaticSource{}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryByDisplayName(t *testing.T) {
	reg := NewRegistry(
		Persona{Handle: "luna", Name: "Luna Nightshade"},
		Persona{Handle: "tomas", Name: "Tomás 🎭"},
	)

	p, ok := reg.ByDisplayName("luna nightshade")
	require.True(t, ok)
	assert.Equal(t, "luna", p.Handle)

	// Proxy display names arrive decorated; normalization strips the noise.
	p, ok = reg.ByDisplayName("  tomás!! ")
	require.True(t, ok)
	assert.Equal(t, "tomas", p.Handle)

	_, ok = reg.ByDisplayName("nobody")
	assert.False(t, ok)
}

func TestRegistryAddRemoveClone(t *testing.T) {
	reg := NewRegistry(Persona{Handle: "luna", Name: "Luna"})
	clone := reg.Clone()
	clone.Add(Persona{Handle: "sol", Name: "Sol"})

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 2, clone.Len())

	assert.True(t, clone.Remove("SOL"))
	assert.False(t, clone.Remove("sol"))
	assert.Equal(t, 1, clone.Len())
}

func TestRegistryPersonasSorted(t *testing.T) {
	reg := NewRegistry(
		Persona{Handle: "zoe"},
		Persona{Handle: "ada"},
		Persona{Handle: "mel"},
	)
	var handles []string
	for _, p := range reg.Personas() {
		handles = append(handles, p.Handle)
	}
	assert.Equal(t, []string{"ada", "mel", "zoe"}, handles)
}
