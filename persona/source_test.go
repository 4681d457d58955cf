package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "luna.json", `{"handle":"luna","name":"Luna","description":"d","instructions":"i"}`)
	writeFile(t, dir, "sol.yaml", "handle: sol\nname: Sol\ndescription: d\ninstructions: i\n")
	writeFile(t, dir, "notes.txt", "not a persona")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	defs, err := NewDirectorySource(dir).Definitions()
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "luna.json", defs[0].FileID)
	assert.NoError(t, defs[0].Err)
	assert.Equal(t, "luna", defs[0].Record["handle"])

	assert.Equal(t, "sol.yaml", defs[1].FileID)
	assert.Equal(t, "sol", defs[1].Record["handle"])
}

func TestDirectorySourceParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "luna.json", `{"handle":"luna","name":"Luna","description":"d","instructions":"i"}`)

	defs, err := NewDirectorySource(dir).Definitions()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Error(t, defs[0].Err)
	assert.NoError(t, defs[1].Err)

	// Lenient load skips the broken file, strict load surfaces it.
	reg, err := Load(NewDirectorySource(dir), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"luna"}, reg.Handles())

	_, err = Load(NewDirectorySource(dir), true)
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "broken.json", defErr.File)
}

func TestDirectorySourceMissingDir(t *testing.T) {
	defs, err := NewDirectorySource(filepath.Join(t.TempDir(), "nope")).Definitions()
	require.NoError(t, err)
	assert.Empty(t, defs)
}
