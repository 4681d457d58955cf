package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition pairs a parsed definition record with the identifier of the
// file it came from. The file identifier drives conflict resolution: its
// sort order breaks ties and its base name decides the generated/manual
// classification.
type Definition struct {
	FileID string
	Record map[string]any
	Err    error // set when the file could not be read or parsed
}

// DefinitionSource enumerates persona definition records. Implementations
// must ignore unsupported formats rather than failing on them.
type DefinitionSource interface {
	Definitions() ([]Definition, error)
}

// DirectorySource reads persona definitions from a directory of .json,
// .yaml and .yml files. Files with other extensions are skipped silently.
// A missing directory yields zero definitions; strictness is decided by the
// load, not the source.
type DirectorySource struct {
	Dir string
}

// NewDirectorySource constructs a source over the given directory.
func NewDirectorySource(dir string) *DirectorySource { return &DirectorySource{Dir: dir} }

// Definitions enumerates and parses the supported files in sorted order.
// A file that fails to read or parse is surfaced as a Definition with Err
// set; the load decides whether that is fatal according to its strict flag.
func (s *DirectorySource) Definitions() ([]Definition, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read definition directory: %w", err)
	}

	var defs []Definition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		record, err := parseDefinitionFile(filepath.Join(s.Dir, name), ext)
		defs = append(defs, Definition{FileID: name, Record: record, Err: err})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].FileID < defs[j].FileID })
	return defs, nil
}

func parseDefinitionFile(path, ext string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	record := map[string]any{}
	if ext == ".json" {
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, err
		}
		return record, nil
	}
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// StaticSource serves a fixed set of definitions. Useful for tests and for
// callers that already hold parsed records.
type StaticSource []Definition

// Definitions returns the definitions in FileID sort order.
func (s StaticSource) Definitions() ([]Definition, error) {
	defs := make([]Definition, len(s))
	copy(defs, s)
	sort.Slice(defs, func(i, j int) bool { return defs[i].FileID < defs[j].FileID })
	return defs, nil
}
