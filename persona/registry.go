package persona

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zzpDavid2/discord-entities/internal/util"
	"github.com/zzpDavid2/discord-entities/logging"
)

// fileCategory classifies the origin of a definition for conflict resolution.
type fileCategory int

const (
	categoryManual fileCategory = iota
	categoryGenerated
)

func (c fileCategory) String() string {
	if c == categoryGenerated {
		return "generated"
	}
	return "manual"
}

// Conflict records the resolution of two definitions claiming the same
// handle. Kept on the registry for observability.
type Conflict struct {
	Handle string
	Winner string // file identifier of the record that was kept
	Loser  string // file identifier of the record that was dropped
	Reason string
}

// Registry is a handle-to-persona mapping produced wholesale by Load.
// It is treated as an immutable snapshot by the engine; Add and Remove exist
// for dynamic management and tests, which operate on a private working copy
// before it is published.
type Registry struct {
	personas  map[string]Persona
	conflicts []Conflict
}

// NewRegistry builds a registry from explicit personas. Later duplicates of
// a handle replace earlier ones.
func NewRegistry(personas ...Persona) *Registry {
	r := &Registry{personas: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		r.personas[p.Handle] = p
	}
	return r
}

// LoadOptions configures a Load call.
type LoadOptions struct {
	// Logger receives skip and conflict notices. Defaults to NoOp.
	Logger logging.Logger
}

// Load enumerates the source's definition records in deterministic sorted
// order and builds a registry, resolving handle conflicts:
//
//   - a record whose base filename equals its handle is "generated", any
//     other is "manual"; generated beats manual regardless of order;
//   - within the same category the later file in sort order wins.
//
// Malformed or unreadable records are skipped and logged unless strict is
// set, in which case the whole load aborts with a DefinitionError. A strict
// load that ends with zero personas fails with ErrEmptyRegistry.
func Load(source DefinitionSource, strict bool, optFns ...func(o *LoadOptions)) (*Registry, error) {
	opts := LoadOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	defs, err := source.Definitions()
	if err != nil {
		return nil, fmt.Errorf("enumerate definitions: %w", err)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].FileID < defs[j].FileID })

	reg := &Registry{personas: make(map[string]Persona, len(defs))}
	categories := make(map[string]fileCategory, len(defs))
	files := make(map[string]string, len(defs))

	for _, def := range defs {
		p, perr := definitionPersona(def)
		if perr != nil {
			if strict {
				return nil, perr
			}
			opts.Logger.Warn("skipping persona definition", "file", def.FileID, "error", perr)
			continue
		}

		cat := classify(def.FileID, p.Handle)
		if _, exists := reg.personas[p.Handle]; !exists {
			reg.personas[p.Handle] = p
			categories[p.Handle] = cat
			files[p.Handle] = def.FileID
			continue
		}

		winnerFile, loserFile, reason := resolveConflict(files[p.Handle], categories[p.Handle], def.FileID, cat)
		if winnerFile == def.FileID {
			reg.personas[p.Handle] = p
			categories[p.Handle] = cat
			files[p.Handle] = def.FileID
		}
		conflict := Conflict{Handle: p.Handle, Winner: winnerFile, Loser: loserFile, Reason: reason}
		reg.conflicts = append(reg.conflicts, conflict)
		opts.Logger.Info("persona definition conflict",
			"handle", conflict.Handle, "winner", conflict.Winner, "loser", conflict.Loser, "reason", conflict.Reason)
	}

	if len(reg.personas) == 0 && strict {
		return nil, ErrEmptyRegistry
	}
	return reg, nil
}

func definitionPersona(def Definition) (Persona, error) {
	if def.Err != nil {
		return Persona{}, &DefinitionError{File: def.FileID, Err: def.Err}
	}
	if def.Record == nil {
		return Persona{}, &DefinitionError{File: def.FileID, Err: fmt.Errorf("empty record")}
	}
	p, err := FromRecord(def.Record)
	if err != nil {
		return Persona{}, &DefinitionError{File: def.FileID, Err: err}
	}
	return p, nil
}

// classify marks a definition as generated when its base filename (without
// extension) equals the handle it defines.
func classify(fileID, handle string) fileCategory {
	base := fileID
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == handle {
		return categoryGenerated
	}
	return categoryManual
}

// resolveConflict decides which of two same-handle definitions survives.
// Files arrive in sort order, so the incoming file is always the later one.
func resolveConflict(prevFile string, prevCat fileCategory, nextFile string, nextCat fileCategory) (winner, loser, reason string) {
	switch {
	case prevCat == categoryGenerated && nextCat == categoryManual:
		return prevFile, nextFile, "generated beats manual"
	case prevCat == categoryManual && nextCat == categoryGenerated:
		return nextFile, prevFile, "generated beats manual"
	default:
		return nextFile, prevFile, fmt.Sprintf("later %s file wins", nextCat)
	}
}

// Len returns the number of personas in the snapshot.
func (r *Registry) Len() int { return len(r.personas) }

// Get returns the persona for a handle.
func (r *Registry) Get(handle string) (Persona, bool) {
	p, ok := r.personas[NormalizeHandle(handle)]
	return p, ok
}

// Add inserts or replaces a persona. Intended for dynamic management of a
// private working copy, not for published snapshots.
func (r *Registry) Add(p Persona) {
	r.personas[p.Handle] = p
}

// Remove deletes a persona by handle and reports whether it was present.
func (r *Registry) Remove(handle string) bool {
	handle = NormalizeHandle(handle)
	if _, ok := r.personas[handle]; !ok {
		return false
	}
	delete(r.personas, handle)
	return true
}

// ByDisplayName finds a persona by display name, case-insensitive, using
// the same normalization the identity matcher applies to proxy authors.
func (r *Registry) ByDisplayName(name string) (Persona, bool) {
	want := strings.ToLower(util.NormalizeName(name))
	for _, p := range r.Personas() {
		if strings.ToLower(util.NormalizeName(p.Name)) == want {
			return p, true
		}
	}
	return Persona{}, false
}

// Handles returns all handles in the registry iteration order (sorted).
func (r *Registry) Handles() []string {
	handles := make([]string, 0, len(r.personas))
	for h := range r.personas {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// Personas returns the personas in registry iteration order (sorted by
// handle). Iteration order is deterministic so first-match rules behave the
// same across loads.
func (r *Registry) Personas() []Persona {
	out := make([]Persona, 0, len(r.personas))
	for _, h := range r.Handles() {
		out = append(out, r.personas[h])
	}
	return out
}

// Conflicts returns the conflict resolutions recorded during the load.
func (r *Registry) Conflicts() []Conflict {
	out := make([]Conflict, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// Clone returns an independent working copy, used by dynamic add/remove
// flows so the published snapshot stays immutable.
func (r *Registry) Clone() *Registry {
	clone := &Registry{personas: make(map[string]Persona, len(r.personas))}
	for h, p := range r.personas {
		clone.personas[h] = p
	}
	clone.conflicts = append(clone.conflicts, r.conflicts...)
	return clone
}
