package persona

import "fmt"

var (
	// ErrEmptyRegistry is returned when a strict load produces zero personas.
	ErrEmptyRegistry = fmt.Errorf("no personas loaded")

	// ErrNotFound is returned when a requested handle is absent from the registry.
	ErrNotFound = fmt.Errorf("persona not found")
)

// DefinitionError reports a malformed or unsupported definition record.
// It is recoverable (skip and log) unless a strict load was requested, in
// which case it aborts the whole load.
type DefinitionError struct {
	File string
	Err  error
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("definition %s: %v", e.File, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *DefinitionError) Unwrap() error { return e.Err }
