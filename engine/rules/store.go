package rules

import (
	"fmt"
	"sync/atomic"

	"github.com/uadcheck/uadcheck/engine/schema"
)

// Snapshot is one fully loaded configuration generation: the validated rule
// registry plus the compiled schema. Snapshots are immutable; readers either
// see the previous generation or the complete new one, never a mix.
type Snapshot struct {
	Registry  *Registry
	Schema    *schema.Schema
	Validator *schema.Validator
	Required  map[string]struct{}
}

// Store is the process-wide configuration holder with atomic hot-reload.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore builds the store with its initial snapshot. A load failure here is
// fatal: the engine refuses validation until configuration is corrected.
func NewStore(doc *Document, schemaDoc *schema.Schema, eval *Evaluator) (*Store, error) {
	snapshot, err := buildSnapshot(doc, schemaDoc, eval)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(snapshot)
	return s, nil
}

// Snapshot returns the current configuration generation.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload builds a complete replacement snapshot and swaps it in atomically.
// On failure the previous generation stays in service untouched.
func (s *Store) Reload(doc *Document, schemaDoc *schema.Schema, eval *Evaluator) error {
	snapshot, err := buildSnapshot(doc, schemaDoc, eval)
	if err != nil {
		return err
	}
	s.current.Store(snapshot)
	return nil
}

func buildSnapshot(doc *Document, schemaDoc *schema.Schema, eval *Evaluator) (*Snapshot, error) {
	registry, err := NewRegistry(doc, eval)
	if err != nil {
		return nil, err
	}
	validator, err := schema.NewValidator(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryLoad, err)
	}
	return &Snapshot{
		Registry:  registry,
		Schema:    schemaDoc,
		Validator: validator,
		Required:  schemaDoc.RequiredPaths(),
	}, nil
}
