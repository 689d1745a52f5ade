// Package registry provides the type configuration table: a read-mostly map
// from memory type name to the decay, deduplication, and default query limit
// configuration the lifecycle engine consumes. Registration happens at
// startup (programmatically or from a YAML definition file) and is validated
// eagerly; lookups are concurrent-read-safe.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/engramdev/engram/pkg/types"
)

var (
	// ErrTypeNotRegistered indicates a lookup for an unknown memory type.
	ErrTypeNotRegistered = errors.New("memory type not registered")

	// ErrDuplicateType indicates a second registration for the same type
	// name. Duplicate registration is a fatal setup error.
	ErrDuplicateType = errors.New("memory type already registered")
)

// TypeConfig bundles everything the engine needs to know about one memory
// type.
type TypeConfig struct {
	Decay      types.DecayConfig
	Dedup      types.DeduplicationConfig
	QueryLimit types.QueryLimit
}

// Registry is the concurrent-read-safe type configuration table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]TypeConfig
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]TypeConfig)}
}

// Register validates and adds a type configuration. Registering an existing
// name fails with ErrDuplicateType.
func (r *Registry) Register(memType string, cfg TypeConfig) error {
	if memType == "" {
		return fmt.Errorf("%w: type name is required", types.ErrInvalidConfig)
	}

	validated, err := validate(memType, cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[memType]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateType, memType)
	}
	r.entries[memType] = validated
	return nil
}

// Replace atomically swaps the whole table. Used by hot reload; every entry
// is validated before any of the old table is discarded.
func (r *Registry) Replace(entries map[string]TypeConfig) error {
	validated := make(map[string]TypeConfig, len(entries))
	for name, cfg := range entries {
		v, err := validate(name, cfg)
		if err != nil {
			return err
		}
		validated[name] = v
	}

	r.mu.Lock()
	r.entries = validated
	r.mu.Unlock()
	return nil
}

// Types returns the registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Lookup returns the full configuration for a type.
func (r *Registry) Lookup(memType string) (TypeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.entries[memType]
	if !ok {
		return TypeConfig{}, fmt.Errorf("%w: %q", ErrTypeNotRegistered, memType)
	}
	return cfg, nil
}

// DecayConfig returns the decay configuration for a type.
func (r *Registry) DecayConfig(memType string) (types.DecayConfig, error) {
	cfg, err := r.Lookup(memType)
	if err != nil {
		return types.DecayConfig{}, err
	}
	return cfg.Decay, nil
}

// DeduplicationConfig returns the deduplication configuration for a type.
func (r *Registry) DeduplicationConfig(memType string) (types.DeduplicationConfig, error) {
	cfg, err := r.Lookup(memType)
	if err != nil {
		return types.DeduplicationConfig{}, err
	}
	return cfg.Dedup, nil
}

// DefaultQueryLimit returns the default query limit for a type.
func (r *Registry) DefaultQueryLimit(memType string) (types.QueryLimit, error) {
	cfg, err := r.Lookup(memType)
	if err != nil {
		return types.QueryLimit{}, err
	}
	return cfg.QueryLimit, nil
}

// validate runs every component through its validating constructor so an
// invalid definition never enters the table.
func validate(memType string, cfg TypeConfig) (TypeConfig, error) {
	decay, err := types.NewDecayConfig(cfg.Decay)
	if err != nil {
		return TypeConfig{}, fmt.Errorf("type %q: %w", memType, err)
	}
	dedup, err := types.NewDeduplicationConfig(cfg.Dedup)
	if err != nil {
		return TypeConfig{}, fmt.Errorf("type %q: %w", memType, err)
	}
	limit, err := types.NewQueryLimit(cfg.QueryLimit)
	if err != nil {
		return TypeConfig{}, fmt.Errorf("type %q: %w", memType, err)
	}
	return TypeConfig{Decay: decay, Dedup: dedup, QueryLimit: limit}, nil
}
