package certification

import (
	"context"
	"log/slog"
	"sync/atomic"

	"civreg/internal/identity/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Store loads certification reference data. Implemented by the persistence
// adapter; the registry only depends on this interface.
type Store interface {
	LoadLevels(ctx context.Context) ([]ProcessusLevel, error)
	LoadKeyDefinitions(ctx context.Context) ([]models.KeyDefinition, error)
}

type levelKey struct {
	processus id.ProcessusCode
	key       id.AttrKey
}

// snapshot is an immutable view of the reference data. Refresh builds a new
// one and swaps the pointer; in-flight requests keep reading the old view.
type snapshot struct {
	levels      map[levelKey]int
	definitions map[id.AttrKey]models.KeyDefinition
}

// Registry resolves certification levels and attribute key definitions.
// Read-mostly: safe for concurrent use, refreshed on an invalidation signal.
type Registry struct {
	store   Store
	logger  *slog.Logger
	current atomic.Pointer[snapshot]
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry constructs a registry and performs the initial load.
func NewRegistry(ctx context.Context, store Store, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "certification store is required")
	}
	r := &Registry{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads reference data and atomically swaps the snapshot.
func (r *Registry) Refresh(ctx context.Context) error {
	levels, err := r.store.LoadLevels(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certification levels")
	}
	defs, err := r.store.LoadKeyDefinitions(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attribute key definitions")
	}

	next := &snapshot{
		levels:      make(map[levelKey]int, len(levels)),
		definitions: make(map[id.AttrKey]models.KeyDefinition, len(defs)),
	}
	for _, l := range levels {
		next.levels[levelKey{l.Processus, l.Key}] = l.Level
	}
	for _, d := range defs {
		if err := d.Compile(); err != nil {
			return err
		}
		next.definitions[d.Key] = d
	}
	r.current.Store(next)

	if r.logger != nil {
		r.logger.InfoContext(ctx, "certification reference data refreshed",
			"levels", len(levels),
			"keys", len(defs),
		)
	}
	return nil
}

// LevelOf resolves the level a processus grants on one attribute key.
// An unknown (processus, key) pair is a reference-data defect, not a business
// outcome; callers stamping snapshots use ResolveLevel instead.
func (r *Registry) LevelOf(processus id.ProcessusCode, key id.AttrKey) (int, error) {
	level, ok := r.current.Load().levels[levelKey{processus, key}]
	if !ok {
		return LevelUnresolved, dErrors.Newf(dErrors.CodeInternal,
			"no certification level for processus %q on attribute %q", processus, key)
	}
	return level, nil
}

// ResolveLevel is the lenient variant used when re-reading stored snapshots:
// unknown pairs map to LevelUnresolved so the comparator can report
// Incomparable instead of failing the request.
func (r *Registry) ResolveLevel(processus id.ProcessusCode, key id.AttrKey) int {
	level, ok := r.current.Load().levels[levelKey{processus, key}]
	if !ok {
		return LevelUnresolved
	}
	return level
}

// Definition returns the key definition for one attribute key.
func (r *Registry) Definition(key id.AttrKey) (models.KeyDefinition, error) {
	def, ok := r.current.Load().definitions[key]
	if !ok {
		return models.KeyDefinition{}, dErrors.Newf(dErrors.CodeInternal, "unknown attribute key %q", key)
	}
	return def, nil
}

// Definitions returns all key definitions, for creation-time mandatory checks.
func (r *Registry) Definitions() []models.KeyDefinition {
	snap := r.current.Load()
	defs := make([]models.KeyDefinition, 0, len(snap.definitions))
	for _, d := range snap.definitions {
		defs = append(defs, d)
	}
	return defs
}
