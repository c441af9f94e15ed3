// Package ingredient resolves raw ingredient mentions against the canonical catalog.
package ingredient

import (
	"context"

	"go.uber.org/zap"

	"github.com/wiktor-jurek/stewthius/internal/config"
	"github.com/wiktor-jurek/stewthius/internal/model"
	repocommon "github.com/wiktor-jurek/stewthius/internal/repository/common"
	repo "github.com/wiktor-jurek/stewthius/internal/repository/ingredient"
)

// DefaultThreshold is the minimum similarity for a fuzzy match
const DefaultThreshold = config.DefaultMatchThreshold

type entry struct {
	model.IngredientCatalogEntry
	canonical  string
	normalized string
}

// Resolver maps raw names to catalog ids using an in-memory snapshot of the catalog taken
// at the start of a run. It is not safe for concurrent use.
type Resolver struct {
	store     repo.Repository
	threshold float64
	entries   []entry
	logger    *zap.Logger
}

// NewResolver loads the catalog snapshot. threshold is clamped to [0, 1].
func NewResolver(ctx context.Context, store repo.Repository, threshold float64, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		store:     store,
		threshold: min(max(threshold, 0), 1),
		entries:   make([]entry, 0, len(catalog)),
		logger:    logger,
	}
	for _, e := range catalog {
		r.add(e)
	}
	return r, nil
}

// Len returns the snapshot size
func (r *Resolver) Len() int { return len(r.entries) }

// Mark returns a position Reset can roll the snapshot back to
func (r *Resolver) Mark() int { return len(r.entries) }

// Reset drops every entry added after mark
func (r *Resolver) Reset(mark int) {
	if mark >= 0 && mark < len(r.entries) {
		r.entries = r.entries[:mark]
	}
}

// Resolve returns the catalog id for rawName, creating the entry through q when no exact or
// fuzzy match exists. ok is false when the name canonicalizes to nothing.
func (r *Resolver) Resolve(ctx context.Context, q repocommon.Querier, rawName, rawCategory string) (int64, bool, error) {
	canonical := Canonicalize(rawName)
	if canonical == "" {
		return 0, false, nil
	}

	if match := r.match(canonical); match != nil {
		return match.ID, true, nil
	}

	category := rawCategory
	if category == "" {
		category = model.DefaultCategory
	}
	created, err := r.store.GetOrCreate(ctx, q, canonical, category)
	if err != nil {
		return 0, false, err
	}
	r.add(created)
	r.logger.Debug("created ingredient",
		zap.String("ingredient", created.Name),
		zap.String("category", created.Category),
		zap.Int64("ingredient_id", created.ID))
	return created.ID, true, nil
}

func (r *Resolver) match(canonical string) *entry {
	for i := range r.entries {
		if r.entries[i].canonical == canonical || r.entries[i].normalized == canonical {
			return &r.entries[i]
		}
	}

	var best *entry
	bestScore := 0.0
	for i := range r.entries {
		target := r.entries[i].canonical
		if target == "" {
			target = r.entries[i].normalized
		}
		if score := similarity(canonical, target); score > bestScore {
			bestScore = score
			best = &r.entries[i]
		}
	}
	if best != nil && bestScore >= r.threshold {
		return best
	}
	return nil
}

func (r *Resolver) add(e model.IngredientCatalogEntry) {
	r.entries = append(r.entries, entry{
		IngredientCatalogEntry: e,
		canonical:              Canonicalize(e.Name),
		normalized:             capitalizeFirst(e.Name),
	})
}
