package ingredient

import (
	"context"

	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

// Repository defines operations for the canonical ingredient catalog
type Repository interface {
	// LoadAll returns the whole catalog ordered by id
	LoadAll(ctx context.Context) ([]model.IngredientCatalogEntry, error)

	// GetOrCreate returns the entry named name, inserting it with category when absent.
	// q may be a transaction.
	GetOrCreate(ctx context.Context, q common.Querier, name, category string) (model.IngredientCatalogEntry, error)
}
