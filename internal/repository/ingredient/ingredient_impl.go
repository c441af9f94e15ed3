package ingredient

import (
	"context"

	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

type ingredientRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &ingredientRepository{pool: pool}
}

// LoadAll returns the whole catalog ordered by id
func (r *ingredientRepository) LoadAll(ctx context.Context) ([]model.IngredientCatalogEntry, error) {
	rows, err := r.pool.Query(ctx, "SELECT ingredient_id, ingredient_name, ingredient_category FROM ingredients ORDER BY ingredient_id")
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to load ingredients")
	}
	defer rows.Close()

	entries := []model.IngredientCatalogEntry{}
	for rows.Next() {
		var e model.IngredientCatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Category); err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan ingredient")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate ingredients")
	}

	return entries, nil
}

// GetOrCreate upserts on the unique name so two runners racing on the same new ingredient
// both get the same id. The category of an existing entry is never changed.
func (r *ingredientRepository) GetOrCreate(ctx context.Context, q common.Querier, name, category string) (model.IngredientCatalogEntry, error) {
	if q == nil {
		q = r.pool
	}

	sql := `INSERT INTO ingredients (ingredient_name, ingredient_category)
		VALUES ($1, $2)
		ON CONFLICT (ingredient_name) DO UPDATE SET ingredient_name = EXCLUDED.ingredient_name
		RETURNING ingredient_id, ingredient_name, ingredient_category`

	var e model.IngredientCatalogEntry
	err := q.QueryRow(ctx, sql, name, model.ValidCategory(category)).Scan(&e.ID, &e.Name, &e.Category)
	if err != nil {
		return model.IngredientCatalogEntry{}, common.HandlePostgreSQLError(err, "failed to get or create ingredient")
	}
	return e, nil
}
