package embedding

import (
	"context"

	"github.com/wiktor-jurek/stewthius/internal/model"
)

// Repository defines operations for summary embeddings
type Repository interface {
	// Upsert stores e outside of a transaction
	Upsert(ctx context.Context, e *model.SummaryEmbedding) error

	// SimilarTo returns up to k nearest neighbours of the media item with externalID by cosine
	// distance, excluding the item itself
	SimilarTo(ctx context.Context, externalID string, k int) ([]model.SimilarItem, error)

	// ListAll returns every stored embedding ordered by media id
	ListAll(ctx context.Context) ([]model.LabeledVector, error)

	// ListMissing returns the stored facts of analyzed items that have no embedding yet
	ListMissing(ctx context.Context, limit int) ([]model.SummarySource, error)
}
