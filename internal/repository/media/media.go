package media

import (
	"context"

	"github.com/wiktor-jurek/stewthius/internal/model"
)

// Repository defines operations for MediaItem persistence
type Repository interface {
	// ListSourceURLs returns every stored source URL
	ListSourceURLs(ctx context.Context) (map[string]struct{}, error)

	// Create inserts a new unprocessed media item. It reports false when an item with the
	// same source URL already exists.
	Create(ctx context.Context, item *model.MediaItem) (bool, error)

	// SelectForAnalysis returns the media items an analysis run should process, ordered by id
	SelectForAnalysis(ctx context.Context, sel model.AnalysisSelection) ([]*model.MediaItem, error)

	// GetByExternalID retrieves a media item by its platform id
	GetByExternalID(ctx context.Context, externalID string) (*model.MediaItem, error)

	// SetStatus updates the processing status outside of a transaction
	SetStatus(ctx context.Context, id int64, status model.ProcessingStatus, isAboutStew *bool) error
}
