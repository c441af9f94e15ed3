package analysis

import (
	"context"

	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

// ResolveFunc maps a raw ingredient mention to a catalog id using q, which is the open
// transaction. ok is false when the mention should be skipped.
type ResolveFunc func(ctx context.Context, q common.Querier, rawName, rawCategory string) (id int64, ok bool, err error)

// Repository persists analysis results
type Repository interface {
	// Save writes the analysis, its mentions, transcript and embedding and marks the media
	// item analyzed, all in one transaction. Nothing is written when any step fails.
	Save(ctx context.Context, w *model.AnalysisWrite, resolve ResolveFunc) (int64, error)
}
