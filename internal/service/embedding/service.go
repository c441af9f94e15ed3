// Package embedding builds summary embeddings and answers similarity and layout queries
// over them.
package embedding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	repo "github.com/wiktor-jurek/stewthius/internal/repository/embedding"
)

// Embedder turns summary text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedModel() string
	Dimensions() int
}

// Service exposes similarity search, projection and backfill
type Service struct {
	repo     repo.Repository
	embedder Embedder
	logger   *zap.Logger
	project  ProjectOptions
}

// NewService creates an embedding Service. embedder may be nil for read-only use.
func NewService(r repo.Repository, embedder Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: r, embedder: embedder, logger: logger, project: DefaultProjectOptions()}
}

// SimilarTo returns up to k nearest neighbours of the item with externalID
func (s *Service) SimilarTo(ctx context.Context, externalID string, k int) ([]model.SimilarItem, error) {
	if k <= 0 {
		return []model.SimilarItem{}, nil
	}
	return s.repo.SimilarTo(ctx, externalID, k)
}

// ProjectedPoint is the layout position of one media item
type ProjectedPoint struct {
	ExternalID string `json:"video_id"`
	model.Point
}

// ProjectAll loads every stored embedding and lays them out in the unit square
func (s *Service) ProjectAll(ctx context.Context) ([]ProjectedPoint, error) {
	labeled, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(labeled))
	for i, lv := range labeled {
		vectors[i] = lv.Vector
	}
	points := Project(vectors, s.project)

	out := make([]ProjectedPoint, len(points))
	for i, p := range points {
		out[i] = ProjectedPoint{ExternalID: labeled[i].ExternalID, Point: p}
	}
	return out, nil
}

// BackfillResult counts the outcome of one backfill run
type BackfillResult struct {
	RunID     string
	Candidate int
	Embedded  int
	Failed    int
	Elapsed   time.Duration
}

// Backfill embeds analyzed items that have no summary embedding yet, rebuilding the summary
// from stored facts. Per-item failures are logged and counted.
func (s *Service) Backfill(ctx context.Context, limit int) (*BackfillResult, error) {
	if s.embedder == nil {
		return nil, apperrors.FatalConfig("an embedder is required for backfill")
	}
	started := time.Now()
	result := &BackfillResult{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", result.RunID))

	sources, err := s.repo.ListMissing(ctx, limit)
	if err != nil {
		return nil, err
	}
	result.Candidate = len(sources)
	log.Info("backfilling summary embeddings", zap.Int("candidates", len(sources)))

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		itemLog := log.With(zap.String("video_id", src.ExternalID), zap.Int("index", i+1), zap.Int("total", len(sources)))

		if err := s.backfillOne(ctx, src); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			itemLog.Error("failed to backfill embedding", zap.String("error_code", apperrors.CodeOf(err)), zap.Error(err))
			continue
		}
		result.Embedded++
		itemLog.Info("embedded summary")
	}

	result.Elapsed = time.Since(started)
	log.Info("backfill done",
		zap.Int("embedded", result.Embedded),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (s *Service) backfillOne(ctx context.Context, src model.SummarySource) error {
	text := BuildSummary(SummaryFromSource(src))
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, &model.SummaryEmbedding{
		VideoID:     src.VideoID,
		SummaryText: text,
		Model:       s.embedder.EmbedModel(),
		Dimensions:  len(vector),
		Embedding:   vector,
	})
}
