// Package analysis runs structured extraction over unprocessed media items and persists the
// results atomically per item.
package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktor-jurek/stewthius/internal/config"
	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	analysisrepo "github.com/wiktor-jurek/stewthius/internal/repository/analysis"
	ingredientrepo "github.com/wiktor-jurek/stewthius/internal/repository/ingredient"
	"github.com/wiktor-jurek/stewthius/internal/repository/media"
	"github.com/wiktor-jurek/stewthius/internal/retry"
	"github.com/wiktor-jurek/stewthius/internal/service/embedding"
	"github.com/wiktor-jurek/stewthius/internal/service/gemini"
	"github.com/wiktor-jurek/stewthius/internal/service/ingredient"
	"github.com/wiktor-jurek/stewthius/internal/storage"
)

// Extractor performs structured extraction on a video
type Extractor interface {
	Analyze(ctx context.Context, video []byte, mimeType string) (*gemini.Extraction, error)
	Model() string
}

// Options selects which media items a run processes
type Options struct {
	ReprocessFailed bool
	IncludeBackfill bool
	Limit           int
}

// Result counts the outcome of one analysis run
type Result struct {
	RunID    string
	Selected int
	Analyzed int
	Skipped  int // not about the stew
	Failed   int
	Elapsed  time.Duration
}

// Service runs analysis
type Service struct {
	cfg       *config.Config
	extractor Extractor
	embedder  embedding.Embedder
	store     storage.Store
	media     media.Repository
	analyses  analysisrepo.Repository
	catalog   ingredientrepo.Repository
	sleep     retry.Sleeper
	logger    *zap.Logger
}

// storeAttempts bounds object store reads that fail with a transient error
const storeAttempts = 4

// Deps groups the collaborators of a Service
type Deps struct {
	Extractor Extractor
	Embedder  embedding.Embedder
	Store     storage.Store // nil reads media from Analysis.VideosDir only
	Media     media.Repository
	Analyses  analysisrepo.Repository
	Catalog   ingredientrepo.Repository
}

// NewService creates an analysis Service
func NewService(cfg *config.Config, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		extractor: deps.Extractor,
		embedder:  deps.Embedder,
		store:     deps.Store,
		media:     deps.Media,
		analyses:  deps.Analyses,
		catalog:   deps.Catalog,
		sleep:     retry.SleepContext,
		logger:    logger,
	}
}

type outcome int

const (
	outcomeAnalyzed outcome = iota
	outcomeSkipped
)

// Run validates configuration, selects media items and analyzes them one at a time.
// A configuration problem aborts before any item is touched; per-item failures mark the
// item failed and the run continues.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := s.cfg.ValidateForAnalysis(); err != nil {
		return nil, err
	}

	started := time.Now()
	result := &Result{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", result.RunID))

	resolver, err := ingredient.NewResolver(ctx, s.catalog, s.cfg.Analysis.IngredientMatchThreshold, log)
	if err != nil {
		return nil, err
	}

	items, err := s.media.SelectForAnalysis(ctx, model.AnalysisSelection{
		IncludeBackfill: opts.IncludeBackfill,
		ReprocessFailed: opts.ReprocessFailed,
		Limit:           opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	result.Selected = len(items)
	log.Info("selected media items for analysis",
		zap.Int("count", len(items)),
		zap.Int("catalog_size", resolver.Len()),
		zap.Bool("include_backfill", opts.IncludeBackfill),
		zap.Bool("reprocess_failed", opts.ReprocessFailed))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		itemLog := log.With(
			zap.String("video_id", item.ExternalID),
			zap.Int64("id", item.ID),
			zap.Int("index", i+1),
			zap.Int("total", len(items)))

		out, err := s.analyzeOne(ctx, item, resolver, itemLog)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			itemLog.Error("analysis failed", zap.String("error_code", apperrors.CodeOf(err)), zap.Error(err))
			if serr := s.media.SetStatus(ctx, item.ID, model.StatusFailed, nil); serr != nil {
				itemLog.Error("failed to mark media item failed", zap.Error(serr))
			}
			continue
		}

		switch out {
		case outcomeSkipped:
			result.Skipped++
			itemLog.Info("not about the stew, skipped")
		default:
			result.Analyzed++
			itemLog.Info("analysis saved")
		}
	}

	result.Elapsed = time.Since(started)
	log.Info("analysis done",
		zap.Int("analyzed", result.Analyzed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (s *Service) analyzeOne(ctx context.Context, item *model.MediaItem, resolver *ingredient.Resolver, log *zap.Logger) (outcome, error) {
	data, mimeType, err := s.loadMedia(ctx, item)
	if err != nil {
		return 0, err
	}
	log.Debug("loaded media", zap.Int("bytes", len(data)), zap.String("mime_type", mimeType))

	extraction, err := s.extract(ctx, data, mimeType, log)
	if err != nil {
		return 0, err
	}
	res := &extraction.Result

	if !res.IsAboutStew {
		notAbout := false
		return outcomeSkipped, s.media.SetStatus(ctx, item.ID, model.StatusAnalyzed, &notAbout)
	}

	record := res.ToRecord(item.ID, extraction.Raw, s.extractor.Model())

	summary := embedding.BuildSummary(embedding.SummaryFromResult(res, record.VideoDay))
	vector, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return 0, err
	}

	write := &model.AnalysisWrite{
		Record:   record,
		Mentions: res.Mentions(),
		Embedding: &model.SummaryEmbedding{
			VideoID:     item.ID,
			SummaryText: summary,
			Model:       s.embedder.EmbedModel(),
			Dimensions:  len(vector),
			Embedding:   vector,
		},
	}
	if text := res.TranscriptText(); text != "" {
		write.Transcript = &model.TranscriptRecord{
			VideoID:  item.ID,
			Model:    s.extractor.Model(),
			Text:     text,
			Language: res.TranscriptLanguage(),
		}
	}

	mark := resolver.Mark()
	if _, err := s.analyses.Save(ctx, write, resolver.Resolve); err != nil {
		resolver.Reset(mark)
		return 0, err
	}
	return outcomeAnalyzed, nil
}

// extract calls the extractor until it returns an in-range result or the validation attempts
// run out. Transport retries happen inside the extractor.
func (s *Service) extract(ctx context.Context, data []byte, mimeType string, log *zap.Logger) (*gemini.Extraction, error) {
	attempts := s.cfg.Analysis.MaxAnalysisRetries + 1
	policy := retry.Validation(attempts)
	policy.OnRetry = func(attempt int, _ time.Duration, err error) {
		log.Warn("invalid extraction, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
	}

	extraction, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (*gemini.Extraction, error) {
		ext, err := s.extractor.Analyze(ctx, data, mimeType)
		if err != nil {
			return nil, err
		}
		if err := ext.Result.Validate(); err != nil {
			return nil, err
		}
		return ext, nil
	})
	if err != nil {
		if apperrors.IsSchemaValidation(err) {
			return nil, apperrors.PermanentItem(err, "extraction still invalid after retries")
		}
		return nil, err
	}
	return extraction, nil
}

// loadMedia reads the media bytes from the object store, or from the local videos directory
// when the item has no storage key
func (s *Service) loadMedia(ctx context.Context, item *model.MediaItem) ([]byte, string, error) {
	if item.StorageKey != nil && *item.StorageKey != "" && s.store != nil {
		key := *item.StorageKey
		policy := retry.Transport(storeAttempts)
		policy.Sleep = s.sleep
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			s.logger.Warn("object store read failed, retrying",
				zap.String("storage_key", key),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
		data, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) ([]byte, error) {
			return s.store.Get(ctx, key)
		})
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeNotFound) {
				return nil, "", apperrors.PermanentItem(err, "media object missing: "+key)
			}
			return nil, "", err
		}
		return data, storage.MIMEType(key), nil
	}

	dir := s.cfg.Analysis.VideosDir
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to read videos dir")
	}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, item.ExternalID+".") || strings.HasSuffix(name, ".info.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to read media file")
		}
		return data, storage.MIMEType(name), nil
	}
	return nil, "", apperrors.PermanentItem(nil, "media file not found for "+item.ExternalID+" (no storage key, no local file)")
}
