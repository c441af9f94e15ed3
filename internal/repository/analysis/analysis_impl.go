package analysis

import (
	"context"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
	"github.com/wiktor-jurek/stewthius/internal/repository/embedding"
	"github.com/wiktor-jurek/stewthius/internal/repository/media"
)

type analysisRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &analysisRepository{pool: pool}
}

const upsertAnalysisSQL = `INSERT INTO stew_analysis (
		video_id, video_day, creator_sentiment,
		rating_overall, rating_richness, rating_complexity,
		rating_overall_confidence, rating_richness_confidence, rating_complexity_confidence,
		rating_overall_reasoning, rating_richness_reasoning, rating_complexity_reasoning,
		flavor_profile_notes, texture_thickness, appearance_color, appearance_clarity,
		key_quote, general_notes, rating_inferred, richness_inferred, complexity_inferred,
		raw_gemini_response, analysis_model)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	ON CONFLICT (video_id) DO UPDATE SET
		video_day = EXCLUDED.video_day,
		creator_sentiment = EXCLUDED.creator_sentiment,
		rating_overall = EXCLUDED.rating_overall,
		rating_richness = EXCLUDED.rating_richness,
		rating_complexity = EXCLUDED.rating_complexity,
		rating_overall_confidence = EXCLUDED.rating_overall_confidence,
		rating_richness_confidence = EXCLUDED.rating_richness_confidence,
		rating_complexity_confidence = EXCLUDED.rating_complexity_confidence,
		rating_overall_reasoning = EXCLUDED.rating_overall_reasoning,
		rating_richness_reasoning = EXCLUDED.rating_richness_reasoning,
		rating_complexity_reasoning = EXCLUDED.rating_complexity_reasoning,
		flavor_profile_notes = EXCLUDED.flavor_profile_notes,
		texture_thickness = EXCLUDED.texture_thickness,
		appearance_color = EXCLUDED.appearance_color,
		appearance_clarity = EXCLUDED.appearance_clarity,
		key_quote = EXCLUDED.key_quote,
		general_notes = EXCLUDED.general_notes,
		rating_inferred = EXCLUDED.rating_inferred,
		richness_inferred = EXCLUDED.richness_inferred,
		complexity_inferred = EXCLUDED.complexity_inferred,
		raw_gemini_response = EXCLUDED.raw_gemini_response,
		analysis_model = EXCLUDED.analysis_model,
		updated_at = NOW()
	RETURNING analysis_id`

const upsertTranscriptSQL = `INSERT INTO video_transcripts (video_id, model, transcript_text, language)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (video_id) DO UPDATE SET
		model = EXCLUDED.model,
		transcript_text = EXCLUDED.transcript_text,
		language = EXCLUDED.language,
		updated_at = NOW()`

// Save runs the analysis transaction
func (r *analysisRepository) Save(ctx context.Context, w *model.AnalysisWrite, resolve ResolveFunc) (int64, error) {
	if w == nil || w.Record == nil {
		return 0, apperrors.New(apperrors.CodeInvalidArg, "analysis record is required")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, common.HandlePostgreSQLError(err, "failed to begin analysis transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec := w.Record
	var analysisID int64
	err = tx.QueryRow(ctx, upsertAnalysisSQL,
		rec.VideoID,
		rec.VideoDay,
		rec.CreatorSentiment,
		rec.RatingOverall,
		rec.RatingRichness,
		rec.RatingComplexity,
		rec.RatingOverallConfidence,
		rec.RatingRichnessConfidence,
		rec.RatingComplexityConfidence,
		rec.RatingOverallReasoning,
		rec.RatingRichnessReasoning,
		rec.RatingComplexityReasoning,
		rec.FlavorProfileNotes,
		rec.TextureThickness,
		rec.AppearanceColor,
		rec.AppearanceClarity,
		rec.KeyQuote,
		rec.GeneralNotes,
		rec.RatingInferred,
		rec.RichnessInferred,
		rec.ComplexityInferred,
		rec.RawResponse,
		rec.AnalysisModel,
	).Scan(&analysisID)
	if err != nil {
		return 0, common.HandlePostgreSQLError(err, "failed to upsert analysis")
	}
	rec.ID = analysisID

	if _, err := tx.Exec(ctx, "DELETE FROM ingredient_additions WHERE analysis_id = $1", analysisID); err != nil {
		return 0, common.HandlePostgreSQLError(err, "failed to clear ingredient additions")
	}

	for _, m := range w.Mentions {
		ingredientID, ok, err := resolve(ctx, tx, m.RawName, m.RawCategory)
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to resolve ingredient "+m.RawName)
		}
		if !ok {
			continue
		}
		_, err = tx.Exec(ctx,
			"INSERT INTO ingredient_additions (analysis_id, ingredient_id, prep_style, comment) VALUES ($1, $2, $3, $4)",
			analysisID, ingredientID, m.PrepStyle, m.Comment)
		if err != nil {
			return 0, common.HandlePostgreSQLError(err, "failed to insert ingredient addition")
		}
	}

	if t := w.Transcript; t != nil {
		if _, err := tx.Exec(ctx, upsertTranscriptSQL, rec.VideoID, t.Model, t.Text, t.Language); err != nil {
			return 0, common.HandlePostgreSQLError(err, "failed to upsert transcript")
		}
	}

	if w.Embedding != nil {
		if err := embedding.UpsertSummaryEmbedding(ctx, tx, w.Embedding); err != nil {
			return 0, err
		}
	}

	inScope := true
	if err := media.SetStatus(ctx, tx, rec.VideoID, model.StatusAnalyzed, &inScope); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, common.HandlePostgreSQLError(err, "failed to commit analysis transaction")
	}

	return analysisID, nil
}
