package embedding

import (
	"context"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type embeddingRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &embeddingRepository{pool: pool}
}

// Upsert stores e outside of a transaction
func (r *embeddingRepository) Upsert(ctx context.Context, e *model.SummaryEmbedding) error {
	return UpsertSummaryEmbedding(ctx, r.pool, e)
}

// UpsertSummaryEmbedding writes e with q, replacing any earlier embedding of the same media item
func UpsertSummaryEmbedding(ctx context.Context, q common.Querier, e *model.SummaryEmbedding) error {
	sql := `INSERT INTO video_summary_embeddings (video_id, summary_text, model, dimensions, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_id) DO UPDATE SET
			summary_text = EXCLUDED.summary_text,
			model = EXCLUDED.model,
			dimensions = EXCLUDED.dimensions,
			embedding = EXCLUDED.embedding,
			created_at = NOW()`

	_, err := q.Exec(ctx, sql, e.VideoID, e.SummaryText, e.Model, e.Dimensions, pgvector.NewVector(e.Embedding))
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to upsert summary embedding")
	}
	return nil
}

// SimilarTo orders the other embeddings by cosine distance to the source embedding
func (r *embeddingRepository) SimilarTo(ctx context.Context, externalID string, k int) ([]model.SimilarItem, error) {
	items := []model.SimilarItem{}
	if k <= 0 {
		return items, nil
	}

	sql := `WITH source AS (
			SELECT e.video_id, e.embedding
			FROM video_summary_embeddings e
			JOIN videos v ON v.id = e.video_id
			WHERE v.video_id = $1
		)
		SELECT v.video_id, COALESCE(a.video_day, 0), v.source_url, v.title, e.embedding <=> s.embedding AS distance
		FROM video_summary_embeddings e
		CROSS JOIN source s
		JOIN videos v ON v.id = e.video_id
		LEFT JOIN stew_analysis a ON a.video_id = v.id
		WHERE e.video_id <> s.video_id
		ORDER BY distance ASC, v.id ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, sql, externalID, k)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to query similar videos")
	}
	defer rows.Close()

	for rows.Next() {
		var item model.SimilarItem
		var sourceURL string
		if err := rows.Scan(&item.ExternalID, &item.Day, &sourceURL, &item.Title, &item.Distance); err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan similar video")
		}
		item.SourceURL = &sourceURL
		item.Similarity = math.Max(0, 1-item.Distance)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate similar videos")
	}

	return items, nil
}

// ListAll returns every stored embedding ordered by media id
func (r *embeddingRepository) ListAll(ctx context.Context) ([]model.LabeledVector, error) {
	sql := `SELECT v.video_id, e.embedding
		FROM video_summary_embeddings e
		JOIN videos v ON v.id = e.video_id
		ORDER BY v.id`

	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list embeddings")
	}
	defer rows.Close()

	vectors := []model.LabeledVector{}
	for rows.Next() {
		var externalID string
		var vec pgvector.Vector
		if err := rows.Scan(&externalID, &vec); err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan embedding")
		}
		vectors = append(vectors, model.LabeledVector{ExternalID: externalID, Vector: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate embeddings")
	}

	return vectors, nil
}

const ingredientNamesExpr = `COALESCE(ARRAY(
	SELECT DISTINCT i.ingredient_name
	FROM ingredient_additions ia
	JOIN ingredients i ON i.ingredient_id = ia.ingredient_id
	WHERE ia.analysis_id = a.analysis_id
	ORDER BY i.ingredient_name
), '{}')`

func missingQuery(limit int) sq.SelectBuilder {
	q := psql.Select(
		"v.id", "v.video_id", "a.video_day", "a.creator_sentiment",
		"a.rating_overall", "a.rating_richness", "a.rating_complexity", "a.flavor_profile_notes",
		"t.transcript_text", ingredientNamesExpr,
	).
		From("videos v").
		Join("stew_analysis a ON a.video_id = v.id").
		LeftJoin("video_transcripts t ON t.video_id = v.id").
		LeftJoin("video_summary_embeddings e ON e.video_id = v.id").
		Where(sq.Eq{"v.processing_status": string(model.StatusAnalyzed)}).
		Where(sq.Eq{"e.id": nil}).
		OrderBy("v.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

// ListMissing returns the stored facts of analyzed items that have no embedding yet
func (r *embeddingRepository) ListMissing(ctx context.Context, limit int) ([]model.SummarySource, error) {
	sql, args, err := missingQuery(limit).ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build backfill query")
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list videos without embeddings")
	}
	defer rows.Close()

	sources := []model.SummarySource{}
	for rows.Next() {
		var s model.SummarySource
		err := rows.Scan(
			&s.VideoID,
			&s.ExternalID,
			&s.Day,
			&s.Sentiment,
			&s.RatingOverall,
			&s.RatingRichness,
			&s.RatingComplexity,
			&s.FlavorProfileNotes,
			&s.Transcript,
			&s.Ingredients,
		)
		if err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan backfill row")
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate backfill rows")
	}

	return sources, nil
}
