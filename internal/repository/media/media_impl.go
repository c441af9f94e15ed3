package media

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var mediaColumns = []string{
	"v.id", "v.source_url", "v.video_id", "v.title", "v.description", "v.author", "v.duration",
	"v.view_count", "v.like_count", "v.comment_count", "v.share_count", "v.file_size",
	"v.storage_key", "v.is_about_stew", "v.processing_status", "v.download_date",
}

// mediaRepository implements Repository using PostgreSQL
type mediaRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &mediaRepository{pool: pool}
}

// ListSourceURLs returns every stored source URL
func (r *mediaRepository) ListSourceURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, "SELECT source_url FROM videos")
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list source urls")
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan source url")
		}
		urls[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate source urls")
	}

	return urls, nil
}

// Create inserts a new unprocessed media item
func (r *mediaRepository) Create(ctx context.Context, item *model.MediaItem) (bool, error) {
	sql := `INSERT INTO videos
		(source_url, video_id, title, description, author, duration, view_count, like_count,
		 comment_count, share_count, file_size, storage_key, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (source_url) DO NOTHING
		RETURNING id`

	err := r.pool.QueryRow(ctx, sql,
		item.SourceURL,
		item.ExternalID,
		item.Title,
		item.Description,
		item.Author,
		item.Duration,
		item.ViewCount,
		item.LikeCount,
		item.CommentCount,
		item.ShareCount,
		item.FileSize,
		item.StorageKey,
		string(model.StatusUnprocessed),
	).Scan(&item.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, common.HandlePostgreSQLError(err, "failed to create video")
	}

	item.Status = model.StatusUnprocessed
	return true, nil
}

// SelectForAnalysis returns unprocessed items plus the optional backfill and failed sets
func (r *mediaRepository) SelectForAnalysis(ctx context.Context, sel model.AnalysisSelection) ([]*model.MediaItem, error) {
	sql, args, err := selectionQuery(sel).ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build selection query")
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to select videos for analysis")
	}
	defer rows.Close()

	items := []*model.MediaItem{}
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan video row")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate video rows")
	}

	return items, nil
}

func selectionQuery(sel model.AnalysisSelection) sq.SelectBuilder {
	where := sq.Or{sq.Eq{"v.processing_status": string(model.StatusUnprocessed)}}
	if sel.IncludeBackfill {
		where = append(where, sq.And{
			sq.Eq{"v.processing_status": string(model.StatusAnalyzed)},
			sq.Expr("NOT EXISTS (SELECT 1 FROM video_transcripts t WHERE t.video_id = v.id)"),
		})
	}
	if sel.ReprocessFailed {
		where = append(where, sq.Eq{"v.processing_status": string(model.StatusFailed)})
	}

	q := psql.Select(mediaColumns...).From("videos v").Where(where).OrderBy("v.id ASC")
	if sel.Limit > 0 {
		q = q.Limit(uint64(sel.Limit))
	}
	return q
}

// GetByExternalID retrieves a media item by its platform id
func (r *mediaRepository) GetByExternalID(ctx context.Context, externalID string) (*model.MediaItem, error) {
	sql, args, err := psql.Select(mediaColumns...).From("videos v").Where(sq.Eq{"v.video_id": externalID}).ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build video query")
	}

	item, err := scanMedia(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "video not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get video")
	}
	return item, nil
}

// SetStatus updates the processing status outside of a transaction
func (r *mediaRepository) SetStatus(ctx context.Context, id int64, status model.ProcessingStatus, isAboutStew *bool) error {
	return SetStatus(ctx, r.pool, id, status, isAboutStew)
}

// SetStatus updates processing_status, and is_about_stew when given, using q. It is shared
// with the analysis transaction.
func SetStatus(ctx context.Context, q common.Querier, id int64, status model.ProcessingStatus, isAboutStew *bool) error {
	sql := "UPDATE videos SET processing_status = $2, is_about_stew = COALESCE($3, is_about_stew) WHERE id = $1"
	tag, err := q.Exec(ctx, sql, id, string(status), isAboutStew)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to update video status")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "video %d not found", id)
	}
	return nil
}

func scanMedia(row pgx.Row) (*model.MediaItem, error) {
	var item model.MediaItem
	var fileSize *int64
	err := row.Scan(
		&item.ID,
		&item.SourceURL,
		&item.ExternalID,
		&item.Title,
		&item.Description,
		&item.Author,
		&item.Duration,
		&item.ViewCount,
		&item.LikeCount,
		&item.CommentCount,
		&item.ShareCount,
		&fileSize,
		&item.StorageKey,
		&item.IsAboutStew,
		&item.Status,
		&item.DownloadedAt,
	)
	if err != nil {
		return nil, err
	}
	if fileSize != nil {
		item.FileSize = *fileSize
	}
	return &item, nil
}
