// Package acquisition discovers new videos on a profile, downloads them with yt-dlp, uploads
// them to the object store and records them as unprocessed media items.
package acquisition

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktor-jurek/stewthius/internal/config"
	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/media"
	"github.com/wiktor-jurek/stewthius/internal/retry"
	"github.com/wiktor-jurek/stewthius/internal/service/common"
	"github.com/wiktor-jurek/stewthius/internal/storage"
)

// MaxBackoff caps the wait between yt-dlp retries
const MaxBackoff = 120 * time.Second

// Options limits one acquisition run. Zero values fall back to the configuration.
type Options struct {
	ProfileURL   string
	MaxDownloads int
}

// Result counts the outcome of one acquisition run
type Result struct {
	RunID      string
	Discovered int
	Skipped    int
	Success    int
	Failed     int
	Elapsed    time.Duration
}

// Service runs acquisition
type Service struct {
	ytdlp  *YtDlp
	store  storage.Store
	repo   media.Repository
	cfg    config.AcquisitionConfig
	logger *zap.Logger

	sleep    retry.Sleeper
	rnd      func() float64
	tempRoot string
}

// NewService creates an acquisition Service
func NewService(runner common.CmdRunner, store storage.Store, repo media.Repository, cfg config.AcquisitionConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ytdlp:  NewYtDlp(runner, cfg.YtDlpBin),
		store:  store,
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		sleep:  retry.SleepContext,
		rnd:    rand.Float64,
	}
}

// Run lists the profile, skips stored URLs and acquires the rest one by one. Per-item
// failures are counted and logged; only listing and lookup failures abort the run.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	result := &Result{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", result.RunID))

	profile := opts.ProfileURL
	if profile == "" {
		profile = s.cfg.ProfileURL
	}
	if profile == "" {
		return nil, apperrors.FatalConfig("PROFILE_URL is required")
	}
	limit := opts.MaxDownloads
	if limit == 0 {
		limit = s.cfg.MaxDownloads
	}

	log.Info("listing profile", zap.String("profile_url", profile))
	urls, err := s.ytdlp.ListVideoURLs(ctx, profile)
	if err != nil {
		return nil, err
	}
	result.Discovered = len(urls)
	if len(urls) == 0 {
		log.Info("no videos found on profile")
		return result, nil
	}

	existing, err := s.repo.ListSourceURLs(ctx)
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, u := range urls {
		if _, ok := existing[u]; ok {
			result.Skipped++
			continue
		}
		targets = append(targets, u)
	}
	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	if len(targets) == 0 {
		log.Info("no new videos to download", zap.Int("discovered", result.Discovered))
		return result, nil
	}
	log.Info("found new videos", zap.Int("count", len(targets)))

	cb := &breaker{threshold: s.cfg.ConsecutiveFailThreshold, cooldown: s.cfg.Cooldown, sleep: s.sleep}

	for i, url := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if cb.consecutive >= cb.threshold && cb.threshold > 0 {
			log.Warn("consecutive failures, cooling down",
				zap.Int("failures", cb.consecutive),
				zap.Duration("cooldown", s.cfg.Cooldown))
		}
		if _, err := cb.wait(ctx); err != nil {
			return result, err
		}

		itemLog := log.With(zap.String("url", url), zap.Int("index", i+1), zap.Int("total", len(targets)))
		itemLog.Info("acquiring video")

		if err := s.acquire(ctx, url, itemLog); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			cb.failure()
			itemLog.Error("failed to acquire video", zap.String("error_code", apperrors.CodeOf(err)), zap.Error(err))
		} else {
			result.Success++
			cb.success()
		}

		if i < len(targets)-1 {
			if err := s.sleep(ctx, s.pacing()); err != nil {
				return result, err
			}
		}
	}

	result.Elapsed = time.Since(started)
	log.Info("acquisition done",
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// acquire downloads one video into its own temp dir, uploads it and inserts the media row
func (s *Service) acquire(ctx context.Context, url string, log *zap.Logger) error {
	dir, err := os.MkdirTemp(s.tempRoot, "stewthius-dl-")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	policy := s.commandPolicy(log)

	meta, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (*Metadata, error) {
		return s.ytdlp.Metadata(ctx, url)
	})
	if err != nil {
		return err
	}

	download := func(format string) error {
		_, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (struct{}, error) {
			return struct{}{}, s.ytdlp.Download(ctx, url, dir, format)
		})
		return err
	}
	if err := download(s.cfg.Format); err != nil {
		if ctx.Err() != nil || s.cfg.Format == "" {
			return err
		}
		log.Warn("primary format failed, retrying with fallback format", zap.Error(err))
		if err := download(""); err != nil {
			return err
		}
	}

	path, ext, err := findDownloadedFile(dir, meta.ID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to read downloaded file")
	}

	key := meta.ID + "." + ext
	log.Info("uploading video", zap.String("storage_key", key), zap.Int("bytes", len(data)))
	uploadPolicy := policy
	uploadPolicy.Classify = apperrors.IsTransient
	uploadPolicy.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warn("upload failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	key, err = retry.Do(ctx, uploadPolicy, func(ctx context.Context, _ int) (string, error) {
		return s.store.Put(ctx, key, data)
	})
	if err != nil {
		return err
	}

	item := toMediaItem(url, meta, key, int64(len(data)))
	inserted, err := s.repo.Create(ctx, item)
	if err != nil {
		return err
	}
	if !inserted {
		log.Info("video already stored by another run", zap.String("video_id", meta.ID))
		return nil
	}

	log.Info("saved video", zap.String("video_id", meta.ID), zap.Int64("id", item.ID))
	return nil
}

// commandPolicy retries every yt-dlp failure with jittered exponential backoff
func (s *Service) commandPolicy(log *zap.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: s.cfg.MaxRetries + 1,
		Backoff:     retry.WithJitter(retry.Exponential(s.cfg.BaseDelay, MaxBackoff), 0.3, s.rnd),
		Sleep:       s.sleep,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			log.Warn("yt-dlp failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.cfg.MaxRetries+1),
				zap.Duration("wait", wait),
				zap.Error(err))
		},
	}
}

func (s *Service) pacing() time.Duration {
	base := s.cfg.BaseDelay
	return base + time.Duration(s.rnd()*0.5*float64(base))
}

// findDownloadedFile returns the first regular file named <id>.* that is not the info json
func findDownloadedFile(dir, id string) (string, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to read download dir")
	}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, id+".") || strings.HasSuffix(name, ".info.json") {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if ext == "" {
			ext = "mp4"
		}
		return filepath.Join(dir, name), ext, nil
	}
	return "", "", apperrors.PermanentItem(nil, "downloaded file not found for video id "+id)
}

func toMediaItem(url string, meta *Metadata, key string, size int64) *model.MediaItem {
	author := meta.Uploader
	if author == "" {
		author = meta.Channel
	}

	item := &model.MediaItem{
		SourceURL:    url,
		ExternalID:   meta.ID,
		Title:        nonEmpty(meta.Title),
		Description:  nonEmpty(meta.Description),
		Author:       nonEmpty(author),
		ViewCount:    nonZero(meta.ViewCount),
		LikeCount:    nonZero(meta.LikeCount),
		CommentCount: nonZero(meta.CommentCount),
		ShareCount:   nonZero(meta.RepostCount),
		FileSize:     size,
		StorageKey:   &key,
		Status:       model.StatusUnprocessed,
	}
	if meta.Duration != nil && *meta.Duration > 0 {
		d := int(math.Round(*meta.Duration))
		item.Duration = &d
	}
	return item
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
