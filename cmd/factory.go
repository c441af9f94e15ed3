package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiktor-jurek/stewthius/internal/config"
	"github.com/wiktor-jurek/stewthius/internal/logger"
	analysisrepo "github.com/wiktor-jurek/stewthius/internal/repository/analysis"
	embeddingrepo "github.com/wiktor-jurek/stewthius/internal/repository/embedding"
	ingredientrepo "github.com/wiktor-jurek/stewthius/internal/repository/ingredient"
	"github.com/wiktor-jurek/stewthius/internal/repository/media"
	"github.com/wiktor-jurek/stewthius/internal/service/acquisition"
	"github.com/wiktor-jurek/stewthius/internal/service/analysis"
	"github.com/wiktor-jurek/stewthius/internal/service/common"
	"github.com/wiktor-jurek/stewthius/internal/service/embedding"
	"github.com/wiktor-jurek/stewthius/internal/service/gemini"
	"github.com/wiktor-jurek/stewthius/internal/storage"
)

// runtime holds what a command needs to build services: configuration, a logger and,
// once connected, the database pool and object store
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	store  storage.Store
}

// loadRuntime loads configuration and builds the logger. It does not connect to anything.
func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if mode, _ := cmd.Flags().GetString("log-mode"); mode != "" {
		cfg.LogMode = mode
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &runtime{cfg: cfg, logger: log}, nil
}

// connectDatabase opens the connection pool
func (rt *runtime) connectDatabase(ctx context.Context) error {
	pool, err := config.NewDatabasePool(ctx, rt.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.pool = pool
	return nil
}

// openStore opens the object store. A missing store configuration is only fatal for
// acquisition, so analysis passes required=false and falls back to the local videos dir.
func (rt *runtime) openStore(ctx context.Context, required bool) error {
	if !required && rt.cfg.Storage.Bucket == "" && rt.cfg.Storage.LocalDir == "" {
		return nil
	}
	store, err := storage.New(ctx, rt.cfg.Storage)
	if err != nil {
		return err
	}
	rt.store = store
	return nil
}

// Close releases the pool, the store and flushes the logger
func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if c, ok := rt.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			rt.logger.Warn("failed to close object store", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

func (rt *runtime) geminiClient() *gemini.Client {
	return gemini.NewClient(rt.cfg.Gemini, gemini.WithLogger(rt.logger))
}

func (rt *runtime) acquisitionService() *acquisition.Service {
	return acquisition.NewService(
		common.NewCmdRunner(),
		rt.store,
		media.NewRepository(rt.pool),
		rt.cfg.Acquisition,
		rt.logger,
	)
}

func (rt *runtime) analysisService() *analysis.Service {
	client := rt.geminiClient()
	return analysis.NewService(rt.cfg, analysis.Deps{
		Extractor: client,
		Embedder:  client,
		Store:     rt.store,
		Media:     media.NewRepository(rt.pool),
		Analyses:  analysisrepo.NewRepository(rt.pool),
		Catalog:   ingredientrepo.NewRepository(rt.pool),
	}, rt.logger)
}

// embeddingService builds the embedding service. withEmbedder is false for the read-only
// commands, which must work without an API key.
func (rt *runtime) embeddingService(withEmbedder bool) *embedding.Service {
	repo := embeddingrepo.NewRepository(rt.pool)
	if !withEmbedder {
		return embedding.NewService(repo, nil, rt.logger)
	}
	return embedding.NewService(repo, rt.geminiClient(), rt.logger)
}
