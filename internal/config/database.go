package config

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// connectTimeout bounds pool creation and the initial ping
const connectTimeout = 10 * time.Second

// NewDatabasePool opens a pgx pool for DATABASE_URL and registers the pgvector types on every
// connection. A malformed URL is a fatal configuration error; an unreachable server is a
// dependency error.
func NewDatabasePool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	dbConfig, err := cfg.ParseDatabaseConfig()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFatalConfig, "invalid DATABASE_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(dbConfig.ConnectionString())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFatalConfig, "invalid DATABASE_URL")
	}
	poolConfig.MaxConns = dbConfig.MaxConns
	poolConfig.MinConns = dbConfig.MinConns
	poolConfig.MaxConnLifetime = dbConfig.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbConfig.MaxConnIdleTime
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDependency, "failed to create connection pool")
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeDependency, "database unreachable")
	}

	return pool, nil
}
