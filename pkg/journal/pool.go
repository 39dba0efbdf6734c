// Package journal records fire-and-forget dispatch outcomes in Postgres via pgx.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "journal:pool"

// Journal writes are one insert per dispatch.
const (
	maxPoolConns     = 8
	minPoolConns     = 1
	poolHealthPeriod = 30 * time.Second
	poolMaxConnIdle  = 5 * time.Minute
)

// NewPool opens a pgx pool for the journal and checks it answers.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid DATABASE_URL: %w", logPrefix, err)
	}
	cfg.MaxConns = maxPoolConns
	cfg.MinConns = minPoolConns
	cfg.HealthCheckPeriod = poolHealthPeriod
	cfg.MaxConnIdleTime = poolMaxConnIdle

	slog.Info(fmt.Sprintf("%s - Opening journal pool to %s/%s", logPrefix, cfg.ConnConfig.Host, cfg.ConnConfig.Database))
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s - open pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - journal database unreachable: %w", logPrefix, err)
	}
	return pool, nil
}
