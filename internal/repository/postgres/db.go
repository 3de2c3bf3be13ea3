package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"go.uber.org/zap"
)

type PoolOptions struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnectAttempts uint
}

// Open открывает пул и ждет доступности базы с экспоненциальным бэкоффом.
func Open(ctx context.Context, connString string, opts PoolOptions, logger *zap.Logger) (*sql.DB, error) {
	if opts.MaxConns <= 0 {
		opts.MaxConns = 15
	}
	if opts.MinConns <= 0 {
		opts.MinConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.ConnectAttempts == 0 {
		opts.ConnectAttempts = 5
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MinConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	err = retry.New(
		retry.Context(ctx),
		retry.Attempts(opts.ConnectAttempts),
		retry.Delay(500*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database is not reachable yet", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	).Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}
