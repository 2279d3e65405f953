package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// applicationName tags archiver sessions in pg_stat_activity.
const applicationName = "go-time-archive"

const (
	maxConnLifetime   = 30 * time.Minute
	maxConnIdleTime   = 5 * time.Minute
	healthCheckPeriod = 30 * time.Second
)

// Options configures the pool. ConnectAttempts and ConnectBackoff cover a
// PostgreSQL that comes up after the archiver.
type Options struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Status is what the health endpoint reports about the database.
type Status struct {
	SchemaVersion int64 `json:"schema_version"`
	TotalConns    int32 `json:"total_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
}

// New opens the pool and pings it until it answers or the attempts run out.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := poolConfig(opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	attempt := 0
	err = retry.Do(ctx, connectBackoff(opts), func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not reachable", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected", "max_conns", cfg.MaxConns, "min_conns", cfg.MinConns, "attempts", attempt)
	return &DB{Pool: pool, logger: logger}, nil
}

func poolConfig(opts Options) (*pgxpool.Config, error) {
	if opts.MaxConns <= 0 || opts.MinConns < 0 || opts.MinConns > opts.MaxConns {
		return nil, errors.New("connection limits out of range")
	}

	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnLifetime = maxConnLifetime
	cfg.MaxConnIdleTime = maxConnIdleTime
	cfg.HealthCheckPeriod = healthCheckPeriod
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	return cfg, nil
}

func connectBackoff(opts Options) retry.Backoff {
	attempts := opts.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := opts.ConnectBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Status reads the applied schema version and the pool stats. It fails when
// the database is unreachable or was never migrated.
func (db *DB) Status(ctx context.Context) (Status, error) {
	var version int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`,
	).Scan(&version)
	if err != nil {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}

	stat := db.Pool.Stat()
	return Status{
		SchemaVersion: version,
		TotalConns:    stat.TotalConns(),
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
	}, nil
}
