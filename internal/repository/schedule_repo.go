package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-time-archive/internal/model"
)

// ScheduleRepository persists the set of registered rule invocations.
type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// Add registers key; registering an existing key is a no-op.
func (r *ScheduleRepository) Add(ctx context.Context, key model.RuleKey) error {
	if !key.Valid() {
		return fmt.Errorf("%w: job key %s", model.ErrInvalidInput, key)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO scheduled_jobs (job_key, tag_id, rule_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (job_key) DO NOTHING`, key.String(), key.TagID, key.RuleID)
	if err != nil {
		return fmt.Errorf("register job: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) Has(ctx context.Context, key model.RuleKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scheduled_jobs WHERE job_key = $1)`, key.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	return exists, nil
}

func (r *ScheduleRepository) Remove(ctx context.Context, key model.RuleKey) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE job_key = $1`, key.String())
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]model.ScheduledJob, error) {
	return r.query(ctx,
		`SELECT id, tag_id, rule_id, last_run_at, created_at FROM scheduled_jobs ORDER BY id`)
}

// ListDue returns jobs never run or last run at or before notAfter.
func (r *ScheduleRepository) ListDue(ctx context.Context, notAfter time.Time) ([]model.ScheduledJob, error) {
	return r.query(ctx,
		`SELECT id, tag_id, rule_id, last_run_at, created_at FROM scheduled_jobs
		 WHERE last_run_at IS NULL OR last_run_at <= $1
		 ORDER BY last_run_at NULLS FIRST, id`, notAfter)
}

func (r *ScheduleRepository) MarkRun(ctx context.Context, key model.RuleKey, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET last_run_at = $2 WHERE job_key = $1`, key.String(), at)
	if err != nil {
		return fmt.Errorf("mark job run: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) query(ctx context.Context, sql string, args ...any) ([]model.ScheduledJob, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.ScheduledJob, 0)
	for rows.Next() {
		var job model.ScheduledJob
		if err := rows.Scan(&job.ID, &job.Key.TagID, &job.Key.RuleID, &job.LastRunAt, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
