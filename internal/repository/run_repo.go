package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-time-archive/internal/model"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Insert(ctx context.Context, run model.RunRecord) (model.RunRecord, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO archive_runs (id, rule_key, mode, status,
		  users_processed, files_checked, files_archived, folders_archived, deferred, skipped, failed,
		  started_at, finished_at, error_text)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, run.RuleKey, run.Mode, run.Status,
		run.Stats.UsersProcessed, run.Stats.FilesChecked, run.Stats.FilesArchived,
		run.Stats.FoldersArchived, run.Stats.Deferred, run.Stats.Skipped, run.Stats.Failed,
		run.StartedAt, run.FinishedAt, run.Error)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// List pages through runs newest first; ruleKey filters when non-empty.
func (r *RunRepository) List(ctx context.Context, ruleKey string, page int, limit int) ([]model.RunRecord, model.Meta, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM archive_runs WHERE $1 = '' OR rule_key = $1`, ruleKey).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count runs: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id::text, rule_key, mode, status,
		        users_processed, files_checked, files_archived, folders_archived, deferred, skipped, failed,
		        started_at, finished_at, error_text
		 FROM archive_runs
		 WHERE $1 = '' OR rule_key = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, ruleKey, limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunRecord, 0)
	for rows.Next() {
		var run model.RunRecord
		if err := rows.Scan(&run.ID, &run.RuleKey, &run.Mode, &run.Status,
			&run.Stats.UsersProcessed, &run.Stats.FilesChecked, &run.Stats.FilesArchived,
			&run.Stats.FoldersArchived, &run.Stats.Deferred, &run.Stats.Skipped, &run.Stats.Failed,
			&run.StartedAt, &run.FinishedAt, &run.Error); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, model.NewMeta(page, limit, total), rows.Err()
}
