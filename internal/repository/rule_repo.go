package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-time-archive/internal/model"
)

type RuleRepository struct {
	pool *pgxpool.Pool
}

func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

const ruleColumns = `id, tag_id, time_unit, time_amount, time_after, created_as_tag`

func scanRule(row pgx.Row) (model.ArchiveRule, error) {
	var rule model.ArchiveRule
	var unit, after int16
	if err := row.Scan(&rule.ID, &rule.TagID, &unit, &rule.TimeAmount, &after, &rule.CreatedAsTag); err != nil {
		return model.ArchiveRule{}, err
	}
	rule.TimeUnit = model.TimeUnit(unit)
	rule.TimeAfter = model.TimeAfter(after)
	return rule, nil
}

func (r *RuleRepository) Get(ctx context.Context, id int64) (model.ArchiveRule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM archive_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ArchiveRule{}, model.ErrRuleNotFound
	}
	if err != nil {
		return model.ArchiveRule{}, fmt.Errorf("get archive rule: %w", err)
	}
	return rule, nil
}

// GetByTag returns every rule bound to tagID, oldest first.
func (r *RuleRepository) GetByTag(ctx context.Context, tagID int64) ([]model.ArchiveRule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM archive_rules WHERE tag_id = $1 ORDER BY id`, tagID)
}

func (r *RuleRepository) List(ctx context.Context) ([]model.ArchiveRule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM archive_rules ORDER BY id`)
}

func (r *RuleRepository) query(ctx context.Context, sql string, args ...any) ([]model.ArchiveRule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive rules: %w", err)
	}
	defer rows.Close()

	rules := make([]model.ArchiveRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Insert stores rule. The trigger mode is derived from TagID and fixed for
// the life of the row.
func (r *RuleRepository) Insert(ctx context.Context, rule model.ArchiveRule) (model.ArchiveRule, error) {
	rule.CreatedAsTag = rule.TagID != nil
	err := r.pool.QueryRow(ctx,
		`INSERT INTO archive_rules (tag_id, time_unit, time_amount, time_after, created_as_tag)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		rule.TagID, int16(rule.TimeUnit), rule.TimeAmount, int16(rule.TimeAfter), rule.CreatedAsTag).Scan(&rule.ID)
	if err != nil {
		return model.ArchiveRule{}, fmt.Errorf("insert archive rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM archive_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete archive rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRuleNotFound
	}
	return nil
}
