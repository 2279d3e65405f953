package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-time-archive/internal/model"
)

const fileObjectType = "files"

type TagRepository struct {
	pool *pgxpool.Pool
}

func NewTagRepository(pool *pgxpool.Pool) *TagRepository {
	return &TagRepository{pool: pool}
}

// ObjectIDsForTag returns up to limit file ids carrying tagID with id > after,
// ascending. Callers page by passing the last id they received.
func (r *TagRepository) ObjectIDsForTag(ctx context.Context, tagID int64, limit int, after int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT object_id FROM tag_mappings
		 WHERE tag_id = $1 AND object_type = $2 AND object_id > $3
		 ORDER BY object_id
		 LIMIT $4`, tagID, fileObjectType, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list tagged objects: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tagged object: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *TagRepository) TagIDsForObject(ctx context.Context, objectID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tag_id FROM tag_mappings WHERE object_type = $1 AND object_id = $2 ORDER BY tag_id`,
		fileObjectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("list object tags: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan object tag: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *TagRepository) Assign(ctx context.Context, objectID int64, tagID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tag_mappings (object_type, object_id, tag_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`, fileObjectType, objectID, tagID)
	if err != nil {
		return fmt.Errorf("assign tag: %w", err)
	}
	return nil
}

func (r *TagRepository) Unassign(ctx context.Context, objectID int64, tagID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM tag_mappings WHERE object_type = $1 AND object_id = $2 AND tag_id = $3`,
		fileObjectType, objectID, tagID)
	if err != nil {
		return fmt.Errorf("unassign tag: %w", err)
	}
	return nil
}

func (r *TagRepository) Get(ctx context.Context, id int64) (model.Tag, error) {
	var t model.Tag
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, user_visible, user_assignable FROM tags WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.UserVisible, &t.UserAssignable)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Tag{}, model.ErrTagNotFound
	}
	if err != nil {
		return model.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

func (r *TagRepository) All(ctx context.Context) ([]model.Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, user_visible, user_assignable FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.UserVisible, &t.UserAssignable); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Create inserts a tag, returning the existing row when the same
// name/visibility/assignability triple is already present.
func (r *TagRepository) Create(ctx context.Context, name string, visible bool, assignable bool) (model.Tag, error) {
	t := model.Tag{Name: name, UserVisible: visible, UserAssignable: assignable}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tags (name, user_visible, user_assignable)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name, user_visible, user_assignable) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, name, visible, assignable).Scan(&t.ID)
	if err != nil {
		return model.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return t, nil
}
