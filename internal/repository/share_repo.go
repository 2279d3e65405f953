package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-time-archive/internal/model"
)

type ShareRepository struct {
	pool *pgxpool.Pool
}

func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

func (r *ShareRepository) Create(ctx context.Context, share model.Share) (model.Share, error) {
	if share.ID == "" {
		share.ID = uuid.NewString()
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO shares (id, owner_id, share_type, node_id, shared_to, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		share.ID, share.OwnerID, int16(share.ShareType), share.NodeID, share.SharedTo,
		share.CreatedAt, share.ExpiresAt)
	if err != nil {
		return model.Share{}, fmt.Errorf("create share: %w", err)
	}
	return share, nil
}

// SharesBy lists unexpired shares of one type that ownerID created on nodeID.
func (r *ShareRepository) SharesBy(ctx context.Context, ownerID string, shareType model.ShareType, nodeID int64) ([]model.Share, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, share_type, node_id, shared_to, created_at, expires_at
		 FROM shares
		 WHERE owner_id = $1 AND share_type = $2 AND node_id = $3
		   AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY created_at DESC`, ownerID, int16(shareType), nodeID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	shares := make([]model.Share, 0)
	for rows.Next() {
		var s model.Share
		var st int16
		if err := rows.Scan(&s.ID, &s.OwnerID, &st, &s.NodeID, &s.SharedTo, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		s.ShareType = model.ShareType(st)
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

func (r *ShareRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shares WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired shares: %w", err)
	}
	return tag.RowsAffected(), nil
}
