package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"go-time-archive/internal/model"
)

type Classification struct {
	Archive bool
	Shared  bool
}

type shareCacheKey struct {
	ownerID string
	nodeID  int64
}

// Classifier decides per node whether a rule archives it. Share lookups only
// size the mover's retry budget and never change eligibility.
type Classifier struct {
	shares    ShareGateway
	protected map[string]struct{}
	cache     *expirable.LRU[shareCacheKey, bool]
	logger    *slog.Logger
}

func NewClassifier(shares ShareGateway, protectedFolders []string, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *Classifier {
	protected := make(map[string]struct{}, len(protectedFolders))
	for _, name := range protectedFolders {
		protected[name] = struct{}{}
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}

	return &Classifier{
		shares:    shares,
		protected: protected,
		cache:     expirable.NewLRU[shareCacheKey, bool](cacheSize, nil, cacheTTL),
		logger:    logger.With("component", "classifier"),
	}
}

// EffectiveTime picks the timestamp compared against the cutoff. Creation
// mode uses the upload time when one is recorded. Modification mode uses the
// upload time when the file was uploaded after its recorded mtime.
func EffectiveTime(node model.Node, timeAfter model.TimeAfter) time.Time {
	effective := node.ModTime
	hasUpload := !node.UploadTime.IsZero()

	switch {
	case timeAfter == model.CreationTime && hasUpload:
		effective = node.UploadTime
	case timeAfter == model.ModificationTime && hasUpload && node.ModTime.Before(node.UploadTime):
		effective = node.UploadTime
	}

	return effective
}

// IsProtected reports a top-level folder named in the protected set.
func (c *Classifier) IsProtected(node model.Node) bool {
	if !node.IsFolder || node.Depth() != 1 {
		return false
	}
	_, ok := c.protected[node.Name]
	return ok
}

func (c *Classifier) Classify(ctx context.Context, node model.Node, cutoff time.Time, timeAfter model.TimeAfter, isTagRule bool) Classification {
	if node.IsRoot() || node.InArchive() {
		return Classification{}
	}

	if !isTagRule && c.IsProtected(node) {
		return Classification{}
	}

	if !EffectiveTime(node, timeAfter).Before(cutoff) {
		return Classification{}
	}

	return Classification{Archive: true, Shared: c.isShared(ctx, node)}
}

func (c *Classifier) isShared(ctx context.Context, node model.Node) bool {
	if c.hasDirectShare(ctx, node.OwnerID, node.ID) {
		return true
	}
	if node.ParentID == 0 {
		return false
	}
	return c.hasDirectShare(ctx, node.OwnerID, node.ParentID)
}

func (c *Classifier) hasDirectShare(ctx context.Context, ownerID string, nodeID int64) bool {
	key := shareCacheKey{ownerID: ownerID, nodeID: nodeID}
	if shared, ok := c.cache.Get(key); ok {
		return shared
	}

	shared := false
	for _, shareType := range model.DirectShareTypes {
		found, err := c.shares.SharesBy(ctx, ownerID, shareType, nodeID)
		if err != nil {
			// Errors count as not shared and are not cached.
			c.logger.Debug("share lookup failed", "node_id", nodeID, "share_type", shareType, "error", err)
			return false
		}
		if len(found) > 0 {
			shared = true
			break
		}
	}

	c.cache.Add(key, shared)
	return shared
}
