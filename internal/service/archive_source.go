package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-time-archive/internal/model"
)

// NodeSource feeds candidate nodes of one run into the pipeline and folds
// the per-node results.
type NodeSource interface {
	Each(ctx context.Context, p *pipeline) model.RunStatistics
}

// tagMembers pages through the files carrying a tag.
type tagMembers struct {
	tree     FileTree
	tags     TagGateway
	tagID    int64
	pageSize int
	logger   *slog.Logger
}

func (s *tagMembers) Each(ctx context.Context, p *pipeline) model.RunStatistics {
	var stats model.RunStatistics
	owners := make(map[string]struct{})
	var after int64

	for {
		if ctx.Err() != nil {
			s.logger.Warn("tag run interrupted", "tag_id", s.tagID, "error", ctx.Err())
			break
		}

		ids, err := s.tags.ObjectIDsForTag(ctx, s.tagID, s.pageSize, after)
		if err != nil {
			s.logger.Error("list tagged files failed", "tag_id", s.tagID, "after", after, "error", err)
			stats.Failed++
			break
		}
		s.logger.Debug("checking tagged files", "tag_id", s.tagID, "count", len(ids))

		for _, id := range ids {
			node, err := resolveMovable(ctx, s.tree, id)
			if err != nil {
				s.logger.Debug("skipping tagged file", "node_id", id, "error", err)
				stats.Skipped++
				continue
			}

			owners[node.OwnerID] = struct{}{}
			stats.FilesChecked++
			stats = stats.Add(p.process(ctx, node))
		}

		if len(ids) < s.pageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	stats.UsersProcessed = len(owners)
	return stats
}

// resolveMovable returns the first view of id that allows move and delete,
// trying every user that can see it.
func resolveMovable(ctx context.Context, tree FileTree, id int64) (model.Node, error) {
	users, err := tree.MountsForFile(ctx, id)
	if err != nil {
		return model.Node{}, fmt.Errorf("list mounts: %w", err)
	}
	if len(users) == 0 {
		return model.Node{}, fmt.Errorf("%w: no mount for file %d", model.ErrNodeNotFound, id)
	}

	for _, userID := range users {
		nodes, err := tree.GetByID(ctx, userID, id)
		if err != nil {
			continue
		}
		for _, node := range nodes {
			if node.Movable() {
				return node, nil
			}
		}
	}

	return model.Node{}, fmt.Errorf("%w: file %d", model.ErrNotPermitted, id)
}

// userTrees walks every user's tree depth first. Subfolders are processed
// before their parent re-checks them for emptiness.
type userTrees struct {
	tree     FileTree
	users    UserDirectory
	maxDepth int
	logger   *slog.Logger
}

func (s *userTrees) Each(ctx context.Context, p *pipeline) model.RunStatistics {
	var stats model.RunStatistics

	err := s.users.ForEachUser(ctx, func(ctx context.Context, userID string) error {
		stats = stats.Add(s.walkUser(ctx, p, userID))
		return nil
	})
	if err != nil {
		s.logger.Error("user enumeration stopped", "error", err)
	}

	return stats
}

func (s *userTrees) walkUser(ctx context.Context, p *pipeline, userID string) model.RunStatistics {
	root, err := s.tree.UserRoot(ctx, userID)
	if err != nil {
		s.logger.Warn("load user tree failed", "user_id", userID, "error", err)
		return model.RunStatistics{Failed: 1}
	}

	stats := s.walk(ctx, p, root, 0)
	stats.UsersProcessed++
	return stats
}

func (s *userTrees) walk(ctx context.Context, p *pipeline, folder model.Node, depth int) model.RunStatistics {
	var stats model.RunStatistics

	if ctx.Err() != nil {
		return stats
	}

	children, err := s.tree.ListChildren(ctx, folder)
	if err != nil {
		s.logger.Warn("list folder failed", "user_id", folder.OwnerID, "path", folder.Path, "error", err)
		stats.Failed++
		return stats
	}

	for _, child := range children {
		if child.InArchive() {
			continue
		}

		if !child.IsFolder {
			stats.FilesChecked++
			stats = stats.Add(p.process(ctx, child))
			continue
		}

		if depth+1 >= s.maxDepth {
			s.logger.Warn("folder too deep, not descending", "user_id", child.OwnerID, "path", child.Path, "max_depth", s.maxDepth)
			continue
		}

		stats = stats.Add(s.walk(ctx, p, child, depth+1))
		stats = stats.Add(s.archiveIfEmptied(ctx, p, child))
	}

	return stats
}

// archiveIfEmptied archives folder when nothing but archive remnants is left
// in it. Only nodes under the user's top-level archive root count as
// remnants; a user folder that happens to be named .archive does not. Eligibility uses the listing snapshot, since emptying the folder
// bumped its live modification time.
func (s *userTrees) archiveIfEmptied(ctx context.Context, p *pipeline, folder model.Node) model.RunStatistics {
	children, err := s.tree.ListChildren(ctx, folder)
	if err != nil {
		if !errors.Is(err, model.ErrNodeNotFound) {
			s.logger.Debug("re-list folder failed", "path", folder.Path, "error", err)
		}
		return model.RunStatistics{}
	}

	for _, child := range children {
		if !child.InArchive() {
			return model.RunStatistics{}
		}
	}

	return p.process(ctx, folder)
}
