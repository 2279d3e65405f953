package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"go-time-archive/internal/model"
)

const folderCollisionSuffix = "_folder"

// FavoriteMarker marks a freshly created archive root.
type FavoriteMarker interface {
	EnsureFavorite(ctx context.Context, node model.Node) Outcome
}

type MoveResult struct {
	Moved       bool
	Node        model.Node
	Destination string
	RootCreated bool
	// Flattened is set when the mirrored folder chain could not be built and
	// the node went straight under the archive root.
	Flattened bool
}

type MoverOptions struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	SharedBaseDelay time.Duration
}

// ArchiveMover relocates nodes into the owner's archive root, mirroring the
// source folder chain.
type ArchiveMover struct {
	tree      FileTree
	favorites FavoriteMarker
	opts      MoverOptions
	logger    *slog.Logger
}

func NewArchiveMover(tree FileTree, favorites FavoriteMarker, opts MoverOptions, logger *slog.Logger) *ArchiveMover {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.SharedBaseDelay <= 0 {
		opts.SharedBaseDelay = 5 * time.Second
	}

	return &ArchiveMover{
		tree:      tree,
		favorites: favorites,
		opts:      opts,
		logger:    logger.With("component", "mover"),
	}
}

// Move archives node. A lock that outlasts the retry budget yields a
// *model.LockedError; other failures yield a *model.MoveError. Either way the
// node stays where it was.
func (m *ArchiveMover) Move(ctx context.Context, node model.Node, shared bool) (MoveResult, error) {
	if node.IsRoot() || node.InArchive() {
		return MoveResult{}, &model.MoveError{NodeID: node.ID, Path: node.Path, Err: model.ErrNotPermitted}
	}

	root, err := m.tree.UserRoot(ctx, node.OwnerID)
	if err != nil {
		return MoveResult{}, &model.MoveError{NodeID: node.ID, Path: node.Path, Err: err}
	}

	archiveRoot, created, err := m.ensureArchiveRoot(ctx, root)
	if err != nil {
		return MoveResult{}, &model.MoveError{NodeID: node.ID, Path: node.Path, Err: err}
	}
	result := MoveResult{RootCreated: created}

	if created && m.favorites != nil {
		m.favorites.EnsureFavorite(ctx, archiveRoot).Log(m.logger, "user_id", node.OwnerID, "node_id", archiveRoot.ID)
	}

	target, flattened := m.mirrorFolder(ctx, archiveRoot, model.SplitPath(node.ParentPath()))
	result.Flattened = flattened

	name, err := uniqueName(ctx, m.tree, target, node.Name, node.IsFolder)
	if err != nil {
		return result, &model.MoveError{NodeID: node.ID, Path: node.Path, Err: err}
	}
	result.Destination = model.JoinPath(target.Path, name)

	moved, attempts, err := m.moveWithRetry(ctx, node, result.Destination, shared)
	if err != nil {
		if errors.Is(err, model.ErrLocked) {
			return result, &model.LockedError{NodeID: node.ID, Path: node.Path, Attempts: attempts, Err: err}
		}
		return result, &model.MoveError{NodeID: node.ID, Path: node.Path, Err: err}
	}

	result.Moved = true
	result.Node = moved
	m.logger.Debug("archived node", "node_id", node.ID, "from", node.Path, "to", result.Destination)

	return result, nil
}

// ensureArchiveRoot returns the archive folder under root, creating it when
// missing. created reports whether this call made it.
func (m *ArchiveMover) ensureArchiveRoot(ctx context.Context, root model.Node) (model.Node, bool, error) {
	existing, err := m.tree.Get(ctx, root, model.ArchiveFolder)
	if err == nil {
		if !existing.IsFolder {
			return model.Node{}, false, model.ErrArchiveBlocked
		}
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNodeNotFound) {
		return model.Node{}, false, fmt.Errorf("load archive folder: %w", err)
	}

	created, err := m.tree.CreateFolder(ctx, root, model.ArchiveFolder)
	if errors.Is(err, model.ErrPathConflict) {
		// Created concurrently; use whatever is there now.
		existing, getErr := m.tree.Get(ctx, root, model.ArchiveFolder)
		if getErr != nil {
			return model.Node{}, false, fmt.Errorf("load archive folder: %w", getErr)
		}
		if !existing.IsFolder {
			return model.Node{}, false, model.ErrArchiveBlocked
		}
		return existing, false, nil
	}
	if err != nil {
		return model.Node{}, false, fmt.Errorf("create archive folder: %w", err)
	}

	m.logger.Info("created archive folder", "user_id", root.OwnerID, "node_id", created.ID)
	return created, true, nil
}

// mirrorFolder walks segments below archiveRoot, creating what is missing.
// A file in the way is sidestepped once with the "_folder" suffix. When that
// is also taken by a file, or a folder cannot be created, it falls back to
// the archive root and reports flattened.
func (m *ArchiveMover) mirrorFolder(ctx context.Context, archiveRoot model.Node, segments []string) (model.Node, bool) {
	current := archiveRoot

	for _, segment := range segments {
		next, ok := m.folderFor(ctx, current, segment)
		if !ok {
			alternate := segment + folderCollisionSuffix
			next, ok = m.folderFor(ctx, current, alternate)
			if !ok {
				m.logger.Info("folder chain blocked, archiving at archive root",
					"user_id", archiveRoot.OwnerID, "blocked_at", model.JoinPath(current.Path, segment))
				return archiveRoot, true
			}
		}
		current = next
	}

	return current, false
}

// folderFor returns the folder called name inside parent, creating it when
// absent. ok is false when a file holds the name or creation failed.
func (m *ArchiveMover) folderFor(ctx context.Context, parent model.Node, name string) (model.Node, bool) {
	existing, err := m.tree.Get(ctx, parent, name)
	if err == nil {
		return existing, existing.IsFolder
	}
	if !errors.Is(err, model.ErrNodeNotFound) {
		m.logger.Warn("load archive subfolder failed", "parent", parent.Path, "name", name, "error", err)
		return model.Node{}, false
	}

	created, err := m.tree.CreateFolder(ctx, parent, name)
	if err != nil {
		m.logger.Warn("create archive subfolder failed", "parent", parent.Path, "name", name, "error", err)
		return model.Node{}, false
	}
	return created, true
}

func (m *ArchiveMover) backoff(shared bool) retry.Backoff {
	base := m.opts.BaseDelay
	if shared {
		base = m.opts.SharedBaseDelay
	}
	return retry.WithMaxRetries(uint64(m.opts.MaxAttempts-1), retry.NewExponential(base))
}

// moveWithRetry retries lock failures with exponential backoff, re-resolving
// the node by id before every retry.
func (m *ArchiveMover) moveWithRetry(ctx context.Context, node model.Node, dest string, shared bool) (model.Node, int, error) {
	var moved model.Node
	attempts := 0
	current := node

	err := retry.Do(ctx, m.backoff(shared), func(ctx context.Context) error {
		attempts++

		if attempts > 1 {
			refreshed, err := m.tree.GetByID(ctx, node.OwnerID, node.ID)
			if err != nil {
				return fmt.Errorf("re-resolve node: %w", err)
			}
			if len(refreshed) == 0 {
				return fmt.Errorf("%w: %d", model.ErrNodeNotFound, node.ID)
			}
			current = refreshed[0]
		}

		result, err := m.tree.Move(ctx, current, dest)
		if errors.Is(err, model.ErrLocked) {
			m.logger.Debug("node locked, backing off", "node_id", node.ID, "attempt", attempts, "shared", shared)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		moved = result
		return nil
	})

	return moved, attempts, err
}
