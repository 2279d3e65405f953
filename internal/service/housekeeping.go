package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go-time-archive/internal/model"
)

// Outcome is the result of a best-effort step. Callers log it and move on;
// a failed Outcome never fails the surrounding operation.
type Outcome struct {
	Action string
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Log writes the outcome at debug on success and warn on failure.
func (o Outcome) Log(logger *slog.Logger, args ...any) {
	if o.Err == nil {
		logger.Debug(o.Action+" succeeded", args...)
		return
	}
	logger.Warn(o.Action+" failed", append(args, "error", o.Err)...)
}

var errFavoriteNotVerified = errors.New("favorite tag not present after assignment")

// FavoriteService keeps archive roots marked as favorite and strips rule tags
// from archived files.
type FavoriteService struct {
	tags   TagGateway
	logger *slog.Logger
}

func NewFavoriteService(tags TagGateway, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{tags: tags, logger: logger.With("component", "favorites")}
}

// FavoriteTag returns the first tag the host would treat as the favorite
// marker, or false when none exists.
func (s *FavoriteService) FavoriteTag(ctx context.Context) (model.Tag, bool, error) {
	all, err := s.tags.All(ctx)
	if err != nil {
		return model.Tag{}, false, fmt.Errorf("list tags: %w", err)
	}

	for _, tag := range all {
		if tag.IsFavorite() {
			return tag, true, nil
		}
	}
	return model.Tag{}, false, nil
}

// EnsureFavorite tags node as favorite, creating the tag if needed, and
// checks the assignment took.
func (s *FavoriteService) EnsureFavorite(ctx context.Context, node model.Node) Outcome {
	outcome := Outcome{Action: "mark favorite"}

	tag, found, err := s.FavoriteTag(ctx)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if !found {
		tag, err = s.tags.Create(ctx, model.FavoriteTagName, true, true)
		if err != nil {
			outcome.Err = fmt.Errorf("create favorite tag: %w", err)
			return outcome
		}
		s.logger.Debug("created favorite tag", "tag_id", tag.ID)
	}

	if err := s.tags.Assign(ctx, node.ID, tag.ID); err != nil {
		outcome.Err = fmt.Errorf("assign favorite tag: %w", err)
		return outcome
	}

	assigned, err := s.tags.TagIDsForObject(ctx, node.ID)
	if err != nil {
		outcome.Err = fmt.Errorf("verify favorite tag: %w", err)
		return outcome
	}
	if !slices.Contains(assigned, tag.ID) {
		outcome.Err = errFavoriteNotVerified
	}

	return outcome
}

// IsFavorite reports whether node already carries a favorite tag. Lookup
// errors read as not favorite.
func (s *FavoriteService) IsFavorite(ctx context.Context, node model.Node) bool {
	assigned, err := s.tags.TagIDsForObject(ctx, node.ID)
	if err != nil || len(assigned) == 0 {
		return false
	}

	all, err := s.tags.All(ctx)
	if err != nil {
		return false
	}
	for _, tag := range all {
		if tag.IsFavorite() && slices.Contains(assigned, tag.ID) {
			return true
		}
	}
	return false
}

func (s *FavoriteService) RemoveTag(ctx context.Context, nodeID int64, tagID int64) Outcome {
	outcome := Outcome{Action: "remove rule tag"}
	if err := s.tags.Unassign(ctx, nodeID, tagID); err != nil {
		outcome.Err = fmt.Errorf("unassign tag %d: %w", tagID, err)
	}
	return outcome
}

type RepairSummary struct {
	Processed int `json:"processed"`
	Added     int `json:"added"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s RepairSummary) String() string {
	return fmt.Sprintf("processed %d users, added %d folders to favorites, %d skipped, %d errors",
		s.Processed, s.Added, s.Skipped, s.Errors)
}

// RepairFavorites marks every existing archive root as favorite.
func (s *FavoriteService) RepairFavorites(ctx context.Context, users UserDirectory, tree FileTree) (RepairSummary, error) {
	var summary RepairSummary

	err := users.ForEachUser(ctx, func(ctx context.Context, userID string) error {
		summary.Processed++
		log := s.logger.With("user_id", userID)

		root, err := tree.UserRoot(ctx, userID)
		if err != nil {
			summary.Errors++
			log.Warn("load user tree failed", "error", err)
			return nil
		}

		archive, err := tree.Get(ctx, root, model.ArchiveFolder)
		switch {
		case errors.Is(err, model.ErrNodeNotFound):
			summary.Skipped++
			return nil
		case err != nil:
			summary.Errors++
			log.Warn("load archive folder failed", "error", err)
			return nil
		case !archive.IsFolder:
			log.Debug("archive path is not a folder")
			summary.Skipped++
			return nil
		case s.IsFavorite(ctx, archive):
			summary.Skipped++
			return nil
		}

		outcome := s.EnsureFavorite(ctx, archive)
		outcome.Log(log, "node_id", archive.ID)
		if outcome.OK() {
			summary.Added++
		} else {
			summary.Errors++
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	s.logger.Info("favorite repair finished", "summary", summary.String())
	return summary, nil
}
