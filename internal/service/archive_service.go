package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-time-archive/internal/event"
	"go-time-archive/internal/model"
)

// Mover is the part of ArchiveMover the pipeline needs.
type Mover interface {
	Move(ctx context.Context, node model.Node, shared bool) (MoveResult, error)
}

type ArchiveOptions struct {
	TagPageSize int
	MaxDepth    int
}

// ArchiveService runs one rule invocation end to end.
type ArchiveService struct {
	rules      RuleStore
	tags       TagGateway
	tree       FileTree
	users      UserDirectory
	classifier *Classifier
	mover      Mover
	favorites  *FavoriteService
	clock      Clock
	bus        event.Bus
	opts       ArchiveOptions
	logger     *slog.Logger
}

func NewArchiveService(
	rules RuleStore,
	tags TagGateway,
	tree FileTree,
	users UserDirectory,
	classifier *Classifier,
	mover Mover,
	favorites *FavoriteService,
	clock Clock,
	bus event.Bus,
	opts ArchiveOptions,
	logger *slog.Logger,
) *ArchiveService {
	if opts.TagPageSize <= 0 {
		opts.TagPageSize = 1000
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 128
	}

	return &ArchiveService{
		rules:      rules,
		tags:       tags,
		tree:       tree,
		users:      users,
		classifier: classifier,
		mover:      mover,
		favorites:  favorites,
		clock:      clock,
		bus:        bus,
		opts:       opts,
		logger:     logger.With("component", "archiver"),
	}
}

// RunRule executes the rule behind key once. An error wrapping
// model.ErrDeregister means the rule or its tag is gone and key must not be
// invoked again. Per-node failures never surface here; they are counted in
// the returned statistics.
func (s *ArchiveService) RunRule(ctx context.Context, key model.RuleKey) (model.RunStatistics, error) {
	if !key.Valid() {
		return model.RunStatistics{}, fmt.Errorf("%w: rule key %s", model.ErrInvalidInput, key)
	}

	rule, err := s.loadRule(ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrDeregister) {
			s.logger.Info("rule no longer valid", "rule_key", key.String(), "reason", err)
			s.publish(event.TypeRuleDeregister, key, map[string]string{"reason": err.Error()})
		}
		return model.RunStatistics{}, err
	}

	cutoff := ComputeCutoff(s.clock, rule.TimeUnit, rule.TimeAmount)
	log := s.logger.With("rule_key", key.String(), "rule_id", rule.ID)
	log.Info("running archive rule", "mode", key.Mode(), "cutoff", cutoff.UTC())

	p := &pipeline{
		key:        key,
		rule:       rule,
		cutoff:     cutoff,
		classifier: s.classifier,
		mover:      s.mover,
		favorites:  s.favorites,
		bus:        s.bus,
		logger:     log,
	}

	stats := s.source(key, log).Each(ctx, p)

	log.Info("archive rule finished",
		"users", stats.UsersProcessed,
		"checked", stats.FilesChecked,
		"files_archived", stats.FilesArchived,
		"folders_archived", stats.FoldersArchived,
		"deferred", stats.Deferred,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	return stats, nil
}

// loadRule resolves key to its rule. Tag keys also require the tag itself to
// resolve. A time-rule key whose row turned into a tag rule is gone too.
func (s *ArchiveService) loadRule(ctx context.Context, key model.RuleKey) (model.ArchiveRule, error) {
	if key.IsTag() {
		tagID := *key.TagID
		if tagID <= 0 {
			return model.ArchiveRule{}, fmt.Errorf("%w: %w %d", model.ErrDeregister, model.ErrInvalidTag, tagID)
		}

		if _, err := s.tags.Get(ctx, tagID); err != nil {
			if errors.Is(err, model.ErrTagNotFound) || errors.Is(err, model.ErrInvalidTag) {
				return model.ArchiveRule{}, fmt.Errorf("%w: tag %d: %w", model.ErrDeregister, tagID, err)
			}
			return model.ArchiveRule{}, fmt.Errorf("resolve tag %d: %w", tagID, err)
		}

		rules, err := s.rules.GetByTag(ctx, tagID)
		if err != nil {
			return model.ArchiveRule{}, fmt.Errorf("load rule for tag %d: %w", tagID, err)
		}
		if len(rules) == 0 {
			return model.ArchiveRule{}, fmt.Errorf("%w: no rule for tag %d", model.ErrDeregister, tagID)
		}
		return rules[0], nil
	}

	ruleID := *key.RuleID
	rule, err := s.rules.Get(ctx, ruleID)
	if errors.Is(err, model.ErrRuleNotFound) {
		return model.ArchiveRule{}, fmt.Errorf("%w: rule %d: %w", model.ErrDeregister, ruleID, err)
	}
	if err != nil {
		return model.ArchiveRule{}, fmt.Errorf("load rule %d: %w", ruleID, err)
	}
	if rule.IsTagRule() || rule.Orphaned() {
		return model.ArchiveRule{}, fmt.Errorf("%w: rule %d is tag based", model.ErrDeregister, ruleID)
	}
	return rule, nil
}

func (s *ArchiveService) source(key model.RuleKey, log *slog.Logger) NodeSource {
	if key.IsTag() {
		return &tagMembers{tree: s.tree, tags: s.tags, tagID: *key.TagID, pageSize: s.opts.TagPageSize, logger: log}
	}
	return &userTrees{tree: s.tree, users: s.users, maxDepth: s.opts.MaxDepth, logger: log}
}

func (s *ArchiveService) publish(t event.Type, key model.RuleKey, payload any) {
	if s.bus != nil {
		s.bus.Publish(event.New(t, key.String(), payload))
	}
}

// pipeline classifies and moves one node at a time.
type pipeline struct {
	key        model.RuleKey
	rule       model.ArchiveRule
	cutoff     time.Time
	classifier *Classifier
	mover      Mover
	favorites  *FavoriteService
	bus        event.Bus
	logger     *slog.Logger
}

func (p *pipeline) process(ctx context.Context, node model.Node) model.RunStatistics {
	var stats model.RunStatistics

	verdict := p.classifier.Classify(ctx, node, p.cutoff, p.rule.TimeAfter, p.key.IsTag())
	if !verdict.Archive {
		p.logger.Debug("not archiving", "node_id", node.ID, "path", node.Path)
		return stats
	}

	result, err := p.mover.Move(ctx, node, verdict.Shared)
	payload := event.NodePayload{
		UserID:      node.OwnerID,
		NodeID:      node.ID,
		From:        node.Path,
		To:          result.Destination,
		IsFolder:    node.IsFolder,
		Flattened:   result.Flattened,
		RootCreated: result.RootCreated,
	}

	if result.RootCreated {
		p.publish(event.TypeArchiveRootMade, event.NodePayload{UserID: node.OwnerID, To: "/" + model.ArchiveFolder, IsFolder: true})
	}

	var locked *model.LockedError
	switch {
	case errors.As(err, &locked):
		payload.Attempts = locked.Attempts
		payload.Error = err.Error()
		p.logger.Info("node locked, deferring to next run", "node_id", node.ID, "path", node.Path, "attempts", locked.Attempts)
		p.publish(event.TypeNodeDeferred, payload)
		stats.Deferred++
		return stats
	case err != nil:
		payload.Error = err.Error()
		p.logger.Error("archive node failed", "node_id", node.ID, "path", node.Path, "error", err)
		p.publish(event.TypeNodeFailed, payload)
		stats.Failed++
		return stats
	}

	if node.IsFolder {
		stats.FoldersArchived++
	} else {
		stats.FilesArchived++
	}
	p.publish(event.TypeNodeArchived, payload)

	if p.key.IsTag() && p.favorites != nil {
		p.favorites.RemoveTag(ctx, node.ID, *p.key.TagID).Log(p.logger, "node_id", node.ID)
	}

	return stats
}

func (p *pipeline) publish(t event.Type, payload event.NodePayload) {
	if p.bus != nil {
		p.bus.Publish(event.New(t, p.key.String(), payload))
	}
}
