package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"go-time-archive/internal/event"
	"go-time-archive/internal/model"
	"go-time-archive/pkg/apierror"
)

// RuleView is a rule as returned by the rule API.
type RuleView struct {
	model.ArchiveRule
	HasJob bool `json:"has_job"`
}

// RuleService manages archive rules and keeps each one registered with the
// scheduler under its key.
type RuleService struct {
	rules    RuleCatalog
	tags     TagGateway
	schedule ScheduleStore
	bus      event.Bus
	logger   *slog.Logger
}

func NewRuleService(rules RuleCatalog, tags TagGateway, schedule ScheduleStore, bus event.Bus, logger *slog.Logger) *RuleService {
	return &RuleService{
		rules:    rules,
		tags:     tags,
		schedule: schedule,
		bus:      bus,
		logger:   logger.With("component", "rules"),
	}
}

func (s *RuleService) Create(ctx context.Context, request model.CreateRuleRequest) (RuleView, error) {
	if request.TagID != nil {
		if *request.TagID <= 0 {
			return RuleView{}, apierror.New("BAD_REQUEST", "invalid tag", "tag_id", http.StatusBadRequest)
		}
		if _, err := s.tags.Get(ctx, *request.TagID); err != nil {
			if errors.Is(err, model.ErrTagNotFound) {
				return RuleView{}, apierror.New("BAD_REQUEST", "tag does not exist", "tag_id", http.StatusBadRequest)
			}
			return RuleView{}, fmt.Errorf("resolve tag %d: %w", *request.TagID, err)
		}
	}

	unit := request.TimeUnit
	if !unit.Valid() {
		return RuleView{}, apierror.New("BAD_REQUEST", "unknown time unit", "time_unit", http.StatusBadRequest)
	}
	if request.TimeAmount < 1 {
		return RuleView{}, apierror.New("BAD_REQUEST", "time amount must be at least 1", "time_amount", http.StatusBadRequest)
	}

	after := model.CreationTime
	if request.TimeAfter != nil {
		after = model.TimeAfter(*request.TimeAfter)
		if !after.Valid() {
			return RuleView{}, apierror.New("BAD_REQUEST", "time_after must be 0 (creation) or 1 (modification)", "time_after", http.StatusBadRequest)
		}
	}

	rule, err := s.rules.Insert(ctx, model.ArchiveRule{
		TagID:        request.TagID,
		TimeUnit:     unit,
		TimeAmount:   request.TimeAmount,
		TimeAfter:    after,
		CreatedAsTag: request.TagID != nil,
	})
	if err != nil {
		return RuleView{}, err
	}

	if err := s.schedule.Add(ctx, rule.Key()); err != nil {
		return RuleView{}, fmt.Errorf("register rule %d: %w", rule.ID, err)
	}

	s.logger.Info("archive rule created", "rule_id", rule.ID, "rule_key", rule.Key().String(),
		"unit", rule.TimeUnit.String(), "amount", rule.TimeAmount, "after", rule.TimeAfter.String())
	s.publish(event.TypeRuleCreated, rule)

	return RuleView{ArchiveRule: rule, HasJob: true}, nil
}

// List returns every rule whose tag still exists, registering any rule
// that lost its schedule entry. Orphaned tag rules are never registered.
func (s *RuleService) List(ctx context.Context) ([]RuleView, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]RuleView, 0, len(rules))
	for _, rule := range rules {
		if rule.Orphaned() {
			s.logger.Warn("skipping tag rule without a tag", "rule_id", rule.ID)
			continue
		}
		key := rule.Key()

		if rule.IsTagRule() {
			if _, err := s.tags.Get(ctx, *rule.TagID); errors.Is(err, model.ErrTagNotFound) {
				continue
			} else if err != nil {
				return nil, fmt.Errorf("resolve tag %d: %w", *rule.TagID, err)
			}
		}

		has, err := s.schedule.Has(ctx, key)
		if err != nil {
			return nil, err
		}
		if !has {
			if err := s.schedule.Add(ctx, key); err != nil {
				return nil, fmt.Errorf("register rule %d: %w", rule.ID, err)
			}
			s.logger.Info("re-registered archive rule", "rule_id", rule.ID, "rule_key", key.String())
		}

		views = append(views, RuleView{ArchiveRule: rule, HasJob: true})
	}

	return views, nil
}

func (s *RuleService) Get(ctx context.Context, id int64) (model.ArchiveRule, error) {
	rule, err := s.rules.Get(ctx, id)
	if errors.Is(err, model.ErrRuleNotFound) {
		return model.ArchiveRule{}, apierror.New("NOT_FOUND", "archive rule not found", strconv.FormatInt(id, 10), http.StatusNotFound)
	}
	return rule, err
}

// Delete removes the rule and stops its scheduled invocation.
func (s *RuleService) Delete(ctx context.Context, id int64) error {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.rules.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrRuleNotFound) {
			return apierror.New("NOT_FOUND", "archive rule not found", strconv.FormatInt(id, 10), http.StatusNotFound)
		}
		return err
	}

	if err := s.schedule.Remove(ctx, rule.Key()); err != nil {
		return fmt.Errorf("unregister rule %d: %w", id, err)
	}

	s.logger.Info("archive rule deleted", "rule_id", id, "rule_key", rule.Key().String())
	s.publish(event.TypeRuleDeleted, rule)
	return nil
}

func (s *RuleService) publish(t event.Type, rule model.ArchiveRule) {
	if s.bus != nil {
		s.bus.Publish(event.New(t, rule.Key().String(), rule))
	}
}
