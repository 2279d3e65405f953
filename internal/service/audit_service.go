package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-time-archive/internal/event"
	"go-time-archive/internal/model"
	"go-time-archive/pkg/apierror"
)

const (
	AuditStatusSuccess  = "success"
	AuditStatusDeferred = "deferred"
	AuditStatusFailed   = "failed"
)

// AuditService turns bus events into persisted audit entries.
type AuditService struct {
	store  AuditStore
	logger *slog.Logger
}

func NewAuditService(store AuditStore, logger *slog.Logger) *AuditService {
	return &AuditService{store: store, logger: logger.With("component", "audit")}
}

// Start subscribes to bus and records its events until ctx is done, then
// records whatever is still buffered. wait blocks until that has finished.
func (s *AuditService) Start(ctx context.Context, bus event.Bus) (wait func()) {
	events, unsubscribe := bus.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer unsubscribe()
		s.consume(ctx, events)
	}()

	return func() { <-done }
}

func (s *AuditService) consume(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx), events)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Record(ctx, e)
		}
	}
}

func (s *AuditService) drain(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Record(ctx, e)
		default:
			return
		}
	}
}

// Record persists e when it maps to an audit action. Storage failures are
// logged and dropped.
func (s *AuditService) Record(ctx context.Context, e event.Event) {
	if s == nil {
		return
	}

	entry, ok := auditEntryFor(e)
	if !ok {
		return
	}

	if err := s.store.Log(ctx, entry); err != nil {
		s.logger.Warn("write audit entry failed", "action", entry.Action, "resource", entry.Resource, "error", err)
	}
}

func auditEntryFor(e event.Event) (model.AuditEntry, bool) {
	entry := model.AuditEntry{
		OccurredAt: e.Timestamp,
		RuleKey:    e.RuleKey,
		Status:     AuditStatusSuccess,
		Resource:   e.RuleKey,
	}
	if entry.OccurredAt == "" {
		entry.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	switch payload := e.Payload.(type) {
	case event.NodePayload:
		entry.UserID = payload.UserID
		entry.NodeID = payload.NodeID
		entry.Error = payload.Error

		switch e.Type {
		case event.TypeArchiveRootMade:
			entry.Action = "archive_root.create"
			entry.Resource = payload.To
			return entry, true
		case event.TypeNodeDeferred:
			entry.Status = AuditStatusDeferred
		case event.TypeNodeFailed:
			entry.Status = AuditStatusFailed
		case event.TypeNodeArchived:
		default:
			return model.AuditEntry{}, false
		}

		entry.Action = "archive.file"
		if payload.IsFolder {
			entry.Action = "archive.folder"
		}
		entry.Resource = payload.From
		entry.Before = map[string]string{"path": payload.From}
		if payload.To != "" {
			entry.After = map[string]any{"path": payload.To, "flattened": payload.Flattened}
		}
		return entry, true

	case model.RunRecord:
		entry.Action = "run"
		entry.Status = payload.Status
		entry.After = payload.Stats
		entry.Error = payload.Error
		return entry, true

	case model.ArchiveRule:
		switch e.Type {
		case event.TypeRuleCreated:
			entry.Action = "rule.create"
			entry.After = payload
		case event.TypeRuleDeleted:
			entry.Action = "rule.delete"
			entry.Before = payload
		default:
			return model.AuditEntry{}, false
		}
		return entry, true

	case RepairSummary:
		entry.Action = "favorites.repair"
		entry.Resource = "/" + model.ArchiveFolder
		entry.After = payload
		if payload.Errors > 0 {
			entry.Status = AuditStatusFailed
		}
		return entry, true
	}

	if e.Type == event.TypeRuleDeregister {
		entry.Action = "rule.deregister"
		if reason, ok := e.Payload.(map[string]string); ok {
			entry.Error = reason["reason"]
		}
		return entry, true
	}

	return model.AuditEntry{}, false
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if _, err := parseOptionalAuditTime(query.From); err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}
	if _, err := parseOptionalAuditTime(query.To); err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'to' datetime format", query.To, http.StatusBadRequest)
	}

	return s.store.Query(ctx, query)
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
