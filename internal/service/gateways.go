package service

import (
	"context"
	"time"

	"go-time-archive/internal/model"
)

// FileTree is the host storage capability the archiver consumes.
type FileTree interface {
	UserRoot(ctx context.Context, userID string) (model.Node, error)
	ListChildren(ctx context.Context, folder model.Node) ([]model.Node, error)
	Get(ctx context.Context, parent model.Node, name string) (model.Node, error)
	Exists(ctx context.Context, parent model.Node, name string) (bool, error)
	CreateFolder(ctx context.Context, parent model.Node, name string) (model.Node, error)
	Move(ctx context.Context, node model.Node, destPath string) (model.Node, error)
	GetByID(ctx context.Context, userID string, id int64) ([]model.Node, error)
	MountsForFile(ctx context.Context, id int64) ([]string, error)
}

type UserDirectory interface {
	ForEachUser(ctx context.Context, fn func(ctx context.Context, userID string) error) error
}

type TagGateway interface {
	ObjectIDsForTag(ctx context.Context, tagID int64, limit int, after int64) ([]int64, error)
	TagIDsForObject(ctx context.Context, objectID int64) ([]int64, error)
	Assign(ctx context.Context, objectID int64, tagID int64) error
	Unassign(ctx context.Context, objectID int64, tagID int64) error
	Get(ctx context.Context, id int64) (model.Tag, error)
	All(ctx context.Context) ([]model.Tag, error)
	Create(ctx context.Context, name string, visible bool, assignable bool) (model.Tag, error)
}

type ShareGateway interface {
	SharesBy(ctx context.Context, ownerID string, shareType model.ShareType, nodeID int64) ([]model.Share, error)
}

type RuleStore interface {
	Get(ctx context.Context, id int64) (model.ArchiveRule, error)
	GetByTag(ctx context.Context, tagID int64) ([]model.ArchiveRule, error)
}

// RuleCatalog is the rule store with the write side the rule API needs.
type RuleCatalog interface {
	RuleStore
	List(ctx context.Context) ([]model.ArchiveRule, error)
	Insert(ctx context.Context, rule model.ArchiveRule) (model.ArchiveRule, error)
	Delete(ctx context.Context, id int64) error
}

// ScheduleStore holds the registered recurring invocations.
type ScheduleStore interface {
	Add(ctx context.Context, key model.RuleKey) error
	Has(ctx context.Context, key model.RuleKey) (bool, error)
	Remove(ctx context.Context, key model.RuleKey) error
	List(ctx context.Context) ([]model.ScheduledJob, error)
	ListDue(ctx context.Context, notAfter time.Time) ([]model.ScheduledJob, error)
	MarkRun(ctx context.Context, key model.RuleKey, at time.Time) error
}

type RunStore interface {
	Insert(ctx context.Context, run model.RunRecord) (model.RunRecord, error)
	List(ctx context.Context, ruleKey string, page int, limit int) ([]model.RunRecord, model.Meta, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}
