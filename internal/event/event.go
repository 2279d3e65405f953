package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeNodeArchived    Type = "node.archived"
	TypeNodeDeferred    Type = "node.deferred"
	TypeNodeFailed      Type = "node.failed"
	TypeRunCompleted    Type = "run.completed"
	TypeRunFailed       Type = "run.failed"
	TypeRuleCreated     Type = "rule.created"
	TypeRuleDeleted     Type = "rule.deleted"
	TypeRuleDeregister  Type = "rule.deregistered"
	TypeFavoriteRepair  Type = "favorites.repaired"
	TypeArchiveRootMade Type = "archive_root.created"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	RuleKey   string `json:"rule_key,omitempty"`
}

// NodePayload describes one archive attempt.
type NodePayload struct {
	UserID      string `json:"user_id"`
	NodeID      int64  `json:"node_id"`
	From        string `json:"from"`
	To          string `json:"to,omitempty"`
	IsFolder    bool   `json:"is_folder"`
	Attempts    int    `json:"attempts,omitempty"`
	Flattened   bool   `json:"flattened,omitempty"`
	Error       string `json:"error,omitempty"`
	RootCreated bool   `json:"root_created,omitempty"`
}

func New(t Type, ruleKey string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RuleKey:   ruleKey,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
