package model

// AuditEntry records one archive action against a node or rule.
type AuditEntry struct {
	Action     string `json:"action"`
	OccurredAt string `json:"occurred_at"`
	RuleKey    string `json:"rule_key,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	NodeID     int64  `json:"node_id,omitempty"`
	Status     string `json:"status"`
	Resource   string `json:"resource"`
	Before     any    `json:"before,omitempty"`
	After      any    `json:"after,omitempty"`
	Error      string `json:"error,omitempty"`
}

type AuditQuery struct {
	Action string
	Status string
	UserID string
	Path   string
	From   string
	To     string
	Page   int
	Limit  int
}
