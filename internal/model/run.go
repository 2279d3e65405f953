package model

import "time"

const (
	RunStatusCompleted    = "completed"
	RunStatusFailed       = "failed"
	RunStatusDeregistered = "deregistered"
)

// RunRecord is one persisted invocation of a rule.
type RunRecord struct {
	ID         string        `json:"id"`
	RuleKey    string        `json:"rule_key"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status"`
	Stats      RunStatistics `json:"stats"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Error      string        `json:"error,omitempty"`
}

// ScheduledJob is a registered recurring invocation of a rule key.
type ScheduledJob struct {
	ID        int64      `json:"id"`
	Key       RuleKey    `json:"key"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
