package model

import "time"

// ShareType keeps the host's numeric share type codes.
type ShareType int

const (
	ShareTypeUser  ShareType = 0
	ShareTypeGroup ShareType = 1
	ShareTypeLink  ShareType = 3
)

// DirectShareTypes are the share kinds that make a node likely to be held open
// by other users' sync clients.
var DirectShareTypes = []ShareType{ShareTypeUser, ShareTypeGroup, ShareTypeLink}

type Share struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	ShareType ShareType  `json:"share_type"`
	NodeID    int64      `json:"node_id"`
	SharedTo  string     `json:"shared_to,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
