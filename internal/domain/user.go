package domain

import "time"

// User is a local account record. AgentID is the linkage to the external
// agent resource: nil means no agent has been provisioned yet, and at most
// one non-nil value exists per user at any time.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	AgentID   *string   `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListUsersOpts struct {
	Page   int
	Limit  int
	Search string
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}
