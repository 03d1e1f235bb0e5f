package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobCreateAgent JobKind = "create-agent"
	JobDeleteAgent JobKind = "delete-agent"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a durable provisioning job. Retry bookkeeping (attempts, backoff)
// lives on the job row, not in the payload.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Kind         JobKind         `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Status       JobStatus       `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	BackoffDelay time.Duration   `json:"backoff_delay"`
	RunAt        time.Time       `json:"run_at"`
	LastError    string          `json:"last_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type CreateAgentPayload struct {
	UserID int64 `json:"userId"`
}

type DeleteAgentPayload struct {
	UserID  int64  `json:"userId"`
	AgentID string `json:"agentId"`
}
