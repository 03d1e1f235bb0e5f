package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, opts ListUsersOpts) ([]User, int, error)
	UpdateEmail(ctx context.Context, id int64, email string) (*User, error)
	Delete(ctx context.Context, id int64) error

	// UpdateAgentID sets or clears the agent linkage unconditionally.
	UpdateAgentID(ctx context.Context, id int64, agentID *string) error
	// ClaimAgentID sets the linkage only if it is currently empty and
	// reports whether the write won.
	ClaimAgentID(ctx context.Context, id int64, agentID string) (bool, error)
}

type JobStore interface {
	Enqueue(ctx context.Context, j *Job) error
	// ClaimNext atomically claims the next due pending job, incrementing
	// its attempt count. Returns ErrNotFound when nothing is due.
	ClaimNext(ctx context.Context) (*Job, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	PruneCompleted(ctx context.Context, keep int) (int64, error)
	PruneFailed(ctx context.Context, keep int) (int64, error)
}

// AgentClient is the remote capability contract for the external agent
// service. Implementations must signal a distinguishable not-found
// condition for operations on missing resources.
type AgentClient interface {
	CreateAgent(ctx context.Context, cfg AgentConfig) (*Agent, error)
	RetrieveAgent(ctx context.Context, id string) (*Agent, error)
	DeleteAgent(ctx context.Context, id string) error

	SendMessage(ctx context.Context, agentID string, messages []AgentMessage) (*ChatResponse, error)
	ListMessages(ctx context.Context, agentID string, opts ListMessagesOpts) ([]AgentMessage, error)

	ListBlocks(ctx context.Context, agentID string) ([]MemoryBlock, error)
	RetrieveBlock(ctx context.Context, agentID, label string) (*MemoryBlock, error)
	CreateBlock(ctx context.Context, b MemoryBlock) (*MemoryBlock, error)
	AttachBlock(ctx context.Context, agentID, blockID string) error
	DetachBlock(ctx context.Context, agentID, blockID string) error
	ModifyBlock(ctx context.Context, agentID, label string, update BlockUpdate) (*MemoryBlock, error)
}
