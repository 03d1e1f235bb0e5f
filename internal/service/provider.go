package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/remembernow/agentd/internal/domain"
	"github.com/remembernow/agentd/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProvisioningFailed = errors.New("failed to provision user agent")
	ErrDeletionFailed     = errors.New("failed to delete agent")
)

// DefaultAgentConfig builds the fixed configuration for newly provisioned
// agents. Model and embedding come from static config; the initial memory
// blocks are the same for every user.
func DefaultAgentConfig(model, embedding string) domain.AgentConfig {
	return domain.AgentConfig{
		AgentType: "memgpt_v2_agent",
		Model:     model,
		Embedding: embedding,
		MemoryBlocks: []domain.MemoryBlock{
			{
				Label: "persona",
				Value: "I am a thoughtful personal assistant. I remember what matters to the person I work with and use it to help them.",
			},
			{
				Label: "human",
				Value: "Nothing is known about this person yet.",
			},
		},
	}
}

// AgentProvider is the single authority for mapping a user to exactly one
// external agent, whether called synchronously or from a provisioning job.
type AgentProvider struct {
	client domain.AgentClient
	users  domain.UserStore
	config domain.AgentConfig
	logger *zap.Logger

	// group collapses concurrent lazy-create calls for the same user into
	// one in-flight creation.
	group singleflight.Group
}

func NewAgentProvider(client domain.AgentClient, users domain.UserStore, cfg domain.AgentConfig, logger *zap.Logger) *AgentProvider {
	return &AgentProvider{
		client: client,
		users:  users,
		config: cfg,
		logger: logger,
	}
}

// GetOrCreateAgentForUser returns the user's agent id, creating the agent
// lazily on first use. A missing user surfaces as ErrUserNotFound; any
// other creation failure is logged with its cause and surfaced as
// ErrProvisioningFailed.
func (p *AgentProvider) GetOrCreateAgentForUser(ctx context.Context, userID int64) (string, error) {
	v, err, _ := p.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return p.getOrCreate(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *AgentProvider) getOrCreate(ctx context.Context, userID int64) (string, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("get user %d: %w", userID, err)
	}
	if user.AgentID != nil {
		return *user.AgentID, nil
	}

	agentID, err := p.CreateAgentForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", err
		}
		p.logger.Error("failed to create agent for user",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return "", fmt.Errorf("create agent for user %d: %w", userID, ErrProvisioningFailed)
	}
	return agentID, nil
}

// CreateAgentForUser creates a remote agent and persists the linkage. If
// the linkage write fails after the remote create succeeded, the freshly
// created agent is deleted best-effort and the persistence error is
// returned, never the cleanup error.
func (p *AgentProvider) CreateAgentForUser(ctx context.Context, userID int64) (string, error) {
	agent, err := p.client.CreateAgent(ctx, p.config)
	if err != nil {
		return "", fmt.Errorf("create remote agent: %w", err)
	}

	claimed, err := p.users.ClaimAgentID(ctx, userID, agent.ID)
	if err != nil {
		p.cleanupOrphanedAgent(ctx, agent.ID)
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("persist agent link for user %d: %w", userID, err)
	}

	if !claimed {
		// Another writer provisioned this user first. Remove our agent
		// and hand back the winning id.
		p.cleanupOrphanedAgent(ctx, agent.ID)
		user, err := p.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", ErrUserNotFound
			}
			return "", fmt.Errorf("get user %d after lost claim: %w", userID, err)
		}
		if user.AgentID == nil {
			return "", fmt.Errorf("agent link for user %d cleared during provisioning", userID)
		}
		return *user.AgentID, nil
	}

	return agent.ID, nil
}

// DeleteAgent removes the remote agent, then clears the user's linkage.
// Remote deletion failure is fatal and leaves the linkage untouched so a
// retry can find the same agent id again. Deletion can be invoked for an
// agent whose owning user record no longer exists, so userID is optional.
func (p *AgentProvider) DeleteAgent(ctx context.Context, agentID string, userID *int64) error {
	if err := p.client.DeleteAgent(ctx, agentID); err != nil {
		p.logger.Error("failed to delete remote agent",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return fmt.Errorf("delete agent %s: %w", agentID, ErrDeletionFailed)
	}
	if userID != nil {
		p.clearUserAgentID(ctx, *userID)
	}
	return nil
}

// cleanupOrphanedAgent is the compensating action after a partial failure.
// Its own failure is logged and swallowed: the agent stays orphaned on the
// remote side, recorded for operational follow-up, and the caller's
// original error is preserved.
func (p *AgentProvider) cleanupOrphanedAgent(ctx context.Context, agentID string) {
	if err := p.client.DeleteAgent(ctx, agentID); err != nil {
		p.logger.Error("failed to clean up orphaned agent",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return
	}
	p.logger.Warn("cleaned up orphaned agent after linkage update failure",
		zap.String("agent_id", agentID))
}

// clearUserAgentID clears the linkage after a successful remote deletion.
// The user record being gone already satisfies the goal, so it is a benign
// no-op; any other failure is logged but not surfaced.
func (p *AgentProvider) clearUserAgentID(ctx context.Context, userID int64) {
	if err := p.users.UpdateAgentID(ctx, userID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Debug("user no longer exists, skipping agent link clear",
				zap.Int64("user_id", userID))
			return
		}
		p.logger.Error("could not clear agent link",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}
