package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/remembernow/agentd/internal/domain"
	"go.uber.org/zap"
)

// Provisioner is the durable bridge between the job queue and the
// AgentProvider: it dispatches provisioning jobs and classifies failures
// into retryable vs. terminal.
type Provisioner struct {
	provider *AgentProvider
	logger   *zap.Logger
}

func NewProvisioner(provider *AgentProvider, logger *zap.Logger) *Provisioner {
	return &Provisioner{provider: provider, logger: logger}
}

// Handle processes one provisioning job. A nil return acknowledges the
// job; an error hands it back to the queue's retry machinery. Unrecognized
// kinds and malformed payloads are programming errors, not transient
// faults: they are logged and dropped.
func (c *Provisioner) Handle(ctx context.Context, job *domain.Job) error {
	c.logger.Debug("processing provisioning job",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)))

	switch job.Kind {
	case domain.JobCreateAgent:
		var p domain.CreateAgentPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			c.logger.Error("invalid create-agent payload, dropping job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
			return nil
		}
		return c.handleCreateAgent(ctx, p.UserID)

	case domain.JobDeleteAgent:
		var p domain.DeleteAgentPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			c.logger.Error("invalid delete-agent payload, dropping job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
			return nil
		}
		return c.handleDeleteAgent(ctx, p.UserID, p.AgentID)

	default:
		c.logger.Error("unknown job kind, dropping job",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)))
		return nil
	}
}

func (c *Provisioner) handleCreateAgent(ctx context.Context, userID int64) error {
	agentID, err := c.provider.CreateAgentForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// The user was deleted between enqueue and processing.
			// A legitimate race, not an error.
			c.logger.Warn("skipping agent creation, user no longer exists",
				zap.Int64("user_id", userID))
			return nil
		}
		c.logger.Error("failed to create agent for user",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return err
	}

	c.logger.Info("created agent for user",
		zap.Int64("user_id", userID),
		zap.String("agent_id", agentID))
	return nil
}

func (c *Provisioner) handleDeleteAgent(ctx context.Context, userID int64, agentID string) error {
	if err := c.provider.DeleteAgent(ctx, agentID, &userID); err != nil {
		c.logger.Error("failed to delete agent",
			zap.Int64("user_id", userID),
			zap.String("agent_id", agentID),
			zap.Error(err))
		return err
	}

	c.logger.Info("deleted agent for user",
		zap.Int64("user_id", userID),
		zap.String("agent_id", agentID))
	return nil
}
