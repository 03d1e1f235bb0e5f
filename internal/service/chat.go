package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/remembernow/agentd/internal/agentapi"
	"github.com/remembernow/agentd/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrBlockNotFound = errors.New("memory block not found")
)

// ChatService exposes conversation and core-memory operations on a user's
// agent. Every operation resolves the agent through the lazy provisioning
// junction, so a user whose background provisioning failed still gets an
// agent on first use here.
type ChatService struct {
	client   domain.AgentClient
	provider *AgentProvider
	logger   *zap.Logger
}

func NewChatService(client domain.AgentClient, provider *AgentProvider, logger *zap.Logger) *ChatService {
	return &ChatService{client: client, provider: provider, logger: logger}
}

type AgentInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Model   string `json:"model,omitempty"`
	Created string `json:"created,omitempty"`
}

func (s *ChatService) SendMessage(ctx context.Context, userID int64, message string) (*domain.ChatResponse, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.SendMessage(ctx, agentID, []domain.AgentMessage{
		{Role: "user", Content: message},
	})
	if err != nil {
		return nil, s.mapAgentError(err, "send message", agentID)
	}
	return resp, nil
}

func (s *ChatService) GetMessages(ctx context.Context, userID int64, opts domain.ListMessagesOpts) ([]domain.AgentMessage, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.client.ListMessages(ctx, agentID, opts)
	if err != nil {
		return nil, s.mapAgentError(err, "list messages", agentID)
	}
	if messages == nil {
		messages = []domain.AgentMessage{}
	}
	return messages, nil
}

func (s *ChatService) GetAgentInfo(ctx context.Context, userID int64) (*AgentInfo, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	agent, err := s.client.RetrieveAgent(ctx, agentID)
	if err != nil {
		return nil, s.mapAgentError(err, "retrieve agent", agentID)
	}
	info := &AgentInfo{ID: agent.ID, Name: agent.Name, Model: agent.Model}
	if !agent.CreatedAt.IsZero() {
		info.Created = agent.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return info, nil
}

func (s *ChatService) ListMemoryBlocks(ctx context.Context, userID int64) ([]domain.MemoryBlock, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	blocks, err := s.client.ListBlocks(ctx, agentID)
	if err != nil {
		return nil, s.mapAgentError(err, "list blocks", agentID)
	}
	if blocks == nil {
		blocks = []domain.MemoryBlock{}
	}
	return blocks, nil
}

func (s *ChatService) GetMemoryBlock(ctx context.Context, userID int64, label string) (*domain.MemoryBlock, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	block, err := s.client.RetrieveBlock(ctx, agentID, label)
	if err != nil {
		if errors.Is(err, agentapi.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("retrieve block %s: %w", label, err)
	}
	return block, nil
}

// CreateMemoryBlock creates a standalone block and attaches it to the
// user's agent.
func (s *ChatService) CreateMemoryBlock(ctx context.Context, userID int64, b domain.MemoryBlock) (*domain.MemoryBlock, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	block, err := s.client.CreateBlock(ctx, b)
	if err != nil {
		return nil, s.mapAgentError(err, "create block", agentID)
	}
	if block.ID == "" {
		return nil, fmt.Errorf("create block %s: service returned no id", b.Label)
	}

	if err := s.client.AttachBlock(ctx, agentID, block.ID); err != nil {
		return nil, s.mapAgentError(err, "attach block", agentID)
	}
	return block, nil
}

func (s *ChatService) UpdateMemoryBlock(ctx context.Context, userID int64, label string, update domain.BlockUpdate) (*domain.MemoryBlock, error) {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	block, err := s.client.ModifyBlock(ctx, agentID, label, update)
	if err != nil {
		if errors.Is(err, agentapi.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("modify block %s: %w", label, err)
	}
	return block, nil
}

// DeleteMemoryBlock detaches the labeled block from the user's agent.
func (s *ChatService) DeleteMemoryBlock(ctx context.Context, userID int64, label string) error {
	agentID, err := s.provider.GetOrCreateAgentForUser(ctx, userID)
	if err != nil {
		return err
	}

	block, err := s.client.RetrieveBlock(ctx, agentID, label)
	if err != nil {
		if errors.Is(err, agentapi.ErrNotFound) {
			return ErrBlockNotFound
		}
		return fmt.Errorf("retrieve block %s: %w", label, err)
	}
	if block.ID == "" {
		return ErrBlockNotFound
	}

	if err := s.client.DetachBlock(ctx, agentID, block.ID); err != nil {
		if errors.Is(err, agentapi.ErrNotFound) {
			return ErrBlockNotFound
		}
		return fmt.Errorf("detach block %s: %w", label, err)
	}
	return nil
}

func (s *ChatService) mapAgentError(err error, op, agentID string) error {
	if errors.Is(err, agentapi.ErrNotFound) {
		s.logger.Warn("agent missing on remote service",
			zap.String("agent_id", agentID),
			zap.String("op", op))
		return ErrAgentNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
