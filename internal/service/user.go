package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/remembernow/agentd/internal/domain"
	"github.com/remembernow/agentd/internal/queue"
	"github.com/remembernow/agentd/internal/store"
	"go.uber.org/zap"
)

var ErrEmailTaken = errors.New("email already in use")

// UserService owns the user lifecycle and fires the provisioning side
// effects. Enqueue failures never propagate: creating or deleting a user
// must not fail because the async side effect could not be scheduled.
type UserService struct {
	users  domain.UserStore
	queue  *queue.Queue
	logger *zap.Logger
}

func NewUserService(users domain.UserStore, q *queue.Queue, logger *zap.Logger) *UserService {
	return &UserService{users: users, queue: q, logger: logger}
}

type PaginatedUsers struct {
	Users      []domain.User     `json:"users"`
	Pagination domain.Pagination `json:"pagination"`
}

func (s *UserService) Create(ctx context.Context, email string) (*domain.User, error) {
	user := &domain.User{Email: email}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.enqueueAgentCreation(ctx, user.ID)
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, opts domain.ListUsersOpts) (*PaginatedUsers, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}

	users, total, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}

	totalPages := int(math.Ceil(float64(total) / float64(opts.Limit)))
	return &PaginatedUsers{
		Users: users,
		Pagination: domain.Pagination{
			Page:       opts.Page,
			Limit:      opts.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    opts.Page < totalPages,
			HasPrev:    opts.Page > 1,
		},
	}, nil
}

func (s *UserService) UpdateEmail(ctx context.Context, id int64, email string) (*domain.User, error) {
	user, err := s.users.UpdateEmail(ctx, id, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Delete removes the user record, then schedules deletion of their agent
// if one was provisioned.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	if user.AgentID != nil {
		s.enqueueAgentDeletion(ctx, id, *user.AgentID)
	}
	return nil
}

func (s *UserService) enqueueAgentCreation(ctx context.Context, userID int64) {
	payload := domain.CreateAgentPayload{UserID: userID}
	if _, err := s.queue.Enqueue(ctx, domain.JobCreateAgent, payload, queue.DefaultOptions()); err != nil {
		s.logger.Error("failed to enqueue agent creation",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}
	s.logger.Info("enqueued agent creation", zap.Int64("user_id", userID))
}

func (s *UserService) enqueueAgentDeletion(ctx context.Context, userID int64, agentID string) {
	payload := domain.DeleteAgentPayload{UserID: userID, AgentID: agentID}
	if _, err := s.queue.Enqueue(ctx, domain.JobDeleteAgent, payload, queue.DefaultOptions()); err != nil {
		s.logger.Error("failed to enqueue agent deletion",
			zap.Int64("user_id", userID),
			zap.String("agent_id", agentID),
			zap.Error(err))
		return
	}
	s.logger.Info("enqueued agent deletion",
		zap.Int64("user_id", userID),
		zap.String("agent_id", agentID))
}
