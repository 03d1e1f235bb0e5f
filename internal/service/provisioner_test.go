package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/remembernow/agentd/internal/domain"
	"go.uber.org/zap"
)

func makeJob(t *testing.T, kind domain.JobKind, payload any) *domain.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &domain.Job{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     data,
		Attempts:    1,
		MaxAttempts: 3,
	}
}

func TestProvisioner_CreateAgent(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())
	ctx := context.Background()

	u := users.addUser("a@example.com")
	job := makeJob(t, domain.JobCreateAgent, domain.CreateAgentPayload{UserID: u.ID})

	if err := c.Handle(ctx, job); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, _ := users.GetByID(ctx, u.ID)
	if got.AgentID == nil {
		t.Fatal("expected agent to be linked")
	}
}

func TestProvisioner_CreateAgent_UserGoneIsHandled(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())

	// User 42 was deleted between enqueue and processing.
	job := makeJob(t, domain.JobCreateAgent, domain.CreateAgentPayload{UserID: 42})

	if err := c.Handle(context.Background(), job); err != nil {
		t.Fatalf("expected user-gone to be treated as handled, got %v", err)
	}
}

func TestProvisioner_CreateAgent_OtherFailureRetries(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	client.createErr = errors.New("service unavailable")
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())

	u := users.addUser("a@example.com")
	job := makeJob(t, domain.JobCreateAgent, domain.CreateAgentPayload{UserID: u.ID})

	if err := c.Handle(context.Background(), job); err == nil {
		t.Fatal("expected error to be re-raised for retry")
	}
}

func TestProvisioner_DeleteAgent(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())
	ctx := context.Background()

	u := users.addUser("a@example.com")
	agentID := "agent_abc"
	users.users[u.ID].AgentID = &agentID

	job := makeJob(t, domain.JobDeleteAgent, domain.DeleteAgentPayload{UserID: u.ID, AgentID: agentID})

	if err := c.Handle(ctx, job); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(client.deleted) != 1 || client.deleted[0] != agentID {
		t.Fatalf("expected remote delete of %s, got %v", agentID, client.deleted)
	}
	got, _ := users.GetByID(ctx, u.ID)
	if got.AgentID != nil {
		t.Fatal("expected linkage to be cleared")
	}
}

func TestProvisioner_DeleteAgent_UserAlreadyRemoved(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())

	job := makeJob(t, domain.JobDeleteAgent, domain.DeleteAgentPayload{UserID: 42, AgentID: "agent_abc"})

	if err := c.Handle(context.Background(), job); err != nil {
		t.Fatalf("expected no error when the user record is already gone, got %v", err)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected remote delete, got %v", client.deleted)
	}
}

func TestProvisioner_DeleteAgent_RemoteFailureRetries(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	client.deleteErr = errors.New("remote unavailable")
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())

	job := makeJob(t, domain.JobDeleteAgent, domain.DeleteAgentPayload{UserID: 42, AgentID: "agent_abc"})

	err := c.Handle(context.Background(), job)
	if !errors.Is(err, ErrDeletionFailed) {
		t.Fatalf("expected ErrDeletionFailed to be re-raised for retry, got %v", err)
	}
}

func TestProvisioner_UnknownKindIsDropped(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())

	job := makeJob(t, domain.JobKind("reindex-agent"), map[string]any{})

	if err := c.Handle(context.Background(), job); err != nil {
		t.Fatalf("expected unknown kind to be dropped without error, got %v", err)
	}
}

func TestProvisioner_MalformedPayloadIsDropped(t *testing.T) {
	users := newMockUserStore()
	client := newMockAgentClient()
	c := NewProvisioner(newTestProvider(users, client), zap.NewNop())

	job := &domain.Job{
		ID:      uuid.New(),
		Kind:    domain.JobCreateAgent,
		Payload: []byte("{not json"),
	}

	if err := c.Handle(context.Background(), job); err != nil {
		t.Fatalf("expected malformed payload to be dropped without error, got %v", err)
	}
	if client.createCalls != 0 {
		t.Fatalf("expected no remote create, got %d", client.createCalls)
	}
}
