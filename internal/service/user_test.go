package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/remembernow/agentd/internal/domain"
	"github.com/remembernow/agentd/internal/queue"
	"github.com/remembernow/agentd/internal/store"
	"go.uber.org/zap"
)

// mockJobStore implements domain.JobStore for testing the enqueue path.
type mockJobStore struct {
	mu         sync.Mutex
	jobs       []*domain.Job
	enqueueErr error
}

func (m *mockJobStore) Enqueue(ctx context.Context, j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	j.Status = domain.JobStatusPending
	m.jobs = append(m.jobs, j)
	return nil
}

func (m *mockJobStore) ClaimNext(ctx context.Context) (*domain.Job, error) {
	return nil, store.ErrNotFound
}

func (m *mockJobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockJobStore) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	return nil
}

func (m *mockJobStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return nil
}

func (m *mockJobStore) PruneCompleted(ctx context.Context, keep int) (int64, error) { return 0, nil }
func (m *mockJobStore) PruneFailed(ctx context.Context, keep int) (int64, error)    { return 0, nil }

func newTestUserService(jobs domain.JobStore) (*UserService, *mockUserStore) {
	users := newMockUserStore()
	svc := NewUserService(users, queue.New(jobs), zap.NewNop())
	return svc, users
}

func TestUserService_CreateEnqueuesProvisioning(t *testing.T) {
	jobs := &mockJobStore{}
	svc, _ := newTestUserService(jobs)
	ctx := context.Background()

	user, err := svc.Create(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user ID to be set")
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.Kind != domain.JobCreateAgent {
		t.Fatalf("expected create-agent job, got %s", job.Kind)
	}
	if job.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", job.MaxAttempts)
	}
	if job.BackoffDelay != 2*time.Second {
		t.Fatalf("expected 2s backoff, got %s", job.BackoffDelay)
	}
}

func TestUserService_CreateSucceedsWhenEnqueueFails(t *testing.T) {
	jobs := &mockJobStore{enqueueErr: errors.New("queue unavailable")}
	svc, _ := newTestUserService(jobs)

	user, err := svc.Create(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("expected create to succeed despite enqueue failure, got %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user ID to be set")
	}
}

func TestUserService_CreateDuplicateEmail(t *testing.T) {
	jobs := &mockJobStore{}
	svc, _ := newTestUserService(jobs)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "a@example.com"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_, err := svc.Create(ctx, "a@example.com")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserService_DeleteEnqueuesAgentDeletion(t *testing.T) {
	jobs := &mockJobStore{}
	svc, users := newTestUserService(jobs)
	ctx := context.Background()

	u := users.addUser("a@example.com")
	agentID := "agent_abc"
	users.users[u.ID].AgentID = &agentID

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(jobs.jobs))
	}
	if jobs.jobs[0].Kind != domain.JobDeleteAgent {
		t.Fatalf("expected delete-agent job, got %s", jobs.jobs[0].Kind)
	}
}

func TestUserService_DeleteWithoutAgentEnqueuesNothing(t *testing.T) {
	jobs := &mockJobStore{}
	svc, users := newTestUserService(jobs)
	ctx := context.Background()

	u := users.addUser("a@example.com")

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatalf("expected no enqueued jobs, got %d", len(jobs.jobs))
	}
}

func TestUserService_DeleteSucceedsWhenEnqueueFails(t *testing.T) {
	jobs := &mockJobStore{enqueueErr: errors.New("queue unavailable")}
	svc, users := newTestUserService(jobs)
	ctx := context.Background()

	u := users.addUser("a@example.com")
	agentID := "agent_abc"
	users.users[u.ID].AgentID = &agentID

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("expected delete to succeed despite enqueue failure, got %v", err)
	}
	if _, err := users.GetByID(ctx, u.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("expected user record to be removed")
	}
}

func TestUserService_DeleteNotFound(t *testing.T) {
	svc, _ := newTestUserService(&mockJobStore{})

	err := svc.Delete(context.Background(), 42)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_List(t *testing.T) {
	svc, users := newTestUserService(&mockJobStore{})
	ctx := context.Background()

	users.addUser("a@example.com")
	users.addUser("b@example.com")

	result, err := svc.List(ctx, domain.ListUsersOpts{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(result.Users))
	}
	if result.Pagination.Total != 2 || result.Pagination.TotalPages != 1 {
		t.Fatalf("unexpected pagination: %+v", result.Pagination)
	}
}

func TestUserService_UpdateEmailConflict(t *testing.T) {
	svc, users := newTestUserService(&mockJobStore{})
	ctx := context.Background()

	users.addUser("a@example.com")
	u := users.addUser("b@example.com")

	_, err := svc.UpdateEmail(ctx, u.ID, "a@example.com")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}
