package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remembernow/agentd/internal/domain"
)

type JobStore struct {
	db *pgxpool.Pool
}

func NewJobStore(db *pgxpool.Pool) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Enqueue(ctx context.Context, j *domain.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO agent_jobs (id, kind, payload, status, max_attempts, backoff_delay_ms, run_at)
		 VALUES ($1, $2, $3, 'pending', $4, $5, $6)
		 RETURNING status, created_at, updated_at`,
		j.ID, j.Kind, j.Payload, j.MaxAttempts, j.BackoffDelay.Milliseconds(), j.RunAt,
	).Scan(&j.Status, &j.CreatedAt, &j.UpdatedAt)
}

func (s *JobStore) ClaimNext(ctx context.Context) (*domain.Job, error) {
	j := &domain.Job{}
	var backoffMS int64
	err := s.db.QueryRow(ctx,
		`WITH next AS (
		     SELECT id FROM agent_jobs
		     WHERE status = 'pending' AND run_at <= now()
		     ORDER BY run_at, id
		     FOR UPDATE SKIP LOCKED
		     LIMIT 1
		 )
		 UPDATE agent_jobs j
		 SET status = 'running', attempts = j.attempts + 1, updated_at = now()
		 FROM next WHERE j.id = next.id
		 RETURNING j.id, j.kind, j.payload, j.status, j.attempts, j.max_attempts,
		           j.backoff_delay_ms, j.run_at, j.last_error, j.created_at, j.updated_at`,
	).Scan(&j.ID, &j.Kind, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&backoffMS, &j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	j.BackoffDelay = time.Duration(backoffMS) * time.Millisecond
	return j, nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE agent_jobs SET status = 'completed', last_error = '', updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *JobStore) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE agent_jobs SET status = 'pending', run_at = $2, last_error = $3, updated_at = now()
		 WHERE id = $1`,
		id, runAt, lastError,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *JobStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE agent_jobs SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *JobStore) PruneCompleted(ctx context.Context, keep int) (int64, error) {
	return s.prune(ctx, domain.JobStatusCompleted, keep)
}

func (s *JobStore) PruneFailed(ctx context.Context, keep int) (int64, error) {
	return s.prune(ctx, domain.JobStatusFailed, keep)
}

// prune keeps the most recent `keep` jobs in the given terminal status and
// deletes the rest, bounding the inspection history.
func (s *JobStore) prune(ctx context.Context, status domain.JobStatus, keep int) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM agent_jobs
		 WHERE status = $1
		   AND id NOT IN (
		       SELECT id FROM agent_jobs
		       WHERE status = $1
		       ORDER BY updated_at DESC
		       LIMIT $2
		   )`,
		status, keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
