package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/remembernow/agentd/internal/domain"
)

// Options controls retry and retention policy for an enqueued job.
type Options struct {
	// Attempts is the total number of delivery attempts before the job
	// lands in the failed history.
	Attempts int
	// BackoffDelay is the base delay of the exponential retry schedule.
	BackoffDelay time.Duration
	// KeepCompleted / KeepFailed bound the terminal-job history retained
	// for operational inspection.
	KeepCompleted int
	KeepFailed    int
}

// DefaultOptions is the uniform policy for provisioning jobs: 3 attempts,
// exponential backoff starting at 2 seconds, last 10 completed and last 5
// failed jobs kept.
func DefaultOptions() Options {
	return Options{
		Attempts:      3,
		BackoffDelay:  2 * time.Second,
		KeepCompleted: 10,
		KeepFailed:    5,
	}
}

// Queue is the producer side of the durable job queue.
type Queue struct {
	jobs domain.JobStore
}

func New(jobs domain.JobStore) *Queue {
	return &Queue{jobs: jobs}
}

// Enqueue persists a job for asynchronous delivery. The job becomes due
// immediately; retries are scheduled by the worker per opts.
func (q *Queue) Enqueue(ctx context.Context, kind domain.JobKind, payload any, opts Options) (*domain.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	job := &domain.Job{
		Kind:         kind,
		Payload:      data,
		MaxAttempts:  opts.Attempts,
		BackoffDelay: opts.BackoffDelay,
		RunAt:        time.Now(),
	}
	if err := q.jobs.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	return job, nil
}
