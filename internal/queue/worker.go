package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remembernow/agentd/internal/domain"
	"github.com/remembernow/agentd/internal/store"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultConcurrency  = 2
	jobTimeout          = 2 * time.Minute
)

// Handler processes one delivered job. A nil return acknowledges the job;
// an error triggers the retry schedule until attempts are exhausted.
type Handler func(ctx context.Context, job *domain.Job) error

// Worker is the consumer side of the durable job queue: a fixed pool of
// goroutines polling for due jobs and reporting outcomes back to the
// retry machinery.
type Worker struct {
	jobs      domain.JobStore
	handler   Handler
	retention Options
	logger    *zap.Logger

	pollInterval time.Duration
	concurrency  int
	stopCh       chan struct{}
	wg           sync.WaitGroup
	forced       atomic.Bool
}

func NewWorker(jobs domain.JobStore, handler Handler, opts Options, logger *zap.Logger) *Worker {
	return &Worker{
		jobs:         jobs,
		handler:      handler,
		retention:    opts,
		logger:       logger,
		pollInterval: defaultPollInterval,
		concurrency:  defaultConcurrency,
		stopCh:       make(chan struct{}),
	}
}

func (w *Worker) SetPollInterval(d time.Duration) {
	w.pollInterval = d
}

func (w *Worker) SetConcurrency(n int) {
	if n > 0 {
		w.concurrency = n
	}
}

// Start runs the worker pool in background goroutines.
func (w *Worker) Start() {
	w.logger.Info("provisioning worker started",
		zap.Int("concurrency", w.concurrency),
		zap.Duration("poll_interval", w.pollInterval))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			ticker := time.NewTicker(w.pollInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					w.drain()
				case <-w.stopCh:
					return
				}
			}
		}()
	}
}

// Stop lets in-flight jobs finish, then releases the pool.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("provisioning worker stopped")
}

// ForceStop is the teardown mode for tests: the underlying connection pool
// may already be closed, and the resulting errors are expected noise, not
// failures.
func (w *Worker) ForceStop() {
	w.forced.Store(true)
	close(w.stopCh)
	w.wg.Wait()
}

// drain claims and processes due jobs until the backlog is empty.
func (w *Worker) drain() {
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		job, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			cancel()
			if errors.Is(err, store.ErrNotFound) {
				return
			}
			if w.isForcedCloseError(err) {
				return
			}
			w.logger.Error("failed to claim job", zap.Error(err))
			return
		}

		w.process(ctx, job)
		cancel()
	}
}

func (w *Worker) process(ctx context.Context, job *domain.Job) {
	err := w.handler(ctx, job)
	if err == nil {
		w.complete(ctx, job)
		return
	}

	if w.isForcedCloseError(err) {
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.logger.Error("job failed permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		if ferr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); ferr != nil && !w.isForcedCloseError(ferr) {
			w.logger.Error("failed to mark job failed", zap.String("job_id", job.ID.String()), zap.Error(ferr))
		}
		if _, perr := w.jobs.PruneFailed(ctx, w.retention.KeepFailed); perr != nil && !w.isForcedCloseError(perr) {
			w.logger.Warn("failed to prune failed jobs", zap.Error(perr))
		}
		return
	}

	runAt := time.Now().Add(NextDelay(job.BackoffDelay, job.Attempts))
	w.logger.Warn("job failed, scheduling retry",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.Attempts),
		zap.Time("run_at", runAt),
		zap.Error(err))
	if rerr := w.jobs.Reschedule(ctx, job.ID, runAt, err.Error()); rerr != nil && !w.isForcedCloseError(rerr) {
		w.logger.Error("failed to reschedule job", zap.String("job_id", job.ID.String()), zap.Error(rerr))
	}
}

func (w *Worker) complete(ctx context.Context, job *domain.Job) {
	if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil && !w.isForcedCloseError(err) {
		w.logger.Error("failed to mark job completed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	if _, err := w.jobs.PruneCompleted(ctx, w.retention.KeepCompleted); err != nil && !w.isForcedCloseError(err) {
		w.logger.Warn("failed to prune completed jobs", zap.Error(err))
	}
}

// NextDelay computes the exponential retry delay for the attempt that just
// failed (1-based): base, 2*base, 4*base, ...
func NextDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// isForcedCloseError reports whether err is the expected pool-closed error
// seen when a test tears the pool down under a still-draining worker.
func (w *Worker) isForcedCloseError(err error) bool {
	return w.forced.Load() && err != nil && strings.Contains(err.Error(), "closed pool")
}
