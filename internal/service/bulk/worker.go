package bulk

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
)

var ErrQueueFull = errors.New("bulk dispatch queue is full")

type jobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) (*domain.BulkJob, error)
}

// WorkerPool runs submitted jobs in the background. Jobs run in parallel
// across workers; rows within a job stay sequential.
type WorkerPool struct {
	runner  jobRunner
	queue   chan uuid.UUID
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
}

func NewWorkerPool(runner jobRunner, workers, queueSize int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &WorkerPool{
		runner:  runner,
		queue:   make(chan uuid.UUID, queueSize),
		workers: workers,
		logger:  logger.With("component", "bulk_worker_pool"),
		pending: make(map[uuid.UUID]struct{}),
	}
}

// Dispatch enqueues a job without blocking. A job already waiting in the
// queue is not queued twice.
func (p *WorkerPool) Dispatch(_ context.Context, jobID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[jobID]; ok {
		return nil
	}
	select {
	case p.queue <- jobID:
		p.pending[jobID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *WorkerPool) take(jobID uuid.UUID) {
	p.mu.Lock()
	delete(p.pending, jobID)
	p.mu.Unlock()
}

// Start blocks until ctx is cancelled and every in-flight run has returned.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.logger.Info("bulk worker pool started", "workers", p.workers, "queue_size", cap(p.queue))

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.workers {
		g.Go(func() error {
			p.work(gctx, i)
			return nil
		})
	}
	err := g.Wait()

	p.logger.Info("bulk worker pool stopped")
	return err
}

func (p *WorkerPool) work(ctx context.Context, id int) {
	log := p.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-p.queue:
			p.take(jobID)
			RunDispatched(logging.WithLogger(ctx, log), p.runner, jobID)
		}
	}
}

// RunDispatched runs one job taken off a queue. Errors are logged, since
// there is no caller left to return them to.
func RunDispatched(ctx context.Context, runner jobRunner, jobID uuid.UUID) {
	log := logging.FromContext(ctx).With("job_id", jobID)
	if _, err := runner.Run(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotRunnable) {
			log.Warn("bulk job already started, dispatch ignored")
			return
		}
		log.Error("bulk job run failed", "error", err)
	}
}
