package bulk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/metrics"
)

type sweepStore interface {
	ListStale(ctx context.Context, status domain.BulkJobStatus, age time.Duration, limit int) ([]domain.BulkJob, error)
	FailStale(ctx context.Context, id uuid.UUID, age time.Duration, total, completed int) error
}

type sweepLedger interface {
	CountByStatus(ctx context.Context, jobID uuid.UUID) (map[domain.TransferStatus]int, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

type SweeperConfig struct {
	Interval time.Duration
	// UploadGrace is how long an UPLOADED job may wait for a worker before
	// it is dispatched again.
	UploadGrace time.Duration
	// StaleAfter is how long a PROCESSING job may go without a heartbeat
	// before it is failed. Keep it well above HeartbeatInterval.
	StaleAfter time.Duration
	BatchSize  int
}

// Sweeper recovers jobs whose dispatch was lost: uploads that never reached a
// worker and runs whose worker died mid-batch.
type Sweeper struct {
	jobs       sweepStore
	ledger     sweepLedger
	dispatcher dispatcher
	cfg        SweeperConfig
	logger     *slog.Logger
}

func NewSweeper(jobs sweepStore, l sweepLedger, d dispatcher, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	return &Sweeper{
		jobs:       jobs,
		ledger:     l,
		dispatcher: d,
		cfg:        cfg,
		logger:     logger.With("component", "bulk_sweeper"),
	}
}

// Start sweeps once, then on every tick until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("bulk sweeper started",
		"interval", s.cfg.Interval,
		"upload_grace", s.cfg.UploadGrace,
		"stale_after", s.cfg.StaleAfter,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("bulk sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) {
	s.redispatchUploads(ctx)
	s.failAbandoned(ctx)
}

func (s *Sweeper) redispatchUploads(ctx context.Context) {
	jobs, err := s.jobs.ListStale(ctx, domain.BulkJobStatusUploaded, s.cfg.UploadGrace, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to list idle bulk uploads", "error", err)
		return
	}

	for _, job := range jobs {
		err := s.dispatcher.Dispatch(ctx, job.ID)
		if errors.Is(err, ErrQueueFull) {
			s.logger.Warn("bulk queue full, redispatch deferred", "job_id", job.ID)
			return
		}
		if err != nil {
			s.logger.Error("failed to redispatch bulk job", "job_id", job.ID, "error", err)
			continue
		}
		metrics.BulkJobsRecovered.WithLabelValues("redispatched").Inc()
		s.logger.Info("bulk job redispatched", "job_id", job.ID, "uploaded_at", job.CreatedAt)
	}
}

func (s *Sweeper) failAbandoned(ctx context.Context) {
	jobs, err := s.jobs.ListStale(ctx, domain.BulkJobStatusProcessing, s.cfg.StaleAfter, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to list stale bulk jobs", "error", err)
		return
	}

	for _, job := range jobs {
		log := s.logger.With("job_id", job.ID)

		total, completed := job.TotalTransfers, job.TransfersCompleted
		counts, err := s.ledger.CountByStatus(ctx, job.ID)
		if err != nil {
			log.Error("failed to count ledger rows for stale bulk job", "error", err)
			continue
		}
		recorded := 0
		for _, n := range counts {
			recorded += n
		}
		total = max(total, recorded)
		completed = max(completed, counts[domain.TransferStatusCompleted])

		err = s.jobs.FailStale(ctx, job.ID, s.cfg.StaleAfter, total, completed)
		if errors.Is(err, domain.ErrJobNotRunnable) {
			log.Info("bulk job moved on before it could be failed")
			continue
		}
		if err != nil {
			log.Error("failed to fail stale bulk job", "error", err)
			continue
		}
		metrics.BulkJobsRecovered.WithLabelValues("failed").Inc()
		metrics.BulkJobs.WithLabelValues(string(domain.BulkJobStatusFailed)).Inc()
		log.Warn("stale bulk job failed",
			"last_update", job.UpdatedAt,
			"total", total,
			"completed", completed,
		)
	}
}
