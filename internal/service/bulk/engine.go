// Package bulk runs batch submissions row by row through the hub client and
// reports on their progress.
package bulk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/hub-transfers/internal/batch"
	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/hub"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/metrics"
	"github.com/josh-kwaku/hub-transfers/internal/service/ledger"
)

type jobStore interface {
	Create(ctx context.Context, job *domain.BulkJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BulkJob, error)
	GetSource(ctx context.Context, id uuid.UUID) ([]byte, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Finalize(ctx context.Context, id uuid.UUID, status domain.BulkJobStatus, total, completed int) error
	Heartbeat(ctx context.Context, id uuid.UUID, total, completed int) error
}

type accountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByMSISDN(ctx context.Context, msisdn string) (*domain.Account, error)
}

type transferClient interface {
	ExecuteTransfer(ctx context.Context, req hub.TransferRequest) hub.Outcome
}

type recorder interface {
	Record(ctx context.Context, e ledger.Entry) (*domain.TransferRecord, error)
}

// HeartbeatInterval is how often a running job refreshes its counters and
// updated_at. A PROCESSING job silent for much longer is presumed abandoned.
const HeartbeatInterval = 30 * time.Second

type Engine struct {
	jobs      jobStore
	accounts  accountStore
	client    transferClient
	ledger    recorder
	heartbeat time.Duration
}

func NewEngine(jobs jobStore, accounts accountStore, client transferClient, l recorder) *Engine {
	return &Engine{
		jobs:      jobs,
		accounts:  accounts,
		client:    client,
		ledger:    l,
		heartbeat: HeartbeatInterval,
	}
}

type SubmitRequest struct {
	SenderMSISDN string
	SourceName   string
	Source       []byte
}

// Submit stores the batch as an UPLOADED job. Rows are not parsed here.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*domain.BulkJob, error) {
	sender, err := e.accounts.GetByMSISDN(ctx, req.SenderMSISDN)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Submit: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("Submit: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.BulkJob{
		ID:          uuid.New(),
		SubmitterID: sender.ID,
		Status:      domain.BulkJobStatusUploaded,
		SourceName:  req.SourceName,
		Source:      req.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	logging.FromContext(ctx).Info("bulk job submitted",
		"job_id", job.ID,
		"sender_id", sender.ID,
		"source_name", job.SourceName,
		"source_bytes", len(job.Source),
	)
	return job, nil
}

type rowResult int

const (
	rowSkipped rowResult = iota
	rowSucceeded
	rowFailed
)

func (r rowResult) String() string {
	switch r {
	case rowSucceeded:
		return "succeeded"
	case rowFailed:
		return "failed"
	default:
		return "skipped"
	}
}

type counters struct {
	total     int
	completed int
	failed    int
	skipped   int
}

func (c *counters) add(r rowResult) {
	c.total++
	switch r {
	case rowSucceeded:
		c.completed++
	case rowFailed:
		c.failed++
	default:
		c.skipped++
	}
	metrics.BulkRows.WithLabelValues(r.String()).Inc()
}

// Run processes every row of an UPLOADED job in input order and finalizes it.
// A second Run of the same job returns domain.ErrJobNotRunnable. Cancelling
// ctx stops the run between rows and leaves the job FAILED.
func (e *Engine) Run(ctx context.Context, jobID uuid.UUID) (*domain.BulkJob, error) {
	ctx, log := logging.With(ctx, "job_id", jobID)

	if err := e.jobs.MarkProcessing(ctx, jobID); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	log.Info("bulk job processing")

	var c counters
	status, runErr := e.process(ctx, log, jobID, &c)

	// The final write must land even when the run was cancelled.
	finalCtx := context.WithoutCancel(ctx)
	if err := e.jobs.Finalize(finalCtx, jobID, status, c.total, c.completed); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	metrics.BulkJobs.WithLabelValues(string(status)).Inc()

	attrs := []any{
		"status", status,
		"total", c.total,
		"completed", c.completed,
		"failed", c.failed,
		"skipped", c.skipped,
	}
	if runErr != nil {
		log.Error("bulk job aborted", append(attrs, "error", runErr)...)
	} else {
		log.Info("bulk job finished", attrs...)
	}

	job, err := e.jobs.GetByID(finalCtx, jobID)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	return job, nil
}

// process walks the source. It returns the terminal status to persist and,
// for FAILED, the reason.
func (e *Engine) process(ctx context.Context, log *slog.Logger, jobID uuid.UUID, c *counters) (domain.BulkJobStatus, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.BulkJobStatusFailed, fmt.Errorf("load job: %w", err)
	}

	sender, err := e.accounts.GetByID(ctx, job.SubmitterID)
	if err != nil {
		return domain.BulkJobStatusFailed, fmt.Errorf("load sender: %w", err)
	}

	source, err := e.jobs.GetSource(ctx, job.ID)
	if err != nil {
		return domain.BulkJobStatusFailed, fmt.Errorf("load source: %w", err)
	}

	reader, err := batch.NewCSVReader(bytes.NewReader(source))
	if err != nil {
		return domain.BulkJobStatusFailed, err
	}

	lastBeat := time.Now()
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return domain.BulkJobStatusFailed, fmt.Errorf("cancelled after %d row(s): %w", c.total, err)
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return domain.BulkJobStatusCompleted, nil
		}
		if err != nil {
			if batch.IsLineError(err) {
				log.Warn("bulk row skipped", "row", line, "reason", err.Error())
				c.add(rowSkipped)
				continue
			}
			return domain.BulkJobStatusFailed, fmt.Errorf("read row %d: %v: %w", line, err, domain.ErrBatchUnreadable)
		}

		c.add(e.processRow(ctx, log.With("row", line), job, sender, rec))

		if time.Since(lastBeat) >= e.heartbeat {
			if err := e.jobs.Heartbeat(ctx, job.ID, c.total, c.completed); err != nil {
				log.Warn("bulk job heartbeat failed", "row", line, "error", err)
			}
			lastBeat = time.Now()
		}
	}
}

// processRow attempts one row. Nothing that goes wrong here escapes: every
// problem becomes a skipped row.
func (e *Engine) processRow(ctx context.Context, log *slog.Logger, job *domain.BulkJob, sender *domain.Account, rec batch.Record) (result rowResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("bulk row panicked", "panic", r)
			result = rowSkipped
		}
	}()

	row, err := batch.ParseRow(rec)
	if err != nil {
		log.Warn("bulk row skipped", "reason", err.Error())
		return rowSkipped
	}

	note := fmt.Sprintf("Bulk: %s - Job %s", displayName(row.FullName), job.ID)
	out := e.client.ExecuteTransfer(ctx, hub.TransferRequest{
		SenderMSISDN:    sender.MSISDN,
		ReceiverIDType:  row.ReceiverIDType,
		ReceiverIDValue: row.ReceiverIDValue,
		Amount:          row.Amount.String(),
		Currency:        row.Currency,
		Note:            note,
	})

	jobID := job.ID
	_, err = e.ledger.Record(ctx, ledger.Entry{
		Outcome:         out,
		SenderID:        sender.ID,
		ReceiverIDType:  row.ReceiverIDType,
		ReceiverIDValue: row.ReceiverIDValue,
		Amount:          row.Amount,
		Currency:        row.Currency,
		Note:            note,
		BulkJobID:       &jobID,
	})
	if err != nil {
		log.Error("bulk row executed but not recorded",
			"home_transaction_id", out.HomeTransactionID,
			"success", out.Success,
			"error", err,
		)
		return rowSkipped
	}

	if !out.Success {
		log.Warn("bulk row failed", "home_transaction_id", out.HomeTransactionID, "error", out.Error)
		return rowFailed
	}
	return rowSucceeded
}

func displayName(name string) string {
	if name == "" {
		return "N/A"
	}
	return name
}
