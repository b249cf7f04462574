package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

const (
	RecentLimit = 10

	GenericFailureMessage = "Account or beneficiary is not valid for the target DFSP."
)

type reportJobs interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BulkJob, error)
}

type reportLedger interface {
	Query(ctx context.Context, filter domain.TransferFilter, order domain.SortOrder, limit int) ([]domain.TransferRecord, error)
	CountByStatus(ctx context.Context, jobID uuid.UUID) (map[domain.TransferStatus]int, error)
}

type Reporter struct {
	jobs   reportJobs
	ledger reportLedger
}

func NewReporter(jobs reportJobs, l reportLedger) *Reporter {
	return &Reporter{jobs: jobs, ledger: l}
}

type ReportEntry struct {
	Beneficiary   string
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	Status        domain.TransferStatus
	ErrorMessage  string
	Timestamp     time.Time
	TransactionID string
}

type StatusReport struct {
	Job       *domain.BulkJob
	Total     int
	Succeeded int
	Failed    int
	Pending   int
	Message   string
	Recent    []ReportEntry
}

// GetStatus counts from the ledger rather than the job's cached counters.
// Total never drops below the number of rows the engine saw, which includes
// skipped rows that left no record.
func (r *Reporter) GetStatus(ctx context.Context, jobID uuid.UUID) (*StatusReport, error) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("GetStatus: %w", err)
	}

	counts, err := r.ledger.CountByStatus(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("GetStatus: %w", err)
	}

	recorded := 0
	for _, n := range counts {
		recorded += n
	}

	report := &StatusReport{
		Job:       job,
		Total:     max(job.TotalTransfers, recorded),
		Succeeded: counts[domain.TransferStatusCompleted],
		Failed:    counts[domain.TransferStatusFailed],
		Pending:   counts[domain.TransferStatusInitiated],
	}
	report.Message = fmt.Sprintf("%d succeeded, %d failed", report.Succeeded, report.Failed)

	records, err := r.ledger.Query(ctx, domain.TransferFilter{BulkJobID: &jobID}, domain.OrderCreatedDesc, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("GetStatus: %w", err)
	}
	report.Recent = toEntries(records)

	return report, nil
}

// Export returns one entry per record of the job, oldest first.
func (r *Reporter) Export(ctx context.Context, jobID uuid.UUID) ([]ReportEntry, error) {
	if _, err := r.jobs.GetByID(ctx, jobID); err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}

	records, err := r.ledger.Query(ctx, domain.TransferFilter{BulkJobID: &jobID}, domain.OrderCreatedAsc, 0)
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	return toEntries(records), nil
}

func toEntries(records []domain.TransferRecord) []ReportEntry {
	entries := make([]ReportEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, NewReportEntry(rec))
	}
	return entries
}

func NewReportEntry(rec domain.TransferRecord) ReportEntry {
	e := ReportEntry{
		Beneficiary:   rec.ReceiverIDValue,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		Reference:     rec.Note,
		Status:        rec.Status,
		Timestamp:     rec.CreatedAt,
		TransactionID: rec.HomeTransactionID,
	}
	if rec.RemoteTransferID != nil && *rec.RemoteTransferID != "" {
		e.TransactionID = *rec.RemoteTransferID
	}
	if rec.Status == domain.TransferStatusFailed {
		e.ErrorMessage = failureMessage(rec.RawResponse)
	}
	return e
}

func failureMessage(raw json.RawMessage) string {
	var payload struct {
		Error string `json:"error"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return GenericFailureMessage
}
