// Package ledger records every transfer attempt. Records are written once
// and never amended; a retry with a new correlation key is a new record.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/hub"
)

type store interface {
	Create(ctx context.Context, rec *domain.TransferRecord) error
	Query(ctx context.Context, filter domain.TransferFilter, order domain.SortOrder, limit int) ([]domain.TransferRecord, error)
	Count(ctx context.Context, filter domain.TransferFilter) (int, error)
	CountByStatus(ctx context.Context, jobID uuid.UUID) (map[domain.TransferStatus]int, error)
}

type Ledger struct {
	store store
	now   func() time.Time
}

func New(s store) *Ledger {
	return &Ledger{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type Entry struct {
	Outcome         hub.Outcome
	SenderID        uuid.UUID
	ReceiverIDType  string
	ReceiverIDValue string
	Amount          decimal.Decimal
	Currency        string
	Note            string
	BulkJobID       *uuid.UUID
}

// StatusFor maps an outcome onto the only two statuses this ledger persists.
func StatusFor(o hub.Outcome) domain.TransferStatus {
	if o.Success {
		return domain.TransferStatusCompleted
	}
	return domain.TransferStatusFailed
}

func (l *Ledger) Record(ctx context.Context, e Entry) (*domain.TransferRecord, error) {
	rec := &domain.TransferRecord{
		ID:                uuid.New(),
		SenderID:          e.SenderID,
		ReceiverIDType:    e.ReceiverIDType,
		ReceiverIDValue:   e.ReceiverIDValue,
		Amount:            e.Amount,
		Currency:          e.Currency,
		Status:            StatusFor(e.Outcome),
		HomeTransactionID: e.Outcome.HomeTransactionID,
		RawResponse:       e.Outcome.AuditPayload(),
		Note:              e.Note,
		BulkJobID:         e.BulkJobID,
		CreatedAt:         l.now(),
	}
	if e.Outcome.RemoteTransferID != "" {
		id := e.Outcome.RemoteTransferID
		rec.RemoteTransferID = &id
	}

	if err := l.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("Record: %w", err)
	}
	return rec, nil
}

func (l *Ledger) Query(ctx context.Context, filter domain.TransferFilter, order domain.SortOrder, limit int) ([]domain.TransferRecord, error) {
	records, err := l.store.Query(ctx, filter, order, limit)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	return records, nil
}

func (l *Ledger) Count(ctx context.Context, filter domain.TransferFilter) (int, error) {
	n, err := l.store.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

func (l *Ledger) CountByStatus(ctx context.Context, jobID uuid.UUID) (map[domain.TransferStatus]int, error) {
	counts, err := l.store.CountByStatus(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	return counts, nil
}
