package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

const transferColumns = `id, sender_id, receiver_id_type, receiver_id_value, amount, currency,
	status, remote_transfer_id, home_transaction_id, raw_response, note, bulk_job_id,
	created_at`

// TransferRepository is the transfer ledger. It only appends and reads.
type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, rec *domain.TransferRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfers (
			id, sender_id, receiver_id_type, receiver_id_value, amount, currency,
			status, remote_transfer_id, home_transaction_id, raw_response, note, bulk_job_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.SenderID, rec.ReceiverIDType, rec.ReceiverIDValue, rec.Amount, rec.Currency,
		rec.Status, rec.RemoteTransferID, rec.HomeTransactionID, jsonParam(rec.RawResponse), rec.Note, rec.BulkJobID,
		rec.CreatedAt,
	)
	if err != nil {
		return writeError("Create", err)
	}
	return nil
}

// Query returns records matching filter. A limit <= 0 means no limit.
func (r *TransferRepository) Query(ctx context.Context, filter domain.TransferFilter, order domain.SortOrder, limit int) ([]domain.TransferRecord, error) {
	where, args := buildTransferWhere(filter)

	q := `SELECT ` + transferColumns + ` FROM transfers` + where
	if order == domain.OrderCreatedAsc {
		q += ` ORDER BY created_at ASC, seq ASC`
	} else {
		q += ` ORDER BY created_at DESC, seq DESC`
	}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("Query: scan: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Query: rows: %w", err)
	}
	return records, nil
}

func (r *TransferRepository) Count(ctx context.Context, filter domain.TransferFilter) (int, error) {
	where, args := buildTransferWhere(filter)

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

func (r *TransferRepository) CountByStatus(ctx context.Context, jobID uuid.UUID) (map[domain.TransferStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM transfers WHERE bulk_job_id = $1 GROUP BY status`, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TransferStatus]int)
	for rows.Next() {
		var status domain.TransferStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("CountByStatus: scan: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CountByStatus: rows: %w", err)
	}
	return counts, nil
}

func buildTransferWhere(filter domain.TransferFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.BulkJobID != nil {
		args = append(args, *filter.BulkJobID)
		conds = append(conds, fmt.Sprintf("bulk_job_id = $%d", len(args)))
	}
	if filter.SenderID != nil {
		args = append(args, *filter.SenderID)
		conds = append(conds, fmt.Sprintf("sender_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, " AND "), args
}

// jsonParam sends raw JSON as text so lib/pq casts it into the jsonb column.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func scanTransfer(s scanner) (*domain.TransferRecord, error) {
	var t domain.TransferRecord
	var bulkJobID uuid.NullUUID
	var raw *[]byte

	err := s.Scan(
		&t.ID, &t.SenderID, &t.ReceiverIDType, &t.ReceiverIDValue, &t.Amount, &t.Currency,
		&t.Status, &t.RemoteTransferID, &t.HomeTransactionID, &raw, &t.Note, &bulkJobID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bulkJobID.Valid {
		t.BulkJobID = &bulkJobID.UUID
	}
	if raw != nil {
		t.RawResponse = *raw
	}
	return &t, nil
}
