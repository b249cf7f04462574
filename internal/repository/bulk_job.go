package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

const bulkJobColumns = `id, submitter_id, status, source_name, total_transfers,
	transfers_completed, created_at, updated_at`

type BulkJobRepository struct {
	db *sql.DB
}

func NewBulkJobRepository(db *sql.DB) *BulkJobRepository {
	return &BulkJobRepository{db: db}
}

func (r *BulkJobRepository) Create(ctx context.Context, job *domain.BulkJob) error {
	source := job.Source
	if source == nil {
		source = []byte{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bulk_jobs (
			id, submitter_id, status, source_name, source, total_transfers,
			transfers_completed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.SubmitterID, job.Status, job.SourceName, source, job.TotalTransfers,
		job.TransfersCompleted, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return writeError("Create", err)
	}
	return nil
}

// GetByID loads the job without its source payload.
func (r *BulkJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BulkJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bulkJobColumns+` FROM bulk_jobs WHERE id = $1`, id,
	)
	job, err := scanBulkJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrJobNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return job, nil
}

func (r *BulkJobRepository) GetSource(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var source []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT source FROM bulk_jobs WHERE id = $1`, id,
	).Scan(&source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetSource: %w", domain.ErrJobNotFound)
		}
		return nil, fmt.Errorf("GetSource: %w", err)
	}
	return source, nil
}

// MarkProcessing moves an UPLOADED job to PROCESSING. Only one caller can win;
// everyone else gets ErrJobNotRunnable.
func (r *BulkJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bulk_jobs SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.BulkJobStatusProcessing, id, domain.BulkJobStatusUploaded,
	)
	if err != nil {
		return fmt.Errorf("MarkProcessing: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkProcessing: rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return fmt.Errorf("MarkProcessing: %w", err)
		}
		return fmt.Errorf("MarkProcessing: %w", domain.ErrJobNotRunnable)
	}
	return nil
}

// Finalize writes the counters and a terminal status. Terminal jobs are left
// untouched.
func (r *BulkJobRepository) Finalize(ctx context.Context, id uuid.UUID, status domain.BulkJobStatus, total, completed int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bulk_jobs
		SET status = $1, total_transfers = $2, transfers_completed = $3, updated_at = now()
		WHERE id = $4 AND status NOT IN ($5, $6)`,
		status, total, completed, id, domain.BulkJobStatusCompleted, domain.BulkJobStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("Finalize: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Finalize: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Finalize: %w", domain.ErrJobNotRunnable)
	}
	return nil
}

// Heartbeat publishes the counters of a running job and refreshes updated_at,
// which is what marks a PROCESSING job as alive.
func (r *BulkJobRepository) Heartbeat(ctx context.Context, id uuid.UUID, total, completed int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bulk_jobs
		SET total_transfers = $1, transfers_completed = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		total, completed, id, domain.BulkJobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("Heartbeat: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Heartbeat: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Heartbeat: %w", domain.ErrJobNotRunnable)
	}
	return nil
}

// ListStale returns jobs in status whose updated_at is older than age by the
// database clock, oldest first.
func (r *BulkJobRepository) ListStale(ctx context.Context, status domain.BulkJobStatus, age time.Duration, limit int) ([]domain.BulkJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bulkJobColumns+` FROM bulk_jobs
		WHERE status = $1 AND updated_at < now() - $2 * interval '1 second'
		ORDER BY updated_at
		LIMIT $3`,
		status, age.Seconds(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	defer rows.Close()

	var jobs []domain.BulkJob
	for rows.Next() {
		job, err := scanBulkJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStale: scan: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	return jobs, nil
}

// FailStale finalizes a PROCESSING job as FAILED, provided it is still stale.
// A job that heartbeated or finished in the meantime yields ErrJobNotRunnable.
func (r *BulkJobRepository) FailStale(ctx context.Context, id uuid.UUID, age time.Duration, total, completed int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bulk_jobs
		SET status = $1, total_transfers = $2, transfers_completed = $3, updated_at = now()
		WHERE id = $4 AND status = $5 AND updated_at < now() - $6 * interval '1 second'`,
		domain.BulkJobStatusFailed, total, completed, id, domain.BulkJobStatusProcessing, age.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("FailStale: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("FailStale: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("FailStale: %w", domain.ErrJobNotRunnable)
	}
	return nil
}

func scanBulkJob(s scanner) (*domain.BulkJob, error) {
	var j domain.BulkJob
	var submitter uuid.NullUUID

	err := s.Scan(
		&j.ID, &submitter, &j.Status, &j.SourceName, &j.TotalTransfers,
		&j.TransfersCompleted, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if submitter.Valid {
		j.SubmitterID = submitter.UUID
	}
	return &j, nil
}
