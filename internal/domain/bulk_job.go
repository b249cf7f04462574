package domain

import (
	"time"

	"github.com/google/uuid"
)

type BulkJobStatus string

const (
	BulkJobStatusUploaded   BulkJobStatus = "UPLOADED"
	BulkJobStatusProcessing BulkJobStatus = "PROCESSING"
	BulkJobStatusCompleted  BulkJobStatus = "COMPLETED"
	BulkJobStatusFailed     BulkJobStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s BulkJobStatus) IsTerminal() bool {
	return s == BulkJobStatusCompleted || s == BulkJobStatusFailed
}

// BulkJob is one batch submission. COMPLETED means every row was attempted,
// not that every row succeeded.
type BulkJob struct {
	ID                 uuid.UUID
	SubmitterID        uuid.UUID
	Status             BulkJobStatus
	SourceName         string
	Source             []byte
	TotalTransfers     int
	TransfersCompleted int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
