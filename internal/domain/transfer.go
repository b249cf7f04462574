package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusInitiated TransferStatus = "INITIATED"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
)

func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusInitiated, TransferStatusCompleted, TransferStatusFailed:
		return true
	}
	return false
}

const IDTypeMSISDN = "MSISDN"

// TransferRecord is an append-only trace of one attempt against the hub.
// RemoteTransferID is whatever the hub returned and is not assumed to be a UUID.
type TransferRecord struct {
	ID                uuid.UUID
	SenderID          uuid.UUID
	ReceiverIDType    string
	ReceiverIDValue   string
	Amount            decimal.Decimal
	Currency          string
	Status            TransferStatus
	RemoteTransferID  *string
	HomeTransactionID string
	RawResponse       json.RawMessage
	Note              string
	BulkJobID         *uuid.UUID
	CreatedAt         time.Time
}

type TransferFilter struct {
	BulkJobID *uuid.UUID
	SenderID  *uuid.UUID
	Status    *TransferStatus
}

type SortOrder int

const (
	OrderCreatedDesc SortOrder = iota
	OrderCreatedAsc
)
