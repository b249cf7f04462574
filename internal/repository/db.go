package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

// Postgres error codes the repositories translate into domain errors.
const (
	pqStringTooLong   pq.ErrorCode = "22001"
	pqNumericOverflow pq.ErrorCode = "22003"
	pqForeignKey      pq.ErrorCode = "23503"
)

// writeError tags a failed write with the domain error matching its cause,
// keeping the driver error in the chain for logs.
func writeError(op string, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var kind error
	switch pqErr.Code {
	case pqStringTooLong:
		kind = domain.ErrFieldTooLong
	case pqNumericOverflow:
		kind = domain.ErrInvalidAmount
	case pqForeignKey:
		kind = domain.ErrAccountNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
