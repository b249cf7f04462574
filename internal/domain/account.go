package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is owned by the external account ledger. Balance is informational
// and never debited here.
type Account struct {
	ID        uuid.UUID
	MSISDN    string
	Name      string
	Balance   decimal.Decimal
	CreatedAt time.Time
}
