package batch

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

// MaxFullNameLen keeps the bulk note ("Bulk: <name> - Job <uuid>") within
// domain.MaxNoteLen.
const MaxFullNameLen = 200

// Row is one beneficiary. FullName is the only optional field.
type Row struct {
	ReceiverIDType  string
	ReceiverIDValue string
	Amount          decimal.Decimal
	Currency        string
	FullName        string
}

// ParseRow maps a record onto a Row. Absent or blank required columns yield
// domain.ErrMissingField, an amount that is not a positive decimal the ledger
// can hold domain.ErrInvalidAmount, an oversized field domain.ErrFieldTooLong.
func ParseRow(rec Record) (Row, error) {
	var row Row
	var missing []string

	required := []struct {
		col string
		dst *string
	}{
		{ColTypeID, &row.ReceiverIDType},
		{ColValueID, &row.ReceiverIDValue},
		{ColCurrency, &row.Currency},
	}
	for _, f := range required {
		v, ok := rec[f.col]
		if !ok || v == "" {
			missing = append(missing, f.col)
			continue
		}
		*f.dst = v
	}

	rawAmount, ok := rec[ColAmount]
	if !ok || rawAmount == "" {
		missing = append(missing, ColAmount)
	}

	if len(missing) > 0 {
		return Row{}, fmt.Errorf("ParseRow: %v: %w", missing, domain.ErrMissingField)
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return Row{}, fmt.Errorf("ParseRow: amount %q: %w", rawAmount, domain.ErrInvalidAmount)
	}

	if err := domain.ValidateAmount(amount); err != nil {
		return Row{}, fmt.Errorf("ParseRow: %w", err)
	}

	row.Amount = amount
	row.FullName = rec[ColFullName]

	for _, f := range []struct {
		col   string
		value string
		limit int
	}{
		{ColTypeID, row.ReceiverIDType, domain.MaxIDTypeLen},
		{ColValueID, row.ReceiverIDValue, domain.MaxIDValueLen},
		{ColCurrency, row.Currency, domain.MaxCurrencyLen},
		{ColFullName, row.FullName, MaxFullNameLen},
	} {
		if err := domain.CheckLength(f.col, f.value, f.limit); err != nil {
			return Row{}, fmt.Errorf("ParseRow: %w", err)
		}
	}
	return row, nil
}
