package batch

import (
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

const defaultCurrency = "XOF"

type Recipient struct {
	PhoneNumber string          `json:"phone_number"`
	FullName    string          `json:"full_name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

type Summary struct {
	TotalRows   int
	TotalAmount decimal.Decimal
	Recipients  []Recipient
}

// Summarize is a lenient preview of a source: every readable line becomes a
// recipient, with a zero amount when the amount does not parse.
func Summarize(r io.Reader) (*Summary, error) {
	cr, err := NewCSVReader(r)
	if err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}

	s := &Summary{TotalAmount: decimal.Zero}
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if IsLineError(err) {
				s.TotalRows++
				continue
			}
			return nil, fmt.Errorf("Summarize: %w", err)
		}
		s.TotalRows++

		amount, err := decimal.NewFromString(rec[ColAmount])
		if err != nil {
			amount = decimal.Zero
		}
		currency := rec[ColCurrency]
		if currency == "" {
			currency = defaultCurrency
		}

		s.Recipients = append(s.Recipients, Recipient{
			PhoneNumber: rec[ColValueID],
			FullName:    rec[ColFullName],
			Amount:      amount,
			Currency:    currency,
		})
		s.TotalAmount = s.TotalAmount.Add(amount)
	}
	return s, nil
}
