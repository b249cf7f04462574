package bulk

import (
	"encoding/csv"
	"fmt"
	"io"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeader = []string{
	"Beneficiary", "Amount", "Currency", "Reference",
	"Status", "Error message", "Timestamp", "Transaction ID",
}

// WriteCSV renders entries as the downloadable job report.
func WriteCSV(w io.Writer, entries []ReportEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}

	for _, e := range entries {
		reference := e.Reference
		if reference == "" {
			reference = "N/A"
		}
		err := cw.Write([]string{
			e.Beneficiary,
			e.Amount.String(),
			e.Currency,
			reference,
			string(e.Status),
			e.ErrorMessage,
			e.Timestamp.UTC().Format(exportTimeLayout),
			e.TransactionID,
		})
		if err != nil {
			return fmt.Errorf("WriteCSV: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}
