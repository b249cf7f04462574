// Package batch decodes uploaded beneficiary files into fixed-shape rows.
package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

const (
	ColTypeID   = "type_id"
	ColValueID  = "value_id"
	ColCurrency = "currency"
	ColAmount   = "amount"
	ColFullName = "full_name"
)

// Record is one decoded line keyed by header name. Keys absent from the
// header, or beyond the end of a short line, are simply missing.
type Record map[string]string

type CSVReader struct {
	r      *csv.Reader
	header []string
}

var knownColumns = []string{ColTypeID, ColValueID, ColCurrency, ColAmount, ColFullName}

// NewCSVReader decodes the whole source up front and consumes the header
// line. A source that is not UTF-8 text, or whose header names none of the
// known columns, is reported as domain.ErrBatchUnreadable so no row of it is
// ever attempted.
func NewCSVReader(r io.Reader) (*CSVReader, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("NewCSVReader: read: %v: %w", err, domain.ErrBatchUnreadable)
	}
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("NewCSVReader: source is not UTF-8 text: %w", domain.ErrBatchUnreadable)
	}

	cr := csv.NewReader(bytes.NewReader(source))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("NewCSVReader: empty source: %w", domain.ErrBatchUnreadable)
		}
		return nil, fmt.Errorf("NewCSVReader: header: %v: %w", err, domain.ErrBatchUnreadable)
	}

	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	if !slices.ContainsFunc(header, func(h string) bool { return slices.Contains(knownColumns, h) }) {
		return nil, fmt.Errorf("NewCSVReader: header %q names no known column: %w", truncateHeader(header), domain.ErrBatchUnreadable)
	}

	return &CSVReader{r: cr, header: header}, nil
}

// Next returns the next record, io.EOF at the end, or a *csv.ParseError for a
// malformed line that can be skipped.
func (c *CSVReader) Next() (Record, error) {
	fields, err := c.r.Read()
	if err != nil {
		return nil, err
	}

	rec := make(Record, len(fields))
	for i, v := range fields {
		if i >= len(c.header) {
			break
		}
		rec[c.header[i]] = strings.TrimSpace(v)
	}
	return rec, nil
}

// IsLineError reports whether err concerns a single malformed line rather
// than the source as a whole.
func IsLineError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

func truncateHeader(header []string) string {
	h := strings.Join(header, ",")
	if len(h) > 64 {
		return h[:64]
	}
	return h
}
