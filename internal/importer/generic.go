package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/dedupe/internal/model"
)

// GenericParser reads a headed CSV with columns date, business_name and
// amount, plus an optional reference. Column order is free. Amounts are
// billed amounts: positive is a charge, negative a refund. They are flipped
// to the bank sign convention of BankTransaction.
type GenericParser struct{}

// Accepted date layouts, tried in order. Dates without a zone are UTC.
var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads the CSV. Rows with a blank business name are rejected.
func (p *GenericParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "business_name", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("generic CSV is missing column %q", required)
		}
	}
	refCol, hasRef := cols["reference"]
	cr.FieldsPerRecord = len(header)

	var txns []model.BankTransaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading generic CSV: %w", err)
		}

		date, err := parseGenericDate(rec[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[cols["amount"]]))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", line, rec[cols["amount"]], err)
		}
		name := strings.TrimSpace(rec[cols["business_name"]])
		if name == "" {
			return nil, fmt.Errorf("row %d: business_name is empty", line)
		}

		ref := ""
		if hasRef {
			ref = strings.TrimSpace(rec[refCol])
		}
		if ref == "" {
			ref = reference("generic", date, name)
		}

		txns = append(txns, model.BankTransaction{
			Date:        date,
			Description: name,
			Amount:      amount.Neg(),
			Reference:   ref,
		})
	}
	return txns, nil
}

func parseGenericDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}
