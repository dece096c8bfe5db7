package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/dedupe/internal/model"
)

// Header is the CSV header for transactions.csv.
const Header = "id,business_name,billing_amount,date,is_reviewed_duplicate,reference,source"

const (
	numFields    = 7
	dateFormat   = time.RFC3339Nano
	colID        = 0
	colName      = 1
	colAmount    = 2
	colDate      = 3
	colReviewed  = 4
	colReference = 5
	colSource    = 6
)

// ReadTransactions reads all rows from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txs []model.Transaction
	for i, rec := range records[1:] {
		tx, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// WriteTransactions writes rows to a transactions.csv writer (including header).
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendTransactions appends rows to an existing transactions.csv writer (no header).
func AppendTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row ([]string).
func MarshalTransaction(tx model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = tx.ID
	row[colName] = tx.BusinessName
	row[colAmount] = tx.BillingAmount.StringFixed(2)
	row[colDate] = tx.Date.UTC().Format(dateFormat)
	row[colReviewed] = strconv.FormatBool(tx.IsReviewedDuplicate)
	row[colReference] = tx.Reference
	row[colSource] = tx.Source
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing billing_amount %q: %w", record[colAmount], err)
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	// Older files may leave the flag blank.
	var reviewed bool
	if record[colReviewed] != "" {
		reviewed, err = strconv.ParseBool(record[colReviewed])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing is_reviewed_duplicate %q: %w", record[colReviewed], err)
		}
	}

	return model.Transaction{
		ID:                  record[colID],
		BusinessName:        record[colName],
		BillingAmount:       amount,
		Date:                date,
		IsReviewedDuplicate: reviewed,
		Reference:           record[colReference],
		Source:              record[colSource],
	}, nil
}
