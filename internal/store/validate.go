package store

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/dedupe/internal/model"
)

// ValidationError describes a single rule violation on a stored transaction.
type ValidationError struct {
	Rule          string
	TransactionID string
	Description   string
}

func (e ValidationError) Error() string {
	if e.TransactionID == "" {
		return fmt.Sprintf("%s: %s", e.Rule, e.Description)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.TransactionID, e.Description)
}

// Rule names reported by Validate.
const (
	RuleBusinessName = "business_name"
	RuleAmount       = "billing_amount"
	RuleDate         = "date"
	RuleUniqueID     = "unique_id"
)

var hundred = decimal.NewFromInt(100)

// ValidateTransaction checks a single record before it is written.
func ValidateTransaction(tx model.Transaction) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(tx.BusinessName) == "" {
		errs = append(errs, ValidationError{
			Rule:          RuleBusinessName,
			TransactionID: tx.ID,
			Description:   "business name must not be empty",
		})
	}

	if tx.BillingAmount.IsNegative() {
		errs = append(errs, ValidationError{
			Rule:          RuleAmount,
			TransactionID: tx.ID,
			Description:   fmt.Sprintf("amount %s is negative", tx.BillingAmount),
		})
	}

	// Currency amounts carry at most two decimal places.
	scaled := tx.BillingAmount.Mul(hundred)
	if !scaled.Equal(scaled.Floor()) {
		errs = append(errs, ValidationError{
			Rule:          RuleAmount,
			TransactionID: tx.ID,
			Description:   fmt.Sprintf("amount %s has more than 2 decimal places", tx.BillingAmount),
		})
	}

	if tx.Date.IsZero() {
		errs = append(errs, ValidationError{
			Rule:          RuleDate,
			TransactionID: tx.ID,
			Description:   "date is required",
		})
	}

	return errs
}

// Validate checks every record plus collection-wide ID uniqueness.
func Validate(txs []model.Transaction) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		errs = append(errs, ValidateTransaction(tx)...)

		if tx.ID == "" {
			continue
		}
		if seen[tx.ID] {
			errs = append(errs, ValidationError{
				Rule:          RuleUniqueID,
				TransactionID: tx.ID,
				Description:   "duplicate transaction ID",
			})
		}
		seen[tx.ID] = true
	}
	return errs
}

// ValidationErrors is the error returned by backends when a write fails
// validation.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, ve := range v {
		msgs[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AsError returns verrs as an error, or nil when there are none.
func AsError(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	return ValidationErrors(verrs)
}
