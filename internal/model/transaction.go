package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a stored transaction record.
type Transaction struct {
	ID                  string          `json:"id"`
	BusinessName        string          `json:"business_name"`
	BillingAmount       decimal.Decimal `json:"billing_amount"` // non-negative
	Date                time.Time       `json:"date"`
	IsReviewedDuplicate bool            `json:"is_reviewed_duplicate"`
	Reference           string          `json:"reference,omitempty"` // import reference, optional
	Source              string          `json:"source,omitempty"`    // importer format, optional
}

// Patch is a partial update. Only non-nil fields are merged.
type Patch struct {
	IsReviewedDuplicate *bool `json:"is_reviewed_duplicate,omitempty"`
}

// ReviewedPatch returns a Patch that flags a transaction as a reviewed duplicate.
func ReviewedPatch() Patch {
	reviewed := true
	return Patch{IsReviewedDuplicate: &reviewed}
}

// Apply merges p into t and returns the result.
func (p Patch) Apply(t Transaction) Transaction {
	if p.IsReviewedDuplicate != nil {
		t.IsReviewedDuplicate = *p.IsReviewedDuplicate
	}
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.IsReviewedDuplicate == nil
}

// BankTransaction represents a parsed bank CSV row before it is stored.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = expense, positive = income
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, etc.)
	Credit      bool   // set by parsers whose export flags credits separately
}

// IsCredit reports whether the row brings money in (income, refunds,
// reversals). Credits are not billings and are never stored.
func (b BankTransaction) IsCredit() bool {
	return b.Credit || b.Amount.IsPositive() || strings.HasSuffix(strings.ToUpper(strings.TrimSpace(b.Type)), "CREDIT")
}

// ToTransaction converts a debit row into an unsaved Transaction.
// Amounts are stored unsigned.
func (b BankTransaction) ToTransaction(source string) Transaction {
	return Transaction{
		BusinessName:  b.Description,
		BillingAmount: b.Amount.Abs(),
		Date:          b.Date,
		Reference:     b.Reference,
		Source:        source,
	}
}
