package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPatchApply(t *testing.T) {
	tx := Transaction{ID: "a", BusinessName: "Coffee Shop"}

	got := ReviewedPatch().Apply(tx)
	assert.True(t, got.IsReviewedDuplicate)
	assert.Equal(t, "Coffee Shop", got.BusinessName)
	assert.False(t, tx.IsReviewedDuplicate, "original must not change")

	// Empty patch leaves the flag alone.
	got = Patch{}.Apply(got)
	assert.True(t, got.IsReviewedDuplicate)
}

func TestPatchIsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, ReviewedPatch().IsEmpty())
}

func TestBankTransactionToTransaction(t *testing.T) {
	date := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	b := BankTransaction{
		Date:        date,
		Description: "GITHUB *PRO SUBSCRIPTION",
		Amount:      decimal.RequireFromString("-4.00"),
		Reference:   "chase_20250103_GITHUBPROS",
		Type:        "ACH_DEBIT",
	}

	tx := b.ToTransaction("chase")
	assert.Empty(t, tx.ID)
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", tx.BusinessName)
	assert.Equal(t, "4.00", tx.BillingAmount.StringFixed(2))
	assert.True(t, tx.Date.Equal(date))
	assert.Equal(t, "chase_20250103_GITHUBPROS", tx.Reference)
	assert.Equal(t, "chase", tx.Source)
	assert.False(t, tx.IsReviewedDuplicate)
}

func TestBankTransactionIsCredit(t *testing.T) {
	tests := []struct {
		amount string
		typ    string
		want   bool
	}{
		{"-4.50", "DEBIT_CARD", false},
		{"-4.50", "", false},
		{"0", "ACH_DEBIT", false},
		{"3500.00", "ACH_CREDIT", true},
		{"50.00", "REFUND", true},
		{"-50.00", "ach_credit", true},
		{"-50.00", "CREDIT", true},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"/"+tt.typ, func(t *testing.T) {
			b := BankTransaction{Amount: decimal.RequireFromString(tt.amount), Type: tt.typ}
			assert.Equal(t, tt.want, b.IsCredit())
		})
	}

	flagged := BankTransaction{Amount: decimal.RequireFromString("-50.00"), Type: "MISC", Credit: true}
	assert.True(t, flagged.IsCredit())
}
