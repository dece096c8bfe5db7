package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/dedupe/internal/model"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		input string
		want  Sort
	}{
		{"", SortDateDesc},
		{"-date", SortDateDesc},
		{"date", SortDateAsc},
		{" date ", SortDateAsc},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.input)
		require.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseSort("amount")
	assert.Error(t, err)
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ListOptions{}.EffectiveLimit())
	assert.Equal(t, DefaultLimit, ListOptions{Limit: -1}.EffectiveLimit())
	assert.Equal(t, 10, ListOptions{Limit: 10}.EffectiveLimit())
}

func TestSortAndLimit(t *testing.T) {
	txs := []model.Transaction{
		{ID: "b", Date: at(2, 0)},
		{ID: "a", Date: at(1, 0)},
		{ID: "c", Date: at(3, 0)},
		{ID: "c2", Date: at(3, 0)},
	}

	desc := SortAndLimit(append([]model.Transaction(nil), txs...), ListOptions{Sort: SortDateDesc})
	assert.Equal(t, []string{"c", "c2", "b", "a"}, ids(desc))

	asc := SortAndLimit(append([]model.Transaction(nil), txs...), ListOptions{Sort: SortDateAsc, Limit: 2})
	assert.Equal(t, []string{"a", "b"}, ids(asc))
}

func TestValidateTransaction(t *testing.T) {
	valid := model.Transaction{ID: "a", BusinessName: "Coffee Shop", BillingAmount: dec("4.50"), Date: at(1, 8)}
	assert.Empty(t, ValidateTransaction(valid))

	tests := []struct {
		name string
		edit func(*model.Transaction)
		rule string
	}{
		{"empty name", func(tx *model.Transaction) { tx.BusinessName = "  " }, RuleBusinessName},
		{"negative amount", func(tx *model.Transaction) { tx.BillingAmount = dec("-1.00") }, RuleAmount},
		{"three decimals", func(tx *model.Transaction) { tx.BillingAmount = dec("1.005") }, RuleAmount},
		{"zero date", func(tx *model.Transaction) { tx.Date = time.Time{} }, RuleDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.edit(&tx)
			errs := ValidateTransaction(tx)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.rule, errs[0].Rule)
			assert.Equal(t, "a", errs[0].TransactionID)
		})
	}
}

func TestValidate_DuplicateIDs(t *testing.T) {
	tx := model.Transaction{ID: "a", BusinessName: "Coffee Shop", BillingAmount: dec("4.50"), Date: at(1, 8)}
	errs := Validate([]model.Transaction{tx, tx})
	require.Len(t, errs, 1)
	assert.Equal(t, RuleUniqueID, errs[0].Rule)
}

func TestAsError(t *testing.T) {
	assert.NoError(t, AsError(nil))

	err := AsError([]ValidationError{
		{Rule: RuleAmount, TransactionID: "a", Description: "bad"},
		{Rule: RuleDate, Description: "missing"},
	})
	require.Error(t, err)
	assert.Equal(t, "validation failed: billing_amount [a]: bad; date: missing", err.Error())

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func ids(txs []model.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
