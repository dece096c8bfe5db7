// Package storetest holds the behaviour suite every store backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Tx builds an unsaved transaction.
func Tx(name, amount string, date time.Time) model.Transaction {
	return model.Transaction{
		BusinessName:  name,
		BillingAmount: decimal.RequireFromString(amount),
		Date:          date,
	}
}

// Run exercises the Store contract against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	t.Run("CreateAssignsID", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Create(ctx, Tx("Coffee Shop", "4.50", base))
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "Coffee Shop", got.BusinessName)
		assert.True(t, got.BillingAmount.Equal(decimal.RequireFromString("4.50")))
		assert.True(t, got.Date.Equal(base))
		assert.False(t, got.IsReviewedDuplicate)
	})

	t.Run("CreateRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, Tx("", "4.50", base))
		require.Error(t, err)

		txs, err := s.List(ctx, store.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		txs, err := s.List(ctx, store.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("ListOrderAndLimit", func(t *testing.T) {
		s := newStore(t)
		var created []model.Transaction
		for i := 0; i < 3; i++ {
			tx, err := s.Create(ctx, Tx("Shop", "1.00", base.Add(time.Duration(i)*time.Hour)))
			require.NoError(t, err)
			created = append(created, tx)
		}

		desc, err := s.List(ctx, store.ListOptions{Sort: store.SortDateDesc})
		require.NoError(t, err)
		require.Len(t, desc, 3)
		assert.Equal(t, created[2].ID, desc[0].ID)
		assert.Equal(t, created[0].ID, desc[2].ID)

		asc, err := s.List(ctx, store.ListOptions{Sort: store.SortDateAsc, Limit: 2})
		require.NoError(t, err)
		require.Len(t, asc, 2)
		assert.Equal(t, created[0].ID, asc[0].ID)
		assert.Equal(t, created[1].ID, asc[1].ID)
	})

	t.Run("UpdateMergesPatch", func(t *testing.T) {
		s := newStore(t)
		tx, err := s.Create(ctx, Tx("Book Store", "20.00", base))
		require.NoError(t, err)

		got, err := s.Update(ctx, tx.ID, model.ReviewedPatch())
		require.NoError(t, err)
		assert.True(t, got.IsReviewedDuplicate)
		assert.Equal(t, "Book Store", got.BusinessName)

		txs, err := s.List(ctx, store.ListOptions{})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.True(t, txs[0].IsReviewedDuplicate)
		assert.True(t, txs[0].BillingAmount.Equal(decimal.RequireFromString("20.00")))
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(ctx, "00000000-0000-0000-0000-000000000000", model.ReviewedPatch())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		s := newStore(t)
		keep, err := s.Create(ctx, Tx("Shop", "1.00", base))
		require.NoError(t, err)
		drop, err := s.Create(ctx, Tx("Shop", "1.00", base.Add(time.Minute)))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, drop.ID))

		txs, err := s.List(ctx, store.ListOptions{})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, keep.ID, txs[0].ID)

		assert.ErrorIs(t, s.Delete(ctx, drop.ID), store.ErrNotFound)
	})
}
