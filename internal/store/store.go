// Package store defines the transaction collection the duplicate workflow
// reads from and mutates. Backends live in subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cleared-dev/dedupe/internal/model"
)

// DefaultLimit caps List results when no limit is given.
const DefaultLimit = 5000

// ErrNotFound is returned when a transaction ID does not exist.
var ErrNotFound = errors.New("transaction not found")

// Sort orders List results by date.
type Sort string

const (
	SortDateDesc Sort = "-date"
	SortDateAsc  Sort = "date"
)

// ParseSort parses a sort order such as "-date". Empty means newest first.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.TrimSpace(s)) {
	case "", SortDateDesc:
		return SortDateDesc, nil
	case SortDateAsc:
		return SortDateAsc, nil
	}
	return "", fmt.Errorf("unsupported sort %q", s)
}

// ListOptions controls List.
type ListOptions struct {
	Sort  Sort
	Limit int // <= 0 means DefaultLimit
}

// EffectiveLimit returns the limit List should apply.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Store is a remote or local collection of transactions.
type Store interface {
	// List returns up to opts.Limit transactions ordered by date.
	List(ctx context.Context, opts ListOptions) ([]model.Transaction, error)
	// Create assigns an ID and persists tx.
	Create(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	// Update merges patch into the stored transaction.
	Update(ctx context.Context, id string, patch model.Patch) (model.Transaction, error)
	// Delete permanently removes a transaction.
	Delete(ctx context.Context, id string) error
}

// SortAndLimit orders txs in place per opts and truncates to the limit.
// Ties on date keep their existing relative order.
func SortAndLimit(txs []model.Transaction, opts ListOptions) []model.Transaction {
	sort.SliceStable(txs, func(i, j int) bool {
		if opts.Sort == SortDateAsc {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].Date.After(txs[j].Date)
	})
	if limit := opts.EffectiveLimit(); len(txs) > limit {
		txs = txs[:limit]
	}
	return txs
}
