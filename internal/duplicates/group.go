package duplicates

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/dedupe/internal/model"
)

// Group is a set of transactions considered duplicates of one another.
// The first member is the anchor.
type Group struct {
	Transactions []model.Transaction
}

// IDs returns member IDs in group order.
func (g Group) IDs() []string {
	ids := make([]string, len(g.Transactions))
	for i, tx := range g.Transactions {
		ids[i] = tx.ID
	}
	return ids
}

// Contains reports whether id is a member.
func (g Group) Contains(id string) bool {
	for _, tx := range g.Transactions {
		if tx.ID == id {
			return true
		}
	}
	return false
}

// AllReviewed reports whether every member is flagged reviewed.
func (g Group) AllReviewed() bool {
	for _, tx := range g.Transactions {
		if !tx.IsReviewedDuplicate {
			return false
		}
	}
	return true
}

// Anchor returns the first member.
func (g Group) Anchor() model.Transaction {
	return g.Transactions[0]
}

// Total sums the members' amounts, i.e. what the group costs as recorded.
func (g Group) Total() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range g.Transactions {
		total = total.Add(tx.BillingAmount)
	}
	return total
}

// Excess is the amount recorded beyond a single member.
func (g Group) Excess() decimal.Decimal {
	if len(g.Transactions) == 0 {
		return decimal.Zero
	}
	return g.Total().Sub(g.Anchor().BillingAmount)
}

// FindGroup returns the index of the group containing id, or -1.
func FindGroup(groups []Group, id string) int {
	for i, g := range groups {
		if g.Contains(id) {
			return i
		}
	}
	return -1
}
