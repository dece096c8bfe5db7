// Package duplicates groups transactions that look like the same charge
// recorded more than once.
package duplicates

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

// Strategy selects how similar transactions are clustered.
type Strategy string

const (
	// StrategyAnchor compares every candidate with the first unassigned
	// transaction of its group only.
	StrategyAnchor Strategy = "anchor"
	// StrategyTransitive joins any two transactions connected by a chain of
	// similar pairs.
	StrategyTransitive Strategy = "transitive"
)

// ParseStrategy parses a strategy name. Empty means anchor.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyAnchor:
		return StrategyAnchor, nil
	case StrategyTransitive:
		return StrategyTransitive, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Rule is the pairwise matching rule. Both bounds are strict.
type Rule struct {
	AmountTolerance decimal.Decimal
	Window          time.Duration
}

// DefaultRule matches equal names, amounts within a cent and dates within a day.
func DefaultRule() Rule {
	return Rule{
		AmountTolerance: decimal.RequireFromString("0.01"),
		Window:          24 * time.Hour,
	}
}

// Similar reports whether a and b look like the same charge.
func (r Rule) Similar(a, b model.Transaction) bool {
	if a.BusinessName != b.BusinessName {
		return false
	}
	if !a.BillingAmount.Sub(b.BillingAmount).Abs().LessThan(r.AmountTolerance) {
		return false
	}
	gap := a.Date.Sub(b.Date)
	if gap < 0 {
		gap = -gap
	}
	return gap < r.Window
}

// Detector finds duplicate groups in a list of transactions.
type Detector struct {
	Rule     Rule
	Strategy Strategy
}

// NewDetector returns a Detector using DefaultRule and the anchor strategy.
func NewDetector() *Detector {
	return &Detector{Rule: DefaultRule(), Strategy: StrategyAnchor}
}

// Detect partitions txs into duplicate groups. Groups have at least two
// members, are disjoint, and are omitted when every member is already
// reviewed. Group order follows each group's first member in txs; member
// order follows txs. Detect does not modify txs.
func (d *Detector) Detect(txs []model.Transaction) []Group {
	var clusters [][]int
	switch d.Strategy {
	case StrategyTransitive:
		clusters = d.transitive(txs)
	default:
		clusters = d.anchored(txs)
	}

	var groups []Group
	for _, idx := range clusters {
		if len(idx) < 2 {
			continue
		}
		g := Group{Transactions: make([]model.Transaction, len(idx))}
		for i, j := range idx {
			g.Transactions[i] = txs[j]
		}
		if g.AllReviewed() {
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

// anchored is the single-pass anchor scan: each unassigned transaction
// claims every later unassigned transaction similar to it.
func (d *Detector) anchored(txs []model.Transaction) [][]int {
	assigned := make([]bool, len(txs))
	var clusters [][]int
	for i := range txs {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		cluster := []int{i}
		for j := i + 1; j < len(txs); j++ {
			if assigned[j] {
				continue
			}
			if d.Rule.Similar(txs[i], txs[j]) {
				assigned[j] = true
				cluster = append(cluster, j)
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// transitive clusters the pairwise similarity graph with union-find.
func (d *Detector) transitive(txs []model.Transaction) [][]int {
	uf := newUnionFind(len(txs))
	for i := range txs {
		for j := i + 1; j < len(txs); j++ {
			if d.Rule.Similar(txs[i], txs[j]) {
				uf.union(i, j)
			}
		}
	}

	// Order clusters by their smallest index.
	var clusters [][]int
	slot := make(map[int]int)
	for i := range txs {
		root := uf.find(i)
		k, ok := slot[root]
		if !ok {
			k = len(clusters)
			slot[root] = k
			clusters = append(clusters, nil)
		}
		clusters[k] = append(clusters[k], i)
	}
	return clusters
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// Lister is the read side of store.Store.
type Lister interface {
	List(ctx context.Context, opts store.ListOptions) ([]model.Transaction, error)
}

// Scan lists the newest limit transactions and detects groups among them.
func (d *Detector) Scan(ctx context.Context, l Lister, limit int) ([]Group, error) {
	txs, err := l.List(ctx, store.ListOptions{Sort: store.SortDateDesc, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return d.Detect(txs), nil
}
