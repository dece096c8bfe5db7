package duplicates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func tx(id, name, amount string, date time.Time) model.Transaction {
	return model.Transaction{
		ID:            id,
		BusinessName:  name,
		BillingAmount: decimal.RequireFromString(amount),
		Date:          date,
	}
}

func reviewed(t model.Transaction) model.Transaction {
	t.IsReviewedDuplicate = true
	return t
}

func groupIDs(groups []Group) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = g.IDs()
	}
	return out
}

func coffeeScenario() []model.Transaction {
	return []model.Transaction{
		tx("1", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 0)),
		tx("2", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 5)),
		tx("3", "Book Store", "20.00", at(2024, 1, 2, 10, 0)),
	}
}

func TestDetect_SinglePair(t *testing.T) {
	groups := NewDetector().Detect(coffeeScenario())
	assert.Equal(t, [][]string{{"1", "2"}}, groupIDs(groups))
}

func TestDetect_PartiallyReviewedStillEmitted(t *testing.T) {
	txs := coffeeScenario()
	txs[1] = reviewed(txs[1])

	groups := NewDetector().Detect(txs)
	assert.Equal(t, [][]string{{"1", "2"}}, groupIDs(groups))
}

func TestDetect_FullyReviewedOmitted(t *testing.T) {
	txs := coffeeScenario()
	txs[0] = reviewed(txs[0])
	txs[1] = reviewed(txs[1])

	assert.Empty(t, NewDetector().Detect(txs))
}

func TestDetect_Empty(t *testing.T) {
	assert.Empty(t, NewDetector().Detect(nil))
	assert.Empty(t, NewDetector().Detect([]model.Transaction{tx("1", "A", "1.00", at(2024, 1, 1, 0, 0))}))
}

func TestRule_Similar(t *testing.T) {
	base := tx("a", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 0))
	tests := []struct {
		name  string
		other model.Transaction
		want  bool
	}{
		{"identical", tx("b", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 0)), true},
		{"name differs by case", tx("b", "coffee shop", "4.50", at(2024, 1, 1, 8, 0)), false},
		{"name has trailing space", tx("b", "Coffee Shop ", "4.50", at(2024, 1, 1, 8, 0)), false},
		{"amount off by half a cent", tx("b", "Coffee Shop", "4.505", at(2024, 1, 1, 8, 0)), true},
		{"amount off by exactly a cent", tx("b", "Coffee Shop", "4.51", at(2024, 1, 1, 8, 0)), false},
		{"amount lower by a cent", tx("b", "Coffee Shop", "4.49", at(2024, 1, 1, 8, 0)), false},
		{"23h59m later", tx("b", "Coffee Shop", "4.50", at(2024, 1, 2, 7, 59)), true},
		{"exactly 24h later", tx("b", "Coffee Shop", "4.50", at(2024, 1, 2, 8, 0)), false},
		{"23h earlier", tx("b", "Coffee Shop", "4.50", at(2023, 12, 31, 9, 0)), true},
		{"exactly 24h earlier", tx("b", "Coffee Shop", "4.50", at(2023, 12, 31, 8, 0)), false},
	}
	rule := DefaultRule()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Similar(base, tt.other))
			assert.Equal(t, tt.want, rule.Similar(tt.other, base), "symmetric")
		})
	}
}

func TestRule_CustomTolerance(t *testing.T) {
	rule := Rule{AmountTolerance: decimal.RequireFromString("1.00"), Window: time.Hour}
	a := tx("a", "Shop", "10.00", at(2024, 1, 1, 8, 0))

	assert.True(t, rule.Similar(a, tx("b", "Shop", "10.99", at(2024, 1, 1, 8, 59))))
	assert.False(t, rule.Similar(a, tx("b", "Shop", "10.99", at(2024, 1, 1, 9, 0))))
	assert.False(t, rule.Similar(a, tx("b", "Shop", "11.00", at(2024, 1, 1, 8, 0))))
}

// chain returns three transactions each 20h after the previous one, so the
// first and last are 40h apart.
func chain() []model.Transaction {
	return []model.Transaction{
		tx("a", "Gym", "30.00", at(2024, 3, 1, 0, 0)),
		tx("b", "Gym", "30.00", at(2024, 3, 1, 20, 0)),
		tx("c", "Gym", "30.00", at(2024, 3, 2, 16, 0)),
	}
}

func TestDetect_AnchorSplitsChain(t *testing.T) {
	groups := NewDetector().Detect(chain())
	assert.Equal(t, [][]string{{"a", "b"}}, groupIDs(groups), "c is too far from anchor a")
}

func TestDetect_TransitiveJoinsChain(t *testing.T) {
	d := &Detector{Rule: DefaultRule(), Strategy: StrategyTransitive}
	groups := d.Detect(chain())
	assert.Equal(t, [][]string{{"a", "b", "c"}}, groupIDs(groups))
}

func TestDetect_AnchorMatchesOnlyAnchor(t *testing.T) {
	// b and c match each other but only b matches the anchor a.
	txs := []model.Transaction{
		tx("a", "Gym", "30.00", at(2024, 3, 1, 0, 0)),
		tx("b", "Gym", "30.00", at(2024, 3, 1, 20, 0)),
		tx("c", "Gym", "30.00", at(2024, 3, 2, 10, 0)),
		tx("d", "Gym", "30.00", at(2024, 3, 2, 12, 0)),
	}
	groups := NewDetector().Detect(txs)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, groupIDs(groups))
}

func TestDetect_OrderFollowsInput(t *testing.T) {
	txs := []model.Transaction{
		tx("x1", "Book Store", "20.00", at(2024, 1, 2, 10, 0)),
		tx("c1", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 0)),
		tx("x2", "Book Store", "20.00", at(2024, 1, 2, 9, 0)),
		tx("c2", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 5)),
		tx("c3", "Coffee Shop", "4.50", at(2024, 1, 1, 9, 0)),
	}
	for _, strategy := range []Strategy{StrategyAnchor, StrategyTransitive} {
		t.Run(string(strategy), func(t *testing.T) {
			d := &Detector{Rule: DefaultRule(), Strategy: strategy}
			groups := d.Detect(txs)
			assert.Equal(t, [][]string{{"x1", "x2"}, {"c1", "c2", "c3"}}, groupIDs(groups))
		})
	}
}

func TestDetect_IdempotentAndPure(t *testing.T) {
	txs := append(coffeeScenario(), chain()...)
	snapshot := append([]model.Transaction(nil), txs...)

	d := NewDetector()
	first := d.Detect(txs)
	second := d.Detect(txs)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, txs, "input must not be modified")
}

func TestDetect_Disjoint(t *testing.T) {
	var txs []model.Transaction
	names := []string{"A", "B", "A", "A", "B", "C", "A", "B"}
	for i, name := range names {
		txs = append(txs, tx(string(rune('a'+i)), name, "5.00", at(2024, 5, 1, i*5, 0)))
	}

	for _, strategy := range []Strategy{StrategyAnchor, StrategyTransitive} {
		t.Run(string(strategy), func(t *testing.T) {
			d := &Detector{Rule: DefaultRule(), Strategy: strategy}
			seen := map[string]bool{}
			for _, g := range d.Detect(txs) {
				require.GreaterOrEqual(t, len(g.Transactions), 2)
				for _, id := range g.IDs() {
					assert.False(t, seen[id], "id %s in more than one group", id)
					seen[id] = true
				}
			}
		})
	}
}

func TestDetect_GroupMembersShareNameAndAmount(t *testing.T) {
	txs := []model.Transaction{
		tx("1", "Shop", "9.99", at(2024, 1, 1, 0, 0)),
		tx("2", "Shop", "9.995", at(2024, 1, 1, 1, 0)),
		tx("3", "Shop", "10.99", at(2024, 1, 1, 2, 0)),
		tx("4", "Other", "9.99", at(2024, 1, 1, 3, 0)),
	}
	groups := NewDetector().Detect(txs)
	require.Len(t, groups, 1)
	for _, m := range groups[0].Transactions {
		assert.Equal(t, "Shop", m.BusinessName)
		assert.True(t, m.BillingAmount.Sub(groups[0].Anchor().BillingAmount).Abs().LessThan(decimal.RequireFromString("0.01")))
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAnchor, false},
		{"anchor", StrategyAnchor, false},
		{"transitive", StrategyTransitive, false},
		{"fuzzy", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroup_Helpers(t *testing.T) {
	g := Group{Transactions: []model.Transaction{
		tx("1", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 0)),
		reviewed(tx("2", "Coffee Shop", "4.50", at(2024, 1, 1, 8, 5))),
	}}

	assert.Equal(t, []string{"1", "2"}, g.IDs())
	assert.True(t, g.Contains("2"))
	assert.False(t, g.Contains("3"))
	assert.False(t, g.AllReviewed())
	assert.Equal(t, "9.00", g.Total().StringFixed(2))
	assert.Equal(t, "4.50", g.Excess().StringFixed(2))
	assert.Equal(t, "1", g.Anchor().ID)

	groups := []Group{{}, g}
	assert.Equal(t, 1, FindGroup(groups, "2"))
	assert.Equal(t, -1, FindGroup(groups, "9"))
}

type fakeLister struct {
	txs  []model.Transaction
	err  error
	opts store.ListOptions
}

func (f *fakeLister) List(_ context.Context, opts store.ListOptions) ([]model.Transaction, error) {
	f.opts = opts
	return f.txs, f.err
}

func TestScan(t *testing.T) {
	l := &fakeLister{txs: coffeeScenario()}
	groups, err := NewDetector().Scan(context.Background(), l, 100)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"1", "2"}}, groupIDs(groups))
	assert.Equal(t, store.ListOptions{Sort: store.SortDateDesc, Limit: 100}, l.opts)
}

func TestScan_ListError(t *testing.T) {
	l := &fakeLister{err: errors.New("boom")}
	_, err := NewDetector().Scan(context.Background(), l, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing transactions: boom")
}
