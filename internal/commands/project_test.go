package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/model"
)

func TestExpandIDs(t *testing.T) {
	groups := []duplicates.Group{
		{Transactions: []model.Transaction{{ID: "0b6f3c1e-aaaa"}, {ID: "0b6f9999-bbbb"}}},
		{Transactions: []model.Transaction{{ID: "7c21d0aa-cccc"}, {ID: "7c21"}}},
	}

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"unique prefix", []string{"0b6f3c"}, []string{"0b6f3c1e-aaaa"}},
		{"ambiguous prefix", []string{"0b6f"}, []string{"0b6f"}},
		{"exact id wins over prefix", []string{"7c21"}, []string{"7c21"}},
		{"full id", []string{"0b6f9999-bbbb"}, []string{"0b6f9999-bbbb"}},
		{"unknown", []string{"ffff"}, []string{"ffff"}},
		{"order kept", []string{"7c21d", "0b6f9"}, []string{"7c21d0aa-cccc", "0b6f9999-bbbb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandIDs(groups, tt.ids))
		})
	}
}
