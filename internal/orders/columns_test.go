package orders

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestResolveColumns(t *testing.T) {
	table := []struct {
		name     string
		header   []string
		columns  []Column
		expected map[string]int
		missing  []string
	}{
		{
			name:     "literal captions",
			header:   []string{"sku", "購入数"},
			columns:  OrderColumns,
			expected: map[string]int{"sku": 0, "購入数": 1},
		},
		{
			name:     "english aliases and noise",
			header:   []string{"memo", " Quantity ", "SKU"},
			columns:  OrderColumns,
			expected: map[string]int{"sku": 2, "購入数": 1},
		},
		{
			name:     "fuzzy ascii match",
			header:   []string{"sku", "quantiy"},
			columns:  OrderColumns,
			expected: map[string]int{"sku": 0, "購入数": 1},
		},
		{
			name:     "bom and full width",
			header:   []string{"\ufeffＳＫＵ", "購入数"},
			columns:  OrderColumns,
			expected: map[string]int{"sku": 0, "購入数": 1},
		},
		{
			name:     "missing master columns",
			header:   []string{"sku", "商品名称", "weight"},
			columns:  MasterColumns,
			expected: map[string]int{"sku": 0, "商品名称": 1},
			missing:  []string{"原価", "商品URL", "特記事項"},
		},
		{
			name:     "exact captions are not stolen by fuzzy matches",
			header:   []string{"product_name", "product_url", "sku", "unit_cost", "notes"},
			columns:  MasterColumns,
			expected: map[string]int{"sku": 2, "原価": 3, "商品URL": 1, "商品名称": 0, "特記事項": 4},
		},
	}

	for _, row := range table {
		row := row // per-iteration copy (Go 1.21 loop semantics)
		t.Run(row.name, func(t *testing.T) {
			indices, missing := ResolveColumns(row.header, row.columns)
			require.Empty(t, cmp.Diff(row.expected, indices))
			require.Equal(t, row.missing, missing)
		})
	}
}
