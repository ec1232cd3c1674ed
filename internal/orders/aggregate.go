package orders

import (
	"slices"

	"posheet/internal/sku"
)

// Aggregate sums quantities per sku, drops skus whose sum is not positive and
// left-joins the rest against `master`. The output is sorted by sku and has
// exactly one row per remaining sku. The first master record of a sku wins,
// when no record matches exactly the record of the sku's base code is used.
func Aggregate(orders []OrderLine, master []MasterRecord) []MergedRow {
	sums := make(map[string]int)
	for _, line := range orders {
		key, ok := sku.Normalize(line.SKU)
		if !ok {
			continue
		}
		sums[key] += line.Quantity
	}

	index := make(map[string]*MasterRecord, len(master))
	for _, record := range master {
		record := record // per-iteration copy (Go 1.21 loop semantics)
		key, ok := sku.Normalize(record.SKU)
		if !ok {
			continue
		}
		if _, exists := index[key]; exists {
			continue
		}
		record.SKU = key
		index[key] = &record
	}

	keys := make([]string, 0, len(sums))
	for key, quantity := range sums {
		if quantity > 0 {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	rows := make([]MergedRow, len(keys))
	for i, key := range keys {
		record, ok := index[key]
		if !ok {
			record = index[sku.BaseCode(key)]
		}
		rows[i] = MergedRow{
			OrderLine: OrderLine{SKU: key, Quantity: sums[key]},
			Master:    record,
		}
	}
	return rows
}
