package orders

import "github.com/shopspring/decimal"

// OrderLine is one line of the order file, or after Aggregate the sum of all
// lines sharing a sku.
type OrderLine struct {
	SKU      string
	Quantity int
}

// MasterRecord is one product of the master file. UnitCost is invalid when
// the cell was blank or not a number.
type MasterRecord struct {
	SKU         string
	UnitCost    decimal.NullDecimal
	ProductURL  string
	ProductName string
	Notes       string
}

// MergedRow is an aggregated order line left-joined with the master, Master
// is nil when no product matched.
type MergedRow struct {
	OrderLine
	Master *MasterRecord
}

// Subtotal returns unit cost × quantity, it is invalid when the unit cost is
// unknown.
func (r MergedRow) Subtotal() decimal.NullDecimal {
	if r.Master == nil || !r.Master.UnitCost.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(r.Master.UnitCost.Decimal.Mul(decimal.NewFromInt(int64(r.Quantity))))
}
