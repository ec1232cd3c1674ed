package orders

import (
	"posheet/pkg/textutil"

	"github.com/antzucaro/matchr"
)

// Column is a semantic column. Name is the literal caption used by existing
// operator files, Aliases are alternative captions.
type Column struct {
	Name    string
	Aliases []string
}

var (
	ColumnSKU         = Column{Name: "sku", Aliases: []string{"item_sku", "product_sku"}}
	ColumnQuantity    = Column{Name: "購入数", Aliases: []string{"数量", "quantity", "qty"}}
	ColumnUnitCost    = Column{Name: "原価", Aliases: []string{"unit_cost", "cost"}}
	ColumnProductURL  = Column{Name: "商品URL", Aliases: []string{"product_url", "url"}}
	ColumnProductName = Column{Name: "商品名称", Aliases: []string{"商品名", "product_name", "name"}}
	ColumnNotes       = Column{Name: "特記事項", Aliases: []string{"備考", "notes"}}
)

var (
	OrderColumns  = []Column{ColumnSKU, ColumnQuantity}
	MasterColumns = []Column{ColumnSKU, ColumnUnitCost, ColumnProductURL, ColumnProductName, ColumnNotes}
)

const similarityThreshold = 0.93

func (c Column) captions() []string {
	return append([]string{c.Name}, c.Aliases...)
}

func columnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

// ResolveColumns maps every column to the index of its header cell. Exact
// (normalized) captions are matched first, then remaining ascii headers are
// matched to ascii captions by Jaro-Winkler similarity. The names of columns
// that could not be found are returned in `missing`.
func ResolveColumns(header []string, columns []Column) (indices map[string]int, missing []string) {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = textutil.NormalizeName(cell)
	}

	indices = make(map[string]int, len(columns))
	used := make(map[int]bool, len(header))

	for _, column := range columns {
		for _, caption := range column.captions() {
			target := textutil.NormalizeName(caption)
			idx := -1
			for i, name := range normalized {
				if !used[i] && name == target {
					idx = i
					break
				}
			}
			if idx >= 0 {
				indices[column.Name] = idx
				used[idx] = true
				break
			}
		}
	}

	for _, column := range columns {
		if _, ok := indices[column.Name]; ok {
			continue
		}

		bestIdx := -1
		bestScore := 0.0
		for _, caption := range column.captions() {
			target := textutil.NormalizeName(caption)
			if !textutil.IsASCII(target) {
				continue
			}
			for i, name := range normalized {
				if used[i] || name == "" || !textutil.IsASCII(name) {
					continue
				}
				score := matchr.JaroWinkler(target, name, false)
				if score >= similarityThreshold && score > bestScore {
					bestIdx = i
					bestScore = score
				}
			}
		}
		if bestIdx >= 0 {
			indices[column.Name] = bestIdx
			used[bestIdx] = true
			continue
		}
		missing = append(missing, column.Name)
	}

	return indices, missing
}
