package orders

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"posheet/internal/sku"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"
)

// ParseQuantity coerces a quantity cell into an integer. Full-width digits and
// thousands separators are accepted, decimals are truncated and anything
// else, including values outside the int range, is 0.
func ParseQuantity(raw string) int {
	cleaned := strings.TrimSpace(width.Narrow.String(raw))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.Atoi(cleaned)
	if err == nil {
		return n
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	// int(f) is implementation defined outside the int range.
	if f >= float64(math.MaxInt) || f <= float64(math.MinInt) {
		return 0
	}
	return int(f)
}

// ParseUnitCost reads a cost cell, blank or non-numeric cells are invalid.
func ParseUnitCost(raw string) decimal.NullDecimal {
	cleaned := strings.TrimSpace(width.Narrow.String(raw))
	cleaned = strings.NewReplacer(",", "", "¥", "", "円", "").Replace(cleaned)
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ReadOrders reads an order csv. Lines with a blank sku are skipped, lines
// are not summed yet.
func ReadOrders(r io.Reader) ([]OrderLine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	t, err := decodeCSV(data, "orders", OrderColumns)
	if err != nil {
		return nil, err
	}

	var lines []OrderLine
	for _, row := range t.rows {
		key, ok := sku.Normalize(t.cell(row, ColumnSKU))
		if !ok {
			continue
		}
		lines = append(lines, OrderLine{
			SKU:      key,
			Quantity: ParseQuantity(t.cell(row, ColumnQuantity)),
		})
	}
	return lines, nil
}

// ReadMaster reads the product master, `filename` picks the format:
// .xlsx/.xlsm are read from their first sheet, .csv goes through the same
// encoding detection as the order file.
func ReadMaster(r io.Reader, filename string) ([]MasterRecord, error) {
	var t table
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		var err error
		t, err = readWorkbook(r)
		if err != nil {
			return nil, err
		}
	case ".csv":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read master: %w", err)
		}
		t, err = decodeCSV(data, "master", MasterColumns)
		var encodingErr *EncodingError
		if errors.As(err, &encodingErr) && encodingErr.header != nil {
			_, missing := ResolveColumns(encodingErr.header, MasterColumns)
			return nil, &SchemaError{File: "master", Missing: missing, Actual: encodingErr.header}
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: master file %q", ErrUnsupportedFormat, filename)
	}

	var records []MasterRecord
	for _, row := range t.rows {
		key, ok := sku.Normalize(t.cell(row, ColumnSKU))
		if !ok {
			continue
		}
		records = append(records, MasterRecord{
			SKU:         key,
			UnitCost:    ParseUnitCost(t.cell(row, ColumnUnitCost)),
			ProductURL:  t.cell(row, ColumnProductURL),
			ProductName: t.cell(row, ColumnProductName),
			Notes:       t.cell(row, ColumnNotes),
		})
	}
	return records, nil
}

func readWorkbook(r io.Reader) (table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table{}, fmt.Errorf("open master workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, &SchemaError{File: "master", Missing: columnNames(MasterColumns)}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return table{}, fmt.Errorf("read master sheet %q: %w", sheets[0], err)
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
		rows = rows[1:]
	}
	columns, missing := ResolveColumns(header, MasterColumns)
	if len(missing) > 0 {
		return table{}, &SchemaError{File: "master", Missing: missing, Actual: header}
	}
	return table{header: header, rows: rows, columns: columns}, nil
}
