package orders

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

type textEncoding struct {
	name    string
	decoder func() *encoding.Decoder
}

// encodings are tried in order, Shift_JIS (cp932) first since that is what
// spreadsheet software in a Japanese locale exports by default.
var encodings = []textEncoding{
	{name: "cp932", decoder: japanese.ShiftJIS.NewDecoder},
	{name: "utf-8-sig", decoder: unicode.UTF8BOM.NewDecoder},
	{name: "utf-8", decoder: unicode.UTF8.NewDecoder},
}

type table struct {
	header   []string
	rows     [][]string
	columns  map[string]int
	encoding string
}

func (t table) cell(row []string, column Column) string {
	idx, ok := t.columns[column.Name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// decodeCSV parses `data` as csv, trying every encoding until one decodes
// without replacement characters and exposes all `required` columns.
func decodeCSV(data []byte, file string, required []Column) (table, error) {
	encodingErr := &EncodingError{
		File:     file,
		Required: columnNames(required),
	}
	fewestMissing := len(required) + 1

	for _, enc := range encodings {
		encodingErr.Tried = append(encodingErr.Tried, enc.name)

		decoded, err := enc.decoder().Bytes(data)
		if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}

		reader := csv.NewReader(bytes.NewReader(decoded))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		records, err := reader.ReadAll()
		if err != nil || len(records) == 0 {
			continue
		}

		header := records[0]
		columns, missing := ResolveColumns(header, required)
		if len(missing) > 0 {
			// later encodings win ties, an ascii-only header decodes the
			// same under all of them
			if len(missing) <= fewestMissing {
				fewestMissing = len(missing)
				encodingErr.header = header
			}
			continue
		}

		return table{
			header:   header,
			rows:     records[1:],
			columns:  columns,
			encoding: enc.name,
		}, nil
	}

	return table{}, encodingErr
}
