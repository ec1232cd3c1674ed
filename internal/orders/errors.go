package orders

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// SchemaError means a file was readable but lacks required columns.
type SchemaError struct {
	// File is "orders" or "master".
	File    string
	Missing []string
	Actual  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf(
		"%s file is missing required columns [%s] (found: [%s])",
		e.File,
		strings.Join(e.Missing, ", "),
		strings.Join(e.Actual, ", "),
	)
}

// EncodingError means no tried text encoding produced a table with the
// required columns.
type EncodingError struct {
	File     string
	Tried    []string
	Required []string

	// header is the cleanly decoded header closest to the requirements.
	header []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf(
		"could not read %s file: tried encodings [%s], expected columns [%s]",
		e.File,
		strings.Join(e.Tried, ", "),
		strings.Join(e.Required, ", "),
	)
}
