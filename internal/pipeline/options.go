package pipeline

import (
	"fmt"
	"time"
)

const (
	MinWorkers     = 2
	MaxWorkers     = 12
	MinHeight      = 60
	MaxHeight      = 240
	MinColumnWidth = 10
	MaxColumnWidth = 40
)

// Progress is reported after each row of a stage.
type Progress struct {
	// Stage is either "resolve" or "export".
	Stage string
	Done  int
	Total int
}

type Options struct {
	ShopID string
	// Workers is the number of product pages resolved concurrently, it is
	// ignored when Sequential is set.
	Workers    int
	Sequential bool
	// MaxHeight is the thumbnail height in pixels.
	MaxHeight int
	// ColumnWidth is the photo column width in characters.
	ColumnWidth int
	// OrderDate defaults to today.
	OrderDate       time.Time
	FormulaFallback bool
	Progress        func(Progress)
}

func DefaultOptions() Options {
	return Options{
		Workers:     6,
		MaxHeight:   120,
		ColumnWidth: 18,
	}
}

// OptionError is returned for user supplied options that are out of range.
type OptionError struct {
	Field   string
	Message string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Message)
}

func checkRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &OptionError{
			Field:   field,
			Message: fmt.Sprintf("%d is not between %d and %d", value, min, max),
		}
	}
	return nil
}

// Validate checks the numeric options against their bounds. A blank ShopID is
// valid, every row then resolves to no product page.
func (o Options) Validate() error {
	if !o.Sequential {
		err := checkRange("workers", o.Workers, MinWorkers, MaxWorkers)
		if err != nil {
			return err
		}
	}
	err := checkRange("max_height", o.MaxHeight, MinHeight, MaxHeight)
	if err != nil {
		return err
	}
	return checkRange("column_width", o.ColumnWidth, MinColumnWidth, MaxColumnWidth)
}
