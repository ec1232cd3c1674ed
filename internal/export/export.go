package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"posheet/internal/scrapers/marketplace"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("posheet/export")

// points per pixel at 96 DPI
const pointsPerPixel = 0.75

// ImageSource produces embeddable png bytes for rows whose image was found.
type ImageSource interface {
	Thumbnail(ctx context.Context, row Row) ([]byte, error)
}

type Options struct {
	OrderDate time.Time
	// MaxHeight is the thumbnail height in pixels, rows holding an image are
	// made this tall.
	MaxHeight int
	// ColumnWidth is the width of the photo column in characters.
	ColumnWidth float64
	// FormulaFallback writes an IMAGE() formula when an image url was found
	// but could not be embedded.
	FormulaFallback bool
	// Progress is called after every row when non-nil.
	Progress func(done, total int)
}

// Filename is the name the workbook generated at `now` should be saved as.
func Filename(now time.Time) string {
	return fmt.Sprintf("orders_%s_with-images.xlsx", now.Format("20060102"))
}

// FormatOrderDate renders a date as YYYY/M/D.
func FormatOrderDate(date time.Time) string {
	return fmt.Sprintf("%d/%d/%d", date.Year(), int(date.Month()), date.Day())
}

func nullable(value decimal.NullDecimal) any {
	if !value.Valid {
		return ""
	}
	return value.Decimal.InexactFloat64()
}

func imageFormula(imageURL string) string {
	return fmt.Sprintf(`_xlfn.IMAGE("%s")`, strings.ReplaceAll(imageURL, `"`, `""`))
}

// Export writes `rows` into a workbook, one sheet row per row, in order.
// Images are requested from `images` one row at a time.
func Export(ctx context.Context, rows []Row, images ImageSource, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "export")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)))

	f := excelize.NewFile()
	defer f.Close()

	err := f.SetSheetName("Sheet1", SheetOrders)
	if err != nil {
		return Result{}, err
	}
	err = f.SetSheetRow(SheetOrders, "A1", &Headers)
	if err != nil {
		return Result{}, err
	}
	err = f.SetColWidth(SheetOrders, "B", "B", opts.ColumnWidth)
	if err != nil {
		return Result{}, err
	}

	date := FormatOrderDate(opts.OrderDate)
	rowHeight := float64(opts.MaxHeight) * pointsPerPixel

	var result Result
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		sheetRow := i + 2
		err = f.SetSheetRow(SheetOrders, "A"+strconv.Itoa(sheetRow), &[]any{
			"", "", row.SKU, row.Quantity, "",
			notes(row), productName(row), row.ProductURL(), "",
			"", "", "",
			unitCost(row), nullable(row.Subtotal()), date,
			"",
		})
		if err != nil {
			return Result{}, fmt.Errorf("write row %d: %w", sheetRow, err)
		}

		reason := embed(ctx, f, sheetRow, row, images, rowHeight)
		switch {
		case reason == "":
			result.Summary.Embedded++
		case opts.FormulaFallback && row.Image.Outcome == marketplace.OutcomeFound:
			err = f.SetCellFormula(SheetOrders, "B"+strconv.Itoa(sheetRow), imageFormula(row.Image.ImageURL))
			if err != nil {
				return Result{}, fmt.Errorf("write image formula: %w", err)
			}
			err = f.SetRowHeight(SheetOrders, sheetRow, rowHeight)
			if err != nil {
				return Result{}, err
			}
			result.Summary.Fallback++
			result.Failures = append(result.Failures, failure(row, ReasonImageFormula))
		default:
			result.Summary.Failed++
			result.Failures = append(result.Failures, failure(row, reason))
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(rows))
		}
	}

	if len(result.Failures) > 0 {
		err = writeFailures(f, result.Failures)
		if err != nil {
			return Result{}, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Result{}, fmt.Errorf("serialize workbook: %w", err)
	}
	result.Workbook = buf.Bytes()

	span.SetAttributes(
		attribute.Int("embedded", result.Summary.Embedded),
		attribute.Int("fallback", result.Summary.Fallback),
		attribute.Int("failed", result.Summary.Failed),
	)
	return result, nil
}

// embed places the thumbnail of `row` in column B, it returns the reason it
// could not or an empty string on success.
func embed(ctx context.Context, f *excelize.File, sheetRow int, row Row, images ImageSource, rowHeight float64) Reason {
	if row.Image.Outcome != marketplace.OutcomeFound {
		return unresolvedReason(row.Image)
	}

	data, err := images.Thumbnail(ctx, row)
	if err != nil {
		return ReasonOf(err)
	}

	err = f.AddPictureFromBytes(SheetOrders, "B"+strconv.Itoa(sheetRow), &excelize.Picture{
		Extension: ".png",
		File:      data,
		Format: &excelize.GraphicOptions{
			LockAspectRatio: true,
			OffsetX:         2,
			OffsetY:         2,
		},
	})
	if err != nil {
		return ReasonEmbedFailed
	}
	err = f.SetRowHeight(SheetOrders, sheetRow, rowHeight)
	if err != nil {
		return ReasonEmbedFailed
	}
	return ""
}

func writeFailures(f *excelize.File, failures []Failure) error {
	_, err := f.NewSheet(SheetFailures)
	if err != nil {
		return err
	}
	err = f.SetSheetRow(SheetFailures, "A1", &FailureHeaders)
	if err != nil {
		return err
	}
	for i, failure := range failures {
		err = f.SetSheetRow(SheetFailures, "A"+strconv.Itoa(i+2), &[]any{
			failure.SKU,
			failure.ProductURL,
			failure.ImageURL,
			string(failure.Reason),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func failure(row Row, reason Reason) Failure {
	return Failure{
		SKU:        row.SKU,
		ProductURL: row.ProductURL(),
		ImageURL:   row.Image.Sentinel(),
		Reason:     reason,
	}
}

func notes(row Row) string {
	if row.Master == nil {
		return ""
	}
	return row.Master.Notes
}

func productName(row Row) string {
	if row.Master == nil {
		return ""
	}
	return row.Master.ProductName
}

func unitCost(row Row) any {
	if row.Master == nil {
		return ""
	}
	return nullable(row.Master.UnitCost)
}
