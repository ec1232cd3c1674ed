package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"posheet/internal/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var generateFlags struct {
	orders          *string
	master          *string
	out             *string
	shop            *string
	workers         *int
	sequential      *bool
	height          *int
	colWidth        *int
	date            *string
	formulaFallback *bool
}

func init() {
	flags := generateCmd.Flags()
	generateFlags.orders = flags.String("orders", "", "The order csv (columns: sku, 購入数).")
	generateFlags.master = flags.String("master", "", "The product master (.xlsx, .xlsm or .csv).")
	generateFlags.out = flags.String("out", ".", "The directory to write the workbook to.")
	generateFlags.shop = flags.String("shop", "", "The storefront shop id, defaults to the configured one.")
	generateFlags.workers = flags.Int("workers", 0, "Product pages resolved concurrently, defaults to the configured value.")
	generateFlags.sequential = flags.Bool("sequential", false, "Resolve product pages one at a time.")
	generateFlags.height = flags.Int("height", 0, "Thumbnail height in pixels, defaults to the configured value.")
	generateFlags.colWidth = flags.Int("col-width", 0, "Photo column width in characters, defaults to the configured value.")
	generateFlags.date = flags.String("date", "", "The order date (YYYY-MM-DD), defaults to today.")
	generateFlags.formulaFallback = flags.Bool("formula-fallback", false, "Write an IMAGE() formula when an image cannot be embedded.")
	generateCmd.MarkFlagRequired("orders")
	generateCmd.MarkFlagRequired("master")

	rootCmd.AddCommand(generateCmd)
}

func generateOptions() (pipeline.Options, error) {
	opts := globals.cfg.PipelineOptions()
	if *generateFlags.shop != "" {
		opts.ShopID = *generateFlags.shop
	}
	if *generateFlags.workers != 0 {
		opts.Workers = *generateFlags.workers
	}
	if *generateFlags.height != 0 {
		opts.MaxHeight = *generateFlags.height
	}
	if *generateFlags.colWidth != 0 {
		opts.ColumnWidth = *generateFlags.colWidth
	}
	if *generateFlags.sequential {
		opts.Sequential = true
	}
	if *generateFlags.formulaFallback {
		opts.FormulaFallback = true
	}
	if *generateFlags.date != "" {
		date, err := time.ParseInLocation(time.DateOnly, *generateFlags.date, globals.clock.Location())
		if err != nil {
			return opts, &pipeline.OptionError{Field: "date", Message: err.Error()}
		}
		opts.OrderDate = date
	}
	return opts, nil
}

var generateCmd = &cobra.Command{
	Use:   "generate --orders <orders.csv> --master <master.xlsx> [--out <dir>]",
	Short: "Generates a purchase order workbook with embedded product photos.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := generateOptions()
		if err != nil {
			return err
		}
		opts.Progress = func(p pipeline.Progress) {
			slog.Debug("progress", "stage", p.Stage, "done", p.Done, "total", p.Total)
		}

		ordersFile, err := os.Open(*generateFlags.orders)
		if err != nil {
			return err
		}
		defer ordersFile.Close()
		masterFile, err := os.Open(*generateFlags.master)
		if err != nil {
			return err
		}
		defer masterFile.Close()

		client, err := newClient()
		if err != nil {
			return err
		}
		service := pipeline.NewService(client, globals.clock, globals.tel)

		t1 := time.Now()
		out, err := service.Run(cmd.Context(), pipeline.Input{
			Orders:         ordersFile,
			Master:         masterFile,
			MasterFilename: *generateFlags.master,
		}, opts)
		if err != nil {
			return err
		}

		target := filepath.Join(*generateFlags.out, out.Filename)
		err = os.WriteFile(target, out.Workbook, 0644)
		if err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		slog.Info("workbook written", "path", target, "run_id", out.RunID, "seconds", time.Since(t1).Seconds())

		summary := newTable()
		summary.AppendHeader(table.Row{"Embedded", "Formula fallback", "Failed"})
		summary.AppendRow(table.Row{out.Summary.Embedded, out.Summary.Fallback, out.Summary.Failed})
		summary.Render()

		if len(out.Failures) > 0 {
			failures := newTable()
			failures.AppendHeader(table.Row{"SKU", "Product URL", "Image URL", "Reason"})
			for _, failure := range out.Failures {
				failures.AppendRow(table.Row{failure.SKU, failure.ProductURL, failure.ImageURL, failure.Reason})
			}
			failures.Render()
		}
		return nil
	},
}
