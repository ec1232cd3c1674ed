package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"

	"posheet/internal/components/assert"
	"posheet/internal/components/chrono"
	"posheet/internal/components/telemetry"
	"posheet/internal/export"
	"posheet/internal/orders"
	"posheet/internal/scrapers/marketplace"
	"posheet/internal/thumbnail"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("posheet/pipeline")

const (
	report_run_read      = "run.read"
	report_run_summary   = "run.summary"
	report_run_embedded  = "run.embedded"
	report_run_fallback  = "run.fallback"
	report_run_failed    = "run.failed"
	report_thumbnail_get = "thumbnail.get"
)

// Marketplace is the storefront the pipeline resolves and downloads images
// from, *marketplace.Client implements it.
type Marketplace interface {
	Resolve(ctx context.Context, sku, shopID string) marketplace.Resolution
	FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error)
}

type Input struct {
	Orders         io.Reader
	Master         io.Reader
	MasterFilename string
}

type Output struct {
	RunID    string
	Filename string
	Workbook []byte
	Summary  export.Summary
	Failures []export.Failure
	// Rows are the rows written to the workbook, in order.
	Rows []export.Row
}

type counters struct {
	embedded metric.Int64Counter
	fallback metric.Int64Counter
	failed   metric.Int64Counter
}

type Service struct {
	market   Marketplace
	time     chrono.API
	tel      telemetry.API
	counters counters
}

func NewService(market Marketplace, time chrono.API, tel telemetry.API) Service {
	assert.NotNil(market)
	assert.NotNil(time)
	assert.NotNil(tel)

	meter := otel.Meter("posheet/pipeline")
	embedded, _ := meter.Int64Counter("images_embedded")
	fallback, _ := meter.Int64Counter("images_fallback")
	failed, _ := meter.Int64Counter("images_failed")

	return Service{
		market: market,
		time:   time,
		tel:    telemetry.NewScopedAPI("pipeline", tel),
		counters: counters{
			embedded: embedded,
			fallback: fallback,
			failed:   failed,
		},
	}
}

// Run reads the order and master files, resolves the image of every
// aggregated row and exports the workbook. Only unreadable input and invalid
// options fail the run, per-row problems end up in Output.Failures.
func (s Service) Run(ctx context.Context, in Input, opts Options) (Output, error) {
	err := opts.Validate()
	if err != nil {
		return Output{}, err
	}
	opts.ShopID = strings.TrimSpace(opts.ShopID)
	if opts.OrderDate.IsZero() {
		opts.OrderDate = chrono.Today(s.time)
	}

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	orderLines, err := orders.ReadOrders(in.Orders)
	if err != nil {
		s.tel.ReportWarning(report_run_read, err, runID)
		return Output{}, err
	}
	master, err := orders.ReadMaster(in.Master, in.MasterFilename)
	if err != nil {
		s.tel.ReportWarning(report_run_read, err, runID)
		return Output{}, err
	}
	merged := orders.Aggregate(orderLines, master)
	s.tel.ReportDebug(report_run_read, runID, len(orderLines), len(master), len(merged))

	var resolutions []marketplace.Resolution
	if opts.Sequential {
		resolutions, err = s.resolveSequential(ctx, merged, opts)
	} else {
		resolutions, err = s.resolveParallel(ctx, merged, opts)
	}
	if err != nil {
		return Output{}, err
	}

	rows := make([]export.Row, len(merged))
	for i, row := range merged {
		rows[i] = export.Row{MergedRow: row, Image: resolutions[i]}
	}

	result, err := export.Export(ctx, rows, thumbnailSource{service: s, maxHeight: opts.MaxHeight}, export.Options{
		OrderDate:       opts.OrderDate,
		MaxHeight:       opts.MaxHeight,
		ColumnWidth:     float64(opts.ColumnWidth),
		FormulaFallback: opts.FormulaFallback,
		Progress: func(done, total int) {
			if opts.Progress != nil {
				opts.Progress(Progress{Stage: "export", Done: done, Total: total})
			}
		},
	})
	if err != nil {
		return Output{}, fmt.Errorf("export: %w", err)
	}

	s.record(ctx, result.Summary)
	s.tel.ReportDebug(
		report_run_summary,
		runID,
		result.Summary.Embedded,
		result.Summary.Fallback,
		result.Summary.Failed,
	)

	return Output{
		RunID:    runID,
		Filename: export.Filename(s.time.Now()),
		Workbook: result.Workbook,
		Summary:  result.Summary,
		Failures: result.Failures,
		Rows:     rows,
	}, nil
}

func (s Service) record(ctx context.Context, summary export.Summary) {
	s.counters.embedded.Add(ctx, int64(summary.Embedded))
	s.counters.fallback.Add(ctx, int64(summary.Fallback))
	s.counters.failed.Add(ctx, int64(summary.Failed))
	s.tel.ReportCount(report_run_embedded, int64(summary.Embedded))
	s.tel.ReportCount(report_run_fallback, int64(summary.Fallback))
	s.tel.ReportCount(report_run_failed, int64(summary.Failed))
}

func (s Service) resolveOne(ctx context.Context, idx int, row orders.MergedRow, shopID string) marketplace.Resolution {
	res := s.market.Resolve(ctx, row.SKU, shopID)
	res.Index = idx
	return res
}

func (s Service) resolveSequential(ctx context.Context, rows []orders.MergedRow, opts Options) ([]marketplace.Resolution, error) {
	out := make([]marketplace.Resolution, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.resolveOne(ctx, i, row, opts.ShopID)
		if opts.Progress != nil {
			opts.Progress(Progress{Stage: "resolve", Done: i + 1, Total: len(rows)})
		}
	}
	return out, nil
}

// resolveParallel resolves at most opts.Workers rows at a time, each goroutine
// writes only its own slot of the output.
func (s Service) resolveParallel(ctx context.Context, rows []orders.MergedRow, opts Options) ([]marketplace.Resolution, error) {
	out := make([]marketplace.Resolution, len(rows))
	done := make(chan struct{}, len(rows))

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		count := 0
		for range done {
			count++
			if opts.Progress != nil {
				opts.Progress(Progress{Stage: "resolve", Done: count, Total: len(rows)})
			}
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Workers)
	for i, row := range rows {
		i, row := i, row // per-iteration copy (Go 1.21 loop semantics)
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			out[i] = s.resolveOne(groupCtx, i, row, opts.ShopID)
			done <- struct{}{}
			return nil
		})
	}

	err := group.Wait()
	close(done)
	<-progressDone
	if err != nil {
		return nil, err
	}
	return out, nil
}

type thumbnailSource struct {
	service   Service
	maxHeight int
}

func (t thumbnailSource) Thumbnail(ctx context.Context, row export.Row) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "thumbnail")
	defer span.End()

	data, err := t.service.market.FetchImage(ctx, row.Image.ImageURL, row.Image.PageURL)
	if err != nil {
		t.service.tel.ReportDebug(report_thumbnail_get, row.SKU, err)
		return nil, err
	}
	resized, err := thumbnail.Resize(data, t.maxHeight)
	if err != nil {
		t.service.tel.ReportWarning(report_thumbnail_get, err, row.SKU, row.Image.ImageURL)
		return nil, err
	}
	return resized, nil
}
