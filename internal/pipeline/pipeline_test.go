package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"posheet/internal/components/chrono"
	"posheet/internal/components/telemetry"
	"posheet/internal/export"
	"posheet/internal/orders"
	"posheet/internal/scrapers/marketplace"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type storefront struct {
	server *httptest.Server
	hits   atomic.Int64
}

// newStorefront serves a product page for every code in `pages` whose
// og:image points back at the server, images under /img/ are served as jpeg
// unless listed in `missing`.
func newStorefront(t *testing.T, pages []string, missing map[string]bool) *storefront {
	s := &storefront{}

	var photo bytes.Buffer
	require.NoError(t, jpeg.Encode(&photo, image.NewRGBA(image.Rect(0, 0, 400, 300)), nil))

	mux := http.NewServeMux()
	for _, code := range pages {
		code := code // per-iteration copy (Go 1.21 loop semantics)
		mux.HandleFunc(fmt.Sprintf("/shop/%s/", code), func(w http.ResponseWriter, r *http.Request) {
			s.hits.Add(1)
			w.Header().Set("content-type", "text/html")
			fmt.Fprintf(w, `<html><head><meta property="og:image" content="http://%s/img/%s.jpg"></head></html>`, r.Host, code)
		})
	}
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/img/"), ".jpg")
		if missing[name] {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "image/jpeg")
		w.Write(photo.Bytes())
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func masterFile(t *testing.T, rows [][]any) []byte {
	f := excelize.NewFile()
	defer f.Close()
	header := []any{"sku", "原価", "商品URL", "商品名称", "特記事項"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, row := range rows {
		row := row // per-iteration copy (Go 1.21 loop semantics)
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+2), &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

var now = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, store *storefront) (Service, *telemetry.Recorder) {
	rec := &telemetry.Recorder{}
	client := marketplace.NewClient(marketplace.Options{BaseURL: store.server.URL}, rec)
	return NewService(client, chrono.FixedImpl{Time: now}, rec), rec
}

func input(orderCSV string, master []byte) Input {
	return Input{
		Orders:         strings.NewReader(orderCSV),
		Master:         bytes.NewReader(master),
		MasterFilename: "master.xlsx",
	}
}

func options() Options {
	opts := DefaultOptions()
	opts.ShopID = "shop"
	return opts
}

func readSheet(t *testing.T, workbook []byte, sheet string) [][]string {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	store := newStorefront(t, []string{"xyz"}, nil)
	service, rec := newService(t, store)
	master := masterFile(t, [][]any{{"xyz", 100, "https://shop.example/xyz", "Widget", ""}})

	out, err := service.Run(context.Background(), input("sku,購入数\nxyz-1,4\n", master), options())
	require.NoError(t, err)

	require.Equal(t, export.Summary{Embedded: 1}, out.Summary)
	require.Empty(t, out.Failures)
	require.Equal(t, "orders_20240305_with-images.xlsx", out.Filename)
	require.NotEmpty(t, out.RunID)
	require.Len(t, out.Rows, 1)
	require.Equal(t, marketplace.OutcomeFound, out.Rows[0].Image.Outcome)

	rows := readSheet(t, out.Workbook, export.SheetOrders)
	require.Len(t, rows, 2)
	require.Equal(t, "xyz-1", rows[1][2])
	require.Equal(t, "4", rows[1][3])
	require.Equal(t, "Widget", rows[1][6])
	require.Equal(t, "100", rows[1][12])
	require.Equal(t, "400", rows[1][13])
	require.Equal(t, "2024/3/5", rows[1][14])

	f, err := excelize.OpenReader(bytes.NewReader(out.Workbook))
	require.NoError(t, err)
	defer f.Close()
	pictures, err := f.GetPictures(export.SheetOrders, "B2")
	require.NoError(t, err)
	require.Len(t, pictures, 1)
	require.Equal(t, []string{export.SheetOrders}, f.GetSheetList())

	require.True(t, rec.Has("count", report_run_embedded))
	require.Empty(t, rec.Reports("broken"))
}

func TestRunImageNotFound(t *testing.T) {
	store := newStorefront(t, []string{"xyz"}, map[string]bool{"xyz": true})
	service, _ := newService(t, store)
	master := masterFile(t, [][]any{{"xyz", 100, "https://shop.example/xyz", "Widget", "note"}})

	out, err := service.Run(context.Background(), input("sku,購入数\nxyz-1,4\n", master), options())
	require.NoError(t, err)

	require.Equal(t, export.Summary{Failed: 1}, out.Summary)
	require.Len(t, out.Failures, 1)
	require.Equal(t, "xyz-1", out.Failures[0].SKU)
	require.Equal(t, export.ReasonFetchFailed, out.Failures[0].Reason)

	rows := readSheet(t, out.Workbook, export.SheetOrders)
	require.Len(t, rows, 2)
	require.Equal(t, "4", rows[1][3])
	require.Equal(t, "note", rows[1][5])
	require.Equal(t, "400", rows[1][13])

	failures := readSheet(t, out.Workbook, export.SheetFailures)
	require.Len(t, failures, 2)
	require.Equal(t, "xyz-1", failures[1][0])
	require.Equal(t, "fetch-failed", failures[1][3])
}

func TestRunWithoutShop(t *testing.T) {
	store := newStorefront(t, []string{"a", "b"}, nil)
	service, _ := newService(t, store)
	master := masterFile(t, [][]any{{"a", 10, "", "A", ""}})

	for _, sequential := range []bool{true, false} {
		opts := options()
		opts.ShopID = "  "
		opts.Sequential = sequential

		out, err := service.Run(context.Background(), input(`sku,購入数
a-1,2
b,1
c,4
`, master), opts)
		require.NoError(t, err)
		require.Equal(t, export.Summary{Failed: 3}, out.Summary)
		require.Len(t, out.Failures, 3)
		for _, failure := range out.Failures {
			require.Equal(t, export.ReasonNoURL, failure.Reason)
		}
		for _, row := range out.Rows {
			require.Equal(t, marketplace.OutcomeSkipped, row.Image.Outcome)
		}

		require.Len(t, readSheet(t, out.Workbook, export.SheetOrders), 4)
		failures := readSheet(t, out.Workbook, export.SheetFailures)
		require.Len(t, failures, 4)
		require.Equal(t, "no-url", failures[1][3])
	}
	require.Equal(t, int64(0), store.hits.Load())
}

func TestRunParallelMatchesSequential(t *testing.T) {
	store := newStorefront(t, []string{"a", "b", "c", "d", "e", "f"}, map[string]bool{"c": true})
	master := masterFile(t, [][]any{
		{"a", 10, "", "A", ""},
		{"b", 20, "", "B", ""},
		{"c", 30, "", "C", ""},
		{"g", 70, "", "G", ""},
	})
	orderCSV := "sku,購入数\nf-1,1\na-1,2\nb,1\nc,5\nd,0\ne,3\ng,1\nh-9,2\nb,1\n"

	service, _ := newService(t, store)

	parallelOpts := options()
	parallelOpts.Workers = 4
	parallel, err := service.Run(context.Background(), input(orderCSV, master), parallelOpts)
	require.NoError(t, err)

	sequentialOpts := options()
	sequentialOpts.Sequential = true
	sequential, err := service.Run(context.Background(), input(orderCSV, master), sequentialOpts)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(parallel.Rows, sequential.Rows))
	require.Empty(t, cmp.Diff(parallel.Failures, sequential.Failures))
	require.Equal(t, parallel.Summary, sequential.Summary)
	require.Equal(t, export.Summary{Embedded: 4, Failed: 3}, parallel.Summary)

	for _, sheet := range []string{export.SheetOrders, export.SheetFailures} {
		require.Empty(t, cmp.Diff(
			readSheet(t, parallel.Workbook, sheet),
			readSheet(t, sequential.Workbook, sheet),
		))
	}

	for i, row := range parallel.Rows {
		require.Equal(t, i, row.Image.Index)
	}
}

func TestRunProgress(t *testing.T) {
	store := newStorefront(t, []string{"a", "b"}, nil)
	service, _ := newService(t, store)
	master := masterFile(t, [][]any{{"a", 1, "", "", ""}})

	for _, sequential := range []bool{true, false} {
		var mutex sync.Mutex
		var events []Progress

		opts := options()
		opts.Sequential = sequential
		opts.Progress = func(p Progress) {
			mutex.Lock()
			defer mutex.Unlock()
			events = append(events, p)
		}

		_, err := service.Run(context.Background(), input("sku,購入数\na,1\nb,1\n", master), opts)
		require.NoError(t, err)
		require.Equal(t, []Progress{
			{Stage: "resolve", Done: 1, Total: 2},
			{Stage: "resolve", Done: 2, Total: 2},
			{Stage: "export", Done: 1, Total: 2},
			{Stage: "export", Done: 2, Total: 2},
		}, events)
	}
}

func TestRunSchemaErrorBeforeNetwork(t *testing.T) {
	store := newStorefront(t, []string{"xyz"}, nil)
	service, _ := newService(t, store)

	f := excelize.NewFile()
	header := []any{"sku", "商品名称"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = service.Run(context.Background(), input("sku,購入数\nxyz,1\n", buf.Bytes()), options())
	var schemaErr *orders.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Equal(t, int64(0), store.hits.Load())

	_, err = service.Run(context.Background(), input("code,count\nxyz,1\n", masterFile(t, nil)), options())
	var encodingErr *orders.EncodingError
	require.True(t, errors.As(err, &encodingErr))
	require.Equal(t, int64(0), store.hits.Load())
}

func TestValidateOptions(t *testing.T) {
	table := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{name: "defaults", mutate: func(o *Options) {}},
		{name: "empty shop", mutate: func(o *Options) { o.ShopID = " " }},
		{name: "too few workers", mutate: func(o *Options) { o.Workers = 1 }, field: "workers"},
		{name: "too many workers", mutate: func(o *Options) { o.Workers = 13 }, field: "workers"},
		{name: "sequential ignores workers", mutate: func(o *Options) { o.Workers = 0; o.Sequential = true }},
		{name: "short thumbnails", mutate: func(o *Options) { o.MaxHeight = 59 }, field: "max_height"},
		{name: "tall thumbnails", mutate: func(o *Options) { o.MaxHeight = 241 }, field: "max_height"},
		{name: "narrow column", mutate: func(o *Options) { o.ColumnWidth = 9 }, field: "column_width"},
		{name: "wide column", mutate: func(o *Options) { o.ColumnWidth = 41 }, field: "column_width"},
		{name: "bounds are inclusive", mutate: func(o *Options) { o.Workers = 12; o.MaxHeight = 60; o.ColumnWidth = 40 }},
	}

	for _, row := range table {
		row := row // per-iteration copy (Go 1.21 loop semantics)
		t.Run(row.name, func(t *testing.T) {
			opts := options()
			row.mutate(&opts)
			err := opts.Validate()
			if row.field == "" {
				require.NoError(t, err)
				return
			}
			var optionErr *OptionError
			require.True(t, errors.As(err, &optionErr))
			require.Equal(t, row.field, optionErr.Field)
		})
	}
}
