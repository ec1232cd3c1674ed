package webform

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"posheet/internal/components/assert"
	"posheet/internal/components/chrono"
	"posheet/internal/components/telemetry"
	"posheet/internal/orders"
	"posheet/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*
var embeddedFiles embed.FS

const (
	report_generate = "generate"

	maxUploadBytes = 64 << 20
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Runner executes a single generation, pipeline.Service implements it.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, opts pipeline.Options) (pipeline.Output, error)
}

type Server struct {
	router    *chi.Mux
	runner    Runner
	defaults  pipeline.Options
	time      chrono.API
	tel       telemetry.API
	templates *template.Template
}

type page struct {
	Error     string
	OrderDate string
	Options   pipeline.Options

	MinWorkers, MaxWorkers         int
	MinHeight, MaxHeight           int
	MinColumnWidth, MaxColumnWidth int
}

func NewServer(runner Runner, defaults pipeline.Options, time chrono.API, tel telemetry.API) (*Server, error) {
	assert.NotNil(runner)
	assert.NotNil(time)
	assert.NotNil(tel)

	templates, err := template.ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		runner:    runner,
		defaults:  defaults,
		time:      time,
		tel:       telemetry.NewScopedAPI("webform", tel),
		templates: templates,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleIndex)
	s.router.Post("/generate", s.handleGenerate)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) render(w http.ResponseWriter, status int, data page) {
	data.MinWorkers, data.MaxWorkers = pipeline.MinWorkers, pipeline.MaxWorkers
	data.MinHeight, data.MaxHeight = pipeline.MinHeight, pipeline.MaxHeight
	data.MinColumnWidth, data.MaxColumnWidth = pipeline.MinColumnWidth, pipeline.MaxColumnWidth
	if data.OrderDate == "" {
		data.OrderDate = chrono.Today(s.time).Format(time.DateOnly)
	}

	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := s.templates.ExecuteTemplate(w, "index.html", data)
	if err != nil {
		slog.Error("template error", "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, page{Options: s.defaults})
}

func parseInt(r *http.Request, field string, fallback int) (int, error) {
	value := strings.TrimSpace(r.FormValue(field))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &pipeline.OptionError{Field: field, Message: fmt.Sprintf("%q is not a number", value)}
	}
	return n, nil
}

func (s *Server) parseOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.defaults
	opts.ShopID = strings.TrimSpace(r.FormValue("shop_id"))
	opts.Sequential = r.FormValue("sequential") != ""
	opts.FormulaFallback = r.FormValue("formula_fallback") != ""

	var err error
	opts.Workers, err = parseInt(r, "workers", s.defaults.Workers)
	if err != nil {
		return opts, err
	}
	opts.MaxHeight, err = parseInt(r, "max_height", s.defaults.MaxHeight)
	if err != nil {
		return opts, err
	}
	opts.ColumnWidth, err = parseInt(r, "column_width", s.defaults.ColumnWidth)
	if err != nil {
		return opts, err
	}

	if date := strings.TrimSpace(r.FormValue("order_date")); date != "" {
		opts.OrderDate, err = time.ParseInLocation(time.DateOnly, date, s.time.Location())
		if err != nil {
			return opts, &pipeline.OptionError{Field: "order_date", Message: fmt.Sprintf("%q is not a date", date)}
		}
	}
	return opts, nil
}

// statusOf returns 422 for errors caused by the uploaded input and 500 for
// everything else.
func statusOf(err error) int {
	var schemaErr *orders.SchemaError
	var encodingErr *orders.EncodingError
	var optionErr *pipeline.OptionError
	switch {
	case errors.As(err, &schemaErr),
		errors.As(err, &encodingErr),
		errors.As(err, &optionErr),
		errors.Is(err, orders.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, opts pipeline.Options, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.tel.ReportBroken(report_generate, err)
	} else {
		s.tel.ReportDebug(report_generate, err)
	}

	data := page{Error: fmt.Sprintf("エラー: %s", err.Error()), Options: opts}
	if !opts.OrderDate.IsZero() {
		data.OrderDate = opts.OrderDate.Format(time.DateOnly)
	}
	s.render(w, status, data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		s.fail(w, s.defaults, &pipeline.OptionError{Field: "form", Message: err.Error()})
		return
	}

	opts, err := s.parseOptions(r)
	if err != nil {
		s.fail(w, opts, err)
		return
	}

	ordersFile, _, err := r.FormFile("orders")
	if err != nil {
		s.fail(w, opts, &pipeline.OptionError{Field: "orders", Message: "an order csv is required"})
		return
	}
	defer ordersFile.Close()

	masterFile, masterHeader, err := r.FormFile("master")
	if err != nil {
		s.fail(w, opts, &pipeline.OptionError{Field: "master", Message: "a master file is required"})
		return
	}
	defer masterFile.Close()

	out, err := s.runner.Run(r.Context(), pipeline.Input{
		Orders:         ordersFile,
		Master:         masterFile,
		MasterFilename: masterHeader.Filename,
	}, opts)
	if err != nil {
		s.fail(w, opts, err)
		return
	}

	w.Header().Set("content-type", xlsxMimeType)
	w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
	w.Header().Set("x-posheet-run-id", out.RunID)
	w.Header().Set("x-posheet-embedded", strconv.Itoa(out.Summary.Embedded))
	w.Header().Set("x-posheet-fallback", strconv.Itoa(out.Summary.Fallback))
	w.Header().Set("x-posheet-failed", strconv.Itoa(out.Summary.Failed))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(out.Workbook)
	if err != nil {
		s.tel.ReportWarning(report_generate, fmt.Errorf("write response: %w", err))
	}
}
