package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"posheet/internal/components/telemetry"
	"posheet/internal/pipeline"
	"posheet/internal/scrapers/marketplace"
	"posheet/pkg/configutil"
)

const FileName = "posheet.json5"

type MarketplaceConfig struct {
	BaseURL           string  `json:"base_url"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	BrowserTLS        bool    `json:"browser_tls"`
	CacheSize         int     `json:"cache_size"`
	CacheTTLMinutes   int     `json:"cache_ttl_minutes"`
	MaxBodyMegabytes  int     `json:"max_body_megabytes"`
	// CachePurgeCron is a cron spec (in Timezone) on which `serve` drops every
	// cached resolution. Empty disables it.
	CachePurgeCron string `json:"cache_purge_cron"`
	// DumpDir receives a file per HTTP exchange when set. A directory posheet
	// created earlier is cleared on startup, any other non-empty one is refused.
	DumpDir string `json:"dump_dir"`
}

type DefaultsConfig struct {
	ShopID          string `json:"shop_id"`
	Workers         int    `json:"workers"`
	Sequential      bool   `json:"sequential"`
	MaxHeight       int    `json:"max_height"`
	ColumnWidth     int    `json:"column_width"`
	FormulaFallback bool   `json:"formula_fallback"`
}

type Config struct {
	Timezone    string            `json:"timezone"`
	Listen      string            `json:"listen"`
	Marketplace MarketplaceConfig `json:"marketplace"`
	Defaults    DefaultsConfig    `json:"defaults"`
	Telemetry   telemetry.Config  `json:"telemetry"`
}

func Default() Config {
	opts := pipeline.DefaultOptions()
	return Config{
		Timezone: "Asia/Tokyo",
		Listen:   ":8080",
		Marketplace: MarketplaceConfig{
			BaseURL:          marketplace.DefaultBaseURL,
			TimeoutSeconds:   10,
			CacheSize:        1024,
			CacheTTLMinutes:  60,
			MaxBodyMegabytes: 16,
			CachePurgeCron:   "0 4 * * *",
		},
		Defaults: DefaultsConfig{
			ShopID:      "lilirena",
			Workers:     opts.Workers,
			MaxHeight:   opts.MaxHeight,
			ColumnWidth: opts.ColumnWidth,
		},
	}
}

// Load reads `name` (and its .local override) from the working directory or
// any of its parents and merges it over Default. A missing file is not an
// error.
func Load(name string) (Config, error) {
	loaded, err := configutil.ReadRecursively[Config](name)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		applyEnv(&cfg)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	cfg, err := configutil.WithDefaults(Default(), loaded)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets the environment (or a .env file) override a few fields.
func applyEnv(cfg *Config) {
	if value := os.Getenv("POSHEET_SHOP_ID"); value != "" {
		cfg.Defaults.ShopID = value
	}
	if value := os.Getenv("POSHEET_LISTEN"); value != "" {
		cfg.Listen = value
	}
	if value := os.Getenv("POSHEET_BASE_URL"); value != "" {
		cfg.Marketplace.BaseURL = value
	}
	if value := os.Getenv("POSHEET_WORKERS"); value != "" {
		workers, err := strconv.Atoi(value)
		if err == nil {
			cfg.Defaults.Workers = workers
		}
	}
	if value := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); value != "" {
		cfg.Telemetry.Otlp.Traces.HttpEndpoint = value
	}
	if value := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); value != "" {
		cfg.Telemetry.Otlp.Metrics.HttpEndpoint = value
	}
}

// MarketplaceOptions turns the marketplace section into client options.
func (c Config) MarketplaceOptions() (marketplace.Options, error) {
	opts := marketplace.Options{
		BaseURL:           c.Marketplace.BaseURL,
		Timeout:           time.Duration(c.Marketplace.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.Marketplace.RequestsPerSecond,
		BrowserTLS:        c.Marketplace.BrowserTLS,
		CacheSize:         c.Marketplace.CacheSize,
		CacheTTL:          time.Duration(c.Marketplace.CacheTTLMinutes) * time.Minute,
		MaxBodyBytes:      c.Marketplace.MaxBodyMegabytes << 20,
	}
	if c.Marketplace.DumpDir != "" {
		output, err := telemetry.NewFilesystemOutput(c.Marketplace.DumpDir)
		if err != nil {
			return marketplace.Options{}, err
		}
		opts.Dump = output
	}
	return opts, nil
}

// PipelineOptions returns the configured defaults of a run.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		ShopID:          c.Defaults.ShopID,
		Workers:         c.Defaults.Workers,
		Sequential:      c.Defaults.Sequential,
		MaxHeight:       c.Defaults.MaxHeight,
		ColumnWidth:     c.Defaults.ColumnWidth,
		FormulaFallback: c.Defaults.FormulaFallback,
	}
}
