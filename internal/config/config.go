// Package config loads the pipeline run configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline run configuration.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Windows   WindowsConfig   `yaml:"windows"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Filters   FiltersConfig   `yaml:"filters"`
	Fallbacks FallbacksConfig `yaml:"fallbacks"`
	Industry  IndustryConfig  `yaml:"industry"`
	Storage   StorageConfig   `yaml:"storage"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RunConfig bounds the sample.
type RunConfig struct {
	Start    string `yaml:"start"` // YYYY-MM
	End      string `yaml:"end"`   // YYYY-MM
	Currency string `yaml:"currency"`
}

// FetchConfig tunes the batched vendor fetcher.
type FetchConfig struct {
	BatchSize      int     `yaml:"batch_size"`
	MaxRetries     int     `yaml:"max_retries"`
	InitialBackoff string  `yaml:"initial_backoff"`
	MaxParallel    int     `yaml:"max_parallel"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// WindowsConfig overrides trailing-window lengths. Zero means default.
type WindowsConfig struct {
	TTMQuarters   int `yaml:"ttm_quarters"`
	AvgMonths     int `yaml:"avg_months"`
	BookLagMonths int `yaml:"book_lag_months"`
	GrowthMonths  int `yaml:"growth_months"`
}

// NormalizeConfig tunes the cross-sectional normalizer.
type NormalizeConfig struct {
	Method       string  `yaml:"method"` // minmax or zscore
	LowerPct     float64 `yaml:"lower_pct"`
	UpperPct     float64 `yaml:"upper_pct"`
	FillValue    float64 `yaml:"fill_value"`
	MinWinsorObs int     `yaml:"min_winsor_obs"`
}

// FiltersConfig lists the documented row filters.
type FiltersConfig struct {
	RequireMarketCap   bool `yaml:"require_market_cap"`
	MinCharacteristics int  `yaml:"min_characteristics"`
}

// FallbacksConfig overrides denominator/numerator fallback chains.
type FallbacksConfig struct {
	OperatingProfitDenominator []string `yaml:"op_prof_denominator"`
	GrossMarginDenominator     []string `yaml:"gma_denominator"`
	LeverageNumerator          []string `yaml:"leverage_numerator"`
}

// IndustryConfig controls industry-adjusted variants.
type IndustryConfig struct {
	Adjust  bool     `yaml:"adjust"`
	Columns []string `yaml:"columns"`
}

// StorageConfig carries backend DSNs for ingest mode.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// OutputConfig names the artifacts.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	PanelCSV     string `yaml:"panel_csv"`
	PanelParquet string `yaml:"panel_parquet"`
	MetadataJSON string `yaml:"metadata_json"`
	RiskFreeCSV  string `yaml:"risk_free_csv"` // input, not artifact
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when a field is absent.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Start:    "2000-01",
			End:      "2023-12",
			Currency: "SEK",
		},
		Fetch: FetchConfig{
			BatchSize:      50,
			MaxRetries:     5,
			InitialBackoff: "1s",
			MaxParallel:    4,
			RequestsPerSec: 5,
		},
		Normalize: NormalizeConfig{
			Method:       "minmax",
			LowerPct:     0.01,
			UpperPct:     0.99,
			FillValue:    0.0,
			MinWinsorObs: 5,
		},
		Filters: FiltersConfig{
			RequireMarketCap:   true,
			MinCharacteristics: 1,
		},
		Output: OutputConfig{
			Dir:          "out",
			PanelCSV:     "panel.csv",
			PanelParquet: "panel.parquet",
			MetadataJSON: "panel_meta.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the fields the pipeline cannot default its way around.
func (c *Config) Validate() error {
	start, err := c.StartDate()
	if err != nil {
		return err
	}
	end, err := c.EndDate()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("run.end %s is before run.start %s", c.Run.End, c.Run.Start)
	}
	if c.Run.Currency == "" {
		return fmt.Errorf("run.currency must be set")
	}
	if c.Normalize.Method != "minmax" && c.Normalize.Method != "zscore" {
		return fmt.Errorf("normalize.method must be minmax or zscore, got %q", c.Normalize.Method)
	}
	if c.Normalize.LowerPct < 0 || c.Normalize.UpperPct > 1 || c.Normalize.LowerPct >= c.Normalize.UpperPct {
		return fmt.Errorf("normalize percentiles [%v, %v] are not a valid range", c.Normalize.LowerPct, c.Normalize.UpperPct)
	}
	if _, err := time.ParseDuration(c.Fetch.InitialBackoff); err != nil {
		return fmt.Errorf("fetch.initial_backoff: %w", err)
	}
	return nil
}

// StartDate parses run.start as the first day of the month.
func (c *Config) StartDate() (time.Time, error) {
	t, err := time.Parse("2006-01", c.Run.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("run.start: %w", err)
	}
	return t, nil
}

// EndDate parses run.end as the first day of the month.
func (c *Config) EndDate() (time.Time, error) {
	t, err := time.Parse("2006-01", c.Run.End)
	if err != nil {
		return time.Time{}, fmt.Errorf("run.end: %w", err)
	}
	return t, nil
}

// InitialBackoff parses the fetch backoff duration, defaulting to 1s.
func (c *Config) InitialBackoff() time.Duration {
	d, err := time.ParseDuration(c.Fetch.InitialBackoff)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}
