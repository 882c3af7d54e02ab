// Package main runs the panel pipeline end to end on the built-in fixture
// dataset: universe resolution, fetching, alignment, characteristics,
// filtering, normalization and artifact output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/michbru/PTrees/internal/characteristics"
	"github.com/michbru/PTrees/internal/config"
	"github.com/michbru/PTrees/internal/fetch"
	"github.com/michbru/PTrees/internal/logging"
	"github.com/michbru/PTrees/internal/normalize"
	"github.com/michbru/PTrees/internal/output"
	"github.com/michbru/PTrees/internal/panel"
	"github.com/michbru/PTrees/internal/riskfactor"
	"github.com/michbru/PTrees/internal/universe"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration (defaults apply when empty)")
	outputDir := flag.String("output-dir", "", "Override output.dir from the configuration")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warnf("Received signal %v, cancelling run", sig)
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Errorf("Pipeline failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	start, err := cfg.StartDate()
	if err != nil {
		return err
	}
	end, err := cfg.EndDate()
	if err != nil {
		return err
	}

	fx := panel.LoadFixtures(start, end)
	riskFree := fx.RiskFree
	if cfg.Output.RiskFreeCSV != "" {
		obs, err := riskfactor.NewLoader(logging.WithComponent(log, "riskfactor")).LoadFile(cfg.Output.RiskFreeCSV)
		if err != nil {
			return err
		}
		riskFree = riskfactor.RiskFreeByMonth(obs)
	}

	resolver := universe.NewResolver(fx.Membership, logging.WithComponent(log, "universe"))
	fetcher := fetch.New(fx.Prices, fx.Fundamentals, fx.Industry, fetchOptions(cfg), logging.WithComponent(log, "fetch"))

	asmCfg := panel.Config{
		Start:              start,
		End:                end,
		Currency:           cfg.Run.Currency,
		Characteristics:    characteristicsConfig(cfg),
		Normalize:          normalizeConfig(cfg),
		RequireMarketCap:   cfg.Filters.RequireMarketCap,
		MinCharacteristics: cfg.Filters.MinCharacteristics,
	}
	asm := panel.New(asmCfg, resolver, fetcher, riskFree, logging.WithComponent(log, "panel"))

	p, report, err := asm.Run(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	csvPath := filepath.Join(cfg.Output.Dir, cfg.Output.PanelCSV)
	if err := output.WriteCSV(p, csvPath); err != nil {
		return err
	}
	parquetPath := filepath.Join(cfg.Output.Dir, cfg.Output.PanelParquet)
	if err := output.WriteParquet(p, parquetPath); err != nil {
		return err
	}
	metaPath := filepath.Join(cfg.Output.Dir, cfg.Output.MetadataJSON)
	if err := output.WriteMetadata(output.NewMetadata(p, report, asmCfg), metaPath); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"rows":     report.RowsKept,
		"entities": report.Entities,
		"months":   report.Months,
		"csv":      csvPath,
		"parquet":  parquetPath,
	}).Info("Artifacts written")
	return nil
}

func fetchOptions(cfg *config.Config) fetch.Options {
	opts := fetch.DefaultOptions()
	if cfg.Fetch.BatchSize > 0 {
		opts.BatchSize = cfg.Fetch.BatchSize
	}
	if cfg.Fetch.MaxRetries > 0 {
		opts.MaxRetries = cfg.Fetch.MaxRetries
	}
	if cfg.Fetch.MaxParallel > 0 {
		opts.MaxParallel = cfg.Fetch.MaxParallel
	}
	opts.InitialBackoff = cfg.InitialBackoff()
	opts.RequestsPerSec = cfg.Fetch.RequestsPerSec
	return opts
}

func characteristicsConfig(cfg *config.Config) characteristics.Config {
	out := characteristics.DefaultConfig()

	if cfg.Windows.TTMQuarters > 0 {
		out.Windows.TTMQuarters = cfg.Windows.TTMQuarters
	}
	if cfg.Windows.AvgMonths > 0 {
		out.Windows.AvgMonths = cfg.Windows.AvgMonths
	}
	if cfg.Windows.BookLagMonths > 0 {
		out.Windows.BookLagMonths = cfg.Windows.BookLagMonths
	}
	if cfg.Windows.GrowthMonths > 0 {
		out.Windows.GrowthMonths = cfg.Windows.GrowthMonths
	}

	if len(cfg.Fallbacks.OperatingProfitDenominator) > 0 {
		out.Fallbacks.OperatingProfitDenominator = cfg.Fallbacks.OperatingProfitDenominator
	}
	if len(cfg.Fallbacks.GrossMarginDenominator) > 0 {
		out.Fallbacks.GrossMarginDenominator = cfg.Fallbacks.GrossMarginDenominator
	}
	if len(cfg.Fallbacks.LeverageNumerator) > 0 {
		out.Fallbacks.LeverageNumerator = cfg.Fallbacks.LeverageNumerator
	}

	out.IndustryAdjust = cfg.Industry.Adjust
	if len(cfg.Industry.Columns) > 0 {
		out.IndustryAdjustCols = cfg.Industry.Columns
	}
	return out
}

func normalizeConfig(cfg *config.Config) normalize.Config {
	out := normalize.DefaultConfig()
	out.Method = normalize.Method(cfg.Normalize.Method)
	out.LowerPct = cfg.Normalize.LowerPct
	out.UpperPct = cfg.Normalize.UpperPct
	out.FillValue = cfg.Normalize.FillValue
	if cfg.Normalize.MinWinsorObs > 0 {
		out.MinWinsorObs = cfg.Normalize.MinWinsorObs
	}
	return out
}
