// Package main ingests the raw layers into durable storage: securities and
// universe membership into PostgreSQL, raw observations into ClickHouse.
// With -assemble it additionally builds the finished panel and stores its
// rows. -use-memory swaps both backends for in-memory stores, which is
// useful for dry runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/michbru/PTrees/internal/characteristics"
	"github.com/michbru/PTrees/internal/config"
	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/fetch"
	"github.com/michbru/PTrees/internal/logging"
	"github.com/michbru/PTrees/internal/normalize"
	"github.com/michbru/PTrees/internal/observability"
	"github.com/michbru/PTrees/internal/panel"
	"github.com/michbru/PTrees/internal/storage"
	chstore "github.com/michbru/PTrees/internal/storage/clickhouse"
	"github.com/michbru/PTrees/internal/storage/memory"
	"github.com/michbru/PTrees/internal/storage/migrations"
	pgstore "github.com/michbru/PTrees/internal/storage/postgres"
	"github.com/michbru/PTrees/internal/universe"
)

// warmupMonths of history are ingested ahead of the sample start so that
// trailing windows have data behind the first sample month.
const warmupMonths = 40

type stores struct {
	securities   storage.SecurityStore
	membership   storage.MembershipStore
	observations storage.ObservationStore
	panels       storage.PanelStore
	close        func()
}

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration (defaults apply when empty)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	assemble := flag.Bool("assemble", false, "Also assemble the panel and store its rows")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
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

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			log.Infof("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warnf("Received signal %v, cancelling ingest", sig)
		cancel()
	}()

	if err := run(ctx, cfg, log, *useMemory, *assemble); err != nil {
		log.Errorf("Ingest failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, useMemory, assemble bool) error {
	start, err := cfg.StartDate()
	if err != nil {
		return err
	}
	end, err := cfg.EndDate()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, useMemory)
	if err != nil {
		return err
	}
	defer st.close()

	fx := panel.LoadFixtures(start, end)
	resolver := universe.NewResolver(fx.Membership, logging.WithComponent(log, "universe"))
	fetcher := fetch.New(fx.Prices, fx.Fundamentals, fx.Industry, fetch.DefaultOptions(), logging.WithComponent(log, "fetch"))

	members, err := resolver.Resolve(ctx, start, end)
	if err != nil {
		return fmt.Errorf("resolve universe: %w", err)
	}
	entities := uniqueEntities(members.Members)
	if len(entities) == 0 {
		return fmt.Errorf("universe is empty over %s..%s", cfg.Run.Start, cfg.Run.End)
	}

	if err := st.membership.InsertBulk(ctx, members.Members); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store membership: %w", err)
	}

	secs, _, err := fetcher.FetchIndustry(ctx, entities)
	if err != nil {
		return fmt.Errorf("fetch industry: %w", err)
	}
	inserted := 0
	for i := range secs {
		err := st.securities.Insert(ctx, &secs[i])
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return fmt.Errorf("store security %s: %w", secs[i].Entity, err)
		}
		inserted++
	}

	warmStart := domain.AddMonths(start, -warmupMonths)
	prices, err := fetcher.FetchPrices(ctx, entities, warmStart, end, domain.FreqMonthly)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	funds, err := fetcher.FetchFundamentals(ctx, entities, warmStart, end, cfg.Run.Currency)
	if err != nil {
		return fmt.Errorf("fetch fundamentals: %w", err)
	}

	obs := append(prices.Observations, funds.Observations...)
	if err := st.observations.InsertBulk(ctx, obs); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store observations: %w", err)
	}

	log.WithFields(logrus.Fields{
		"securities":     inserted,
		"membership":     len(members.Members),
		"observations":   len(obs),
		"failed_batches": len(prices.Failed) + len(funds.Failed),
	}).Info("Raw layers ingested")

	if !assemble {
		return nil
	}
	return assembleAndStore(ctx, cfg, log, st, fx, resolver, fetcher, start, end)
}

func assembleAndStore(ctx context.Context, cfg *config.Config, log *logrus.Logger, st *stores, fx *panel.Fixtures, resolver *universe.Resolver, fetcher *fetch.Fetcher, start, end time.Time) error {
	asm := panel.New(panel.Config{
		Start:              start,
		End:                end,
		Currency:           cfg.Run.Currency,
		Characteristics:    characteristics.DefaultConfig(),
		Normalize:          normalize.DefaultConfig(),
		RequireMarketCap:   cfg.Filters.RequireMarketCap,
		MinCharacteristics: cfg.Filters.MinCharacteristics,
	}, resolver, fetcher, fx.RiskFree, logging.WithComponent(log, "panel"))

	p, report, err := asm.Run(ctx)
	if err != nil {
		return fmt.Errorf("assemble panel: %w", err)
	}

	rows := p.Flatten()
	if err := st.panels.InsertBulk(ctx, rows); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store panel rows: %w", err)
	}

	log.WithFields(logrus.Fields{
		"rows":     len(rows),
		"entities": report.Entities,
		"months":   report.Months,
	}).Info("Panel stored")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, useMemory bool) (*stores, error) {
	if useMemory {
		return &stores{
			securities:   memory.NewSecurityStore(),
			membership:   memory.NewMembershipStore(),
			observations: memory.NewObservationStore(),
			panels:       memory.NewPanelStore(),
			close:        func() {},
		}, nil
	}

	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn and storage.clickhouse_dsn must be set (or pass -use-memory)")
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	return &stores{
		securities:   pgstore.NewSecurityStore(pool),
		membership:   pgstore.NewMembershipStore(pool),
		observations: chstore.NewObservationStore(conn),
		panels:       chstore.NewPanelStore(conn),
		close: func() {
			pool.Close()
			conn.Close()
		},
	}, nil
}

func uniqueEntities(members []domain.UniverseMembership) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range members {
		if !seen[m.Entity] {
			seen[m.Entity] = true
			out = append(out, m.Entity)
		}
	}
	return out
}
