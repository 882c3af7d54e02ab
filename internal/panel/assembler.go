// Package panel assembles the final characteristic panel: it joins
// membership, prices, fundamentals, industry codes and the risk-free rate,
// runs the characteristic calculator over a warmed-up month grid, applies
// the documented row filters and normalizes cross-sectionally.
package panel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/michbru/PTrees/internal/align"
	"github.com/michbru/PTrees/internal/characteristics"
	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/fetch"
	"github.com/michbru/PTrees/internal/normalize"
	"github.com/michbru/PTrees/internal/observability"
	"github.com/michbru/PTrees/internal/universe"
)

// Config bundles an assembly run.
type Config struct {
	Start    time.Time
	End      time.Time
	Currency string

	Characteristics characteristics.Config
	Normalize       normalize.Config

	// Documented row filters. Rows failing them are dropped before
	// normalization and counted in the report.
	RequireMarketCap   bool
	MinCharacteristics int
}

// Report summarizes one assembly run.
type Report struct {
	Months           int
	Entities         int
	RowsBuilt        int
	RowsKept         int
	DroppedNoPrice   int
	DroppedSparse    int
	MembershipErrors int
	FailedBatches    int
	Characteristics  []string
}

// Assembler orchestrates the pipeline stages into one panel.
type Assembler struct {
	cfg      Config
	resolver *universe.Resolver
	fetcher  *fetch.Fetcher
	riskFree map[time.Time]float64
	log      *logrus.Entry
}

// New creates an assembler. riskFree may be nil; the excess return column
// is then omitted.
func New(cfg Config, resolver *universe.Resolver, fetcher *fetch.Fetcher, riskFree map[time.Time]float64, log *logrus.Entry) *Assembler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Assembler{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
		riskFree: riskFree,
		log:      log.WithField("component", "panel"),
	}
}

// Run assembles the panel. Trailing windows are computed on a grid widened
// backwards by the longest window, so the first sample months carry real
// values instead of warm-up artifacts; only months in [Start, End] survive
// into the result.
func (a *Assembler) Run(ctx context.Context) (*domain.Panel, *Report, error) {
	began := time.Now()
	p, report, err := a.run(ctx)
	if err != nil {
		observability.RecordRun("error", time.Since(began).Seconds())
		return nil, nil, err
	}
	observability.RecordRun("ok", time.Since(began).Seconds())
	observability.UpdatePanelRows(report.RowsBuilt, report.RowsKept)
	observability.RecordRowsDropped("no_market_cap", report.DroppedNoPrice)
	observability.RecordRowsDropped("sparse", report.DroppedSparse)
	return p, report, nil
}

func (a *Assembler) run(ctx context.Context) (*domain.Panel, *Report, error) {
	report := &Report{}

	sampleMonths := domain.MonthEnds(a.cfg.Start, a.cfg.End)
	if len(sampleMonths) == 0 {
		return nil, nil, fmt.Errorf("assemble: empty sample range")
	}
	report.Months = len(sampleMonths)

	warmStart := domain.AddMonths(a.cfg.Start, -a.warmupMonths())
	grid := domain.MonthEnds(warmStart, a.cfg.End)

	members, err := a.resolver.Resolve(ctx, a.cfg.Start, a.cfg.End)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble: resolve universe: %w", err)
	}
	report.MembershipErrors = len(members.Errors)

	entities := memberEntities(members.Members)
	if len(entities) == 0 {
		return nil, nil, fmt.Errorf("assemble: universe is empty over %s..%s",
			a.cfg.Start.Format("2006-01"), a.cfg.End.Format("2006-01"))
	}
	report.Entities = len(entities)
	observability.UpdateUniverseSize(len(entities))

	wide, err := a.buildWidePanel(ctx, entities, grid, report)
	if err != nil {
		return nil, nil, err
	}

	calc := characteristics.NewCalculator(a.cfg.Characteristics, a.log)
	chars, err := calc.Compute(wide)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble: compute characteristics: %w", err)
	}
	report.Characteristics = chars

	a.addExcessReturn(wide)

	final := a.filterRows(wide, members.Members, chars, report)
	if err := final.Validate(); err != nil {
		return nil, nil, fmt.Errorf("assemble: %w", err)
	}

	if err := normalize.Panel(final, chars, a.cfg.Normalize); err != nil {
		return nil, nil, fmt.Errorf("assemble: normalize: %w", err)
	}

	report.RowsKept = final.Len()
	a.log.WithFields(logrus.Fields{
		"rows":     report.RowsKept,
		"entities": report.Entities,
		"months":   report.Months,
	}).Info("panel assembled")
	return final, report, nil
}

// warmupMonths is the longest backward-looking window any characteristic
// needs, so the first sample month already has full history behind it.
func (a *Assembler) warmupMonths() int {
	w := a.cfg.Characteristics.Windows
	warm := w.Mom36Window + w.MomSkip
	for _, n := range []int{
		w.Mom121Window + w.MomSkip,
		w.AvgMonths,
		w.GrowthMonths,
		w.BookLagMonths,
		w.TTMQuarters * 3,
		w.RVar12Win,
	} {
		if n > warm {
			warm = n
		}
	}
	return warm + 1
}

// buildWidePanel fetches and aligns every raw input onto the warmed-up grid
// and scatters it into a panel with one row per (entity, grid month).
func (a *Assembler) buildWidePanel(ctx context.Context, entities []string, grid []time.Time, report *Report) (*domain.Panel, error) {
	start, end := grid[0], grid[len(grid)-1]

	prices, err := a.fetcher.FetchPrices(ctx, entities, start, end, domain.FreqMonthly)
	if err != nil {
		return nil, fmt.Errorf("assemble: fetch prices: %w", err)
	}
	funds, err := a.fetcher.FetchFundamentals(ctx, entities, start, end, a.cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("assemble: fetch fundamentals: %w", err)
	}
	secs, failedInd, err := a.fetcher.FetchIndustry(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("assemble: fetch industry: %w", err)
	}
	report.FailedBatches = len(prices.Failed) + len(funds.Failed) + len(failedInd)

	ttmObs := characteristics.BuildTTM(funds.Observations, a.cfg.Characteristics.Windows.TTMQuarters)

	priceSeries := align.Snap(prices.Observations, grid)
	fundSeries := align.Monthly(funds.Observations, grid)
	ttmSeries := align.Monthly(ttmObs, grid)

	rows := make([]domain.RowKey, 0, len(entities)*len(grid))
	for _, e := range entities {
		for _, m := range grid {
			rows = append(rows, domain.RowKey{Entity: e, Date: m})
		}
	}
	p := domain.NewPanel(rows)
	report.RowsBuilt = p.Len()

	priceFields := []string{domain.FieldClose, domain.FieldAdjClose, domain.FieldVolume}
	for _, field := range priceFields {
		scatterField(p, priceSeries, field)
	}
	for _, field := range domain.FundamentalFields {
		scatterField(p, fundSeries, field)
	}
	for _, field := range characteristics.TTMFields() {
		scatterField(p, ttmSeries, field)
	}

	sectors := p.AddLabel(characteristics.SectorLabel)
	industries := p.AddLabel("industry_code")
	byEntity := make(map[string]domain.Security, len(secs))
	for _, s := range secs {
		byEntity[s.Entity] = s
	}
	for i, rk := range p.Rows() {
		if s, ok := byEntity[rk.Entity]; ok {
			sectors[i] = s.SectorCode
			industries[i] = s.IndustryCode
		}
	}

	return p, nil
}

// scatterField writes one aligned series into the panel column of the same
// name. Entity rows and series values share the grid ordering.
func scatterField(p *domain.Panel, series map[string]map[string]*domain.MonthlySeries, field string) {
	col := p.AddNumeric(field)
	for entity, fields := range series {
		s, ok := fields[field]
		if !ok {
			continue
		}
		rows := p.EntityRows(entity)
		if len(rows) != len(s.Values) {
			continue
		}
		for i, r := range rows {
			col[r] = s.Values[i]
		}
	}
}

// addExcessReturn sets excess_ret = ret - rf for months with a known
// risk-free rate. Without a factor series the column is omitted entirely.
func (a *Assembler) addExcessReturn(p *domain.Panel) {
	if a.riskFree == nil {
		return
	}
	ret, ok := p.Numeric("ret")
	if !ok {
		return
	}
	out := p.AddNumeric("excess_ret")
	for i, rk := range p.Rows() {
		if ret[i] == nil {
			continue
		}
		v := *ret[i] - a.riskFree[rk.Date]
		out[i] = &v
	}
}

// filterRows keeps membership rows inside the sample range that pass the
// documented filters: a market cap when required, and a minimum number of
// non-missing characteristics.
func (a *Assembler) filterRows(p *domain.Panel, members []domain.UniverseMembership, chars []string, report *Report) *domain.Panel {
	inUniverse := make(map[domain.RowKey]bool, len(members))
	for _, m := range members {
		inUniverse[domain.RowKey{Entity: m.Entity, Date: m.Date}] = true
	}

	mktCap, hasMktCap := p.Numeric("mkt_cap")
	charCols := make([][]*float64, 0, len(chars))
	for _, name := range chars {
		if col, ok := p.Numeric(name); ok {
			charCols = append(charCols, col)
		}
	}

	var keep []int
	for i, rk := range p.Rows() {
		if !inUniverse[rk] {
			continue
		}
		if a.cfg.RequireMarketCap && (!hasMktCap || mktCap[i] == nil) {
			report.DroppedNoPrice++
			continue
		}
		valid := 0
		for _, col := range charCols {
			if col[i] != nil {
				valid++
			}
		}
		if valid < a.cfg.MinCharacteristics {
			report.DroppedSparse++
			continue
		}
		keep = append(keep, i)
	}

	if dropped := report.DroppedNoPrice + report.DroppedSparse; dropped > 0 {
		a.log.WithFields(logrus.Fields{
			"no_market_cap": report.DroppedNoPrice,
			"sparse":        report.DroppedSparse,
		}).Warn("rows dropped by filters")
	}
	return p.Subset(keep)
}

func memberEntities(members []domain.UniverseMembership) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range members {
		if !seen[m.Entity] {
			seen[m.Entity] = true
			out = append(out, m.Entity)
		}
	}
	// Resolver output is month-major; re-sort for deterministic batches.
	sort.Strings(out)
	return out
}
