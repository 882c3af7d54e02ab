package characteristics

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/window"
)

// Calculator computes the named characteristic columns on a panel whose raw
// and derived input columns are already aligned to the month grid. Every
// characteristic is guarded: missing inputs or an invalid denominator yield
// a missing value, never a default, until the normalizer's fill step.
type Calculator struct {
	cfg Config
	log *logrus.Entry
}

// NewCalculator creates a calculator.
func NewCalculator(cfg Config, log *logrus.Entry) *Calculator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Calculator{cfg: cfg, log: log.WithField("component", "characteristics")}
}

// Compute adds base inputs (market cap, monthly return) where absent, then
// every characteristic column, and returns the characteristic names in a
// fixed order. The panel must hold one row per (entity, month-end).
func (c *Calculator) Compute(p *domain.Panel) ([]string, error) {
	w := c.cfg.Windows

	c.computeMarketCap(p)
	c.computeReturns(p)

	// Derived per-entity inputs on the monthly grid.
	c.perEntity(p, domain.FieldTotalAssets, "assets_avg", func(v []*float64) []*float64 {
		return window.TrailingMean(v, w.AvgMonths)
	})
	c.perEntity(p, domain.FieldShareholdersEquity, "equity_avg", func(v []*float64) []*float64 {
		return window.TrailingMean(v, w.AvgMonths)
	})
	c.perEntity(p, domain.FieldShareholdersEquity, "be_lag", func(v []*float64) []*float64 {
		return window.Lag(v, w.BookLagMonths)
	})

	var chars []string
	add := func(name string) { chars = append(chars, name) }

	// Valuation.
	c.computeSize(p)
	add("size")
	c.ratio(p, "bm", "be_lag", "mkt_cap", guardNonZero)
	add("bm")
	c.ratio(p, "ep", "ni_ttm", "mkt_cap", guardNonZero)
	add("ep")
	c.ratio(p, "sp", "sales_ttm", "mkt_cap", guardNonZero)
	add("sp")
	c.ratio(p, "cfp", "cfo_ttm", "mkt_cap", guardNonZero)
	add("cfp")
	c.growth(p, "sgr", "sales_ttm", w.GrowthMonths)
	add("sgr")

	// Profitability and quality.
	c.ratioFallback(p, "op_prof", "oi_ttm", c.cfg.Fallbacks.OperatingProfitDenominator)
	add("op_prof")
	c.ratio(p, "pm", "ni_ttm", "sales_ttm", guardNonZero)
	add("pm")
	c.ratio(p, "roe", "ni_ttm", "equity_avg", guardNonZero)
	add("roe")
	c.ratio(p, "ato", "sales_ttm", "assets_avg", guardNonZero)
	add("ato")
	c.ratioFallback(p, "gma", "gp_ttm", c.cfg.Fallbacks.GrossMarginDenominator)
	add("gma")

	// Investment and leverage.
	c.growth(p, "assets_growth", domain.FieldTotalAssets, w.GrowthMonths)
	add("assets_growth")
	c.leverage(p)
	add("leverage")
	c.growth(p, "issuance_eq", domain.FieldSharesOutstanding, w.GrowthMonths)
	add("issuance_eq")

	// Liquidity.
	c.computeTurnover(p)
	add("turnover")
	c.computeDollarVolume(p)
	add("dolvol")
	c.computeZeroTrade(p)
	add("zerotrade")
	c.perEntity(p, "turnover", "std_turn_3m", func(v []*float64) []*float64 {
		return window.TrailingStdDev(v, w.LiqStdWin, w.LiqStdMin)
	})
	add("std_turn_3m")
	c.perEntity(p, "dolvol", "std_dolvol_3m", func(v []*float64) []*float64 {
		return window.TrailingStdDev(v, w.LiqStdWin, w.LiqStdMin)
	})
	add("std_dolvol_3m")

	// Momentum and volatility.
	c.perEntity(p, "ret", "mom_12_1", func(v []*float64) []*float64 {
		return window.CompoundReturn(v, w.Mom121Window, w.MomSkip, w.Mom121Min)
	})
	add("mom_12_1")
	c.perEntity(p, "ret", "mom_6", func(v []*float64) []*float64 {
		return window.CompoundReturn(v, w.Mom6Window, w.MomSkip, w.Mom6Min)
	})
	add("mom_6")
	c.perEntity(p, "ret", "mom_36", func(v []*float64) []*float64 {
		return window.CompoundReturn(v, w.Mom36Window, w.MomSkip, w.Mom36Min)
	})
	add("mom_36")
	c.perEntity(p, "ret", "rvar_3m", func(v []*float64) []*float64 {
		return window.TrailingVariance(v, w.RVarWindow, w.RVarMin)
	})
	add("rvar_3m")
	c.perEntity(p, "ret", "rvar_12m", func(v []*float64) []*float64 {
		return window.TrailingVariance(v, w.RVar12Win, w.RVar12MinPd)
	})
	add("rvar_12m")

	if c.cfg.IndustryAdjust {
		chars = append(chars, c.industryAdjust(p, c.cfg.IndustryAdjustCols)...)
	}

	return chars, nil
}

// priceColumn prefers the adjusted close where present.
func (c *Calculator) priceColumn(p *domain.Panel) ([]*float64, bool) {
	if col, ok := p.Numeric(domain.FieldAdjClose); ok {
		return col, true
	}
	col, ok := p.Numeric(domain.FieldClose)
	return col, ok
}

// computeMarketCap sets mkt_cap = shares_outstanding * price, only when
// both inputs are present and shares outstanding is non-zero.
func (c *Calculator) computeMarketCap(p *domain.Panel) {
	if p.HasNumeric("mkt_cap") {
		return
	}
	price, okP := c.priceColumn(p)
	shares, okS := p.Numeric(domain.FieldSharesOutstanding)
	out := p.AddNumeric("mkt_cap")
	if !okP || !okS {
		c.log.Warn("cannot compute market cap: missing price or shares outstanding")
		return
	}
	for i := range out {
		if price[i] == nil || shares[i] == nil || *shares[i] == 0 {
			continue
		}
		v := *shares[i] * *price[i]
		out[i] = &v
	}
}

// computeReturns sets ret to the month-over-month change in adjusted close
// per entity.
func (c *Calculator) computeReturns(p *domain.Panel) {
	if p.HasNumeric("ret") {
		return
	}
	price, ok := c.priceColumn(p)
	out := p.AddNumeric("ret")
	if !ok {
		c.log.Warn("cannot compute returns: no price column")
		return
	}
	for _, entity := range p.Entities() {
		rows := p.EntityRows(entity)
		series := gather(price, rows)
		scatter(out, rows, window.PctChange(series, 1))
	}
}

func (c *Calculator) computeSize(p *domain.Panel) {
	mc, ok := p.Numeric("mkt_cap")
	out := p.AddNumeric("size")
	if !ok {
		return
	}
	for i := range out {
		if mc[i] == nil || *mc[i] <= 0 {
			continue
		}
		v := math.Log(*mc[i])
		out[i] = &v
	}
}

type guard func(den float64) bool

func guardNonZero(den float64) bool { return den != 0 }

// ratio sets name = num / den row-wise, missing unless both inputs are
// present and the denominator passes its guard.
func (c *Calculator) ratio(p *domain.Panel, name, numCol, denCol string, ok guard) {
	num, okN := p.Numeric(numCol)
	den, okD := p.Numeric(denCol)
	out := p.AddNumeric(name)
	if !okN || !okD {
		c.log.WithField("characteristic", name).Warn("missing input column, characteristic left empty")
		return
	}
	for i := range out {
		if num[i] == nil || den[i] == nil || !ok(*den[i]) {
			continue
		}
		v := *num[i] / *den[i]
		out[i] = &v
	}
}

// ratioFallback divides numCol by the first usable column of the
// denominator chain per row. The chosen field is recorded in the
// "<name>_denom" label column, and substitutions beyond the preferred
// field are counted and logged.
func (c *Calculator) ratioFallback(p *domain.Panel, name, numCol string, chain []string) {
	num, okN := p.Numeric(numCol)
	out := p.AddNumeric(name)
	denom := p.AddLabel(name + "_denom")
	if !okN || len(chain) == 0 {
		c.log.WithField("characteristic", name).Warn("missing input column, characteristic left empty")
		return
	}

	cols := make([][]*float64, 0, len(chain))
	names := make([]string, 0, len(chain))
	for _, field := range chain {
		if col, ok := p.Numeric(field); ok {
			cols = append(cols, col)
			names = append(names, field)
		}
	}
	if len(cols) == 0 {
		c.log.WithField("characteristic", name).Warn("no denominator column available")
		return
	}

	substituted := 0
	for i := range out {
		if num[i] == nil {
			continue
		}
		for j, col := range cols {
			if col[i] == nil || *col[i] == 0 {
				continue
			}
			v := *num[i] / *col[i]
			out[i] = &v
			denom[i] = names[j]
			if j > 0 {
				substituted++
			}
			break
		}
	}
	if substituted > 0 {
		c.log.WithFields(logrus.Fields{
			"characteristic": name,
			"observations":   substituted,
			"fallback":       names[len(names)-1],
		}).Warn("denominator fallback used")
	}
}

// leverage divides the first usable debt field by total assets.
func (c *Calculator) leverage(p *domain.Panel) {
	assets, okA := p.Numeric(domain.FieldTotalAssets)
	out := p.AddNumeric("leverage")
	numer := p.AddLabel("leverage_numer")
	if !okA {
		c.log.Warn("cannot compute leverage: missing total assets")
		return
	}
	substituted := 0
	for i := range out {
		if assets[i] == nil || *assets[i] == 0 {
			continue
		}
		for j, field := range c.cfg.Fallbacks.LeverageNumerator {
			col, ok := p.Numeric(field)
			if !ok || col[i] == nil {
				continue
			}
			v := *col[i] / *assets[i]
			out[i] = &v
			numer[i] = field
			if j > 0 {
				substituted++
			}
			break
		}
	}
	if substituted > 0 {
		c.log.WithFields(logrus.Fields{
			"characteristic": "leverage",
			"observations":   substituted,
		}).Warn("long-term debt substituted for total debt")
	}
}

// computeTurnover sets turnover = volume / shares_outstanding. Zero volume
// is a genuine observation and yields turnover 0, not missing.
func (c *Calculator) computeTurnover(p *domain.Panel) {
	vol, okV := p.Numeric(domain.FieldVolume)
	shares, okS := p.Numeric(domain.FieldSharesOutstanding)
	out := p.AddNumeric("turnover")
	if !okV || !okS {
		c.log.Warn("cannot compute turnover: missing volume or shares outstanding")
		return
	}
	for i := range out {
		if vol[i] == nil || shares[i] == nil || *shares[i] == 0 {
			continue
		}
		v := *vol[i] / *shares[i]
		out[i] = &v
	}
}

func (c *Calculator) computeDollarVolume(p *domain.Panel) {
	vol, okV := p.Numeric(domain.FieldVolume)
	price, okP := p.Numeric(domain.FieldClose)
	out := p.AddNumeric("dolvol")
	if !okV || !okP {
		c.log.Warn("cannot compute dollar volume: missing volume or close")
		return
	}
	for i := range out {
		if vol[i] == nil || price[i] == nil {
			continue
		}
		v := *vol[i] * *price[i]
		out[i] = &v
	}
}

// computeZeroTrade flags months with a reported volume of exactly zero.
func (c *Calculator) computeZeroTrade(p *domain.Panel) {
	vol, ok := p.Numeric(domain.FieldVolume)
	out := p.AddNumeric("zerotrade")
	if !ok {
		return
	}
	for i := range out {
		if vol[i] == nil {
			continue
		}
		v := 0.0
		if *vol[i] == 0 {
			v = 1.0
		}
		out[i] = &v
	}
}

// growth sets name to the periods-month relative change of col per entity.
func (c *Calculator) growth(p *domain.Panel, name, col string, periods int) {
	src, ok := p.Numeric(col)
	out := p.AddNumeric(name)
	if !ok {
		c.log.WithField("characteristic", name).Warn("missing input column, characteristic left empty")
		return
	}
	for _, entity := range p.Entities() {
		rows := p.EntityRows(entity)
		scatter(out, rows, window.PctChange(gather(src, rows), periods))
	}
}

// perEntity applies fn to the named source column entity by entity in
// ascending date order and writes the result into a new column.
func (c *Calculator) perEntity(p *domain.Panel, srcCol, dstCol string, fn func([]*float64) []*float64) {
	src, ok := p.Numeric(srcCol)
	out := p.AddNumeric(dstCol)
	if !ok {
		return
	}
	for _, entity := range p.Entities() {
		rows := p.EntityRows(entity)
		scatter(out, rows, fn(gather(src, rows)))
	}
}

// gather extracts the column values at rows, preserving order.
func gather(col []*float64, rows []int) []*float64 {
	out := make([]*float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}

// scatter writes values back to the column at rows.
func scatter(col []*float64, rows []int, values []*float64) {
	for i, r := range rows {
		col[r] = values[i]
	}
}
