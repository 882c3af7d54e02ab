package characteristics

import (
	"math"
	"testing"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

func monthGrid(n int) []time.Time {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.MonthEnds(start, domain.AddMonths(start, n-1))
}

func gridPanel(entities []string, months []time.Time) *domain.Panel {
	var rows []domain.RowKey
	for _, e := range entities {
		for _, m := range months {
			rows = append(rows, domain.RowKey{Entity: e, Date: m})
		}
	}
	return domain.NewPanel(rows)
}

func fill(col []*float64, rows []int, v float64) {
	for _, r := range rows {
		vv := v
		col[r] = &vv
	}
}

func ptr(v float64) *float64 { return &v }

func TestCompute_MarketCapSizeAndReturns(t *testing.T) {
	months := monthGrid(3)
	p := gridPanel([]string{"A"}, months)
	rows := p.EntityRows("A")

	price := p.AddNumeric(domain.FieldAdjClose)
	for i, r := range rows {
		v := 100.0 * math.Pow(1.1, float64(i))
		price[r] = &v
	}
	fill(p.AddNumeric(domain.FieldSharesOutstanding), rows, 1e6)

	calc := NewCalculator(DefaultConfig(), nil)
	chars, err := calc.Compute(p)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(chars) == 0 || chars[0] != "size" {
		t.Fatalf("Expected size first in %v", chars)
	}

	mc, _ := p.Numeric("mkt_cap")
	if mc[rows[0]] == nil || *mc[rows[0]] != 1e8 {
		t.Errorf("Expected market cap 1e8, got %v", mc[rows[0]])
	}
	size, _ := p.Numeric("size")
	if size[rows[0]] == nil || math.Abs(*size[rows[0]]-math.Log(1e8)) > 1e-12 {
		t.Errorf("Expected log market cap, got %v", size[rows[0]])
	}

	ret, _ := p.Numeric("ret")
	if ret[rows[0]] != nil {
		t.Error("First month has no prior price, return must be missing")
	}
	if ret[rows[1]] == nil || math.Abs(*ret[rows[1]]-0.1) > 1e-12 {
		t.Errorf("Expected 10%% return, got %v", ret[rows[1]])
	}
}

func TestCompute_GuardedRatio(t *testing.T) {
	months := monthGrid(2)
	p := gridPanel([]string{"A"}, months)
	rows := p.EntityRows("A")

	mc := p.AddNumeric("mkt_cap")
	mc[rows[0]] = ptr(0) // zero denominator
	mc[rows[1]] = ptr(2e8)
	ni := p.AddNumeric("ni_ttm")
	fill(ni, rows, 1e7)

	calc := NewCalculator(DefaultConfig(), nil)
	if _, err := calc.Compute(p); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	ep, _ := p.Numeric("ep")
	if ep[rows[0]] != nil {
		t.Errorf("Zero market cap must yield missing ep, got %v", *ep[rows[0]])
	}
	if ep[rows[1]] == nil || *ep[rows[1]] != 0.05 {
		t.Errorf("Expected ep 0.05, got %v", ep[rows[1]])
	}
}

func TestCompute_RatioFallbackLabeled(t *testing.T) {
	months := monthGrid(2)
	p := gridPanel([]string{"A"}, months)
	rows := p.EntityRows("A")

	fill(p.AddNumeric("oi_ttm"), rows, 5e7)
	assets := p.AddNumeric(domain.FieldTotalAssets)
	assets[rows[0]] = ptr(1e9) // present first month, missing second
	fill(p.AddNumeric(domain.FieldShareholdersEquity), rows, 4e8)

	calc := NewCalculator(DefaultConfig(), nil)
	if _, err := calc.Compute(p); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	op, _ := p.Numeric("op_prof")
	labels, ok := p.Label("op_prof_denom")
	if !ok {
		t.Fatal("Expected op_prof_denom label column")
	}

	if op[rows[0]] == nil || *op[rows[0]] != 0.05 {
		t.Errorf("Expected preferred denominator ratio 0.05, got %v", op[rows[0]])
	}
	if labels[rows[0]] != domain.FieldTotalAssets {
		t.Errorf("Expected total_assets label, got %q", labels[rows[0]])
	}
	if op[rows[1]] == nil || *op[rows[1]] != 0.125 {
		t.Errorf("Expected fallback ratio 0.125, got %v", op[rows[1]])
	}
	if labels[rows[1]] != domain.FieldShareholdersEquity {
		t.Errorf("Expected shareholders_equity label, got %q", labels[rows[1]])
	}
}

func TestCompute_LeverageFallback(t *testing.T) {
	months := monthGrid(1)
	p := gridPanel([]string{"A"}, months)
	rows := p.EntityRows("A")

	fill(p.AddNumeric(domain.FieldTotalAssets), rows, 1e9)
	fill(p.AddNumeric(domain.FieldLongTermDebt), rows, 2e8)
	// total_debt column exists but is missing for this row.
	p.AddNumeric(domain.FieldTotalDebt)

	calc := NewCalculator(DefaultConfig(), nil)
	if _, err := calc.Compute(p); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	lev, _ := p.Numeric("leverage")
	labels, _ := p.Label("leverage_numer")
	if lev[rows[0]] == nil || *lev[rows[0]] != 0.2 {
		t.Errorf("Expected leverage 0.2 from long-term debt, got %v", lev[rows[0]])
	}
	if labels[rows[0]] != domain.FieldLongTermDebt {
		t.Errorf("Expected long_term_debt label, got %q", labels[rows[0]])
	}
}

func TestCompute_ZeroVolumeIsObservation(t *testing.T) {
	months := monthGrid(1)
	p := gridPanel([]string{"A"}, months)
	rows := p.EntityRows("A")

	fill(p.AddNumeric(domain.FieldVolume), rows, 0)
	fill(p.AddNumeric(domain.FieldClose), rows, 50)
	fill(p.AddNumeric(domain.FieldSharesOutstanding), rows, 1e6)

	calc := NewCalculator(DefaultConfig(), nil)
	if _, err := calc.Compute(p); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	turnover, _ := p.Numeric("turnover")
	if turnover[rows[0]] == nil || *turnover[rows[0]] != 0 {
		t.Errorf("Zero volume must yield turnover 0, got %v", turnover[rows[0]])
	}
	zt, _ := p.Numeric("zerotrade")
	if zt[rows[0]] == nil || *zt[rows[0]] != 1 {
		t.Errorf("Expected zerotrade flag 1, got %v", zt[rows[0]])
	}
	dolvol, _ := p.Numeric("dolvol")
	if dolvol[rows[0]] == nil || *dolvol[rows[0]] != 0 {
		t.Errorf("Expected dollar volume 0, got %v", dolvol[rows[0]])
	}
}

func TestCompute_Momentum(t *testing.T) {
	months := monthGrid(14)
	p := gridPanel([]string{"A"}, months)
	rows := p.EntityRows("A")

	price := p.AddNumeric(domain.FieldAdjClose)
	for i, r := range rows {
		v := 100.0 * math.Pow(1.01, float64(i))
		price[r] = &v
	}

	calc := NewCalculator(DefaultConfig(), nil)
	if _, err := calc.Compute(p); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	mom, _ := p.Numeric("mom_12_1")
	last := rows[len(rows)-1]
	// Eleven months of 1% compounded, skipping the most recent month.
	want := math.Pow(1.01, 11) - 1
	if mom[last] == nil || math.Abs(*mom[last]-want) > 1e-9 {
		t.Errorf("Expected 12-1 momentum %v, got %v", want, mom[last])
	}
}

func TestCompute_CharacteristicOrderStable(t *testing.T) {
	p := gridPanel([]string{"A"}, monthGrid(1))
	calc := NewCalculator(DefaultConfig(), nil)

	first, err := calc.Compute(p)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := calc.Compute(gridPanel([]string{"A"}, monthGrid(1)))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("Order changed between runs: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Position %d: %s vs %s", i, first[i], second[i])
		}
	}
	if first[len(first)-1] != "rvar_12m" {
		t.Errorf("Expected rvar_12m last, got %s", first[len(first)-1])
	}
}
