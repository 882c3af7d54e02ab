package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

func onePeriodPanel(t *testing.T, values []*float64) (*domain.Panel, []*float64) {
	t.Helper()
	d := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	rows := make([]domain.RowKey, len(values))
	for i := range values {
		rows[i] = domain.RowKey{Entity: string(rune('A' + i)), Date: d}
	}
	p := domain.NewPanel(rows)
	col := p.AddNumeric("x")
	copy(col, values)
	return p, col
}

func ptr(v float64) *float64 { return &v }

func TestPanel_MinMaxBoundsAndFill(t *testing.T) {
	p, col := onePeriodPanel(t, []*float64{
		ptr(1), ptr(2), ptr(3), ptr(4), ptr(5), ptr(6), nil,
	})

	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}

	for i, v := range col {
		if v == nil {
			t.Fatalf("Row %d still missing after fill", i)
		}
		if *v < -1 || *v > 1 {
			t.Errorf("Row %d out of [-1,1]: %v", i, *v)
		}
	}
	// The missing cell was filled with the neutral constant after rescaling.
	if *col[6] != 0 {
		t.Errorf("Expected neutral fill 0, got %v", *col[6])
	}
	// Extremes map to the interval endpoints.
	if *col[0] != -1 || *col[5] != 1 {
		t.Errorf("Expected endpoints -1 and 1, got %v and %v", *col[0], *col[5])
	}
}

func TestPanel_WinsorizeClipsOutlier(t *testing.T) {
	// Two hundred ordinary values and one far outlier. After 1%/99%
	// winsorization and minmax, the outlier must not crush the rest of the
	// period onto a single point.
	values := make([]*float64, 0, 201)
	for i := 1; i <= 200; i++ {
		values = append(values, ptr(float64(i)))
	}
	values = append(values, ptr(1e9))
	p, col := onePeriodPanel(t, values)

	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}

	// Without winsorization the ordinary values would all land within
	// ~4e-7 of -1. Clipped, they spread over the whole interval.
	spread := *col[199] - *col[0]
	if spread < 0.5 {
		t.Errorf("Outlier crushed the period: spread %v", spread)
	}
}

func TestPanel_WinsorizeSkippedBelowMinObs(t *testing.T) {
	p, col := onePeriodPanel(t, []*float64{ptr(1), ptr(100), ptr(2), nil})

	cfg := DefaultConfig()
	cfg.MinWinsorObs = 5
	if err := Panel(p, []string{"x"}, cfg); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}

	// Three valid observations: winsorization skipped, rescale still runs.
	if *col[1] != 1 {
		t.Errorf("Expected untouched max to map to 1, got %v", *col[1])
	}
}

func TestPanel_MinMaxReapplyWithoutClippingIsIdentity(t *testing.T) {
	p, col := onePeriodPanel(t, []*float64{
		ptr(3), ptr(10), ptr(25), ptr(40), ptr(70), ptr(100), nil,
	})

	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}
	first := make([]float64, len(col))
	for i, v := range col {
		first[i] = *v
	}

	// With the clip percentiles widened to the full range, winsorization is
	// a no-op and a second pass maps [-1, 1] onto itself.
	cfg := DefaultConfig()
	cfg.LowerPct = 0
	cfg.UpperPct = 1
	if err := Panel(p, []string{"x"}, cfg); err != nil {
		t.Fatalf("Second Panel failed: %v", err)
	}
	for i, v := range col {
		if math.Abs(*v-first[i]) > 1e-12 {
			t.Errorf("Row %d changed on re-apply: %v -> %v", i, first[i], *v)
		}
	}
}

func TestPanel_MinMaxReapplyWithClippingShiftsInterior(t *testing.T) {
	p, col := onePeriodPanel(t, []*float64{
		ptr(3), ptr(10), ptr(25), ptr(40), ptr(70), ptr(100),
	})

	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}
	first := make([]float64, len(col))
	for i, v := range col {
		first[i] = *v
	}

	// Default percentiles re-clip the [-1, 1] endpoints inward, so a second
	// full pass moves interior values. Bounds still hold.
	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Second Panel failed: %v", err)
	}
	moved := false
	for i, v := range col {
		if *v < -1 || *v > 1 {
			t.Errorf("Row %d out of [-1,1] after re-apply: %v", i, *v)
		}
		if math.Abs(*v-first[i]) > 1e-9 {
			moved = true
		}
	}
	if !moved {
		t.Error("Expected interior values to shift under repeated clipping")
	}
}

func TestPanel_DegeneratePeriodMapsToZero(t *testing.T) {
	p, col := onePeriodPanel(t, []*float64{ptr(7), ptr(7), ptr(7), ptr(7), ptr(7)})

	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}
	for i, v := range col {
		if *v != 0 {
			t.Errorf("Row %d: degenerate period should map to 0, got %v", i, *v)
		}
	}
}

func TestPanel_ZScore(t *testing.T) {
	p, col := onePeriodPanel(t, []*float64{ptr(1), ptr(2), ptr(3), ptr(4), ptr(5)})

	cfg := DefaultConfig()
	cfg.Method = MethodZScore
	if err := Panel(p, []string{"x"}, cfg); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}

	mean := 0.0
	for _, v := range col {
		mean += *v
	}
	mean /= float64(len(col))
	if math.Abs(mean) > 1e-12 {
		t.Errorf("Expected zero mean, got %v", mean)
	}
}

func TestPanel_PeriodsNormalizedIndependently(t *testing.T) {
	jan := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel([]domain.RowKey{
		{Entity: "A", Date: jan}, {Entity: "B", Date: jan},
		{Entity: "A", Date: feb}, {Entity: "B", Date: feb},
	})
	col := p.AddNumeric("x")
	// January spans 1..2, February spans 100..200. Shared scaling would
	// push all January values to the bottom of the interval.
	for i, rk := range p.Rows() {
		switch {
		case rk.Date.Equal(jan) && rk.Entity == "A":
			col[i] = ptr(1)
		case rk.Date.Equal(jan):
			col[i] = ptr(2)
		case rk.Entity == "A":
			col[i] = ptr(100)
		default:
			col[i] = ptr(200)
		}
	}

	if err := Panel(p, []string{"x"}, DefaultConfig()); err != nil {
		t.Fatalf("Panel failed: %v", err)
	}
	for i := range col {
		if *col[i] != -1 && *col[i] != 1 {
			t.Errorf("Row %d: expected endpoint of its own period, got %v", i, *col[i])
		}
	}
}

func TestPanel_UnknownMethod(t *testing.T) {
	p, _ := onePeriodPanel(t, []*float64{ptr(1)})
	cfg := DefaultConfig()
	cfg.Method = "rank"
	if err := Panel(p, []string{"x"}, cfg); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func TestPanel_MissingColumn(t *testing.T) {
	p, _ := onePeriodPanel(t, []*float64{ptr(1)})
	if err := Panel(p, []string{"nope"}, DefaultConfig()); err == nil {
		t.Error("Expected error for unknown column")
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	cases := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{1, 4},
		{0.5, 2.5},
		{0.25, 1.75},
	}
	for _, c := range cases {
		if got := Quantile(sorted, c.q); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("Quantile(%v) = %v, want %v", c.q, got, c.want)
		}
	}
	if got := Quantile(nil, 0.5); got != 0 {
		t.Errorf("Quantile of empty slice = %v, want 0", got)
	}
	if got := Quantile([]float64{9}, 0.5); got != 9 {
		t.Errorf("Quantile of single value = %v, want 9", got)
	}
}
