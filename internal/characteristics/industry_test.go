package characteristics

import (
	"math"
	"testing"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

func TestIndustryAdjust_DemeansWithinSector(t *testing.T) {
	d := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel([]domain.RowKey{
		{Entity: "A", Date: d},
		{Entity: "B", Date: d},
		{Entity: "C", Date: d},
		{Entity: "D", Date: d},
	})
	col := p.AddNumeric("size")
	for i, v := range []float64{10, 20, 5, 0} {
		vv := v
		col[i] = &vv
	}
	sectors := p.AddLabel(SectorLabel)
	sectors[0], sectors[1] = "45", "45"
	sectors[2] = "35" // single member
	sectors[3] = ""   // no classification

	calc := NewCalculator(DefaultConfig(), nil)
	added := calc.industryAdjust(p, []string{"size"})

	if len(added) != 1 || added[0] != "size_ia" {
		t.Fatalf("Expected [size_ia], got %v", added)
	}
	ia, _ := p.Numeric("size_ia")

	// Sector 45 mean is 15: A maps to -5, B to +5.
	if ia[0] == nil || *ia[0] != -5 {
		t.Errorf("Expected -5, got %v", ia[0])
	}
	if ia[1] == nil || *ia[1] != 5 {
		t.Errorf("Expected 5, got %v", ia[1])
	}
	// Single-member sector carries no adjustment information.
	if ia[2] == nil || *ia[2] != 0 {
		t.Errorf("Expected 0 for singleton sector, got %v", ia[2])
	}
	// Unclassified rows map to 0 as well.
	if ia[3] == nil || *ia[3] != 0 {
		t.Errorf("Expected 0 for unclassified row, got %v", ia[3])
	}
}

func TestIndustryAdjust_PerMonth(t *testing.T) {
	jan := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel([]domain.RowKey{
		{Entity: "A", Date: jan}, {Entity: "B", Date: jan},
		{Entity: "A", Date: feb}, {Entity: "B", Date: feb},
	})
	col := p.AddNumeric("bm")
	sectors := p.AddLabel(SectorLabel)
	for i, rk := range p.Rows() {
		sectors[i] = "45"
		var v float64
		if rk.Date.Equal(jan) {
			v = 1 // January: both 1, adjusted 0
		} else if rk.Entity == "A" {
			v = 2 // February: 2 and 4, adjusted -1 and +1
		} else {
			v = 4
		}
		col[i] = &v
	}

	calc := NewCalculator(DefaultConfig(), nil)
	calc.industryAdjust(p, []string{"bm"})
	ia, _ := p.Numeric("bm_ia")

	for i, rk := range p.Rows() {
		var want float64
		if rk.Date.Equal(feb) {
			want = 1
			if rk.Entity == "A" {
				want = -1
			}
		}
		if ia[i] == nil || math.Abs(*ia[i]-want) > 1e-12 {
			t.Errorf("Row %d (%s %s): expected %v, got %v", i, rk.Entity, rk.Date.Format("2006-01"), want, ia[i])
		}
	}
}

func TestIndustryAdjust_MissingSectorColumn(t *testing.T) {
	d := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel([]domain.RowKey{{Entity: "A", Date: d}})
	p.AddNumeric("size")

	calc := NewCalculator(DefaultConfig(), nil)
	if added := calc.industryAdjust(p, []string{"size"}); added != nil {
		t.Errorf("Expected no columns without sector codes, got %v", added)
	}
}

func TestCompute_IndustryAdjustedVariants(t *testing.T) {
	d := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel([]domain.RowKey{
		{Entity: "A", Date: d}, {Entity: "B", Date: d},
	})
	mc := p.AddNumeric("mkt_cap")
	for i, v := range []float64{1e8, 2e8} {
		vv := v
		mc[i] = &vv
	}
	sectors := p.AddLabel(SectorLabel)
	sectors[0], sectors[1] = "45", "45"

	cfg := DefaultConfig()
	cfg.IndustryAdjust = true
	cfg.IndustryAdjustCols = []string{"size"}

	chars, err := NewCalculator(cfg, nil).Compute(p)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	found := false
	for _, name := range chars {
		if name == "size_ia" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected size_ia in %v", chars)
	}
}
