// Package normalize winsorizes, rescales and neutral-fills characteristic
// columns cross-sectionally, one calendar period at a time.
package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/michbru/PTrees/internal/domain"
)

// Method selects the rescaling scheme.
type Method string

const (
	// MethodMinMax rescales each period to [-1, 1].
	MethodMinMax Method = "minmax"
	// MethodZScore standardizes each period to mean 0, unit variance.
	MethodZScore Method = "zscore"
)

// Config controls the cross-sectional transform.
type Config struct {
	LowerPct     float64 // winsorization lower percentile
	UpperPct     float64 // winsorization upper percentile
	Method       Method
	FillValue    float64 // neutral constant for the final fill
	MinWinsorObs int     // skip winsorization below this many valid observations
}

// DefaultConfig returns the production defaults: 1%/99% winsorization,
// min-max to [-1, 1], neutral fill 0.
func DefaultConfig() Config {
	return Config{
		LowerPct:     0.01,
		UpperPct:     0.99,
		Method:       MethodMinMax,
		FillValue:    0.0,
		MinWinsorObs: 5,
	}
}

// Panel normalizes the named columns of p in place. Within every period the
// order is mandatory: winsorize first (rescaling a period that still holds
// extreme outliers would compress the bulk of the distribution), rescale
// second, and neutral-fill last so that winsorization percentiles are
// computed only from genuine observations. After Panel returns, every named
// column is free of missing values and, under minmax, bounded by [-1, 1].
//
// Panel runs once per assembly. Re-applying it clips the rescaled endpoints
// back to the interior percentiles and shifts interior values; it is an
// identity on already-rescaled values only when LowerPct is 0 and UpperPct
// is 1.
func Panel(p *domain.Panel, cols []string, cfg Config) error {
	if cfg.Method != MethodMinMax && cfg.Method != MethodZScore {
		return fmt.Errorf("normalize: unknown method %q", cfg.Method)
	}
	if cfg.LowerPct < 0 || cfg.UpperPct > 1 || cfg.LowerPct >= cfg.UpperPct {
		return fmt.Errorf("normalize: invalid percentiles [%v, %v]", cfg.LowerPct, cfg.UpperPct)
	}

	dates := p.Dates()
	for _, name := range cols {
		col, ok := p.Numeric(name)
		if !ok {
			return fmt.Errorf("normalize: column %q not in panel", name)
		}
		for _, d := range dates {
			idx := p.DateRows(d)
			winsorize(col, idx, cfg.LowerPct, cfg.UpperPct, cfg.MinWinsorObs)
			switch cfg.Method {
			case MethodMinMax:
				rescaleMinMax(col, idx)
			case MethodZScore:
				rescaleZScore(col, idx)
			}
		}
		for i := range col {
			if col[i] == nil {
				v := cfg.FillValue
				col[i] = &v
			}
		}
	}
	return nil
}

// winsorize clips the valid values at rows idx to the [lo, hi] empirical
// percentiles of those values. Skipped when fewer than minObs valid
// observations exist in the period.
func winsorize(col []*float64, idx []int, lo, hi float64, minObs int) {
	valid := collect(col, idx)
	if len(valid) < minObs {
		return
	}
	sort.Float64s(valid)
	qLo := Quantile(valid, lo)
	qHi := Quantile(valid, hi)
	for _, i := range idx {
		if col[i] == nil {
			continue
		}
		if *col[i] < qLo {
			v := qLo
			col[i] = &v
		} else if *col[i] > qHi {
			v := qHi
			col[i] = &v
		}
	}
}

// rescaleMinMax maps the valid values at rows idx onto [-1, 1]. A
// degenerate period (max == min) maps every valid value to exactly 0.
// Fewer than 2 valid observations: skipped.
func rescaleMinMax(col []*float64, idx []int) {
	valid := collect(col, idx)
	if len(valid) < 2 {
		return
	}
	minV, maxV := valid[0], valid[0]
	for _, v := range valid[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	for _, i := range idx {
		if col[i] == nil {
			continue
		}
		var v float64
		if maxV == minV {
			v = 0
		} else {
			v = 2*(*col[i]-minV)/(maxV-minV) - 1
		}
		col[i] = &v
	}
}

// rescaleZScore standardizes the valid values at rows idx to mean 0 and
// unit variance. Zero variance maps every valid value to 0.
func rescaleZScore(col []*float64, idx []int) {
	valid := collect(col, idx)
	if len(valid) < 2 {
		return
	}
	mean := 0.0
	for _, v := range valid {
		mean += v
	}
	mean /= float64(len(valid))
	ss := 0.0
	for _, v := range valid {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(valid)-1))
	for _, i := range idx {
		if col[i] == nil {
			continue
		}
		var v float64
		if std > 0 {
			v = (*col[i] - mean) / std
		}
		col[i] = &v
	}
}

// Quantile returns the q-th empirical quantile of sorted values using
// linear interpolation between order statistics.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func collect(col []*float64, idx []int) []float64 {
	var out []float64
	for _, i := range idx {
		if col[i] != nil {
			out = append(out, *col[i])
		}
	}
	return out
}
