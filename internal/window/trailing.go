// Package window computes trailing-window derived series over aligned
// monthly values. Every function walks its input strictly in ascending
// order and keeps missing-value semantics explicit: nil in, nil out, and a
// minimum-periods floor below which the output is nil rather than a value
// computed from a partial window.
package window

import "math"

// TrailingSum returns the sum of the trailing k values ending at each
// position. A value is emitted only when all k values in the window are
// present; a window with any missing period yields nil. Used for
// trailing-twelve-month flow statistics with k=4 quarters.
func TrailingSum(values []*float64, k int) []*float64 {
	out := make([]*float64, len(values))
	if k <= 0 {
		return out
	}
	for i := k - 1; i < len(values); i++ {
		sum := 0.0
		valid := true
		for j := i - k + 1; j <= i; j++ {
			if values[j] == nil {
				valid = false
				break
			}
			sum += *values[j]
		}
		if valid {
			v := sum
			out[i] = &v
		}
	}
	return out
}

// TrailingMean returns the mean of the trailing k values ending at each
// position, emitted only when all k are present. Used for balance-sheet
// stock averages with k=12 months.
func TrailingMean(values []*float64, k int) []*float64 {
	sums := TrailingSum(values, k)
	out := make([]*float64, len(values))
	for i, s := range sums {
		if s != nil {
			v := *s / float64(k)
			out[i] = &v
		}
	}
	return out
}

// Lag returns the value exactly l positions back, nil where the lagged
// position does not exist yet.
func Lag(values []*float64, l int) []*float64 {
	out := make([]*float64, len(values))
	if l < 0 {
		return out
	}
	for i := l; i < len(values); i++ {
		if values[i-l] != nil {
			v := *values[i-l]
			out[i] = &v
		}
	}
	return out
}

// PctChange returns (v[t] - v[t-p]) / v[t-p], nil when either endpoint is
// missing or the lagged value is zero.
func PctChange(values []*float64, periods int) []*float64 {
	out := make([]*float64, len(values))
	if periods <= 0 {
		return out
	}
	for i := periods; i < len(values); i++ {
		cur, prev := values[i], values[i-periods]
		if cur == nil || prev == nil || *prev == 0 {
			continue
		}
		v := (*cur - *prev) / *prev
		out[i] = &v
	}
	return out
}

// TrailingVariance returns the sample variance of the non-missing values in
// the trailing window ending at each position. Emitted only when the full
// window exists and at least minPeriods values are present.
func TrailingVariance(values []*float64, window, minPeriods int) []*float64 {
	out := make([]*float64, len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		var obs []float64
		for j := i - window + 1; j <= i; j++ {
			if values[j] != nil {
				obs = append(obs, *values[j])
			}
		}
		if len(obs) < minPeriods || len(obs) < 2 {
			continue
		}
		mean := 0.0
		for _, v := range obs {
			mean += v
		}
		mean /= float64(len(obs))
		ss := 0.0
		for _, v := range obs {
			d := v - mean
			ss += d * d
		}
		v := ss / float64(len(obs)-1)
		out[i] = &v
	}
	return out
}

// TrailingStdDev is the square root of TrailingVariance.
func TrailingStdDev(values []*float64, window, minPeriods int) []*float64 {
	vars := TrailingVariance(values, window, minPeriods)
	out := make([]*float64, len(values))
	for i, v := range vars {
		if v != nil {
			sd := math.Sqrt(*v)
			out[i] = &sd
		}
	}
	return out
}

// CompoundReturn returns product(1+r) - 1 over the trailing window of
// returns that ends skip positions back, e.g. window=11, skip=1 compounds
// the eleven months ending one month before t (the 12-1 momentum window).
// Missing returns inside the window are skipped in the product; the value
// is emitted only when the full window exists and at least minPeriods
// returns are present.
func CompoundReturn(values []*float64, window, skip, minPeriods int) []*float64 {
	out := make([]*float64, len(values))
	if window <= 0 || skip < 0 {
		return out
	}
	for i := window + skip - 1; i < len(values); i++ {
		prod := 1.0
		count := 0
		for j := i - skip - window + 1; j <= i-skip; j++ {
			if values[j] != nil {
				prod *= 1 + *values[j]
				count++
			}
		}
		if count < minPeriods {
			continue
		}
		v := prod - 1
		out[i] = &v
	}
	return out
}
