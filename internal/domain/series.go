package domain

import "time"

// MonthlySeries is one entity/field series reprojected onto the canonical
// month-end grid. Values[i] holds the value as of Months[i]; nil means no
// observation had been reported yet. Missing is represented by the nil
// pointer throughout the pipeline, never by zero, until the normalizer's
// final fill step.
type MonthlySeries struct {
	Entity string
	Field  string
	Months []time.Time
	Values []*float64
}

// At returns the value at the given month-end, or nil if the month is
// outside the grid or missing.
func (s *MonthlySeries) At(month time.Time) *float64 {
	for i, m := range s.Months {
		if m.Equal(month) {
			return s.Values[i]
		}
	}
	return nil
}

// FactorObservation is one row of the external risk-factor file. RiskFree is
// nil when the file has no rate for that month.
type FactorObservation struct {
	Date     time.Time // canonical month-end
	RiskFree *float64
	Factors  map[string]float64 // optional factor columns (mkt_rf, smb, hml, ...)
}
