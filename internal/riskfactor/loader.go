// Package riskfactor loads the monthly risk-free rate and factor return
// series used to compute excess returns.
package riskfactor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/michbru/PTrees/internal/domain"
)

// dateColumn and rfColumn are the two required CSV columns; any further
// columns are treated as factor returns keyed by their header name.
const (
	dateColumn = "date"
	rfColumn   = "rf"
)

// Loader parses factor CSV files.
type Loader struct {
	log *logrus.Entry
}

// NewLoader creates a loader.
func NewLoader(log *logrus.Entry) *Loader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{log: log.WithField("component", "riskfactor")}
}

// LoadFile reads a factor CSV from disk.
func (l *Loader) LoadFile(path string) ([]domain.FactorObservation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open factor file: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load parses a factor CSV. Dates are normalized to canonical month-ends;
// an empty risk-free cell is a missing value, left nil for the caller to
// decide on. Duplicate months are an error.
func (l *Loader) Load(r io.Reader) ([]domain.FactorObservation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read factor header: %w", err)
	}

	dateIdx, rfIdx := -1, -1
	factorCols := make(map[int]string)
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case dateColumn:
			dateIdx = i
		case rfColumn:
			rfIdx = i
		default:
			factorCols[i] = strings.ToLower(strings.TrimSpace(name))
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("factor file missing %q column", dateColumn)
	}
	if rfIdx < 0 {
		return nil, fmt.Errorf("factor file missing %q column", rfColumn)
	}

	var out []domain.FactorObservation
	seen := make(map[time.Time]bool)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read factor line %d: %w", line, err)
		}

		d, err := parseMonth(record[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("factor line %d: %w", line, err)
		}
		if seen[d] {
			return nil, fmt.Errorf("factor line %d: duplicate month %s", line, d.Format("2006-01"))
		}
		seen[d] = true

		obs := domain.FactorObservation{Date: d, Factors: make(map[string]float64)}
		if rf, ok, err := parseCell(record[rfIdx]); err != nil {
			return nil, fmt.Errorf("factor line %d: rf: %w", line, err)
		} else if ok {
			obs.RiskFree = &rf
		}
		for i, name := range factorCols {
			if i >= len(record) {
				continue
			}
			if v, ok, err := parseCell(record[i]); err != nil {
				return nil, fmt.Errorf("factor line %d: %s: %w", line, name, err)
			} else if ok {
				obs.Factors[name] = v
			}
		}
		out = append(out, obs)
	}

	l.log.WithField("months", len(out)).Info("loaded factor series")
	return out, nil
}

// RiskFreeByMonth indexes the series by month-end. Months with a missing
// risk-free rate map to 0, so excess returns degrade to raw returns there.
func RiskFreeByMonth(obs []domain.FactorObservation) map[time.Time]float64 {
	out := make(map[time.Time]float64, len(obs))
	for _, o := range obs {
		if o.RiskFree != nil {
			out[o.Date] = *o.RiskFree
		} else {
			out[o.Date] = 0
		}
	}
	return out
}

// parseMonth accepts YYYY-MM or YYYY-MM-DD and snaps to the month-end.
func parseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "200601"} {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.MonthEnd(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseCell(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
