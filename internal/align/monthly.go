// Package align reprojects irregular raw observations onto the canonical
// monthly calendar per entity.
package align

import (
	"sort"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

// report is one dated value after frequency reconciliation.
type report struct {
	date  time.Time
	value float64
	freq  domain.Frequency
}

// Monthly forward-fills fundamental observations onto the month-end grid.
// For each (entity, field), the aligned value at month-end m is the most
// recent report with effective date <= m. Quarterly observations take
// precedence over annual observations on the same effective date. Before
// the first report the value is missing; an entity with zero reports yields
// an all-missing series, which is valid.
//
// The returned map is keyed entity -> field -> series. Every series spans
// the full grid.
func Monthly(obs []domain.RawObservation, months []time.Time) map[string]map[string]*domain.MonthlySeries {
	grouped := groupReports(obs)

	out := make(map[string]map[string]*domain.MonthlySeries)
	for entity, fields := range grouped {
		out[entity] = make(map[string]*domain.MonthlySeries, len(fields))
		for field, reports := range fields {
			out[entity][field] = forwardFill(entity, field, reports, months)
		}
	}
	return out
}

// Snap maps already-regular observations (monthly prices/volumes) onto the
// grid without forward-filling: the value at month-end m is the latest
// observation dated within m's month, missing if none. A stale price must
// not masquerade as a current one, so gaps stay gaps.
func Snap(obs []domain.RawObservation, months []time.Time) map[string]map[string]*domain.MonthlySeries {
	type key struct {
		entity string
		field  string
	}
	latest := make(map[key]map[time.Time]domain.RawObservation)
	for _, o := range obs {
		k := key{o.Entity, o.Field}
		if latest[k] == nil {
			latest[k] = make(map[time.Time]domain.RawObservation)
		}
		m := domain.MonthEnd(o.Date)
		if prev, ok := latest[k][m]; !ok || o.Date.After(prev.Date) {
			latest[k][m] = o
		}
	}

	out := make(map[string]map[string]*domain.MonthlySeries)
	for k, byMonth := range latest {
		if out[k.entity] == nil {
			out[k.entity] = make(map[string]*domain.MonthlySeries)
		}
		s := &domain.MonthlySeries{
			Entity: k.entity,
			Field:  k.field,
			Months: months,
			Values: make([]*float64, len(months)),
		}
		for i, m := range months {
			if o, ok := byMonth[m]; ok {
				v := o.Value
				s.Values[i] = &v
			}
		}
		out[k.entity][k.field] = s
	}
	return out
}

// groupReports buckets observations by entity and field, reconciling
// same-month duplicates: a quarterly report beats an annual one, and within
// one frequency the latest effective date wins, so a within-month
// restatement supersedes the original filing regardless of input order.
func groupReports(obs []domain.RawObservation) map[string]map[string][]report {
	type key struct {
		entity string
		field  string
		date   time.Time
	}
	type candidate struct {
		report
		filed time.Time
	}
	chosen := make(map[key]candidate)
	for _, o := range obs {
		k := key{o.Entity, o.Field, domain.MonthEnd(o.Date)}
		c := candidate{
			report: report{date: domain.MonthEnd(o.Date), value: o.Value, freq: o.Freq},
			filed:  o.Date,
		}
		prev, ok := chosen[k]
		switch {
		case !ok:
			chosen[k] = c
		case prev.freq == domain.FreqAnnual && o.Freq == domain.FreqQuarterly:
			chosen[k] = c
		case prev.freq == domain.FreqQuarterly && o.Freq == domain.FreqAnnual:
			// quarterly keeps precedence
		case o.Date.After(prev.filed):
			chosen[k] = c
		}
	}

	out := make(map[string]map[string][]report)
	for k, c := range chosen {
		if out[k.entity] == nil {
			out[k.entity] = make(map[string][]report)
		}
		out[k.entity][k.field] = append(out[k.entity][k.field], c.report)
	}
	for _, fields := range out {
		for _, reports := range fields {
			sort.Slice(reports, func(i, j int) bool { return reports[i].date.Before(reports[j].date) })
		}
	}
	return out
}

// forwardFill walks the grid and the sorted reports in lockstep. No report
// with an effective date after the grid date is ever used.
func forwardFill(entity, field string, reports []report, months []time.Time) *domain.MonthlySeries {
	s := &domain.MonthlySeries{
		Entity: entity,
		Field:  field,
		Months: months,
		Values: make([]*float64, len(months)),
	}

	next := 0
	var last *float64
	for i, m := range months {
		for next < len(reports) && !reports[next].date.After(m) {
			v := reports[next].value
			last = &v
			next++
		}
		if last != nil {
			v := *last
			s.Values[i] = &v
		}
	}
	return s
}
