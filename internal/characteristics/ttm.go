package characteristics

import (
	"sort"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/window"
)

// ttmSources maps flow line items to their trailing-sum output fields.
var ttmSources = map[string]string{
	domain.FieldNetIncome:          "ni_ttm",
	domain.FieldRevenue:            "sales_ttm",
	domain.FieldOperatingIncome:    "oi_ttm",
	domain.FieldGrossProfit:        "gp_ttm",
	domain.FieldCashFromOperations: "cfo_ttm",
	domain.FieldCapEx:              "capex_ttm",
}

// TTMFields lists the derived trailing-twelve-month field names.
func TTMFields() []string {
	out := make([]string, 0, len(ttmSources))
	for _, t := range ttmSources {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BuildTTM derives trailing-twelve-month observations from raw fundamental
// reports, before monthly alignment so that the window counts reports, not
// calendar months. For an entity reporting quarterly, the TTM value at a
// report date is the sum of the trailing k quarterly values and is missing
// until k quarters exist. An entity reporting only annually already states
// yearly flows, so its annual value is carried through as the TTM directly.
func BuildTTM(obs []domain.RawObservation, k int) []domain.RawObservation {
	type key struct {
		entity string
		field  string
	}
	quarterly := make(map[key][]domain.RawObservation)
	annualOnly := make(map[key][]domain.RawObservation)

	for _, o := range obs {
		if _, flow := ttmSources[o.Field]; !flow {
			continue
		}
		gk := key{o.Entity, o.Field}
		switch o.Freq {
		case domain.FreqQuarterly:
			quarterly[gk] = append(quarterly[gk], o)
		case domain.FreqAnnual:
			annualOnly[gk] = append(annualOnly[gk], o)
		}
	}

	var out []domain.RawObservation

	for gk, reports := range quarterly {
		sort.Slice(reports, func(i, j int) bool { return reports[i].Date.Before(reports[j].Date) })
		values := make([]*float64, len(reports))
		for i := range reports {
			v := reports[i].Value
			values[i] = &v
		}
		sums := window.TrailingSum(values, k)
		for i, s := range sums {
			if s == nil {
				continue
			}
			out = append(out, domain.RawObservation{
				Entity:   gk.entity,
				Date:     reports[i].Date,
				Field:    ttmSources[gk.field],
				Value:    *s,
				Freq:     domain.FreqQuarterly,
				Currency: reports[i].Currency,
			})
		}
	}

	for gk, reports := range annualOnly {
		// Annual flows pass through only where no quarterly history exists.
		if _, hasQ := quarterly[gk]; hasQ {
			continue
		}
		for _, r := range reports {
			out = append(out, domain.RawObservation{
				Entity:   gk.entity,
				Date:     r.Date,
				Field:    ttmSources[gk.field],
				Value:    r.Value,
				Freq:     domain.FreqAnnual,
				Currency: r.Currency,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
