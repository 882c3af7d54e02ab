package panel

import (
	"math"
	"time"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/fetch/stub"
)

// Fixtures is a deterministic synthetic dataset for demo runs and tests.
// Six Swedish-style entities over the sample range plus a 40-month warmup:
// one joins late, one is delisted halfway, one reports only annually, one
// has months of zero trading volume and one is missing total debt.
type Fixtures struct {
	Prices       *stub.PriceSource
	Fundamentals *stub.FundamentalsSource
	Industry     *stub.IndustrySource
	Membership   *stub.MembershipSource
	RiskFree     map[time.Time]float64
}

type fixtureEntity struct {
	id         string
	sector     string
	industry   string
	annualOnly bool
	noDebt     bool
	zeroVolume bool
	joinsAt    int // month offset into the sample, 0 = from the start
	leavesAt   int // month offset into the sample, 0 = never
}

var fixtureEntities = []fixtureEntity{
	{id: "SE0000101032", sector: "45", industry: "4510"},
	{id: "SE0000108656", sector: "45", industry: "4520", zeroVolume: true},
	{id: "SE0000163594", sector: "35", industry: "3520", noDebt: true},
	{id: "SE0000242455", sector: "35", industry: "3510", annualOnly: true},
	{id: "SE0000310336", sector: "40", industry: "4010", joinsAt: 12},
	{id: "SE0000412558", sector: "40", industry: "4020", leavesAt: 36},
}

// LoadFixtures builds the synthetic dataset covering [start, end] with
// enough history before start to warm every trailing window.
func LoadFixtures(start, end time.Time) *Fixtures {
	sample := domain.MonthEnds(start, end)
	warm := domain.MonthEnds(domain.AddMonths(start, -40), end)

	var priceObs, fundObs []domain.RawObservation
	var members []domain.UniverseMembership
	secs := make([]domain.Security, 0, len(fixtureEntities))

	for n, e := range fixtureEntities {
		secs = append(secs, domain.Security{
			Entity:       e.id,
			Name:         "Fixture " + e.id,
			SectorCode:   e.sector,
			IndustryCode: e.industry,
		})

		for i, m := range warm {
			priceObs = append(priceObs, fixturePrices(e, n, i, m)...)
			fundObs = append(fundObs, fixtureFundamentals(e, n, i, m)...)
		}

		for i, m := range sample {
			if i < e.joinsAt {
				continue
			}
			if e.leavesAt > 0 && i >= e.leavesAt {
				continue
			}
			members = append(members, domain.UniverseMembership{Date: m, Entity: e.id})
		}
	}

	rf := make(map[time.Time]float64, len(sample))
	for _, m := range sample {
		rf[m] = 0.0025
	}

	return &Fixtures{
		Prices:       stub.NewPriceSource(priceObs),
		Fundamentals: stub.NewFundamentalsSource(fundObs),
		Industry:     stub.NewIndustrySource(secs),
		Membership:   stub.NewMembershipSource(members),
		RiskFree:     rf,
	}
}

func fixturePrices(e fixtureEntity, n, i int, m time.Time) []domain.RawObservation {
	base := 40.0 + 8.0*float64(n)
	price := base + 0.4*float64(i) + 6.0*math.Sin(float64(i+n)/5.0)
	volume := 120000.0 + 15000.0*math.Sin(float64(i)/3.0+float64(n))
	if e.zeroVolume && i%9 == 0 {
		volume = 0
	}

	obs := make([]domain.RawObservation, 0, 3)
	for _, field := range []string{domain.FieldClose, domain.FieldAdjClose} {
		obs = append(obs, domain.RawObservation{
			Entity: e.id, Date: m, Field: field, Value: price,
			Freq: domain.FreqMonthly, Currency: "SEK",
		})
	}
	obs = append(obs, domain.RawObservation{
		Entity: e.id, Date: m, Field: domain.FieldVolume, Value: volume,
		Freq: domain.FreqMonthly, Currency: "SEK",
	})
	return obs
}

func fixtureFundamentals(e fixtureEntity, n, i int, m time.Time) []domain.RawObservation {
	freq := domain.FreqQuarterly
	if e.annualOnly {
		freq = domain.FreqAnnual
		if m.Month() != time.December {
			return nil
		}
	} else if m.Month()%3 != 0 {
		// Quarterly reporters file in March, June, September, December.
		return nil
	}

	assets := 5.0e9 + 4.0e7*float64(i) + 1.0e9*float64(n)
	equity := 0.42 * assets
	shares := 1.0e8 + 2.0e5*float64(i)
	niQ := 4.0e7 + 2.0e6*math.Sin(float64(i)/4.0+float64(n)) + 5.0e5*float64(i)
	revQ := 6.0 * niQ
	scale := 1.0
	if freq == domain.FreqAnnual {
		scale = 4.0 // annual flows already cover the year
	}

	values := map[string]float64{
		domain.FieldTotalAssets:        assets,
		domain.FieldShareholdersEquity: equity,
		domain.FieldSharesOutstanding:  shares,
		domain.FieldNetIncome:          niQ * scale,
		domain.FieldRevenue:            revQ * scale,
		domain.FieldOperatingIncome:    1.3 * niQ * scale,
		domain.FieldGrossProfit:        2.0 * niQ * scale,
		domain.FieldCashFromOperations: 1.1 * niQ * scale,
		domain.FieldCapEx:              0.5 * niQ * scale,
		domain.FieldLongTermDebt:       0.25 * assets,
	}
	if !e.noDebt {
		values[domain.FieldTotalDebt] = 0.35 * assets
	}

	obs := make([]domain.RawObservation, 0, len(values))
	for _, field := range domain.FundamentalFields {
		v, ok := values[field]
		if !ok {
			continue
		}
		obs = append(obs, domain.RawObservation{
			Entity: e.id, Date: m, Field: field, Value: v,
			Freq: freq, Currency: "SEK",
		})
	}
	return obs
}
