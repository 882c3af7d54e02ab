package characteristics

import (
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

// SectorLabel is the panel label column carrying the sector code.
const SectorLabel = "sector_code"

// industryAdjust adds a demeaned-within-sector variant (suffix _ia) for
// each listed characteristic: per month and sector, subtract the sector
// mean. A sector with a single member in a month, or rows without a sector
// code, map to 0 (no adjustment information). Returns the added column
// names.
func (c *Calculator) industryAdjust(p *domain.Panel, cols []string) []string {
	sectors, ok := p.Label(SectorLabel)
	if !ok {
		c.log.Warn("no sector codes on panel, skipping industry adjustment")
		return nil
	}

	var added []string
	for _, name := range cols {
		src, ok := p.Numeric(name)
		if !ok {
			continue
		}
		out := p.AddNumeric(name + "_ia")
		for _, d := range p.Dates() {
			adjustPeriod(p, d, src, out, sectors)
		}
		added = append(added, name+"_ia")
	}
	return added
}

func adjustPeriod(p *domain.Panel, date time.Time, src, out []*float64, sectors []string) {
	rows := p.DateRows(date)

	sum := make(map[string]float64)
	count := make(map[string]int)
	for _, i := range rows {
		if src[i] == nil || sectors[i] == "" {
			continue
		}
		sum[sectors[i]] += *src[i]
		count[sectors[i]]++
	}

	for _, i := range rows {
		if src[i] == nil {
			continue
		}
		var v float64
		if sectors[i] != "" && count[sectors[i]] > 1 {
			v = *src[i] - sum[sectors[i]]/float64(count[sectors[i]])
		}
		out[i] = &v
	}
}
