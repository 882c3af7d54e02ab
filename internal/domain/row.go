package domain

import "time"

// PanelRow is one flattened (entity, month-end) row of a finished panel,
// the shape the panel stores persist. Values holds only the cells that are
// present; a finished panel has been through the fill step, so every
// characteristic cell is set.
type PanelRow struct {
	Entity string
	Date   time.Time
	Values map[string]float64
	Labels map[string]string
}

// Flatten converts the panel to one PanelRow per (entity, date), keeping
// only non-missing numeric cells.
func (p *Panel) Flatten() []*PanelRow {
	out := make([]*PanelRow, len(p.rows))
	for i, rk := range p.rows {
		row := &PanelRow{
			Entity: rk.Entity,
			Date:   rk.Date,
			Values: make(map[string]float64),
			Labels: make(map[string]string),
		}
		for _, name := range p.order {
			if v := p.numeric[name][i]; v != nil {
				row.Values[name] = *v
			}
		}
		for name, col := range p.labels {
			if col[i] != "" {
				row.Labels[name] = col[i]
			}
		}
		out[i] = row
	}
	return out
}
