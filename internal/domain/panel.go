package domain

import (
	"fmt"
	"sort"
	"time"
)

// RowKey identifies one panel row.
type RowKey struct {
	Entity string
	Date   time.Time // canonical month-end
}

// Panel is the column-oriented (entity x date) table every pipeline stage
// reads and extends. Rows are fixed at construction and sorted by
// (entity, date); numeric columns hold *float64 where nil means missing,
// label columns hold strings (industry codes, fallback markers).
type Panel struct {
	rows     []RowKey
	index    map[RowKey]int
	byDate   map[time.Time][]int
	byEntity map[string][]int
	numeric  map[string][]*float64
	labels   map[string][]string
	order    []string // numeric column insertion order
}

// NewPanel builds a panel over the given rows. Rows are sorted by
// (entity, date); duplicates are kept and surfaced by Validate.
func NewPanel(rows []RowKey) *Panel {
	sorted := make([]RowKey, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Entity != sorted[j].Entity {
			return sorted[i].Entity < sorted[j].Entity
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	p := &Panel{
		rows:     sorted,
		index:    make(map[RowKey]int, len(sorted)),
		byDate:   make(map[time.Time][]int),
		byEntity: make(map[string][]int),
		numeric:  make(map[string][]*float64),
		labels:   make(map[string][]string),
	}
	for i, rk := range sorted {
		if _, exists := p.index[rk]; !exists {
			p.index[rk] = i
		}
		p.byDate[rk.Date] = append(p.byDate[rk.Date], i)
		p.byEntity[rk.Entity] = append(p.byEntity[rk.Entity], i)
	}
	return p
}

// Validate checks structural invariants that downstream normalization
// depends on: a non-empty panel, non-empty identity fields, and unique
// (entity, date) pairs. Violations are fatal to the run.
func (p *Panel) Validate() error {
	if len(p.rows) == 0 {
		return fmt.Errorf("panel validation: panel is empty")
	}
	for _, rk := range p.rows {
		if rk.Entity == "" {
			return fmt.Errorf("panel validation: row with empty entity at date %s", rk.Date.Format("2006-01-02"))
		}
		if rk.Date.IsZero() {
			return fmt.Errorf("panel validation: row with zero date for entity %s", rk.Entity)
		}
	}
	if len(p.index) != len(p.rows) {
		return fmt.Errorf("panel validation: %d duplicate (entity, date) rows", len(p.rows)-len(p.index))
	}
	return nil
}

// Len returns the number of rows.
func (p *Panel) Len() int { return len(p.rows) }

// Rows returns the row keys in (entity, date) order.
func (p *Panel) Rows() []RowKey { return p.rows }

// IndexOf returns the row index for a key.
func (p *Panel) IndexOf(rk RowKey) (int, bool) {
	i, ok := p.index[rk]
	return i, ok
}

// AddNumeric registers a numeric column filled with missing values and
// returns the backing slice for in-place writes. Re-adding an existing
// column returns the existing slice.
func (p *Panel) AddNumeric(name string) []*float64 {
	if col, ok := p.numeric[name]; ok {
		return col
	}
	col := make([]*float64, len(p.rows))
	p.numeric[name] = col
	p.order = append(p.order, name)
	return col
}

// Numeric returns a numeric column by name.
func (p *Panel) Numeric(name string) ([]*float64, bool) {
	col, ok := p.numeric[name]
	return col, ok
}

// HasNumeric reports whether a numeric column exists.
func (p *Panel) HasNumeric(name string) bool {
	_, ok := p.numeric[name]
	return ok
}

// NumericColumns returns numeric column names in insertion order.
func (p *Panel) NumericColumns() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// AddLabel registers a string column and returns the backing slice.
func (p *Panel) AddLabel(name string) []string {
	if col, ok := p.labels[name]; ok {
		return col
	}
	col := make([]string, len(p.rows))
	p.labels[name] = col
	return col
}

// Label returns a label column by name.
func (p *Panel) Label(name string) ([]string, bool) {
	col, ok := p.labels[name]
	return col, ok
}

// LabelColumns returns label column names sorted alphabetically.
func (p *Panel) LabelColumns() []string {
	out := make([]string, 0, len(p.labels))
	for name := range p.labels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dates returns the distinct panel dates in ascending order.
func (p *Panel) Dates() []time.Time {
	out := make([]time.Time, 0, len(p.byDate))
	for d := range p.byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// DateRows returns the row indices sharing the given date (one cross-section).
func (p *Panel) DateRows(date time.Time) []int { return p.byDate[date] }

// Entities returns the distinct entities in ascending order.
func (p *Panel) Entities() []string {
	out := make([]string, 0, len(p.byEntity))
	for e := range p.byEntity {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// EntityRows returns the row indices for one entity in ascending date order.
func (p *Panel) EntityRows(entity string) []int { return p.byEntity[entity] }

// Subset builds a new panel holding only the given rows, carrying every
// numeric and label column across. Row filters rebuild the panel through
// this rather than mutating in place.
func (p *Panel) Subset(keep []int) *Panel {
	rows := make([]RowKey, len(keep))
	for i, r := range keep {
		rows[i] = p.rows[r]
	}
	out := NewPanel(rows)

	for _, name := range p.order {
		src := p.numeric[name]
		dst := out.AddNumeric(name)
		for i, r := range keep {
			if idx, ok := out.IndexOf(rows[i]); ok {
				dst[idx] = src[r]
			}
		}
	}
	for name, src := range p.labels {
		dst := out.AddLabel(name)
		for i, r := range keep {
			if idx, ok := out.IndexOf(rows[i]); ok {
				dst[idx] = src[r]
			}
		}
	}
	return out
}
