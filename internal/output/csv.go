// Package output persists the finished panel as CSV, Parquet and a
// metadata sidecar.
package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/michbru/PTrees/internal/domain"
)

const dateLayout = "2006-01-02"

// WriteCSV renders the panel to path: one row per (entity, month-end),
// numeric columns in panel insertion order, label columns last. Missing
// numeric cells render empty.
func WriteCSV(p *domain.Panel, path string) error {
	var sb strings.Builder

	numCols := p.NumericColumns()
	labelCols := p.LabelColumns()

	sb.WriteString("entity,date")
	for _, name := range numCols {
		sb.WriteString(",")
		sb.WriteString(name)
	}
	for _, name := range labelCols {
		sb.WriteString(",")
		sb.WriteString(name)
	}
	sb.WriteString("\n")

	for i, rk := range p.Rows() {
		sb.WriteString(rk.Entity)
		sb.WriteString(",")
		sb.WriteString(rk.Date.Format(dateLayout))
		for _, name := range numCols {
			col, _ := p.Numeric(name)
			sb.WriteString(",")
			if col[i] != nil {
				sb.WriteString(strconv.FormatFloat(*col[i], 'g', -1, 64))
			}
		}
		for _, name := range labelCols {
			col, _ := p.Label(name)
			sb.WriteString(",")
			sb.WriteString(col[i])
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write panel csv: %w", err)
	}
	return nil
}
