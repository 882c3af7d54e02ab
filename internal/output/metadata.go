package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/michbru/PTrees/internal/characteristics"
	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/panel"
)

// NormalizeSettings records the cross-sectional transform applied to the
// panel. Two runs with equal settings over equal inputs produce equal values.
type NormalizeSettings struct {
	Method       string  `json:"method"`
	WinsorLower  float64 `json:"winsor_lower_pct"`
	WinsorUpper  float64 `json:"winsor_upper_pct"`
	FillValue    float64 `json:"fill_value"`
	MinWinsorObs int     `json:"min_winsor_obs"`
}

// Metadata describes one finished panel so downstream consumers can check
// what they are loading, and under which settings it was produced, without
// parsing the data files.
type Metadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	Start           string    `json:"start"`
	End             string    `json:"end"`
	Rows            int       `json:"rows"`
	Entities        int       `json:"entities"`
	Months          int       `json:"months"`
	NumericColumns  []string  `json:"numeric_columns"`
	LabelColumns    []string  `json:"label_columns"`
	Characteristics []string  `json:"characteristics"`

	Normalize NormalizeSettings         `json:"normalize"`
	Windows   characteristics.Windows   `json:"windows"`
	Fallbacks characteristics.Fallbacks `json:"fallbacks"`

	DroppedNoPrice   int `json:"dropped_no_market_cap"`
	DroppedSparse    int `json:"dropped_sparse"`
	MembershipErrors int `json:"membership_errors"`
	FailedBatches    int `json:"failed_batches"`
}

// NewMetadata collects panel shape, run counters and the run configuration
// into a sidecar record.
func NewMetadata(p *domain.Panel, report *panel.Report, cfg panel.Config) *Metadata {
	dates := p.Dates()
	md := &Metadata{
		GeneratedAt:     time.Now().UTC(),
		Rows:            p.Len(),
		Entities:        len(p.Entities()),
		Months:          len(dates),
		NumericColumns:  p.NumericColumns(),
		LabelColumns:    p.LabelColumns(),
		Characteristics: report.Characteristics,

		Normalize: NormalizeSettings{
			Method:       string(cfg.Normalize.Method),
			WinsorLower:  cfg.Normalize.LowerPct,
			WinsorUpper:  cfg.Normalize.UpperPct,
			FillValue:    cfg.Normalize.FillValue,
			MinWinsorObs: cfg.Normalize.MinWinsorObs,
		},
		Windows:   cfg.Characteristics.Windows,
		Fallbacks: cfg.Characteristics.Fallbacks,

		DroppedNoPrice:   report.DroppedNoPrice,
		DroppedSparse:    report.DroppedSparse,
		MembershipErrors: report.MembershipErrors,
		FailedBatches:    report.FailedBatches,
	}
	if len(dates) > 0 {
		md.Start = dates[0].Format(dateLayout)
		md.End = dates[len(dates)-1].Format(dateLayout)
	}
	return md
}

// WriteMetadata writes the sidecar as indented JSON.
func WriteMetadata(md *Metadata, path string) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
