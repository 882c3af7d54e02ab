package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/michbru/PTrees/internal/characteristics"
	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/normalize"
	"github.com/michbru/PTrees/internal/panel"
)

func testPanel() *domain.Panel {
	jan := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel([]domain.RowKey{
		{Entity: "SE0000101032", Date: jan},
		{Entity: "SE0000101032", Date: feb},
		{Entity: "SE0000108656", Date: jan},
	})

	size := p.AddNumeric("size")
	bm := p.AddNumeric("bm")
	for i, v := range []float64{14.2, 14.3, 12.5} {
		vv := v
		size[i] = &vv
	}
	one := 0.5
	bm[2] = &one // first two rows stay missing

	sector := p.AddLabel("sector_code")
	for i := range sector {
		sector[i] = "45"
	}
	return p
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.csv")
	if err := WriteCSV(testPanel(), path); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "entity,date,size,bm,sector_code" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if lines[1] != "SE0000101032,2020-01-31,14.2,,45" {
		t.Errorf("Unexpected first row: %s", lines[1])
	}
	if lines[3] != "SE0000108656,2020-01-31,12.5,0.5,45" {
		t.Errorf("Unexpected third row: %s", lines[3])
	}
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.parquet")
	if err := WriteParquet(testPanel(), path); err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("Open parquet failed: %v", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		t.Fatalf("Read parquet schema failed: %v", err)
	}
	defer pr.ReadStop()

	if got := pr.GetNumRows(); got != 3 {
		t.Errorf("Expected 3 parquet rows, got %d", got)
	}
}

func TestWriteMetadata(t *testing.T) {
	p := testPanel()
	report := &panel.Report{
		Characteristics: []string{"size", "bm"},
		DroppedSparse:   2,
	}
	cfg := panel.Config{
		Characteristics: characteristics.DefaultConfig(),
		Normalize:       normalize.DefaultConfig(),
	}

	path := filepath.Join(t.TempDir(), "panel_meta.json")
	if err := WriteMetadata(NewMetadata(p, report, cfg), path); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if md.Rows != 3 || md.Entities != 2 || md.Months != 2 {
		t.Errorf("Unexpected shape: rows=%d entities=%d months=%d", md.Rows, md.Entities, md.Months)
	}
	if md.Start != "2020-01-31" || md.End != "2020-02-29" {
		t.Errorf("Unexpected range %s..%s", md.Start, md.End)
	}
	if md.DroppedSparse != 2 {
		t.Errorf("Expected 2 sparse drops, got %d", md.DroppedSparse)
	}
	if len(md.Characteristics) != 2 {
		t.Errorf("Expected 2 characteristics, got %v", md.Characteristics)
	}

	// The settings the panel values depend on travel with the artifact.
	if md.Normalize.Method != "minmax" {
		t.Errorf("Expected method minmax, got %q", md.Normalize.Method)
	}
	if md.Normalize.WinsorLower != 0.01 || md.Normalize.WinsorUpper != 0.99 {
		t.Errorf("Unexpected winsor percentiles [%v, %v]", md.Normalize.WinsorLower, md.Normalize.WinsorUpper)
	}
	if md.Normalize.FillValue != 0 || md.Normalize.MinWinsorObs != 5 {
		t.Errorf("Unexpected fill settings: fill=%v min_obs=%d", md.Normalize.FillValue, md.Normalize.MinWinsorObs)
	}
	if md.Windows.TTMQuarters != 4 || md.Windows.Mom121Window != 11 {
		t.Errorf("Unexpected windows: ttm=%d mom_12_1=%d", md.Windows.TTMQuarters, md.Windows.Mom121Window)
	}
	if len(md.Fallbacks.LeverageNumerator) != 2 {
		t.Errorf("Unexpected leverage fallback chain: %v", md.Fallbacks.LeverageNumerator)
	}
}
