package output

import (
	"fmt"
	"strconv"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/michbru/PTrees/internal/domain"
)

// WriteParquet writes the panel to a snappy-compressed parquet file. Panel
// columns are only known at runtime, so the schema is built from metadata
// strings instead of struct tags; numeric columns are OPTIONAL so missing
// cells stay nulls instead of sentinel values.
func WriteParquet(p *domain.Panel, path string) error {
	numCols := p.NumericColumns()
	labelCols := p.LabelColumns()

	md := make([]string, 0, 2+len(numCols)+len(labelCols))
	md = append(md,
		"name=entity, type=BYTE_ARRAY, convertedtype=UTF8",
		"name=date, type=BYTE_ARRAY, convertedtype=UTF8",
	)
	for _, name := range numCols {
		md = append(md, fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name))
	}
	for _, name := range labelCols {
		md = append(md, fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8", name))
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}
	pw, err := writer.NewCSVWriter(md, fw, 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	numeric := make([][]*float64, len(numCols))
	for j, name := range numCols {
		numeric[j], _ = p.Numeric(name)
	}
	labels := make([][]string, len(labelCols))
	for j, name := range labelCols {
		labels[j], _ = p.Label(name)
	}

	for i, rk := range p.Rows() {
		rec := make([]*string, 0, len(md))
		entity := rk.Entity
		date := rk.Date.Format(dateLayout)
		rec = append(rec, &entity, &date)
		for _, col := range numeric {
			if col[i] == nil {
				rec = append(rec, nil)
			} else {
				s := strconv.FormatFloat(*col[i], 'g', -1, 64)
				rec = append(rec, &s)
			}
		}
		for _, col := range labels {
			v := col[i]
			rec = append(rec, &v)
		}
		if err := pw.WriteString(rec); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Close()
}
