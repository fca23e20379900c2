package convert

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/sigurdp/exp-smry2parquet/internal/columnar"
	"github.com/sigurdp/exp-smry2parquet/internal/table"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

// Inspection summarizes a stored table.
type Inspection struct {
	Path         string
	Format       columnar.Format
	Schema       *arrow.Schema
	Rows         int64
	FirstDate    *models.Instant
	LastDate     *models.Instant
	Realizations []int64
	Meta         *table.Metadata
	Parquet      *columnar.ParquetInfo
}

// Inspect loads the table stored at p and describes it.
func (c *Converter) Inspect(ctx context.Context, p string) (*Inspection, error) {
	format, err := columnar.FormatOf(p)
	if err != nil {
		return nil, err
	}
	data, err := c.backend.Read(ctx, p)
	if err != nil {
		return nil, err
	}

	out := &Inspection{Path: c.backend.URI(p), Format: format}
	if format == columnar.FormatParquet {
		info, err := columnar.InspectParquet(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out.Parquet = &info
	}

	tbl, err := columnar.Read(ctx, format, data, c.mem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	defer tbl.Release()

	out.Schema = tbl.Schema()
	out.Rows = tbl.NumRows()
	if out.Meta, err = table.TableMeta(out.Schema); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if idx := out.Schema.FieldIndices(models.DateColumn); len(idx) > 0 {
		out.FirstDate, out.LastDate = dateRange(tbl.Column(idx[0]))
	}
	if idx := out.Schema.FieldIndices(models.RealColumn); len(idx) > 0 {
		out.Realizations = distinctInt64(tbl.Column(idx[0]))
	}
	return out, nil
}

// dateRange returns the DATE values of the first and last rows.
func dateRange(col *arrow.Column) (first, last *models.Instant) {
	for _, chunk := range col.Data().Chunks() {
		ts, ok := chunk.(*array.Timestamp)
		if !ok {
			return nil, nil
		}
		for i := 0; i < ts.Len(); i++ {
			if ts.IsNull(i) {
				continue
			}
			v := models.InstantFromEpochMillis(int64(ts.Value(i)))
			if first == nil {
				first = &v
			}
			last = &v
		}
	}
	return first, last
}

func distinctInt64(col *arrow.Column) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, chunk := range col.Data().Chunks() {
		values, ok := chunk.(*array.Int64)
		if !ok {
			return nil
		}
		for i := 0; i < values.Len(); i++ {
			if values.IsNull(i) || seen[values.Value(i)] {
				continue
			}
			seen[values.Value(i)] = true
			out = append(out, values.Value(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
