package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
	"github.com/stretchr/testify/require"
)

func rateMeta(keyword string) *models.ColumnMeta {
	return &models.ColumnMeta{Unit: "SM3/DAY", IsRate: true, Keyword: keyword}
}

func dates(n int) []models.Instant {
	out := make([]models.Instant, n)
	for i := range out {
		out[i] = models.Date(2020, 1, 1+i)
	}
	return out
}

// buildTable builds a table with one rate vector per name. Samples are
// row index plus 10 times the column position.
func buildTable(t *testing.T, rows int, names ...string) arrow.Table {
	t.Helper()
	vectors := make([]models.Vector, len(names))
	for i, name := range names {
		samples := make([]float64, rows)
		for r := range samples {
			samples[r] = float64(r + 10*(i+1))
		}
		vectors[i] = models.Vector{Name: name, Samples: samples, Meta: rateMeta(name)}
	}
	tbl, err := NewBuilder(memory.NewGoAllocator(), zerolog.Nop()).Build(vectors, dates(rows))
	require.NoError(t, err)
	return tbl
}

func columnNames(tbl arrow.Table) []string {
	names := make([]string, tbl.NumCols())
	for i := range names {
		names[i] = tbl.Schema().Field(i).Name
	}
	return names
}

// values flattens a column into Go values, nil for nulls.
func values(t *testing.T, col *arrow.Column) []any {
	t.Helper()
	var out []any
	for _, chunk := range col.Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				out = append(out, nil)
				continue
			}
			switch arr := chunk.(type) {
			case *array.Float32:
				out = append(out, arr.Value(i))
			case *array.Int64:
				out = append(out, arr.Value(i))
			case *array.Timestamp:
				out = append(out, int64(arr.Value(i)))
			default:
				t.Fatalf("unexpected array type %T", chunk)
			}
		}
	}
	return out
}
