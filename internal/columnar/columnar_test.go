package columnar

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/config"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
	"github.com/sigurdp/exp-smry2parquet/internal/table"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOutput() *config.OutputConfig {
	return &config.OutputConfig{
		Compression:     "zstd",
		DataPageVersion: "2.0",
		UseDictionary:   true,
		WriteStatistics: true,
		RowGroupSize:    2,
	}
}

func newBackend(t *testing.T) *storage.LocalBackend {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

// ensembleTable returns two tagged realizations concatenated, so the
// result has nulls where a vector is missing from one realization.
func ensembleTable(t *testing.T) arrow.Table {
	t.Helper()
	mem := memory.NewGoAllocator()
	b := table.NewBuilder(mem, zerolog.Nop())
	dates := []models.Instant{models.Date(2020, 1, 1), models.Date(2020, 2, 1), models.Date(2020, 3, 1)}
	fopr := &models.ColumnMeta{Unit: "SM3/DAY", IsRate: true, Keyword: "FOPR"}
	num := 3
	rpr := &models.ColumnMeta{Unit: "BARSA", Keyword: "RPR", Num: &num}

	first, err := b.Build([]models.Vector{
		{Name: "FOPR", Samples: []float64{1, 2, 3}, Meta: fopr},
		{Name: "RPR:3", Samples: []float64{200, 199.5, 199}, Meta: rpr},
	}, dates)
	require.NoError(t, err)
	defer first.Release()
	second, err := b.Build([]models.Vector{
		{Name: "FOPR", Samples: []float64{4, 5, 6}, Meta: fopr},
	}, dates)
	require.NoError(t, err)
	defer second.Release()

	var tagged []arrow.Table
	for real, tbl := range []arrow.Table{first, second} {
		out, err := table.Tag(mem, tbl, real)
		require.NoError(t, err)
		defer out.Release()
		tagged = append(tagged, out)
	}
	tbl, err := table.Concat(mem, tagged, table.ConcatOptions{})
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

func float32Values(t *testing.T, col *arrow.Column) []any {
	t.Helper()
	var out []any
	for _, chunk := range col.Data().Chunks() {
		arr, ok := chunk.(*array.Float32)
		require.True(t, ok, "column %s is %T", col.Name(), chunk)
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				out = append(out, nil)
				continue
			}
			out = append(out, arr.Value(i))
		}
	}
	return out
}

func assertSameTable(t *testing.T, want, got arrow.Table) {
	t.Helper()
	assert.Equal(t, columnNames(want), columnNames(got))
	assert.Equal(t, want.NumRows(), got.NumRows())
	for i := 0; i < int(want.NumCols()); i++ {
		wf, gf := want.Schema().Field(i), got.Schema().Field(i)
		assert.True(t, arrow.TypeEqual(wf.Type, gf.Type), "column %s: %s != %s", wf.Name, wf.Type, gf.Type)

		wm, wok, err := table.ColumnMeta(wf)
		require.NoError(t, err)
		gm, gok, err := table.ColumnMeta(gf)
		require.NoError(t, err)
		assert.Equal(t, wok, gok, "column %s metadata presence", wf.Name)
		assert.True(t, wm.Equal(gm), "column %s metadata", wf.Name)
	}

	wantMeta, err := table.TableMeta(want.Schema())
	require.NoError(t, err)
	gotMeta, err := table.TableMeta(got.Schema())
	require.NoError(t, err)
	assert.Equal(t, wantMeta.Names(), gotMeta.Names())
}

func TestWriter_ParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	tbl := ensembleTable(t)
	defer tbl.Release()

	for _, codec := range []string{"zstd", "snappy", "gzip", "lz4", "none"} {
		t.Run(codec, func(t *testing.T) {
			cfg := testOutput()
			cfg.Compression = codec
			w := NewWriter(cfg, backend, nil, zerolog.Nop())

			dst := "ens/" + codec + ".parquet"
			written, err := w.WriteTable(ctx, dst, tbl)
			require.NoError(t, err)
			assert.Equal(t, []string{dst}, written)

			got, err := ReadFile(ctx, backend, dst, nil)
			require.NoError(t, err)
			defer got.Release()

			assertSameTable(t, tbl, got)
			assert.Equal(t, []any{float32(200), float32(199.5), float32(199), nil, nil, nil},
				float32Values(t, got.Column(3)))
		})
	}
}

func TestWriter_DataPageV1(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	tbl := ensembleTable(t)
	defer tbl.Release()

	cfg := testOutput()
	cfg.DataPageVersion = "1.0"
	cfg.UseDictionary = false
	require.NoError(t, NewWriter(cfg, backend, nil, zerolog.Nop()).WriteParquet(ctx, "v1.parquet", tbl))

	got, err := ReadFile(ctx, backend, "v1.parquet", nil)
	require.NoError(t, err)
	defer got.Release()
	assertSameTable(t, tbl, got)
}

func TestWriter_Feather(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	tbl := ensembleTable(t)
	defer tbl.Release()

	for _, codec := range []string{"none", "lz4", "zstd"} {
		t.Run(codec, func(t *testing.T) {
			cfg := testOutput()
			cfg.WriteFeather = true
			cfg.FeatherCompression = codec
			w := NewWriter(cfg, backend, memory.NewGoAllocator(), zerolog.Nop())

			written, err := w.WriteTable(ctx, codec+"/smry.parquet", tbl)
			require.NoError(t, err)
			assert.Equal(t, []string{codec + "/smry.parquet", codec + "/smry.arrow"}, written)

			got, err := ReadFile(ctx, backend, codec+"/smry.arrow", nil)
			require.NoError(t, err)
			defer got.Release()

			assertSameTable(t, tbl, got)
			assert.Equal(t, []any{float32(1), float32(2), float32(3), float32(4), float32(5), float32(6)},
				float32Values(t, got.Column(2)))
		})
	}
}

func TestInspectParquet(t *testing.T) {
	tbl := ensembleTable(t)
	defer tbl.Release()

	w := NewWriter(testOutput(), newBackend(t), nil, zerolog.Nop())
	data, err := w.EncodeParquet(tbl)
	require.NoError(t, err)

	info, err := InspectParquet(data)
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Rows)
	assert.Equal(t, 3, info.RowGroups)
	assert.Equal(t, 4, info.Columns)
	assert.NotEmpty(t, info.CreatedBy)
}

func TestValidateParquet(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid", []byte("PAR1xxxxxxxxPAR1"), false},
		{"too small", []byte("PAR1PAR1"), true},
		{"bad header", []byte("PARXxxxxxxxxPAR1"), true},
		{"truncated", []byte("PAR1xxxxxxxxxxxx"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParquet(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFile)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadFile_Errors(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)

	_, err := ReadFile(ctx, backend, "table.csv", nil)
	assert.Error(t, err)

	_, err = ReadFile(ctx, backend, "missing.parquet", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, backend.Write(ctx, "junk.arrow", []byte("not arrow")))
	_, err = ReadFile(ctx, backend, "junk.arrow", nil)
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("a/b.parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	f, err = FormatOf("a/b.feather")
	require.NoError(t, err)
	assert.Equal(t, FormatFeather, f)

	assert.Equal(t, "out/summary_r001.arrow", FeatherPath("out/summary_r001.parquet"))
}
