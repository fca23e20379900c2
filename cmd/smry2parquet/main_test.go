package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/columnar"
	"github.com/sigurdp/exp-smry2parquet/internal/config"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
	"github.com/sigurdp/exp-smry2parquet/internal/table"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOutputName(t *testing.T) {
	tests := map[string]string{
		"ens/realization-0/eclipse/model/DROGON-0.UNSMRY": "DROGON-0.parquet",
		"DROGON-0.SMSPEC":      "DROGON-0.parquet",
		"model/CASE.UNSMRY.gz": "CASE.parquet",
		"CASE":                 "CASE.parquet",
	}
	for in, want := range tests {
		assert.Equal(t, want, defaultOutputName(in), in)
	}
}

func TestRunInspect(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewLocalBackend(dir, zerolog.Nop())
	require.NoError(t, err)
	defer backend.Close()

	cfg := &config.Config{Output: config.OutputConfig{
		Compression:     "zstd",
		DataPageVersion: "2.0",
		RowGroupSize:    1024,
	}}
	mem := memory.NewGoAllocator()
	tbl, err := table.NewBuilder(mem, zerolog.Nop()).Build([]models.Vector{
		{Name: "FOPR", Samples: []float64{1, 2, 3}, Meta: &models.ColumnMeta{Unit: "SM3/DAY", IsRate: true, Keyword: "FOPR"}},
		{Name: "FOPT", Samples: []float64{0, 31, 59}, Meta: &models.ColumnMeta{Unit: "SM3", IsTotal: true, Keyword: "FOPT"}},
	}, []models.Instant{models.Date(2018, 1, 1), models.Date(2018, 2, 1), models.Date(2018, 3, 1)})
	require.NoError(t, err)
	defer tbl.Release()

	w := columnar.NewWriter(&cfg.Output, backend, mem, zerolog.Nop())
	require.NoError(t, w.WriteParquet(context.Background(), "summary.parquet", tbl))

	var out bytes.Buffer
	a := &app{cfg: cfg, logger: zerolog.Nop()}
	require.NoError(t, runInspect(context.Background(), a, filepath.Join(dir, "summary.parquet"), nil, &out))

	text := out.String()
	assert.Contains(t, text, "parquet")
	assert.Contains(t, text, "Rows:")
	assert.Contains(t, text, "2018-01-01T00:00:00.000")
	assert.Contains(t, text, "2018-03-01T00:00:00.000")
	assert.Contains(t, text, `metadata for FOPR: {"unit":"SM3/DAY"`)
	assert.Contains(t, text, "metadata for FOPT:")
	assert.NotContains(t, text, "Realizations:")
}
