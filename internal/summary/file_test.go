package summary

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/eclio"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type specNode struct {
	keyword, wgname, unit string
	num                   int32
}

type caseFixture struct {
	start []int32
	nodes []specNode
	steps [][]float32
}

func (c caseFixture) write(t *testing.T, stem string) {
	t.Helper()

	var spec bytes.Buffer
	w := eclio.NewWriter(&spec)
	kws := make([]string, len(c.nodes))
	wgs := make([]string, len(c.nodes))
	units := make([]string, len(c.nodes))
	nums := make([]int32, len(c.nodes))
	for i, n := range c.nodes {
		kws[i], wgs[i], units[i], nums[i] = n.keyword, n.wgname, n.unit, n.num
	}
	require.NoError(t, w.WriteInts("DIMENS", []int32{int32(len(c.nodes)), 10, 5, 2, 0, -1}))
	require.NoError(t, w.WriteStrings("KEYWORDS", kws))
	require.NoError(t, w.WriteStrings("WGNAMES", wgs))
	require.NoError(t, w.WriteInts("NUMS", nums))
	require.NoError(t, w.WriteStrings("UNITS", units))
	require.NoError(t, w.WriteInts("STARTDAT", c.start))
	require.NoError(t, os.WriteFile(stem+".SMSPEC", spec.Bytes(), 0600))

	var data bytes.Buffer
	w = eclio.NewWriter(&data)
	require.NoError(t, w.WriteInts("SEQHDR", []int32{0}))
	for i, step := range c.steps {
		require.NoError(t, w.WriteInts("MINISTEP", []int32{int32(i)}))
		require.NoError(t, w.WriteReals("PARAMS", step))
	}
	require.NoError(t, os.WriteFile(stem+".UNSMRY", data.Bytes(), 0600))
}

func basicCase() caseFixture {
	return caseFixture{
		start: []int32{1, 1, 2018},
		nodes: []specNode{
			{keyword: "TIME", wgname: ":+:+:+:+", unit: "DAYS"},
			{keyword: "FOPR", wgname: ":+:+:+:+", unit: "SM3/DAY"},
			{keyword: "FOPT", wgname: ":+:+:+:+", unit: "SM3"},
			{keyword: "WOPR", wgname: "OP_1", unit: "SM3/DAY"},
			{keyword: "WOPRH", wgname: "OP_1", unit: "SM3/DAY"},
			{keyword: "WOPR", wgname: ":+:+:+:+", unit: "SM3/DAY"},
			{keyword: "RPR", wgname: ":+:+:+:+", unit: "BARSA", num: 3},
			{keyword: "BPR", wgname: ":+:+:+:+", unit: "BARSA", num: 56},
			{keyword: "CWIR", wgname: "INJ", unit: "SM3/DAY", num: 12},
			{keyword: "LBPR", wgname: ":+:+:+:+", unit: "BARSA", num: 1},
		},
		steps: [][]float32{
			{0, 100, 0, 50, 49, 0, 250, 251, 10, 1},
			{31, 110, 3410, 55, 54, 0, 249, 250, 11, 1},
			{59, 120, 6770, 60, 61, 0, 248, 249, 12, 1},
		},
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "CASE")
	basicCase().write(t, stem)

	r, err := OpenFile(context.Background(), stem+".UNSMRY", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, stem+".SMSPEC", r.SpecPath)

	assert.Equal(t, []string{
		"TIME", "FOPR", "FOPT", "WOPR:OP_1", "WOPRH:OP_1",
		"RPR:3", "BPR:6,1,2", "CWIR:INJ:2,2,1",
	}, r.ListColumns())

	assert.Equal(t, []models.Instant{
		models.Date(2018, 1, 1),
		models.Date(2018, 2, 1),
		models.Date(2018, 3, 1),
	}, r.Timestamps())

	fopt, err := r.SampleVector("FOPT")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3410, 6770}, fopt)

	_, err = r.SampleVector("WOPR")
	assert.ErrorIs(t, err, ErrUnknownVector)

	t.Run("metadata", func(t *testing.T) {
		meta, err := r.StaticMetadata("FOPT")
		require.NoError(t, err)
		assert.Equal(t, models.ColumnMeta{Unit: "SM3", IsTotal: true, Keyword: "FOPT"}, meta)

		meta, err = r.StaticMetadata("WOPRH:OP_1")
		require.NoError(t, err)
		assert.True(t, meta.IsHistorical)
		assert.True(t, meta.IsRate)
		assert.Equal(t, "OP_1", meta.WGName)
		assert.Nil(t, meta.Num)

		meta, err = r.StaticMetadata("CWIR:INJ:2,2,1")
		require.NoError(t, err)
		num, ok := meta.NumValue()
		assert.True(t, ok)
		assert.Equal(t, 12, num)
		assert.Equal(t, "INJ", meta.WGName)
	})
}

func TestOpenFile_Stem(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "CASE")
	basicCase().write(t, stem)

	r, err := OpenFile(context.Background(), stem, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, stem+".UNSMRY", r.DataPath)
}

func TestOpenFile_CompressedData(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "CASE")
	basicCase().write(t, stem)

	raw, err := os.ReadFile(stem + ".UNSMRY")
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(stem+".UNSMRY.gz", buf.Bytes(), 0600))
	require.NoError(t, os.Remove(stem+".UNSMRY"))

	r, err := OpenFile(context.Background(), stem+".SMSPEC", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, r.Timestamps(), 3)
}

func TestOpenFile_FarFutureDates(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "LONG")
	c := caseFixture{
		start: []int32{1, 1, 2600, 6, 30, 15_250_000},
		nodes: []specNode{
			{keyword: "TIME", unit: "DAYS"},
			{keyword: "FOPR", unit: "SM3/DAY"},
		},
		steps: [][]float32{{0, 1}, {365, 2}},
	}
	c.write(t, stem)

	r, err := OpenFile(context.Background(), stem, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, models.Instant{Year: 2600, Month: 1, Day: 1, Hour: 6, Minute: 30, Second: 15, Millisecond: 250}, r.StartDate())
	assert.Equal(t, models.Instant{Year: 2601, Month: 1, Day: 1, Hour: 6, Minute: 30, Second: 15, Millisecond: 250}, r.Timestamps()[1])
}

func TestOpenFile_DuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "DUP")
	c := caseFixture{
		start: []int32{1, 1, 2020},
		nodes: []specNode{
			{keyword: "TIME", unit: "DAYS"},
			{keyword: "FOPR", unit: "SM3/DAY"},
			{keyword: "FOPR", unit: "SM3/DAY"},
		},
		steps: [][]float32{{0, 1, 1}},
	}
	c.write(t, stem)

	r, err := OpenFile(context.Background(), stem, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"TIME", "FOPR", "FOPR"}, r.ListColumns())

	vecs, err := r.Vectors()
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[1].Meta, vecs[2].Meta)
}

func TestOpenFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing case", func(t *testing.T) {
		_, err := OpenFile(context.Background(), filepath.Join(dir, "NOPE"), zerolog.Nop())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("params length mismatch", func(t *testing.T) {
		stem := filepath.Join(dir, "BAD")
		c := basicCase()
		c.steps = append(c.steps, []float32{90, 1})
		c.write(t, stem)

		_, err := OpenFile(context.Background(), stem, zerolog.Nop())
		assert.ErrorIs(t, err, eclio.ErrMalformed)
	})

	t.Run("missing time vector", func(t *testing.T) {
		stem := filepath.Join(dir, "NOTIME")
		c := caseFixture{
			start: []int32{1, 1, 2020},
			nodes: []specNode{{keyword: "FOPR", unit: "SM3/DAY"}},
			steps: [][]float32{{1}},
		}
		c.write(t, stem)

		_, err := OpenFile(context.Background(), stem, zerolog.Nop())
		assert.ErrorIs(t, err, eclio.ErrMalformed)
	})

	t.Run("cancelled", func(t *testing.T) {
		stem := filepath.Join(dir, "CANCEL")
		basicCase().write(t, stem)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := OpenFile(ctx, stem, zerolog.Nop())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
