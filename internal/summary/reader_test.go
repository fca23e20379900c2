package summary

import (
	"testing"

	"github.com/sigurdp/exp-smry2parquet/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemReader(t *testing.T) {
	meta := models.ColumnMeta{Unit: "SM3/DAY", IsRate: true, Keyword: "FOPR"}
	r := NewMemReader(
		[]models.Instant{models.Date(2020, 1, 1)},
		models.Vector{Name: "FOPR", Samples: []float64{1}},
		models.Vector{Name: "FOPR", Samples: []float64{1}, Meta: &meta},
		models.Vector{Name: "FGPR", Samples: []float64{2}},
	)

	assert.Equal(t, []string{"FOPR", "FOPR", "FGPR"}, r.ListColumns())

	got, err := r.StaticMetadata("FOPR")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	_, err = r.StaticMetadata("FGPR")
	assert.ErrorIs(t, err, ErrNoMetadata)

	_, err = r.StaticMetadata("WOPR")
	assert.ErrorIs(t, err, ErrUnknownVector)

	samples, err := r.SampleVector("FGPR")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, samples)
}
