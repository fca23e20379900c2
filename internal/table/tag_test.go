package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	mem := memory.NewGoAllocator()
	base := buildTable(t, 3, "FOPR", "FGPR")
	defer base.Release()

	tagged, err := Tag(mem, base, 7)
	require.NoError(t, err)
	defer tagged.Release()

	assert.Equal(t, []string{"DATE", "REAL", "FOPR", "FGPR"}, columnNames(tagged))
	assert.True(t, arrow.TypeEqual(RealType, tagged.Schema().Field(1).Type))
	assert.Equal(t, []any{int64(7), int64(7), int64(7)}, values(t, tagged.Column(1)))
	assert.Equal(t, values(t, base.Column(1)), values(t, tagged.Column(2)))

	// input untouched
	assert.Equal(t, []string{"DATE", "FOPR", "FGPR"}, columnNames(base))

	// schema metadata carried over
	want, _ := base.Schema().Metadata().GetValue(MetadataKey)
	got, ok := tagged.Schema().Metadata().GetValue(MetadataKey)
	require.True(t, ok)
	assert.Equal(t, want, got)

	t.Run("same realization is idempotent", func(t *testing.T) {
		again, err := Tag(mem, tagged, 7)
		require.NoError(t, err)
		defer again.Release()
		assert.Equal(t, []string{"DATE", "REAL", "FOPR", "FGPR"}, columnNames(again))
	})

	t.Run("different realization", func(t *testing.T) {
		_, err := Tag(mem, tagged, 8)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("negative realization", func(t *testing.T) {
		_, err := Tag(mem, base, -1)
		assert.Error(t, err)
	})

	t.Run("date only table", func(t *testing.T) {
		empty := buildTable(t, 2)
		defer empty.Release()

		got, err := Tag(mem, empty, 0)
		require.NoError(t, err)
		defer got.Release()
		assert.Equal(t, []string{"DATE", "REAL"}, columnNames(got))
	})
}
