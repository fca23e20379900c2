package eclio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeSample(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteInts("DIMENS", []int32{3, 10, 10, 3, 0, -1}))
	require.NoError(t, w.WriteStrings("KEYWORDS", []string{"TIME", "FOPR", "WOPR"}))
	require.NoError(t, w.WriteMessage("STARTSOL"))
	require.NoError(t, w.WriteReals("PARAMS", []float32{1.5, 2.25, 3}))
	require.NoError(t, w.WriteDoubles("DVALS", []float64{12345.6789012345}))
	return buf.Bytes()
}

func TestReader_RoundTrip(t *testing.T) {
	kws, err := ReadAll(bytes.NewReader(encodeSample(t)))
	require.NoError(t, err)
	require.Len(t, kws, 5)

	assert.Equal(t, "DIMENS", kws[0].Name)
	assert.Equal(t, TypeInt, kws[0].Type)
	assert.Equal(t, []int32{3, 10, 10, 3, 0, -1}, kws[0].Ints)

	assert.Equal(t, []string{"TIME", "FOPR", "WOPR"}, kws[1].Strings)
	assert.Equal(t, TypeMessage, kws[2].Type)
	assert.Equal(t, 0, kws[2].Len())
	assert.Equal(t, []float32{1.5, 2.25, 3}, kws[3].Reals)
	assert.Equal(t, []float64{12345.6789012345}, kws[4].Doubles)
}

func TestReader_BlocksSplitLargeKeywords(t *testing.T) {
	values := make([]int32, 2500)
	for i := range values {
		values[i] = int32(i)
	}
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteInts("NUMS", values))

	// header record + three data records of 1000, 1000, 500 elements
	wantSize := (8 + 16) + (8 + 4000) + (8 + 4000) + (8 + 2000)
	assert.Equal(t, wantSize, buf.Len())

	kws, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, kws, 1)
	assert.Equal(t, values, kws[0].Ints)
}

func TestReader_Malformed(t *testing.T) {
	good := encodeSample(t)

	t.Run("mismatched markers", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		binary.BigEndian.PutUint32(bad[4+16:], 99)
		_, err := ReadAll(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("truncated data", func(t *testing.T) {
		_, err := ReadAll(bytes.NewReader(good[:len(good)-6]))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unknown type", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		copy(bad[4+12:], "XXXX")
		_, err := ReadAll(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestOpen_Decompresses(t *testing.T) {
	dir := t.TempDir()
	raw := encodeSample(t)

	compressors := map[string]func(*bytes.Buffer){
		"plain": func(b *bytes.Buffer) { b.Write(raw) },
		"gzip": func(b *bytes.Buffer) {
			zw := gzip.NewWriter(b)
			zw.Write(raw)
			zw.Close()
		},
		"zstd": func(b *bytes.Buffer) {
			zw, _ := zstd.NewWriter(b)
			zw.Write(raw)
			zw.Close()
		},
		"lz4": func(b *bytes.Buffer) {
			zw := lz4.NewWriter(b)
			zw.Write(raw)
			zw.Close()
		},
	}

	for name, compress := range compressors {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			compress(&buf)
			path := filepath.Join(dir, name+".SMSPEC")
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))

			kws, err := ReadFile(path)
			require.NoError(t, err)
			assert.Len(t, kws, 5)
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "CASE.UNSMRY")

	_, err := Resolve(plain)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(plain+".zst", nil, 0600))
	got, err := Resolve(plain)
	require.NoError(t, err)
	assert.Equal(t, plain+".zst", got)

	require.NoError(t, os.WriteFile(plain, nil, 0600))
	got, err = Resolve(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}
