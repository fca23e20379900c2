package columnar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
)

// ErrInvalidFile is returned for data that is not a readable Parquet or
// Arrow IPC file.
var ErrInvalidFile = errors.New("invalid columnar file")

// Format identifies an on-disk table encoding.
type Format int

const (
	FormatParquet Format = iota
	FormatFeather
)

func (f Format) String() string {
	if f == FormatFeather {
		return "arrow"
	}
	return "parquet"
}

// FormatOf returns the format implied by the extension of p.
func FormatOf(p string) (Format, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".parquet":
		return FormatParquet, nil
	case ".arrow", ".feather":
		return FormatFeather, nil
	}
	return 0, fmt.Errorf("unsupported file extension %q", path.Ext(p))
}

var parquetMagic = []byte("PAR1")

// ValidateParquet checks the leading and trailing magic bytes.
func ValidateParquet(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("%w: %d bytes is too small for a Parquet file", ErrInvalidFile, len(data))
	}
	if !bytes.Equal(data[:4], parquetMagic) {
		return fmt.Errorf("%w: missing Parquet header magic", ErrInvalidFile)
	}
	if !bytes.Equal(data[len(data)-4:], parquetMagic) {
		return fmt.Errorf("%w: missing Parquet footer magic (truncated file?)", ErrInvalidFile)
	}
	return nil
}

// ReadParquet decodes a whole Parquet file into a table.
func ReadParquet(ctx context.Context, data []byte, mem memory.Allocator) (arrow.Table, error) {
	if err := ValidateParquet(data); err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return withoutStoredSchema(tbl), nil
}

// storedSchemaKey is the key/value entry pqarrow uses for the embedded
// Arrow schema.
const storedSchemaKey = "ARROW:schema"

// withoutStoredSchema drops the embedded schema entry from the schema
// metadata so a table read back can be written again without carrying a
// stale copy.
func withoutStoredSchema(tbl arrow.Table) arrow.Table {
	md := tbl.Schema().Metadata()
	if md.FindKey(storedSchemaKey) < 0 {
		return tbl
	}
	defer tbl.Release()

	var keys, values []string
	for i, k := range md.Keys() {
		if k != storedSchemaKey {
			keys = append(keys, k)
			values = append(values, md.Values()[i])
		}
	}
	clean := arrow.NewMetadata(keys, values)
	schema := arrow.NewSchema(tbl.Schema().Fields(), &clean)

	cols := make([]arrow.Column, tbl.NumCols())
	for i := range cols {
		cols[i] = *tbl.Column(i)
	}
	return array.NewTable(schema, cols, tbl.NumRows())
}

// ReadFeather decodes a whole Arrow IPC file into a table.
func ReadFeather(data []byte, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer fr.Close()

	records := make([]arrow.Record, 0, fr.NumRecords())
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("%w: record batch %d: %v", ErrInvalidFile, i, err)
		}
		rec.Retain()
		records = append(records, rec)
	}
	return array.NewTableFromRecords(fr.Schema(), records), nil
}

// Read decodes data in the given format.
func Read(ctx context.Context, format Format, data []byte, mem memory.Allocator) (arrow.Table, error) {
	if format == FormatFeather {
		return ReadFeather(data, mem)
	}
	return ReadParquet(ctx, data, mem)
}

// ReadFile loads the table stored at p, choosing the format by extension.
func ReadFile(ctx context.Context, backend storage.Backend, p string, mem memory.Allocator) (arrow.Table, error) {
	format, err := FormatOf(p)
	if err != nil {
		return nil, err
	}
	data, err := backend.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	tbl, err := Read(ctx, format, data, mem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return tbl, nil
}

// ParquetInfo summarizes the physical layout of a Parquet file.
type ParquetInfo struct {
	Rows      int64
	RowGroups int
	Columns   int
	CreatedBy string
}

// InspectParquet reads the footer of a Parquet file.
func InspectParquet(data []byte) (ParquetInfo, error) {
	if err := ValidateParquet(data); err != nil {
		return ParquetInfo{}, err
	}
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return ParquetInfo{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer fr.Close()

	md := fr.MetaData()
	return ParquetInfo{
		Rows:      fr.NumRows(),
		RowGroups: fr.NumRowGroups(),
		Columns:   md.Schema.NumColumns(),
		CreatedBy: md.GetCreatedBy(),
	}, nil
}
