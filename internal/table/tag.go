package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

// RealType is the type of the REAL column.
var RealType = arrow.PrimitiveTypes.Int64

// Tag returns a new table with a REAL column holding real on every row,
// placed directly after DATE. tbl is not modified. Tagging a table that
// already carries the same realization returns tbl itself (retained);
// a different realization is a schema error.
func Tag(mem memory.Allocator, tbl arrow.Table, real int) (arrow.Table, error) {
	if real < 0 {
		return nil, fmt.Errorf("realization must be non-negative, got %d", real)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	schema := tbl.Schema()
	if schema.NumFields() == 0 || schema.Field(0).Name != models.DateColumn {
		return nil, fmt.Errorf("%w: first column is not %s", ErrSchema, models.DateColumn)
	}

	if idx := schema.FieldIndices(models.RealColumn); len(idx) > 0 {
		if err := checkRealColumn(tbl.Column(idx[0]), int64(real)); err != nil {
			return nil, err
		}
		tbl.Retain()
		return tbl, nil
	}

	builder := array.NewInt64Builder(mem)
	defer builder.Release()
	rows := int(tbl.NumRows())
	builder.Reserve(rows)
	for i := 0; i < rows; i++ {
		builder.UnsafeAppend(int64(real))
	}
	arr := builder.NewArray()
	defer arr.Release()

	field := arrow.Field{Name: models.RealColumn, Type: RealType, Nullable: true}
	chunked := arrow.NewChunked(RealType, []arrow.Array{arr})
	defer chunked.Release()
	realCol := arrow.NewColumn(field, chunked)
	defer realCol.Release()

	fields := make([]arrow.Field, 0, schema.NumFields()+1)
	cols := make([]arrow.Column, 0, schema.NumFields()+1)
	for i := 0; i < int(tbl.NumCols()); i++ {
		if i == 1 {
			fields = append(fields, field)
			cols = append(cols, *realCol)
		}
		fields = append(fields, schema.Field(i))
		cols = append(cols, *tbl.Column(i))
	}
	if tbl.NumCols() == 1 {
		fields = append(fields, field)
		cols = append(cols, *realCol)
	}

	md := schema.Metadata()
	return array.NewTable(arrow.NewSchema(fields, &md), cols, tbl.NumRows()), nil
}

func checkRealColumn(col *arrow.Column, real int64) error {
	if !arrow.TypeEqual(col.DataType(), RealType) {
		return fmt.Errorf("%w: existing %s column has type %s", ErrSchema, models.RealColumn, col.DataType())
	}
	for _, chunk := range col.Data().Chunks() {
		values := chunk.(*array.Int64)
		for i := 0; i < values.Len(); i++ {
			if values.IsNull(i) || values.Value(i) != real {
				return fmt.Errorf("%w: table is already tagged with a different realization", ErrSchema)
			}
		}
	}
	return nil
}
