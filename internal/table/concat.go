package table

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// MetadataPolicy decides what happens when two input tables describe the
// same column with different metadata records.
type MetadataPolicy string

const (
	// MetadataFirst keeps the record of the first table defining the column.
	MetadataFirst MetadataPolicy = "first"
	// MetadataError fails the concatenation with ErrSchemaConflict.
	MetadataError MetadataPolicy = "error"
)

// ParseMetadataPolicy parses a policy name. The empty string means
// MetadataFirst.
func ParseMetadataPolicy(s string) (MetadataPolicy, error) {
	switch MetadataPolicy(strings.ToLower(s)) {
	case "", MetadataFirst:
		return MetadataFirst, nil
	case MetadataError:
		return MetadataError, nil
	}
	return "", fmt.Errorf("unknown metadata conflict policy %q (want first or error)", s)
}

// ConcatOptions tunes Concat.
type ConcatOptions struct {
	MetadataConflict MetadataPolicy
}

type unionField struct {
	field  arrow.Field
	source []int // column index per input table, -1 when absent
}

// Concat stacks tables in order into one table whose columns are the
// union of the inputs' columns in first-seen order. A table lacking a
// column contributes nulls for it. Inputs are not modified.
func Concat(mem memory.Allocator, tables []arrow.Table, opts ConcatOptions) (arrow.Table, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyInput
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	strict := opts.MetadataConflict == MetadataError

	var (
		union []*unionField
		byKey = make(map[string]*unionField)
		rows  int64
	)
	for t, tbl := range tables {
		schema := tbl.Schema()
		for i, f := range schema.Fields() {
			u, ok := byKey[f.Name]
			if !ok {
				f.Nullable = true
				u = &unionField{field: f, source: make([]int, len(tables))}
				for j := range u.source {
					u.source[j] = -1
				}
				byKey[f.Name] = u
				union = append(union, u)
			} else {
				if !arrow.TypeEqual(u.field.Type, f.Type) {
					return nil, fmt.Errorf("%w: column %s is %s in table %d but %s in table %d",
						ErrSchemaConflict, f.Name, u.field.Type, firstSource(u), f.Type, t)
				}
				if strict {
					if err := compareFieldMeta(u.field, f); err != nil {
						return nil, err
					}
				}
			}
			if u.source[t] < 0 {
				u.source[t] = i
			}
		}
		rows += tbl.NumRows()
	}

	merged := NewMetadata()
	for _, tbl := range tables {
		meta, err := TableMeta(tbl.Schema())
		if err != nil {
			return nil, err
		}
		for _, name := range meta.Names() {
			rec, _ := meta.Get(name)
			if prev, ok := merged.Get(name); ok {
				if strict && !prev.Equal(rec) {
					return nil, fmt.Errorf("%w: column %s has different metadata across tables", ErrSchemaConflict, name)
				}
				continue
			}
			merged.Add(name, rec)
		}
	}

	md := tables[0].Schema().Metadata()
	if merged.Len() > 0 {
		var err error
		if md, err = withTableMeta(md, merged); err != nil {
			return nil, fmt.Errorf("encode table metadata: %w", err)
		}
	}

	fields := make([]arrow.Field, len(union))
	cols := make([]arrow.Column, 0, len(union))
	defer func() {
		for i := range cols {
			cols[i].Release()
		}
	}()

	for i, u := range union {
		fields[i] = u.field
		cols = append(cols, *concatColumn(mem, tables, u))
	}

	return array.NewTable(arrow.NewSchema(fields, &md), cols, rows), nil
}

func concatColumn(mem memory.Allocator, tables []arrow.Table, u *unionField) *arrow.Column {
	var (
		chunks []arrow.Array
		nulls  []arrow.Array
	)
	defer func() {
		for _, arr := range nulls {
			arr.Release()
		}
	}()

	for t, tbl := range tables {
		if idx := u.source[t]; idx >= 0 {
			chunks = append(chunks, tbl.Column(idx).Data().Chunks()...)
			continue
		}
		if tbl.NumRows() == 0 {
			continue
		}
		arr := array.MakeArrayOfNull(mem, u.field.Type, int(tbl.NumRows()))
		nulls = append(nulls, arr)
		chunks = append(chunks, arr)
	}

	chunked := arrow.NewChunked(u.field.Type, chunks)
	defer chunked.Release()
	return arrow.NewColumn(u.field, chunked)
}

func compareFieldMeta(a, b arrow.Field) error {
	ma, okA, err := ColumnMeta(a)
	if err != nil {
		return err
	}
	mb, okB, err := ColumnMeta(b)
	if err != nil {
		return err
	}
	if okA && okB && !ma.Equal(mb) {
		return fmt.Errorf("%w: column %s has different metadata across tables", ErrSchemaConflict, a.Name)
	}
	return nil
}

func firstSource(u *unionField) int {
	for t, idx := range u.source {
		if idx >= 0 {
			return t
		}
	}
	return -1
}
