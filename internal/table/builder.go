// Package table turns summary vectors into immutable Arrow tables and
// combines per-realization tables into one.
package table

import (
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/summary"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

// DateType is the type of the DATE column.
var DateType = &arrow.TimestampType{Unit: arrow.Millisecond}

// Builder builds summary tables. Numeric samples are stored as float32.
type Builder struct {
	mem    memory.Allocator
	logger zerolog.Logger
}

// NewBuilder returns a Builder allocating from mem. A nil mem uses a Go
// allocator.
func NewBuilder(mem memory.Allocator, logger zerolog.Logger) *Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Builder{
		mem:    mem,
		logger: logger.With().Str("component", "table-builder").Logger(),
	}
}

// CollectVectors returns every vector occurrence of r in enumeration
// order. Readers implementing summary.VectorLister supply their own
// occurrences. For the rest each listed name is resolved through the
// Reader methods, and a missing metadata record leaves Meta nil.
func CollectVectors(r summary.Reader) ([]models.Vector, error) {
	if vl, ok := r.(summary.VectorLister); ok {
		return vl.Vectors()
	}

	names := r.ListColumns()
	out := make([]models.Vector, 0, len(names))
	for _, name := range names {
		samples, err := r.SampleVector(name)
		if err != nil {
			return nil, err
		}
		v := models.Vector{Name: name, Samples: samples}
		meta, err := r.StaticMetadata(name)
		switch {
		case err == nil:
			v.Meta = &meta
		case !errors.Is(err, summary.ErrNoMetadata):
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Reconcile collapses vectors sharing a name into one. The surviving
// entry keeps the position of the first occurrence; an occurrence with a
// metadata record replaces one without. Two different records for the
// same name, or a name left without any record, are schema errors.
func Reconcile(vectors []models.Vector) ([]models.Vector, error) {
	out := make([]models.Vector, 0, len(vectors))
	index := make(map[string]int, len(vectors))

	for _, v := range vectors {
		if v.Name == models.DateColumn || v.Name == models.RealColumn {
			return nil, fmt.Errorf("%w: vector uses reserved column name %s", ErrSchema, v.Name)
		}
		i, seen := index[v.Name]
		if !seen {
			index[v.Name] = len(out)
			out = append(out, v)
			continue
		}
		cur := out[i]
		switch {
		case v.Meta == nil:
		case cur.Meta == nil:
			out[i] = v
		case !cur.Meta.Equal(*v.Meta):
			return nil, fmt.Errorf("%w: vector %s has conflicting metadata records", ErrSchema, v.Name)
		}
	}

	for _, v := range out {
		if v.Meta == nil {
			return nil, fmt.Errorf("%w: vector %s has no metadata record", ErrSchema, v.Name)
		}
	}
	return out, nil
}

// BuildFromReader collects, reconciles and builds the vectors of r.
func (b *Builder) BuildFromReader(r summary.Reader) (arrow.Table, error) {
	vectors, err := CollectVectors(r)
	if err != nil {
		return nil, err
	}
	return b.Build(vectors, r.Timestamps())
}

// Build returns a table with a DATE column followed by one float32
// column per reconciled vector. Each numeric column carries its metadata
// record and the schema carries the mapping of all of them.
func (b *Builder) Build(vectors []models.Vector, timestamps []models.Instant) (arrow.Table, error) {
	start := time.Now()

	vectors, err := Reconcile(vectors)
	if err != nil {
		return nil, err
	}

	rows := len(timestamps)
	for _, v := range vectors {
		if len(v.Samples) != rows {
			return nil, fmt.Errorf("%w: vector %s has %d samples, time axis has %d", ErrDecode, v.Name, len(v.Samples), rows)
		}
	}

	fields := make([]arrow.Field, 0, len(vectors)+1)
	fields = append(fields, arrow.Field{Name: models.DateColumn, Type: DateType, Nullable: true})

	tableMeta := NewMetadata()
	for _, v := range vectors {
		md, err := encodeColumnMeta(*v.Meta)
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", v.Name, err)
		}
		fields = append(fields, arrow.Field{Name: v.Name, Type: arrow.PrimitiveTypes.Float32, Nullable: true, Metadata: md})
		tableMeta.Add(v.Name, *v.Meta)
	}

	schemaMeta, err := withTableMeta(arrow.Metadata{}, tableMeta)
	if err != nil {
		return nil, fmt.Errorf("encode table metadata: %w", err)
	}
	schema := arrow.NewSchema(fields, &schemaMeta)

	arrays := make([]arrow.Array, 0, len(fields))
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	dates, err := b.buildDates(timestamps)
	if err != nil {
		return nil, err
	}
	arrays = append(arrays, dates)

	for _, v := range vectors {
		arrays = append(arrays, b.buildFloat32(v.Samples))
	}

	cols := make([]arrow.Column, len(arrays))
	for i, arr := range arrays {
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		cols[i] = *arrow.NewColumn(fields[i], chunked)
		chunked.Release()
	}
	defer func() {
		for i := range cols {
			cols[i].Release()
		}
	}()

	tbl := array.NewTable(schema, cols, int64(rows))

	b.logger.Debug().
		Int("columns", len(fields)).
		Int("rows", rows).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Built summary table")
	return tbl, nil
}

func (b *Builder) buildDates(timestamps []models.Instant) (arrow.Array, error) {
	builder := array.NewTimestampBuilder(b.mem, DateType)
	defer builder.Release()
	builder.Reserve(len(timestamps))

	var prev int64
	for i, ts := range timestamps {
		if !ts.Valid() {
			return nil, fmt.Errorf("%w: invalid timestamp %s at step %d", ErrDecode, ts, i)
		}
		ms := ts.EpochMillis()
		if i > 0 && ms < prev {
			return nil, fmt.Errorf("%w: timestamp %s at step %d precedes the previous step", ErrDecode, ts, i)
		}
		builder.UnsafeAppend(arrow.Timestamp(ms))
		prev = ms
	}
	return builder.NewArray(), nil
}

func (b *Builder) buildFloat32(samples []float64) arrow.Array {
	builder := array.NewFloat32Builder(b.mem)
	defer builder.Release()
	builder.Reserve(len(samples))
	for _, v := range samples {
		builder.UnsafeAppend(float32(v))
	}
	return builder.NewArray()
}
