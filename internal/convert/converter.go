// Package convert drives summary-to-table conversion: single cases,
// parallel batches over an ensemble, and concatenation of converted
// realizations.
package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/columnar"
	"github.com/sigurdp/exp-smry2parquet/internal/config"
	"github.com/sigurdp/exp-smry2parquet/internal/metrics"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
	"github.com/sigurdp/exp-smry2parquet/internal/summary"
	"github.com/sigurdp/exp-smry2parquet/internal/table"
)

// noRealization marks a conversion of a case outside an ensemble.
const noRealization = -1

// Result describes one converted summary case.
type Result struct {
	Realization *int     `json:"realization,omitempty"`
	Source      string   `json:"source"`
	Outputs     []string `json:"outputs,omitempty"`
	Columns     int64    `json:"columns"`
	Rows        int64    `json:"rows"`
	DurationMs  int64    `json:"duration_ms"`
	Skipped     bool     `json:"skipped,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Converter turns summary cases into stored tables.
type Converter struct {
	cfg     *config.Config
	backend storage.Backend
	mem     memory.Allocator
	builder *table.Builder
	writer  *columnar.Writer
	logger  zerolog.Logger
}

// NewConverter creates a converter writing through backend.
func NewConverter(cfg *config.Config, backend storage.Backend, logger zerolog.Logger) *Converter {
	mem := memory.NewGoAllocator()
	return &Converter{
		cfg:     cfg,
		backend: backend,
		mem:     mem,
		builder: table.NewBuilder(mem, logger),
		writer:  columnar.NewWriter(&cfg.Output, backend, mem, logger),
		logger:  logger.With().Str("component", "converter").Logger(),
	}
}

// ConvertFile converts the summary case at src and stores it at dst.
func (c *Converter) ConvertFile(ctx context.Context, src, dst string) (*Result, error) {
	return c.convert(ctx, src, dst, noRealization, false)
}

// ConvertRealization converts one ensemble member. With tag set the
// output carries the REAL column.
func (c *Converter) ConvertRealization(ctx context.Context, e Entry, dst string, tag bool) (*Result, error) {
	return c.convert(ctx, e.Path, dst, e.Realization, tag)
}

func (c *Converter) convert(ctx context.Context, src, dst string, real int, tag bool) (*Result, error) {
	start := time.Now()
	res := &Result{Source: src}
	if real != noRealization {
		r := real
		res.Realization = &r
	}

	tagWith := noRealization
	if tag {
		tagWith = real
	}
	tbl, err := c.load(ctx, src, tagWith)
	if err != nil {
		metrics.Get().IncFilesFailed()
		return res, err
	}
	defer tbl.Release()

	res.Outputs, err = c.writer.WriteTable(ctx, dst, tbl)
	if err != nil {
		metrics.Get().IncFilesFailed()
		return res, err
	}

	res.Columns = tbl.NumCols()
	res.Rows = tbl.NumRows()
	res.DurationMs = time.Since(start).Milliseconds()

	m := metrics.Get()
	m.IncFilesConverted()
	m.IncVectorsRead(res.Columns - 1)
	m.IncRowsWritten(res.Rows)
	m.ObserveConvert(time.Since(start))

	c.logger.Info().
		Str("source", src).
		Str("output", c.backend.URI(dst)).
		Int64("columns", res.Columns).
		Int64("rows", res.Rows).
		Int64("duration_ms", res.DurationMs).
		Msg("Converted summary")
	return res, nil
}

// load reads and builds the table of src, tagged when real is set.
func (c *Converter) load(ctx context.Context, src string, real int) (arrow.Table, error) {
	r, err := summary.OpenFile(ctx, src, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}
	tbl, err := c.builder.BuildFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build table from %s: %w", src, err)
	}
	if real == noRealization {
		return tbl, nil
	}
	defer tbl.Release()

	tagged, err := table.Tag(c.mem, tbl, real)
	if err != nil {
		return nil, fmt.Errorf("failed to tag %s: %w", src, err)
	}
	return tagged, nil
}
