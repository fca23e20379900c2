// Package columnar encodes tables as Parquet and Arrow IPC files and
// stores them through a storage backend.
package columnar

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/config"
	"github.com/sigurdp/exp-smry2parquet/internal/metrics"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
)

// FeatherExt is the extension of the lightweight Arrow IPC output.
const FeatherExt = ".arrow"

// Writer encodes tables and hands the complete file to a storage backend
// in a single write.
type Writer struct {
	backend            storage.Backend
	mem                memory.Allocator
	compression        compress.Compression
	useDictionary      bool
	writeStatistics    bool
	dataPageVersion    string
	rowGroupSize       int64
	writeFeather       bool
	featherCompression string
	logger             zerolog.Logger
}

// NewWriter creates a writer storing through backend.
func NewWriter(cfg *config.OutputConfig, backend storage.Backend, mem memory.Allocator, logger zerolog.Logger) *Writer {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	rowGroupSize := cfg.RowGroupSize
	if rowGroupSize <= 0 {
		rowGroupSize = 1024 * 1024
	}
	return &Writer{
		backend:            backend,
		mem:                mem,
		compression:        parseCompression(cfg.Compression),
		useDictionary:      cfg.UseDictionary,
		writeStatistics:    cfg.WriteStatistics,
		dataPageVersion:    cfg.DataPageVersion,
		rowGroupSize:       rowGroupSize,
		writeFeather:       cfg.WriteFeather,
		featherCompression: cfg.FeatherCompression,
		logger:             logger.With().Str("component", "columnar-writer").Logger(),
	}
}

func parseCompression(name string) compress.Compression {
	switch strings.ToLower(name) {
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed
	case "snappy":
		return compress.Codecs.Snappy
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "brotli":
		return compress.Codecs.Brotli
	default:
		return compress.Codecs.Zstd
	}
}

// FeatherPath returns the lightweight output path accompanying a Parquet path.
func FeatherPath(parquetPath string) string {
	return strings.TrimSuffix(parquetPath, path.Ext(parquetPath)) + FeatherExt
}

// EncodeParquet serializes tbl as a Parquet file. The Arrow schema is
// stored in the file so field metadata and the timestamp unit survive.
func (w *Writer) EncodeParquet(tbl arrow.Table) ([]byte, error) {
	writerOpts := []parquet.WriterProperty{
		parquet.WithCompression(w.compression),
		parquet.WithDictionaryDefault(w.useDictionary),
		parquet.WithStats(w.writeStatistics),
		parquet.WithAllocator(w.mem),
	}
	if w.dataPageVersion == "2.0" {
		writerOpts = append(writerOpts,
			parquet.WithDataPageVersion(parquet.DataPageV2),
			parquet.WithVersion(parquet.V2_LATEST),
		)
	}
	writerProps := parquet.NewWriterProperties(writerOpts...)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema(), pqarrow.WithAllocator(w.mem))

	var buf bytes.Buffer
	if err := pqarrow.WriteTable(tbl, &buf, w.rowGroupSize, writerProps, arrowProps); err != nil {
		return nil, fmt.Errorf("failed to write Parquet table: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeFeather serializes tbl in the Arrow IPC file format.
func (w *Writer) EncodeFeather(tbl arrow.Table) ([]byte, error) {
	opts := []ipc.Option{ipc.WithSchema(tbl.Schema()), ipc.WithAllocator(w.mem)}
	switch w.featherCompression {
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	}

	var buf bytes.Buffer
	fw, err := ipc.NewFileWriter(&buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow writer: %w", err)
	}

	tr := array.NewTableReader(tbl, w.rowGroupSize)
	defer tr.Release()
	for tr.Next() {
		if err := fw.Write(tr.Record()); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to write record batch: %w", err)
		}
	}
	if err := tr.Err(); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to slice table: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteParquet encodes tbl and stores it at dst, replacing any existing file.
func (w *Writer) WriteParquet(ctx context.Context, dst string, tbl arrow.Table) error {
	return w.write(ctx, dst, tbl, "parquet", w.EncodeParquet)
}

// WriteFeather encodes tbl as Arrow IPC and stores it at dst.
func (w *Writer) WriteFeather(ctx context.Context, dst string, tbl arrow.Table) error {
	return w.write(ctx, dst, tbl, "arrow", w.EncodeFeather)
}

// WriteTable writes the Parquet file and, when enabled, the Arrow IPC
// file next to it. It returns the paths written.
func (w *Writer) WriteTable(ctx context.Context, dst string, tbl arrow.Table) ([]string, error) {
	if err := w.WriteParquet(ctx, dst, tbl); err != nil {
		return nil, err
	}
	written := []string{dst}
	if w.writeFeather {
		featherPath := FeatherPath(dst)
		if err := w.WriteFeather(ctx, featherPath, tbl); err != nil {
			if derr := w.backend.Delete(ctx, dst); derr != nil {
				w.logger.Warn().Err(derr).Str("path", dst).Msg("Failed to remove parquet output after feather error")
			}
			return nil, err
		}
		written = append(written, featherPath)
	}
	return written, nil
}

func (w *Writer) write(ctx context.Context, dst string, tbl arrow.Table, format string, encode func(arrow.Table) ([]byte, error)) error {
	start := time.Now()

	data, err := encode(tbl)
	if err != nil {
		return fmt.Errorf("%s: %w", dst, err)
	}
	if err := w.backend.Write(ctx, dst, data); err != nil {
		return fmt.Errorf("%s: %w", dst, err)
	}
	metrics.Get().IncFilesWritten()
	metrics.Get().IncBytesWritten(int64(len(data)))

	w.logger.Debug().
		Str("path", dst).
		Str("format", format).
		Int64("columns", tbl.NumCols()).
		Int64("rows", tbl.NumRows()).
		Int("size", len(data)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Wrote table")
	return nil
}
