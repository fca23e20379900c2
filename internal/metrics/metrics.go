// Package metrics counts conversion work for the end-of-run summary and
// for export in Prometheus text format.
package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const namespace = "smry2parquet"

// Metrics holds the conversion counters of one process.
type Metrics struct {
	startTime time.Time

	// Conversion
	filesConverted atomic.Int64
	filesFailed    atomic.Int64
	filesSkipped   atomic.Int64
	vectorsRead    atomic.Int64
	rowsWritten    atomic.Int64

	// Output
	filesWritten atomic.Int64
	bytesWritten atomic.Int64

	// Concatenation
	concatRuns   atomic.Int64
	concatInputs atomic.Int64

	convertDuration prometheus.Histogram
	registry        *prometheus.Registry

	logger zerolog.Logger
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// Init attaches a logger to the singleton metrics instance.
func Init(logger zerolog.Logger) *Metrics {
	m := Get()
	m.logger = logger.With().Str("component", "metrics").Logger()
	return m
}

// New creates an unshared metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		logger:    zerolog.Nop(),
	}
	m.convertDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "convert_duration_seconds",
		Help:      "Time to convert one summary case",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	m.registry.MustRegister(
		m.convertDuration,
		counter("files_converted_total", "Summary cases converted", &m.filesConverted),
		counter("files_failed_total", "Summary cases that failed to convert", &m.filesFailed),
		counter("files_skipped_total", "Summary cases skipped because the output existed", &m.filesSkipped),
		counter("vectors_read_total", "Vectors read from summary files", &m.vectorsRead),
		counter("rows_written_total", "Table rows written", &m.rowsWritten),
		counter("output_files_written_total", "Output files written", &m.filesWritten),
		counter("output_bytes_written_total", "Bytes of encoded output written", &m.bytesWritten),
		counter("concat_runs_total", "Ensemble concatenations performed", &m.concatRuns),
		counter("concat_inputs_total", "Tables consumed by concatenation", &m.concatInputs),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the process started",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
	)
	return m
}

// Conversion Metrics
func (m *Metrics) IncFilesConverted()         { m.filesConverted.Add(1) }
func (m *Metrics) IncFilesFailed()            { m.filesFailed.Add(1) }
func (m *Metrics) IncFilesSkipped()           { m.filesSkipped.Add(1) }
func (m *Metrics) IncVectorsRead(count int64) { m.vectorsRead.Add(count) }
func (m *Metrics) IncRowsWritten(count int64) { m.rowsWritten.Add(count) }

// ObserveConvert records the wall time of one conversion.
func (m *Metrics) ObserveConvert(d time.Duration) {
	m.convertDuration.Observe(d.Seconds())
}

// Output Metrics
func (m *Metrics) IncFilesWritten()            { m.filesWritten.Add(1) }
func (m *Metrics) IncBytesWritten(bytes int64) { m.bytesWritten.Add(bytes) }

// IncConcat records one concatenation over inputs tables.
func (m *Metrics) IncConcat(inputs int64) {
	m.concatRuns.Add(1)
	m.concatInputs.Add(inputs)
}

// Registry exposes the Prometheus registry backing the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in Prometheus text format,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Snapshot returns all counters as a map
func (m *Metrics) Snapshot() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"uptime_seconds":     time.Since(m.startTime).Seconds(),
		"memory_alloc_bytes": memStats.Alloc,
		"gc_cycles":          memStats.NumGC,

		"files_converted": m.filesConverted.Load(),
		"files_failed":    m.filesFailed.Load(),
		"files_skipped":   m.filesSkipped.Load(),
		"vectors_read":    m.vectorsRead.Load(),
		"rows_written":    m.rowsWritten.Load(),

		"output_files_written": m.filesWritten.Load(),
		"output_bytes_written": m.bytesWritten.Load(),

		"concat_runs":   m.concatRuns.Load(),
		"concat_inputs": m.concatInputs.Load(),
	}
}

// LogSummary logs the counters at info level.
func (m *Metrics) LogSummary() {
	m.logger.Info().
		Int64("files_converted", m.filesConverted.Load()).
		Int64("files_failed", m.filesFailed.Load()).
		Int64("files_skipped", m.filesSkipped.Load()).
		Int64("rows_written", m.rowsWritten.Load()).
		Int64("bytes_written", m.bytesWritten.Load()).
		Int64("concat_runs", m.concatRuns.Load()).
		Dur("elapsed", time.Since(m.startTime)).
		Msg("Run summary")
}
