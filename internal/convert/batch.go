package convert

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sigurdp/exp-smry2parquet/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Manifest records the outcome of a batch run.
type Manifest struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Tagged      bool      `json:"tagged"`
	Converted   int       `json:"converted"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Results     []*Result `json:"results"`
}

// newRunID creates a short identifier that ties the log lines of one run
// together.
func newRunID(kind string) string {
	return fmt.Sprintf("%s-%s-%s", kind, time.Now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
}

// OutputPath returns where realization real is stored under prefix.
func (c *Converter) OutputPath(prefix string, real int) string {
	return path.Join(prefix, fmt.Sprintf(c.cfg.Batch.OutputTemplate, real))
}

// ConvertBatch converts every entry with at most batch.workers
// conversions in flight. Outputs go under prefix on the backend. The
// first failure cancels the remaining work unless batch.continue_on_error
// is set, in which case every failure is reported in the joined error.
// The manifest is returned even when the run failed.
func (c *Converter) ConvertBatch(ctx context.Context, entries []Entry, prefix string) (*Manifest, error) {
	manifest := &Manifest{
		RunID:     newRunID("batch"),
		StartedAt: time.Now().UTC(),
		Tagged:    c.cfg.Batch.TagRealization,
		Results:   make([]*Result, len(entries)),
	}
	logger := c.logger.With().Str("run_id", manifest.RunID).Logger()
	logger.Info().
		Int("realizations", len(entries)).
		Int("workers", c.cfg.Batch.Workers).
		Str("output", c.backend.URI(prefix)).
		Msg("Starting batch conversion")

	var (
		mu     sync.Mutex
		failed []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Batch.Workers)
	for i, entry := range entries {
		g.Go(func() error {
			dst := c.OutputPath(prefix, entry.Realization)

			if c.cfg.Batch.SkipExisting {
				exists, err := c.backend.Exists(gctx, dst)
				if err != nil {
					return fmt.Errorf("realization %d: %w", entry.Realization, err)
				}
				if exists {
					real := entry.Realization
					manifest.Results[i] = &Result{Realization: &real, Source: entry.Path, Outputs: []string{dst}, Skipped: true}
					metrics.Get().IncFilesSkipped()
					logger.Debug().Int("realization", real).Str("output", dst).Msg("Output exists, skipping")
					return nil
				}
			}

			res, err := c.ConvertRealization(gctx, entry, dst, c.cfg.Batch.TagRealization)
			manifest.Results[i] = res
			if err == nil {
				return nil
			}
			err = fmt.Errorf("realization %d: %w", entry.Realization, err)
			res.Error = err.Error()
			if !c.cfg.Batch.ContinueOnError {
				return err
			}
			logger.Error().Err(err).Str("source", entry.Path).Msg("Conversion failed")
			mu.Lock()
			failed = append(failed, err)
			mu.Unlock()
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil && len(failed) > 0 {
		runErr = errors.Join(failed...)
	}

	manifest.CompletedAt = time.Now().UTC()
	done := manifest.Results[:0]
	for _, res := range manifest.Results {
		if res == nil {
			continue
		}
		done = append(done, res)
		switch {
		case res.Skipped:
			manifest.Skipped++
		case res.Error != "":
			manifest.Failed++
		default:
			manifest.Converted++
		}
	}
	manifest.Results = done

	if c.cfg.Batch.Manifest != "" {
		if err := c.writeManifest(ctx, path.Join(prefix, c.cfg.Batch.Manifest), manifest); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	logger.Info().
		Int("converted", manifest.Converted).
		Int("skipped", manifest.Skipped).
		Int("failed", manifest.Failed).
		Int64("duration_ms", manifest.CompletedAt.Sub(manifest.StartedAt).Milliseconds()).
		Msg("Batch conversion finished")
	return manifest, runErr
}

func (c *Converter) writeManifest(ctx context.Context, dst string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := c.backend.Write(ctx, dst, data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
