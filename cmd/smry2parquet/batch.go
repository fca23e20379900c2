package main

import (
	"context"
	"fmt"

	"github.com/sigurdp/exp-smry2parquet/internal/convert"
	"github.com/spf13/cobra"
)

func newBatchCmd(gf *globalFlags) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "batch [pattern...]",
		Short: "Convert every realization of an ensemble",
		Long: `Convert every summary case matched by the glob patterns (default:
batch.pattern) in parallel. The realization index is taken from the
right-most path component matching batch.realization_pattern, and each
output is named by batch.output_template.

Example:
  smry2parquet batch "ens/realization-*/iter-0/eclipse/model/*.UNSMRY" --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := setup(cmd, gf, map[string]string{
				"batch.workers":              "workers",
				"batch.realization_pattern":  "realization-pattern",
				"batch.output_template":      "output-template",
				"batch.tag_realization":      "tag",
				"batch.continue_on_error":    "continue-on-error",
				"batch.skip_existing":        "skip-existing",
				"output.compression":         "compression",
				"output.write_feather":       "feather",
				"output.feather_compression": "feather-compression",
			})
			if err != nil {
				return err
			}
			return a.finish(runBatch(ctx, a, args, prefix))
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Directory on the storage backend receiving the outputs")
	cmd.Flags().Int("workers", 0, "Concurrent conversions (default: number of CPUs)")
	cmd.Flags().String("realization-pattern", "", `Regexp with one capture group for the realization index (default "realization-(\d+)")`)
	cmd.Flags().String("output-template", "", `Output name template taking the realization index (default "summary_r%03d.parquet")`)
	cmd.Flags().Bool("tag", false, "Add the REAL column to each converted file")
	cmd.Flags().Bool("continue-on-error", false, "Keep converting after a failure and report all failures at the end")
	cmd.Flags().Bool("skip-existing", false, "Skip realizations whose output already exists")
	addOutputFlags(cmd)
	return cmd
}

func runBatch(ctx context.Context, a *app, patterns []string, prefix string) error {
	if len(patterns) == 0 {
		patterns = []string{a.cfg.Batch.Pattern}
	}
	re, err := convert.CompileRealizationPattern(a.cfg.Batch.RealizationPattern)
	if err != nil {
		return err
	}
	entries, err := convert.Discover(patterns, re, a.logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no summary files with a realization index match %v", patterns)
	}
	a.logger.Info().Int("realizations", len(entries)).Msg("Discovered summary files")

	_, err = a.converter.ConvertBatch(ctx, entries, prefix)
	return err
}
