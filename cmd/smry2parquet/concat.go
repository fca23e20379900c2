package main

import (
	"context"
	"fmt"
	"path"

	"github.com/sigurdp/exp-smry2parquet/internal/columnar"
	"github.com/sigurdp/exp-smry2parquet/internal/convert"
	"github.com/spf13/cobra"
)

func newConcatCmd(gf *globalFlags) *cobra.Command {
	var (
		prefix string
		format string
	)

	cmd := &cobra.Command{
		Use:   "concat",
		Short: "Merge converted realizations into one table",
		Long: `Read every converted realization stored under --prefix, add the REAL
column to each and write the union of their columns as one table.
Columns missing from a realization are filled with nulls.

Example:
  smry2parquet concat -o ./output --format arrow --metadata-conflict error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := setup(cmd, gf, map[string]string{
				"concat.output_name":         "output",
				"concat.realization_pattern": "realization-pattern",
				"concat.metadata_conflict":   "metadata-conflict",
				"batch.workers":              "workers",
				"output.compression":         "compression",
				"output.write_feather":       "feather",
				"output.feather_compression": "feather-compression",
			})
			if err != nil {
				return err
			}
			return a.finish(runConcat(ctx, a, prefix, format))
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Directory on the storage backend holding the realization tables")
	cmd.Flags().StringVar(&format, "format", "parquet", "Input table format (parquet, arrow)")
	cmd.Flags().String("output", "", `Name of the merged table under --prefix (default "concat.parquet")`)
	cmd.Flags().String("realization-pattern", "", `Regexp with one capture group matched against input names (default "summary_r(\d+)")`)
	cmd.Flags().String("metadata-conflict", "", "What to do when realizations disagree on column metadata (first, error)")
	cmd.Flags().Int("workers", 0, "Concurrent table reads (default: number of CPUs)")
	addOutputFlags(cmd)
	return cmd
}

func runConcat(ctx context.Context, a *app, prefix, format string) error {
	ext := ".parquet"
	switch format {
	case "parquet":
	case "arrow", "feather":
		ext = columnar.FeatherExt
	default:
		return fmt.Errorf("unsupported input format %q", format)
	}

	re, err := convert.CompileRealizationPattern(a.cfg.Concat.RealizationPattern)
	if err != nil {
		return err
	}
	entries, err := convert.DiscoverOutputs(ctx, a.backend, prefix, ext, re, a.logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no %s tables with a realization index under %s", ext, a.backend.URI(prefix))
	}
	a.logger.Info().Int("realizations", len(entries)).Msg("Discovered realization tables")

	res, err := a.converter.ConcatFiles(ctx, entries, path.Join(prefix, a.cfg.Concat.OutputName))
	if err != nil {
		return err
	}
	for _, out := range res.Outputs {
		fmt.Println(a.backend.URI(out))
	}
	return nil
}
