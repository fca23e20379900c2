package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newConvertCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <case> [output]",
		Short: "Convert one summary case",
		Long: `Convert one summary case to Parquet. <case> may name the .SMSPEC or
.UNSMRY file or the case stem; compressed inputs (.gz, .zst, .lz4) are
read transparently. [output] is a path on the storage backend and
defaults to <CASE>.parquet.

Example:
  smry2parquet convert realization-0/eclipse/model/DROGON-0.UNSMRY -o ./output`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := setup(cmd, gf, map[string]string{
				"output.compression":         "compression",
				"output.write_feather":       "feather",
				"output.feather_compression": "feather-compression",
			})
			if err != nil {
				return err
			}

			dst := defaultOutputName(args[0])
			if len(args) == 2 {
				dst = args[1]
			}
			_, err = a.converter.ConvertFile(ctx, args[0], dst)
			return a.finish(err)
		},
	}
	addOutputFlags(cmd)
	return cmd
}

// addOutputFlags registers the flags shared by commands writing tables.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("compression", "", "Parquet compression (zstd, snappy, gzip, lz4, brotli, none)")
	cmd.Flags().Bool("feather", false, "Also write an Arrow IPC (.arrow) file next to each Parquet file")
	cmd.Flags().String("feather-compression", "", "Arrow IPC compression (none, lz4, zstd)")
}

// defaultOutputName maps DIR/CASE.UNSMRY to CASE.parquet.
func defaultOutputName(src string) string {
	base := filepath.Base(src)
	for _, ext := range []string{".gz", ".zst", ".lz4"} {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".parquet"
}
