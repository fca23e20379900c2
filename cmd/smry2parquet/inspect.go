package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/sigurdp/exp-smry2parquet/internal/convert"
	"github.com/sigurdp/exp-smry2parquet/internal/logger"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
	"github.com/sigurdp/exp-smry2parquet/internal/table"
	"github.com/spf13/cobra"
)

func newInspectCmd(gf *globalFlags) *cobra.Command {
	var columns []string

	cmd := &cobra.Command{
		Use:   "inspect <table>",
		Short: "Describe a converted table",
		Long: `Print the schema, row count, date range and column metadata of a
Parquet or Arrow IPC table. A path that exists on the local filesystem is
read directly; anything else is read from the storage backend.

Example:
  smry2parquet inspect output/concat.parquet --column FOPR --column "WOPR:OP_1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := setup(cmd, gf, nil)
			if err != nil {
				return err
			}
			return a.finish(runInspect(ctx, a, args[0], columns, os.Stdout))
		},
	}
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Print the metadata record of this column (repeatable; default: first and last)")
	return cmd
}

func runInspect(ctx context.Context, a *app, target string, columns []string, w io.Writer) error {
	converter, p := a.converter, target
	if _, err := os.Stat(target); err == nil {
		local, err := storage.NewLocalBackend(filepath.Dir(target), logger.Get("storage"))
		if err != nil {
			return err
		}
		defer local.Close()
		converter, p = convert.NewConverter(a.cfg, local, logger.Get("convert")), filepath.Base(target)
	}

	info, err := converter.Inspect(ctx, p)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", info.Path)
	fmt.Fprintf(tw, "Format:\t%s\n", info.Format)
	fmt.Fprintf(tw, "Rows:\t%d\n", info.Rows)
	fmt.Fprintf(tw, "Columns:\t%d\n", info.Schema.NumFields())
	if info.Parquet != nil {
		fmt.Fprintf(tw, "Row groups:\t%d\n", info.Parquet.RowGroups)
		fmt.Fprintf(tw, "Created by:\t%s\n", info.Parquet.CreatedBy)
	}
	if info.FirstDate != nil {
		fmt.Fprintf(tw, "First DATE:\t%s\n", info.FirstDate)
		fmt.Fprintf(tw, "Last DATE:\t%s\n", info.LastDate)
	}
	if len(info.Realizations) > 0 {
		fmt.Fprintf(tw, "Realizations:\t%d (%d..%d)\n", len(info.Realizations),
			info.Realizations[0], info.Realizations[len(info.Realizations)-1])
	}
	fmt.Fprintln(tw, "\nSchema:")
	for _, f := range info.Schema.Fields() {
		unit := ""
		if meta, ok, err := table.ColumnMeta(f); err == nil && ok {
			unit = meta.Unit
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Type, unit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(columns) == 0 {
		names := info.Meta.Names()
		if len(names) > 0 {
			columns = []string{names[0]}
		}
		if len(names) > 1 {
			columns = append(columns, names[len(names)-1])
		}
	}
	fmt.Fprintln(w)
	for _, name := range columns {
		meta, ok := info.Meta.Get(name)
		if !ok {
			fmt.Fprintf(w, "metadata for %s: none\n", name)
			continue
		}
		blob, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "metadata for %s: %s\n", name, blob)
	}
	return nil
}
