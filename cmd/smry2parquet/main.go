package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sigurdp/exp-smry2parquet/internal/config"
	"github.com/sigurdp/exp-smry2parquet/internal/convert"
	"github.com/sigurdp/exp-smry2parquet/internal/logger"
	"github.com/sigurdp/exp-smry2parquet/internal/metrics"
	"github.com/sigurdp/exp-smry2parquet/internal/shutdown"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

// globalFlags are accepted by every command.
type globalFlags struct {
	configFile  string
	metricsFile string
}

// app is the state shared by one command run.
type app struct {
	cfg         *config.Config
	backend     storage.Backend
	converter   *convert.Converter
	coordinator *shutdown.Coordinator
	logger      zerolog.Logger
}

func main() {
	var gf globalFlags

	root := &cobra.Command{
		Use:   "smry2parquet",
		Short: "Convert reservoir simulation summary files to Parquet",
		Long: `smry2parquet converts ECLIPSE summary cases (.SMSPEC + .UNSMRY) into
typed, self-describing Parquet tables and merges per-realization tables of
an ensemble into one table tagged by realization.

Settings come from flags, SMRY_* environment variables and an optional
smry2parquet.toml, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.configFile, "config", "", "Path to a TOML config file (default: search for smry2parquet.toml)")
	root.PersistentFlags().StringVar(&gf.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "Log format (console, json)")
	root.PersistentFlags().String("storage", "", "Storage backend for outputs (local, s3, azure)")
	root.PersistentFlags().StringP("output-dir", "o", "", "Base directory of the local storage backend")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smry2parquet %s\n", Version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(
		newConvertCmd(&gf),
		newBatchCmd(&gf),
		newConcatCmd(&gf),
		newInspectCmd(&gf),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration with the command's flags bound to their keys,
// configures logging and opens the storage backend.
func setup(cmd *cobra.Command, gf *globalFlags, bindings map[string]string) (*app, context.Context, error) {
	opts := []config.Option{
		config.WithFlag("log.level", cmd.Flags().Lookup("log-level")),
		config.WithFlag("log.format", cmd.Flags().Lookup("log-format")),
		config.WithFlag("storage.backend", cmd.Flags().Lookup("storage")),
		config.WithFlag("storage.local_path", cmd.Flags().Lookup("output-dir")),
	}
	if gf.configFile != "" {
		opts = append(opts, config.WithConfigFile(gf.configFile))
	}
	for key, flag := range bindings {
		opts = append(opts, config.WithFlag(key, cmd.Flags().Lookup(flag)))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	a := &app{
		cfg:         cfg,
		coordinator: shutdown.New(30*time.Second, logger.Get("shutdown")),
		logger:      logger.Get(cmd.Name()),
	}
	m := metrics.Init(logger.Get("metrics"))

	a.backend, err = storage.New(&cfg.Storage, logger.Get("storage"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	a.coordinator.Register("storage", a.backend, shutdown.PriorityStorage)
	a.coordinator.RegisterHook("metrics", func(ctx context.Context) error {
		m.LogSummary()
		if gf.metricsFile == "" {
			return nil
		}
		return m.WriteTextfile(gf.metricsFile)
	}, shutdown.PriorityMetrics)

	a.converter = convert.NewConverter(cfg, a.backend, logger.Get("convert"))

	log.Debug().
		Str("version", Version).
		Str("storage", cfg.Storage.Backend).
		Str("output", a.backend.URI("")).
		Msg("Configuration loaded")
	return a, a.coordinator.Context(cmd.Context()), nil
}

// finish runs cleanup and folds its error into the command's error.
func (a *app) finish(err error) error {
	if cerr := a.coordinator.Shutdown(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
