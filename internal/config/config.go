package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for smry2parquet
type Config struct {
	Log     LogConfig
	Output  OutputConfig
	Storage StorageConfig
	Batch   BatchConfig
	Concat  ConcatConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type OutputConfig struct {
	Compression        string // Parquet compression: snappy, gzip, zstd, lz4, brotli, none
	DataPageVersion    string // Parquet data page version: 1.0 or 2.0
	UseDictionary      bool   // Use dictionary encoding
	WriteStatistics    bool   // Write Parquet statistics
	RowGroupSize       int64  // Rows per Parquet row group
	WriteFeather       bool   // Also write an Arrow IPC (.arrow) file next to each Parquet file
	FeatherCompression string // Arrow IPC body compression: none, lz4, zstd
}

type StorageConfig struct {
	Backend   string
	LocalPath string
	// S3/MinIO configuration
	S3Bucket           string
	S3Region           string
	S3Endpoint         string // Custom endpoint for MinIO (e.g., "http://localhost:9000")
	S3AccessKey        string // AWS access key (or use AWS_ACCESS_KEY_ID env var)
	S3SecretKey        string // AWS secret key (or use AWS_SECRET_ACCESS_KEY env var)
	S3UseSSL           bool
	S3PathStyle        bool  // Use path-style addressing (required for MinIO)
	MultipartThreshold int64 // Uploads at or above this size use multipart (S3)
	// Azure Blob Storage configuration
	AzureConnectionString   string
	AzureAccountName        string
	AzureAccountKey         string
	AzureSASToken           string
	AzureContainer          string
	AzureEndpoint           string // Custom endpoint (for Azurite testing)
	AzureUseManagedIdentity bool
}

type BatchConfig struct {
	Workers            int    // Concurrent conversions (default: CPU count, max 64)
	Pattern            string // Glob selecting summary files
	RealizationPattern string // Regexp with one capture group for the realization index
	OutputTemplate     string // fmt template taking the realization index
	TagRealization     bool   // Add the REAL column to each converted file
	ContinueOnError    bool   // Keep converting after a failure and report all errors at the end
	SkipExisting       bool   // Leave realizations whose output already exists untouched
	Manifest           string // Name of the run manifest written next to the outputs ("" disables)
}

type ConcatConfig struct {
	OutputName         string
	RealizationPattern string // Regexp with one capture group, matched against input file names
	MetadataConflict   string // first or error
}

// Option customizes Load.
type Option func(*loader)

type loader struct {
	file  string
	flags map[string]*pflag.Flag
}

// WithConfigFile reads path instead of searching for smry2parquet.toml.
func WithConfigFile(path string) Option {
	return func(l *loader) { l.file = path }
}

// WithFlag binds a command-line flag to a configuration key. A flag set
// on the command line overrides environment and file values.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(l *loader) {
		if flag != nil {
			l.flags[key] = flag
		}
	}
}

func Load(opts ...Option) (*Config, error) {
	l := &loader{flags: make(map[string]*pflag.Flag)}
	for _, opt := range opts {
		opt(l)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("SMRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName("smry2parquet")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/smry2parquet/")
		v.AddConfigPath("$HOME/.smry2parquet/")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.file != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	threshold, err := ParseSize(v.GetString("storage.multipart_threshold"))
	if err != nil {
		return nil, fmt.Errorf("invalid storage.multipart_threshold: %w", err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Output: OutputConfig{
			Compression:        strings.ToLower(v.GetString("output.compression")),
			DataPageVersion:    v.GetString("output.data_page_version"),
			UseDictionary:      v.GetBool("output.use_dictionary"),
			WriteStatistics:    v.GetBool("output.write_statistics"),
			RowGroupSize:       v.GetInt64("output.row_group_size"),
			WriteFeather:       v.GetBool("output.write_feather"),
			FeatherCompression: strings.ToLower(v.GetString("output.feather_compression")),
		},
		Storage: StorageConfig{
			Backend:                 v.GetString("storage.backend"),
			LocalPath:               v.GetString("storage.local_path"),
			S3Bucket:                v.GetString("storage.s3_bucket"),
			S3Region:                v.GetString("storage.s3_region"),
			S3Endpoint:              v.GetString("storage.s3_endpoint"),
			S3AccessKey:             v.GetString("storage.s3_access_key"),
			S3SecretKey:             v.GetString("storage.s3_secret_key"),
			S3UseSSL:                v.GetBool("storage.s3_use_ssl"),
			S3PathStyle:             v.GetBool("storage.s3_path_style"),
			MultipartThreshold:      threshold,
			AzureConnectionString:   v.GetString("storage.azure_connection_string"),
			AzureAccountName:        v.GetString("storage.azure_account_name"),
			AzureAccountKey:         v.GetString("storage.azure_account_key"),
			AzureSASToken:           v.GetString("storage.azure_sas_token"),
			AzureContainer:          v.GetString("storage.azure_container"),
			AzureEndpoint:           v.GetString("storage.azure_endpoint"),
			AzureUseManagedIdentity: v.GetBool("storage.azure_use_managed_identity"),
		},
		Batch: BatchConfig{
			Workers:            v.GetInt("batch.workers"),
			Pattern:            v.GetString("batch.pattern"),
			RealizationPattern: v.GetString("batch.realization_pattern"),
			OutputTemplate:     v.GetString("batch.output_template"),
			TagRealization:     v.GetBool("batch.tag_realization"),
			ContinueOnError:    v.GetBool("batch.continue_on_error"),
			SkipExisting:       v.GetBool("batch.skip_existing"),
			Manifest:           v.GetString("batch.manifest"),
		},
		Concat: ConcatConfig{
			OutputName:         v.GetString("concat.output_name"),
			RealizationPattern: v.GetString("concat.realization_pattern"),
			MetadataConflict:   strings.ToLower(v.GetString("concat.metadata_conflict")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Output defaults
	v.SetDefault("output.compression", "zstd")
	v.SetDefault("output.data_page_version", "2.0")
	v.SetDefault("output.use_dictionary", true)
	v.SetDefault("output.write_statistics", true)
	v.SetDefault("output.row_group_size", 1024*1024)
	v.SetDefault("output.write_feather", false)
	v.SetDefault("output.feather_compression", "none")

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_path", "./output")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_use_ssl", true)
	v.SetDefault("storage.s3_path_style", false)
	v.SetDefault("storage.multipart_threshold", "100MB")
	v.SetDefault("storage.azure_use_managed_identity", false)

	// Batch defaults
	v.SetDefault("batch.workers", getDefaultWorkers())
	v.SetDefault("batch.pattern", "realization-*/eclipse/model/*.UNSMRY")
	v.SetDefault("batch.realization_pattern", `realization-(\d+)`)
	v.SetDefault("batch.output_template", "summary_r%03d.parquet")
	v.SetDefault("batch.tag_realization", false)
	v.SetDefault("batch.continue_on_error", false)
	v.SetDefault("batch.skip_existing", false)
	v.SetDefault("batch.manifest", "batch_manifest.json")

	// Concat defaults
	v.SetDefault("concat.output_name", "concat.parquet")
	v.SetDefault("concat.realization_pattern", `summary_r(\d+)`)
	v.SetDefault("concat.metadata_conflict", "first")
}

func getDefaultWorkers() int {
	workers := runtime.NumCPU()
	if workers < 1 {
		return 1
	}
	if workers > 64 {
		return 64 // Cap to avoid excessive resource usage
	}
	return workers
}

// Validate checks values that would otherwise fail deep inside a run.
func (cfg *Config) Validate() error {
	switch cfg.Output.Compression {
	case "snappy", "gzip", "zstd", "lz4", "brotli", "none":
	default:
		return fmt.Errorf("invalid output.compression %q", cfg.Output.Compression)
	}
	if cfg.Output.DataPageVersion != "1.0" && cfg.Output.DataPageVersion != "2.0" {
		return fmt.Errorf("invalid output.data_page_version %q (want 1.0 or 2.0)", cfg.Output.DataPageVersion)
	}
	switch cfg.Output.FeatherCompression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("invalid output.feather_compression %q", cfg.Output.FeatherCompression)
	}
	if cfg.Output.RowGroupSize <= 0 {
		return fmt.Errorf("output.row_group_size must be positive")
	}

	switch cfg.Storage.Backend {
	case "local", "s3", "azure":
	default:
		return fmt.Errorf("invalid storage.backend %q (want local, s3 or azure)", cfg.Storage.Backend)
	}

	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1")
	}
	if err := validateRealizationPattern("batch.realization_pattern", cfg.Batch.RealizationPattern); err != nil {
		return err
	}
	if !strings.Contains(cfg.Batch.OutputTemplate, "%") {
		return fmt.Errorf("batch.output_template %q has no verb for the realization index", cfg.Batch.OutputTemplate)
	}

	if cfg.Concat.OutputName == "" {
		return fmt.Errorf("concat.output_name is empty")
	}
	if err := validateRealizationPattern("concat.realization_pattern", cfg.Concat.RealizationPattern); err != nil {
		return err
	}
	if cfg.Concat.MetadataConflict != "first" && cfg.Concat.MetadataConflict != "error" {
		return fmt.Errorf("invalid concat.metadata_conflict %q (want first or error)", cfg.Concat.MetadataConflict)
	}
	return nil
}

func validateRealizationPattern(key, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if re.NumSubexp() != 1 {
		return fmt.Errorf("%s must have exactly one capture group, got %d", key, re.NumSubexp())
	}
	return nil
}

// ParseSize parses a human-readable size string (e.g., "1GB", "500MB", "100KB") to bytes.
// Supports: B, KB, MB, GB (case-insensitive).
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, unit := range units {
		if !strings.HasSuffix(sizeStr, unit.suffix) {
			continue
		}
		numStr := strings.TrimSpace(strings.TrimSuffix(sizeStr, unit.suffix))

		var num float64
		var trailing string
		n, _ := fmt.Sscanf(numStr, "%f%s", &num, &trailing)
		if n == 0 {
			return 0, fmt.Errorf("invalid size number: %s", numStr)
		}
		if trailing != "" {
			return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
		}
		if num < 0 {
			return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
		}
		return int64(num * float64(unit.multiplier)), nil
	}

	// Plain number of bytes
	var num int64
	var trailing string
	n, _ := fmt.Sscanf(sizeStr, "%d%s", &num, &trailing)
	if n == 0 || trailing != "" {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
	}
	if num < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}
	return num, nil
}
