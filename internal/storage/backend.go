package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/config"
)

// ErrNotFound is returned by Read for objects that do not exist.
var ErrNotFound = errors.New("object not found")

// Backend defines the interface for output storage (local, S3/MinIO, Azure Blob).
// Every write replaces the whole object; readers never observe a partial file.
type Backend interface {
	// Write writes data to the specified path, replacing any existing object
	Write(ctx context.Context, path string, data []byte) error

	// Read reads data from the specified path
	Read(ctx context.Context, path string) ([]byte, error)

	// List lists all objects with the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete deletes the object at the specified path
	Delete(ctx context.Context, path string) error

	// Exists checks if an object exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// Close closes any resources held by the backend
	Close() error

	// Type returns the storage type identifier ("local", "s3", "azure")
	Type() string

	// URI returns a display location for path, used in logs and CLI output
	URI(path string) string
}

// New creates the backend selected by cfg.Backend.
func New(cfg *config.StorageConfig, logger zerolog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalBackend(cfg.LocalPath, logger)
	case "s3", "minio":
		return NewS3Backend(&S3Config{
			Bucket:             cfg.S3Bucket,
			Region:             cfg.S3Region,
			Endpoint:           cfg.S3Endpoint,
			AccessKey:          cfg.S3AccessKey,
			SecretKey:          cfg.S3SecretKey,
			UseSSL:             cfg.S3UseSSL,
			PathStyle:          cfg.S3PathStyle,
			MultipartThreshold: cfg.MultipartThreshold,
		}, logger)
	case "azure", "azblob":
		return NewAzureBlobBackend(&AzureBlobConfig{
			ConnectionString:   cfg.AzureConnectionString,
			AccountName:        cfg.AzureAccountName,
			AccountKey:         cfg.AzureAccountKey,
			SASToken:           cfg.AzureSASToken,
			UseManagedIdentity: cfg.AzureUseManagedIdentity,
			ContainerName:      cfg.AzureContainer,
			Endpoint:           cfg.AzureEndpoint,
		}, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// contentType returns the MIME type stored with object uploads.
func contentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(path, ".arrow"), strings.HasSuffix(path, ".feather"):
		return "application/vnd.apache.arrow.file"
	}
	return "application/octet-stream"
}
