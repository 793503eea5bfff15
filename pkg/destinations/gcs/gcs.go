// Package gcs stores backup artifacts in a Google Cloud Storage bucket.
// Folders are object name prefixes.
package gcs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

const defaultUploadTimeout = 5 * time.Minute

func init() {
	_ = destinations.Register(config.StorageGCS, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (destinations.Backend, error) {
		return New(ctx, cfg, logger)
	})
}

// Backend writes objects to a single bucket
type Backend struct {
	client       *storage.Client
	bucket       string
	bucketHandle *storage.BucketHandle
	chunkSize    int
	logger       *zap.Logger
}

// New creates a GCS backend. Bucket access is checked lazily by MakeFolder.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger, extra ...option.ClientOption) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	return &Backend{
		client:       client,
		bucket:       cfg.Bucket,
		bucketHandle: client.Bucket(cfg.Bucket),
		chunkSize:    cfg.ChunkSize,
		logger:       logger,
	}, nil
}

// Name returns the storage type name
func (b *Backend) Name() string { return config.StorageGCS }

// MakeFolder verifies the bucket is reachable and returns parentID/name as
// the new prefix. GCS has no real folders, so nothing is written.
func (b *Backend) MakeFolder(ctx context.Context, parentID, name string) (string, error) {
	if _, err := b.bucketHandle.Attrs(ctx); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to access bucket").
			WithDetail("bucket", b.bucket)
	}
	prefix := destinations.JoinKey(parentID, name)
	b.logger.Debug("using GCS prefix", zap.String("bucket", b.bucket), zap.String("prefix", prefix))
	return prefix, nil
}

// Upload copies the file to <folderID>/<basename> and returns its gs:// URI
func (b *Backend) Upload(ctx context.Context, localPath, folderID string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // path comes from the serializer
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open artifact")
	}
	defer f.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, defaultUploadTimeout)
	defer cancel()

	key := ObjectKey(folderID, localPath)
	writer := b.bucketHandle.Object(key).NewWriter(uploadCtx)
	writer.ContentType = destinations.ContentType(localPath)
	writer.ChunkSize = b.chunkSize
	writer.Metadata = map[string]string{
		"source_file": filepath.Base(localPath),
	}

	if _, err := io.Copy(writer, f); err != nil {
		_ = writer.Close()
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to write object").
			WithDetail("key", key)
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to finalize object").
			WithDetail("key", key)
	}
	return URI(b.bucket, key), nil
}

// Close releases the storage client
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// ObjectKey returns the object name of localPath inside folderID
func ObjectKey(folderID, localPath string) string {
	return destinations.JoinKey(folderID, filepath.Base(localPath))
}

// URI formats a gs:// object URI
func URI(bucket, key string) string {
	return "gs://" + bucket + "/" + key
}
