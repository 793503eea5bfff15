// Package s3 stores backup artifacts in an S3 (or S3 compatible) bucket.
// Folders are key prefixes marked by a zero-byte "<prefix>/" object.
package s3

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

const defaultConcurrency = 4

func init() {
	_ = destinations.Register(config.StorageS3, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (destinations.Backend, error) {
		return New(ctx, cfg, logger)
	})
}

// Backend writes objects to a single bucket through the multipart uploader
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	logger   *zap.Logger
}

// New loads the default AWS credential chain for cfg.Region. A non-empty
// cfg.Endpoint switches to path-style addressing against that endpoint.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.ChunkSize >= int(manager.MinUploadPartSize) {
			u.PartSize = int64(cfg.ChunkSize)
		}
		u.Concurrency = defaultConcurrency
	})

	return &Backend{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		logger:   logger,
	}, nil
}

// Name returns the storage type name
func (b *Backend) Name() string { return config.StorageS3 }

// MakeFolder writes the folder marker object and returns the new prefix
func (b *Backend) MakeFolder(ctx context.Context, parentID, name string) (string, error) {
	prefix := destinations.JoinKey(parentID, name)

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(prefix + "/"),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String("application/x-directory"),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to create folder marker").
			WithDetail("bucket", b.bucket).
			WithDetail("prefix", prefix)
	}

	b.logger.Debug("created S3 folder marker", zap.String("bucket", b.bucket), zap.String("prefix", prefix))
	return prefix, nil
}

// Upload copies the file to <folderID>/<basename> and returns its s3:// URI
func (b *Backend) Upload(ctx context.Context, localPath, folderID string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // path comes from the serializer
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open artifact")
	}
	defer f.Close()

	key := ObjectKey(folderID, localPath)
	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(destinations.ContentType(localPath)),
		Metadata: map[string]string{
			"source-file": filepath.Base(localPath),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to upload to S3").
			WithDetail("bucket", b.bucket).
			WithDetail("key", key)
	}
	return URI(b.bucket, key), nil
}

// Close is a no-op; the SDK client holds no closable resources
func (b *Backend) Close() error { return nil }

// ObjectKey returns the key of localPath inside folderID
func ObjectKey(folderID, localPath string) string {
	return destinations.JoinKey(folderID, filepath.Base(localPath))
}

// URI formats an s3:// object URI
func URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
