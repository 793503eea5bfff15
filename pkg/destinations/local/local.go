// Package local stores backup artifacts in a directory tree. It backs
// dry runs and single-host deployments.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

func init() {
	_ = destinations.Register(config.StorageLocal, func(_ context.Context, cfg config.StorageConfig, logger *zap.Logger) (destinations.Backend, error) {
		return New(logger), nil
	})
}

// Backend copies files into directories. Folder IDs are directory paths.
type Backend struct {
	logger *zap.Logger
}

// New creates a local backend
func New(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger}
}

// Name returns the storage type name
func (b *Backend) Name() string { return config.StorageLocal }

// MakeFolder creates parentID/name, including missing parents
func (b *Backend) MakeFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "folder creation canceled")
	}

	dir := filepath.Join(parentID, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to create directory").
			WithDetail("dir", dir)
	}
	return dir, nil
}

// Upload copies localPath into folderID through a temporary file and a
// rename, so a reader never sees a half-copied artifact.
func (b *Backend) Upload(ctx context.Context, localPath, folderID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "upload canceled")
	}

	src, err := os.Open(localPath) //nolint:gosec // path comes from the serializer
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open artifact")
	}
	defer src.Close()

	dest := filepath.Join(folderID, filepath.Base(localPath))
	tmp, err := os.CreateTemp(folderID, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to create destination file").
			WithDetail("folder", folderID)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to copy artifact")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to close destination file")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Wrap(err, errors.ErrorTypeTransfer, "failed to move artifact into place")
	}

	b.logger.Debug("copied artifact", zap.String("dest", dest))
	return dest, nil
}

// Close is a no-op
func (b *Backend) Close() error { return nil }
