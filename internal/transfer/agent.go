// Package transfer moves finished artifacts off the host.
package transfer

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	"github.com/ajitpratap0/nebula-backup/pkg/logger"
	"github.com/ajitpratap0/nebula-backup/pkg/metrics"
	"github.com/ajitpratap0/nebula-backup/pkg/observability"
)

// Agent uploads artifacts to a storage backend and removes the local copy
// once the backend confirms the upload.
type Agent struct {
	backend destinations.Backend
	remove  func(string) error
	logger  *zap.Logger
}

// New creates an Agent for backend
func New(backend destinations.Backend, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		backend: backend,
		remove:  os.Remove,
		logger:  log.With(zap.String("component", "transfer"), zap.String("backend", backend.Name())),
	}
}

// Backend returns the storage backend
func (a *Agent) Backend() destinations.Backend {
	return a.backend
}

// MakeFolder creates a folder called name under parentID
func (a *Agent) MakeFolder(ctx context.Context, parentID, name string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "make_folder")
	defer span.End()
	span.SetAttribute("name", name)

	id, err := a.backend.MakeFolder(ctx, parentID, name)
	if err != nil {
		span.Fail(err)
		return "", ensureTransfer(err, "folder creation failed")
	}

	logger.FromContext(ctx, a.logger).Info("created folder",
		zap.String("name", name),
		zap.String("folder_id", id))
	return id, nil
}

// Transfer uploads localPath into folderID and returns the remote ID. The
// local file is deleted only after a successful upload; on failure it stays
// in place. A failed delete is logged and does not fail the transfer.
func (a *Agent) Transfer(ctx context.Context, localPath, folderID string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "transfer")
	defer span.End()
	span.SetAttribute("file", localPath)

	log := logger.FromContext(ctx, a.logger)
	backend := a.backend.Name()

	timer := metrics.NewTimer("upload")
	remoteID, err := a.backend.Upload(ctx, localPath, folderID)
	metrics.UploadLatency.WithLabelValues(backend).Observe(timer.Stop().Seconds())

	if err != nil {
		metrics.Uploads.WithLabelValues(backend, "failure").Inc()
		span.Fail(err)
		log.Error("upload failed, keeping local file",
			zap.String("file", localPath),
			zap.Error(err))
		return "", ensureTransfer(err, "upload failed")
	}
	metrics.Uploads.WithLabelValues(backend, "success").Inc()
	span.SetAttribute("remote_id", remoteID)

	log.Info("uploaded",
		zap.String("file", localPath),
		zap.String("remote_id", remoteID))

	if err := a.remove(localPath); err != nil {
		log.Warn("failed to delete local file after upload",
			zap.String("file", localPath),
			zap.Error(err))
	} else {
		log.Debug("deleted local file", zap.String("file", localPath))
	}
	return remoteID, nil
}

// ensureTransfer keeps typed backend errors and wraps anything else
func ensureTransfer(err error, message string) error {
	var typed *errors.Error
	if errors.As(err, &typed) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeTransfer, message)
}
