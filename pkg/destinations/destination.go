// Package destinations defines the remote storage backends that receive
// backup artifacts. Each backend lives in its own subpackage and registers
// a factory under its storage type name from init():
//
//	import _ "github.com/ajitpratap0/nebula-backup/pkg/destinations/drive"
//
//	backend, err := destinations.Create(ctx, cfg.Storage, log)
package destinations

import (
	"context"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/pkg/compression"
	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

// FolderMimeType is the Google Drive MIME type of a folder
const FolderMimeType = "application/vnd.google-apps.folder"

// Backend is a remote storage location organized in folders.
type Backend interface {
	// Name returns the storage type name
	Name() string
	// MakeFolder creates a folder called name under parentID and returns its ID
	MakeFolder(ctx context.Context, parentID, name string) (string, error)
	// Upload stores the local file inside folderID and returns the remote ID.
	// The local file is not modified.
	Upload(ctx context.Context, localPath, folderID string) (string, error)
	// Close releases client resources
	Close() error
}

// Factory creates a backend from the storage configuration
type Factory func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Backend, error)

// Registry maps storage type names to factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "storage backend %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the backend registered for cfg.Type
func (r *Registry) Create(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "storage backend %s not found", cfg.Type).
			WithDetail("registered", r.Names())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := factory(ctx, cfg, logger.With(zap.String("backend", cfg.Type)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create storage backend "+cfg.Type)
	}
	return backend, nil
}

// Names returns the registered backend names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a factory to the global registry
func Register(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

// Create instantiates a backend from the global registry
func Create(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Backend, error) {
	return globalRegistry.Create(ctx, cfg, logger)
}

// Registered returns the names in the global registry
func Registered() []string {
	return globalRegistry.Names()
}

// ContentType guesses the MIME type of an artifact from its extension
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if algo, ok := compression.FromExtension(ext); ok {
		return algo.ContentType("")
	}
	switch ext {
	case ".tsv":
		return "text/tab-separated-values"
	case ".csv":
		return "text/csv"
	}
	if t := mime.TypeByExtension(ext); ext != "" && t != "" {
		return t
	}
	return "application/octet-stream"
}

// JoinKey joins object key segments with '/', ignoring empty segments and
// surrounding slashes.
func JoinKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}
