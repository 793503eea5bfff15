package destinations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

type stubBackend struct{ name string }

func (s *stubBackend) Name() string { return s.name }
func (s *stubBackend) MakeFolder(context.Context, string, string) (string, error) {
	return "folder", nil
}
func (s *stubBackend) Upload(context.Context, string, string) (string, error) { return "file", nil }
func (s *stubBackend) Close() error                                           { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(_ context.Context, cfg config.StorageConfig, _ *zap.Logger) (Backend, error) {
		return &stubBackend{name: cfg.Type}, nil
	}

	require.NoError(t, r.Register("stub", factory))
	err := r.Register("stub", factory)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	b, err := r.Create(context.Background(), config.StorageConfig{Type: "stub"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "stub", b.Name())

	_, err = r.Create(context.Background(), config.StorageConfig{Type: "ftp"}, nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"stub"}, r.Names())
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("broken", func(context.Context, config.StorageConfig, *zap.Logger) (Backend, error) {
		return nil, errors.New(errors.ErrorTypeAuthentication, "no credentials")
	}))

	_, err := r.Create(context.Background(), config.StorageConfig{Type: "broken"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/tab-separated-values", ContentType("user.tsv"))
	assert.Equal(t, "text/csv", ContentType("/tmp/user.CSV"))
	assert.Equal(t, "application/gzip", ContentType("user.tsv.gz"))
	assert.Equal(t, "application/zstd", ContentType("user.tsv.zst"))
	assert.Equal(t, "application/octet-stream", ContentType("noext"))
	assert.Equal(t, "application/octet-stream", ContentType("user.tsv.zzunknown"))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "backups/2025-01-02/user.tsv", JoinKey("/backups/", "2025-01-02", "user.tsv"))
	assert.Equal(t, "2025-01-02", JoinKey("", "2025-01-02"))
	assert.Equal(t, "", JoinKey("", "/"))
}
