package drive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeDrive struct {
	*httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func newFakeDrive(t *testing.T, status int) *fakeDrive {
	f := &fakeDrive{status: status}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
		})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		if f.status == http.StatusOK {
			_, _ = io.WriteString(w, `{"id":"file-123"}`)
		} else {
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"forbidden"}}`)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeDrive) Requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func newTestBackend(t *testing.T, f *fakeDrive, shared bool) *Backend {
	b, err := New(context.Background(),
		config.StorageConfig{SharedDrive: shared},
		zaptest.NewLogger(t),
		option.WithEndpoint(f.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(f.Client()),
	)
	require.NoError(t, err)
	return b
}

func TestBackend_MakeFolder(t *testing.T) {
	f := newFakeDrive(t, http.StatusOK)
	b := newTestBackend(t, f, true)

	id, err := b.MakeFolder(context.Background(), "root-folder", "2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, "file-123", id)

	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Contains(t, reqs[0].Body, destinations.FolderMimeType)
	assert.Contains(t, reqs[0].Body, `"root-folder"`)
	assert.Contains(t, reqs[0].Body, `"2025-01-02"`)
	assert.Contains(t, reqs[0].Query, "supportsAllDrives=true")
}

func TestBackend_Upload(t *testing.T) {
	f := newFakeDrive(t, http.StatusOK)
	b := newTestBackend(t, f, false)

	path := filepath.Join(t.TempDir(), "user.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a\tb\n1\t2\n"), 0o600))

	id, err := b.Upload(context.Background(), path, "folder-9")
	require.NoError(t, err)
	assert.Equal(t, "file-123", id)

	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, strings.Contains(reqs[0].Path, "upload"), reqs[0].Path)
	assert.Contains(t, reqs[0].Body, "1\t2")
	assert.Contains(t, reqs[0].Body, `"user.tsv"`)
	assert.Contains(t, reqs[0].Body, `"folder-9"`)

	_, err = os.Stat(path)
	assert.NoError(t, err, "upload must not remove the local file")
}

func TestBackend_Errors(t *testing.T) {
	f := newFakeDrive(t, http.StatusForbidden)
	b := newTestBackend(t, f, false)

	_, err := b.MakeFolder(context.Background(), "root", "2025-01-02")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransfer))

	path := filepath.Join(t.TempDir(), "user.tsv")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o600))
	_, err = b.Upload(context.Background(), path, "folder")
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransfer))

	_, err = b.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.tsv"), "folder")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, destinations.Registered(), config.StorageDrive)
	assert.Equal(t, config.StorageDrive, (&Backend{}).Name())
}
