package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "backups/2025-01-02/user.tsv", ObjectKey("backups/2025-01-02", "/tmp/out/user.tsv"))
	assert.Equal(t, "2025-01-02/user.tsv.gz", ObjectKey("/2025-01-02/", "user.tsv.gz"))
	assert.Equal(t, "user.tsv", ObjectKey("", "user.tsv"))
}

func TestURI(t *testing.T) {
	assert.Equal(t, "gs://bucket/a/b.tsv", URI("bucket", "a/b.tsv"))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, destinations.Registered(), config.StorageGCS)
	assert.Equal(t, config.StorageGCS, (&Backend{}).Name())
	assert.NoError(t, (&Backend{}).Close())
}
