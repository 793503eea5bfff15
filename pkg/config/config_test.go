package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

func validConfig() *Config {
	cfg := &Config{
		API: APIConfig{Token: "tok"},
		Sources: []SourceConfig{
			{URL: "https://app.example.com/api/1.1/obj/user", Output: "user.tsv"},
		},
		Storage: StorageConfig{
			Type:            StorageDrive,
			RootFolderID:    "root",
			CredentialsFile: "sa.json",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		API:    APIConfig{PageSize: 50, PolitenessDelay: 2 * time.Second},
		Output: OutputConfig{Delimiter: ";"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 50, cfg.API.PageSize)
	assert.Equal(t, 2*time.Second, cfg.API.PolitenessDelay)
	assert.Equal(t, 5*time.Second, cfg.API.DefaultRetryAfter)
	assert.Equal(t, ';', cfg.Output.DelimiterRune())
	assert.Equal(t, "2006-01-02", cfg.Storage.FolderDateLayout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.API.Token = "" }, wantErr: true},
		{name: "no sources", mutate: func(c *Config) { c.Sources = nil }, wantErr: true},
		{name: "bad url", mutate: func(c *Config) { c.Sources[0].URL = "not a url" }, wantErr: true},
		{name: "output with path", mutate: func(c *Config) { c.Sources[0].Output = "../escape.tsv" }, wantErr: true},
		{name: "duplicate output", mutate: func(c *Config) {
			c.Sources = append(c.Sources, SourceConfig{URL: "https://app.example.com/api/1.1/obj/x", Output: "user.tsv"})
		}, wantErr: true},
		{name: "multi char delimiter", mutate: func(c *Config) { c.Output.Delimiter = "||" }, wantErr: true},
		{name: "quote delimiter", mutate: func(c *Config) { c.Output.Delimiter = `"` }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "ftp" }, wantErr: true},
		{name: "drive without root", mutate: func(c *Config) { c.Storage.RootFolderID = "" }, wantErr: true},
		{name: "drive without credentials", mutate: func(c *Config) { c.Storage.CredentialsFile = "" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Type = StorageS3 }, wantErr: true},
		{name: "gcs with bucket and no root", mutate: func(c *Config) {
			c.Storage.Type = StorageGCS
			c.Storage.Bucket = "backups"
			c.Storage.RootFolderID = ""
		}},
		{name: "layout without day", mutate: func(c *Config) { c.Storage.FolderDateLayout = "2006-01" }, wantErr: true},
		{name: "bad compression", mutate: func(c *Config) { c.Output.Compression = "rar" }, wantErr: true},
		{name: "zero page size", mutate: func(c *Config) { c.API.PageSize = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFile_YAMLWithEnv(t *testing.T) {
	t.Setenv("TEST_BACKUP_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "backup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: nightly
api:
  token: ${TEST_BACKUP_TOKEN}
  politeness_delay: 250ms
sources:
  - url: https://app.example.com/api/1.1/obj/user
    output: user.tsv
storage:
  type: local
  root_folder_id: ${TEST_BACKUP_ROOT:-/tmp/backups}
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, 250*time.Millisecond, cfg.API.PolitenessDelay)
	assert.Equal(t, "/tmp/backups", cfg.Storage.RootFolderID)
	assert.Equal(t, 100, cfg.API.PageSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "toml-job"

[api]
token = "abc"
default_retry_after = "7s"

[[sources]]
url = "https://app.example.com/api/1.1/obj/order"
output = "order.tsv"

[storage]
type = "s3"
bucket = "backups"
root_folder_id = "bubble"
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "toml-job", cfg.Name)
	assert.Equal(t, 7*time.Second, cfg.API.DefaultRetryAfter)
	assert.Equal(t, "order.tsv", cfg.Sources[0].Output)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvAPIToken, "tok")
	t.Setenv(EnvRootFolderID, "folder")
	t.Setenv(EnvCredentialsPath, "/secrets/sa.json")
	t.Setenv(EnvSources, "https://a.example.com/obj/user=user.tsv,https://a.example.com/obj/order=order.tsv")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.API.Token)
	assert.Equal(t, StorageDrive, cfg.Storage.Type)
	assert.Equal(t, "folder", cfg.Storage.RootFolderID)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "order.tsv", cfg.Sources[1].Output)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "bubble.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TEST_DOTENV_VALUE=loaded\n"), 0o600))
	t.Setenv("TEST_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("TEST_DOTENV_VALUE"))

	require.NoError(t, LoadEnvFiles(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("TEST_DOTENV_VALUE"))
}

func TestParseSource_Invalid(t *testing.T) {
	for _, raw := range []string{"no-separator", "=out.tsv", "https://x.example.com="} {
		_, err := ParseSource(raw)
		assert.Error(t, err, raw)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_SUB_A", "alpha")
	got := substituteEnvVars("a=${TEST_SUB_A} b=${TEST_SUB_UNSET:-beta} c=${TEST_SUB_UNSET} d=${unterminated")
	assert.Equal(t, "a=alpha b=beta c= d=${unterminated", got)
}
