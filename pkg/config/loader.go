// Package config provides configuration loading from YAML, TOML and the environment
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

// Environment variables read by FromEnv
const (
	EnvAPIToken        = "BUBBLE_API_TOKEN"
	EnvRootFolderID    = "GOOGLE_DRIVE_FOLDER_ID"
	EnvCredentialsPath = "GOOGLE_CREDENTIALS_PATH"
	EnvSources         = "BACKUP_SOURCES"
)

// DefaultEnvFiles are loaded by LoadEnvFiles when no files are given
var DefaultEnvFiles = []string{"bubble.env", "google.env", ".env"}

// LoadEnvFiles loads dotenv files into the process environment. Missing
// files are skipped; variables that are already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to load env files")
	}
	return nil
}

// LoadFile loads a configuration from a YAML or TOML file (chosen by
// extension) and applies defaults. ${VAR} and ${VAR:-default} references are
// substituted from the environment before parsing.
func LoadFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	cfg, err := Parse(substituteEnvVars(string(data)), filepath.Ext(filePath))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration content. ext selects the format (".toml" or YAML).
func Parse(content, ext string) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(content, cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse TOML")
		}
	default:
		if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// FromEnv builds a drive configuration from the BUBBLE_*/GOOGLE_* environment
// variables used by existing deployments.
func FromEnv() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			Token: os.Getenv(EnvAPIToken),
		},
		Storage: StorageConfig{
			Type:            StorageDrive,
			RootFolderID:    os.Getenv(EnvRootFolderID),
			CredentialsFile: os.Getenv(EnvCredentialsPath),
		},
	}

	if raw := os.Getenv(EnvSources); raw != "" {
		sources, err := ParseSources(raw)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ParseSources parses a comma separated list of url=output pairs
func ParseSources(raw string) ([]SourceConfig, error) {
	var sources []SourceConfig
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, err := ParseSource(part)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ParseSource parses one url=output pair. The last '=' separates the two,
// so URLs may carry query parameters.
func ParseSource(pair string) (SourceConfig, error) {
	idx := strings.LastIndex(pair, "=")
	if idx <= 0 || idx == len(pair)-1 {
		return SourceConfig{}, errors.Newf(errors.ErrorTypeConfig, "invalid source %q, expected url=output", pair)
	}
	return SourceConfig{
		URL:    strings.TrimSpace(pair[:idx]),
		Output: strings.TrimSpace(pair[idx+1:]),
	}, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// ${VAR_NAME:-fallback} uses fallback when the variable is unset or empty.
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := content[start+2 : end]
		name, fallback, hasFallback := strings.Cut(expr, ":-")
		value := os.Getenv(name)
		if value == "" && hasFallback {
			value = fallback
		}

		out.WriteString(content[:start])
		out.WriteString(value)
		content = content[end+1:]
	}
	out.WriteString(content)
	return out.String()
}
