package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("single_rune", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if utf8.RuneCountInString(s) != 1 {
				return false
			}
			r, _ := utf8.DecodeRuneInString(s)
			return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
		})
		_ = validate.RegisterValidation("output_name", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s != "." && s != ".." && filepath.Base(s) == s && !strings.ContainsAny(s, `/\`)
		})
	})
	return validate
}

// Validate checks the configuration for correctness. Call it after defaults
// and command line overrides are applied.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}

	switch c.Storage.Type {
	case StorageDrive, StorageLocal:
		if c.Storage.RootFolderID == "" {
			return errors.Newf(errors.ErrorTypeConfig, "storage.root_folder_id is required for %s", c.Storage.Type)
		}
	case StorageGCS, StorageS3:
		if c.Storage.Bucket == "" {
			return errors.Newf(errors.ErrorTypeConfig, "storage.bucket is required for %s", c.Storage.Type)
		}
	}

	if c.Storage.Type == StorageDrive && c.Storage.CredentialsFile == "" {
		return errors.New(errors.ErrorTypeConfig, "storage.credentials_file is required for drive")
	}

	// A layout that ignores the date would put every run in the same folder.
	probe := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if probe.Format(c.Storage.FolderDateLayout) == probe.AddDate(0, 0, 1).Format(c.Storage.FolderDateLayout) {
		return errors.Newf(errors.ErrorTypeConfig, "storage.folder_date_layout %q does not contain a day", c.Storage.FolderDateLayout)
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if seen[src.Output] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate source output %q", src.Output)
		}
		seen[src.Output] = true
	}

	return nil
}
