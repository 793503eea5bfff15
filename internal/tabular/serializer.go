// Package tabular writes a record store as a delimited text file.
//
// The column set is the store's schema (sorted union of field names), so
// column order is stable across runs regardless of which record carried
// which field first. Absent fields and nulls are written as empty cells.
// Quoting follows encoding/csv: a cell containing the delimiter, a double
// quote, CR or LF, or starting with a space is wrapped in double quotes with
// inner quotes doubled.
package tabular

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/pkg/compression"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	"github.com/ajitpratap0/nebula-backup/pkg/logger"
	"github.com/ajitpratap0/nebula-backup/pkg/metrics"
	"github.com/ajitpratap0/nebula-backup/pkg/record"
)

// ErrNoData is returned for an empty store. No file is written.
var ErrNoData = errors.New(errors.ErrorTypeEmptyResult, "no data collected")

const partialSuffix = ".partial"

// Options configures the serializer
type Options struct {
	// Dir receives the artifacts
	Dir string
	// Delimiter separates cells
	Delimiter rune
	// CRLF terminates rows with \r\n
	CRLF bool
	// Compression is applied while writing; its extension is appended
	Compression compression.Algorithm
	Level       compression.Level
}

// DefaultOptions writes uncompressed TSV to the working directory
func DefaultOptions() Options {
	return Options{
		Dir:         ".",
		Delimiter:   '\t',
		Compression: compression.None,
		Level:       compression.Default,
	}
}

// Serializer writes stores to local files
type Serializer struct {
	opts   Options
	logger *zap.Logger
}

// New validates opts and creates a Serializer
func New(opts Options, log *zap.Logger) (*Serializer, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = '\t'
	}
	if !validDelimiter(opts.Delimiter) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid delimiter %q", opts.Delimiter)
	}
	if _, err := compression.ParseAlgorithm(string(opts.Compression)); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Serializer{
		opts:   opts,
		logger: log.With(zap.String("component", "serializer")),
	}, nil
}

// Path returns the artifact path for an output name
func (s *Serializer) Path(outputName string) string {
	return filepath.Join(s.opts.Dir, outputName+s.opts.Compression.Extension())
}

// Serialize writes store to the artifact for outputName and returns its
// path. The file is written under a temporary name and renamed on success,
// so a failure never leaves a truncated artifact behind.
func (s *Serializer) Serialize(ctx context.Context, store *record.Store, outputName string) (string, error) {
	log := logger.FromContext(ctx, s.logger)

	if store == nil || store.IsEmpty() {
		return "", ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTimeout, "serialization canceled")
	}

	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("dir", s.opts.Dir)
	}

	final := s.Path(outputName)
	partial := final + partialSuffix

	written, err := s.writeFile(partial, store)
	if err != nil {
		_ = os.Remove(partial)
		return "", err
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to finalize artifact").
			WithDetail("path", final)
	}

	metrics.BytesWritten.WithLabelValues(outputName).Add(float64(written))
	log.Info("artifact written",
		zap.String("path", final),
		zap.Int("records", store.Len()),
		zap.Int("columns", len(store.Schema())),
		zap.Int64("bytes", written))

	return final, nil
}

func (s *Serializer) writeFile(path string, store *record.Store) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is built from configuration
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create artifact").WithDetail("path", path)
	}

	counter := &countingWriter{w: f}
	zw, err := compression.NewWriter(counter, s.opts.Compression, s.opts.Level)
	if err != nil {
		_ = f.Close()
		return 0, err
	}

	if _, err := WriteTable(zw, store, s.opts.Delimiter, s.opts.CRLF); err != nil {
		_ = zw.Close()
		_ = f.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush compressed artifact")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to sync artifact")
	}
	if err := f.Close(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to close artifact")
	}
	return counter.n, nil
}

// WriteTable writes the header row and one row per record to w. It returns
// the number of data rows written.
func WriteTable(w io.Writer, store *record.Store, delimiter rune, crlf bool) (int, error) {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	cw.UseCRLF = crlf

	schema := store.Schema()
	if err := cw.Write(schema); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to write header")
	}

	row := make([]string, len(schema))
	rows := 0
	for _, rec := range store.Records() {
		for i, field := range schema {
			row[i] = rec.Get(field).Text()
		}
		if err := cw.Write(row); err != nil {
			return rows, errors.Wrap(err, errors.ErrorTypeFile, "failed to write row").WithDetail("row", rows)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush rows")
	}
	return rows, nil
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != 0xFFFD
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
