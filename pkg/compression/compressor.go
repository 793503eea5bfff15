// Package compression provides streaming compression for backup artifacts.
//
// # Overview
//
// Artifacts are written through NewWriter so that compression happens while
// rows are serialized, without a second pass over the file. Supported
// algorithms:
//   - None: plain text (default)
//   - Gzip: wide compatibility, good compression
//   - Zstd: best compression ratio, good speed
//   - LZ4: extremely fast, decent compression
//   - Snappy/S2: fast, moderate compression (framed stream format)
//
// # Basic Usage
//
//	w, err := compression.NewWriter(file, compression.Zstd, compression.Default)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	_, err = w.Write(rows)
//
// Extension and ContentType give the file suffix and MIME type for uploads.
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseAlgorithm converts a configuration value to an Algorithm.
// The empty string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", s)
	}
}

// Extension returns the file suffix for the algorithm, including the dot.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Snappy:
		return ".sz"
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	case S2:
		return ".s2"
	default:
		return ""
	}
}

// FromExtension returns the algorithm whose Extension is ext
func FromExtension(ext string) (Algorithm, bool) {
	ext = strings.ToLower(ext)
	for _, a := range []Algorithm{Gzip, Snappy, LZ4, Zstd, S2} {
		if a.Extension() == ext {
			return a, true
		}
	}
	return None, false
}

// ContentType returns the MIME type of a compressed artifact, or fallback
// when the algorithm is None.
func (a Algorithm) ContentType(fallback string) string {
	switch a {
	case Gzip:
		return "application/gzip"
	case Zstd:
		return "application/zstd"
	case None, "":
		return fallback
	default:
		return "application/octet-stream"
	}
}

// NewWriter wraps w with a compressing writer. Closing the returned writer
// flushes the stream but does not close w.
func NewWriter(w io.Writer, algorithm Algorithm, level Level) (io.WriteCloser, error) {
	switch algorithm {
	case None, "":
		return nopWriteCloser{w}, nil

	case Gzip:
		zw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create gzip writer")
		}
		return zw, nil

	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create zstd writer")
		}
		return zw, nil

	case LZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to configure lz4 writer")
		}
		return zw, nil

	case Snappy:
		return snappy.NewBufferedWriter(w), nil

	case S2:
		return s2.NewWriter(w, mapS2Options(level)...), nil

	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", algorithm)
	}
}

// NewReader wraps r with a decompressing reader.
func NewReader(r io.Reader, algorithm Algorithm) (io.ReadCloser, error) {
	switch algorithm {
	case None, "":
		return io.NopCloser(r), nil

	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create gzip reader")
		}
		return zr, nil

	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create zstd reader")
		}
		return zr.IOReadCloser(), nil

	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil

	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil

	case S2:
		return io.NopCloser(s2.NewReader(r)), nil

	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", algorithm)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Options(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}
