package tabular

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-backup/pkg/compression"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	"github.com/ajitpratap0/nebula-backup/pkg/record"
	"github.com/ajitpratap0/nebula-backup/pkg/testutil"
)

func storeOf(records ...record.Record) *record.Store {
	s := record.NewStore("test")
	s.Append(records...)
	return s
}

func TestWriteTable_SparseFields(t *testing.T) {
	var buf bytes.Buffer
	rows, err := WriteTable(&buf, storeOf(
		record.Record{"a": record.Int(1)},
		record.Record{"b": record.Int(2)},
	), '\t', false)

	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, "a\tb\n1\t\n\t2\n", buf.String())
}

func TestWriteTable_ValueRendering(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTable(&buf, storeOf(record.Record{
		"b_null":   record.Null(),
		"c_bool":   record.Bool(true),
		"d_number": record.Number("1.50"),
		"e_raw":    record.Raw(`[1,2]`),
	}), '\t', false)

	require.NoError(t, err)
	assert.Equal(t, "b_null\tc_bool\td_number\te_raw\n\ttrue\t1.50\t[1,2]\n", buf.String())
}

func TestWriteTable_Quoting(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTable(&buf, storeOf(record.Record{
		"a": record.String("has\ttab"),
		"b": record.String("line\nbreak"),
		"c": record.String(`say "hi"`),
		"d": record.Raw(`{"k":1}`),
		"e": record.String("plain"),
	}), '\t', false)

	require.NoError(t, err)
	assert.Equal(t,
		"a\tb\tc\td\te\n"+
			"\"has\ttab\"\t\"line\nbreak\"\t\"say \"\"hi\"\"\"\t\"{\"\"k\"\":1}\"\tplain\n",
		buf.String())
}

func TestWriteTable_CRLFAndDelimiter(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTable(&buf, storeOf(
		record.Record{"x": record.String("1,5"), "y": record.String("z")},
	), ',', true)

	require.NoError(t, err)
	assert.Equal(t, "x,y\r\n\"1,5\",z\r\n", buf.String())
}

func TestSerialize_WritesArtifact(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Dir = dir
	s, err := New(opts, testutil.TestLogger(t))
	require.NoError(t, err)

	path, err := s.Serialize(context.Background(), storeOf(
		record.Record{"a": record.Int(1)},
		record.Record{"b": record.Int(2)},
	), "out.tsv")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out.tsv"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n1\t\n\t2\n", string(data))

	_, err = os.Stat(path + partialSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestSerialize_EmptyStoreWritesNothing(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Dir = dir
	s, err := New(opts, testutil.TestLogger(t))
	require.NoError(t, err)

	path, err := s.Serialize(context.Background(), record.NewStore("empty"), "empty.tsv")

	assert.Empty(t, path)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyResult))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSerialize_Compressed(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Dir = dir
	opts.Compression = compression.Gzip
	s, err := New(opts, testutil.TestLogger(t))
	require.NoError(t, err)

	path, err := s.Serialize(context.Background(), storeOf(record.Record{"a": record.String("x")}), "c.tsv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "c.tsv.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a\nx\n", string(data))
}

func TestSerialize_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	opts := DefaultOptions()
	opts.Dir = filepath.Join(blocker, "sub")
	s, err := New(opts, testutil.TestLogger(t))
	require.NoError(t, err)

	_, err = s.Serialize(context.Background(), storeOf(record.Record{"a": record.Int(1)}), "out.tsv")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestSerialize_Canceled(t *testing.T) {
	s, err := New(Options{Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Serialize(ctx, storeOf(record.Record{"a": record.Int(1)}), "out.tsv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New(Options{Delimiter: '"'}, nil)
	assert.Error(t, err)

	_, err = New(Options{Delimiter: '\n'}, nil)
	assert.Error(t, err)

	_, err = New(Options{Compression: "rar"}, nil)
	assert.Error(t, err)
}
