package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
		text string
	}{
		{`null`, KindNull, ""},
		{`"abc"`, KindString, "abc"},
		{`"tab\there"`, KindString, "tab\there"},
		{`42`, KindNumber, "42"},
		{`-1.50`, KindNumber, "-1.50"},
		{`12345678901234567890`, KindNumber, "12345678901234567890"},
		{`true`, KindBool, "true"},
		{`false`, KindBool, "false"},
		{`[1, 2, "x"]`, KindRaw, `[1,2,"x"]`},
		{`{"a": {"b": null}}`, KindRaw, `{"a":{"b":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseValue([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.Text())
		})
	}
}

func TestParseValue_Invalid(t *testing.T) {
	for _, raw := range []string{``, `nul`, `tru`, `"open`, `1.2.3`, `{`, `@`} {
		_, err := ParseValue([]byte(raw))
		assert.Error(t, err, raw)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData), raw)
	}
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"_id":"1x","Created Date":1700000000000,"tags":["a"],"empty":null}`))
	require.NoError(t, err)

	assert.Len(t, rec, 4)
	assert.Equal(t, String("1x"), rec.Get("_id"))
	assert.Equal(t, Number("1700000000000"), rec.Get("Created Date"))
	assert.Equal(t, Raw(`["a"]`), rec.Get("tags"))
	assert.True(t, rec.Get("empty").IsNull())
	assert.True(t, rec.Get("missing").IsNull())
}

func TestDecodeRecord_NotObject(t *testing.T) {
	for _, raw := range []string{`[1]`, `"x"`, `null`} {
		_, err := DecodeRecord([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestStore_SchemaIsSortedUnion(t *testing.T) {
	s := NewStore("users")
	s.Append(Record{"b": Int(2), "z": Null()})
	s.Append(Record{"a": Int(1)}, Record{"b": String("x"), "m": Bool(true)})

	assert.Equal(t, "users", s.Name())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"a", "b", "m", "z"}, s.Schema())

	schema := map[string]bool{}
	for _, f := range s.Schema() {
		schema[f] = true
	}
	for _, rec := range s.Records() {
		for f := range rec {
			assert.True(t, schema[f], "field %s missing from schema", f)
		}
	}
}

func TestStore_PreservesOrder(t *testing.T) {
	s := NewStore("orders")
	for i := 0; i < 5; i++ {
		s.Append(Record{"n": Int(int64(i))})
	}
	for i, rec := range s.Records() {
		assert.Equal(t, Int(int64(i)), rec.Get("n"))
	}
}

func TestStore_Empty(t *testing.T) {
	s := NewStore("nothing")
	assert.True(t, s.IsEmpty())
	assert.Empty(t, s.Schema())
}

func TestValue_MarshalJSON(t *testing.T) {
	for _, v := range []Value{Null(), String(`q"uote`), Int(7), Bool(false), Raw(`{"a":1}`)} {
		data, err := v.MarshalJSON()
		require.NoError(t, err)
		back, err := ParseValue(data)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}
