package record

import (
	"sort"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-backup/pkg/json"
)

// Record is one entity returned by the API. It is not modified after decoding.
type Record map[string]Value

// DecodeRecord builds a Record from a JSON object
func DecodeRecord(raw []byte) (Record, error) {
	var fields map[string]jsonpool.RawMessage
	if err := jsonpool.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "record is not a JSON object")
	}
	if fields == nil {
		return nil, errors.New(errors.ErrorTypeData, "record is null")
	}

	rec := make(Record, len(fields))
	for name, rawValue := range fields {
		v, err := ParseValue(rawValue)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid value").WithDetail("field", name)
		}
		rec[name] = v
	}
	return rec, nil
}

// Get returns the value for field; absent fields are null
func (r Record) Get(field string) Value {
	return r[field]
}

// Store accumulates the records of one collection during a single extraction.
// It is append-only and keeps insertion order.
type Store struct {
	name    string
	records []Record
}

// NewStore creates an empty store for the named collection
func NewStore(name string) *Store {
	return &Store{name: name}
}

// Name returns the collection name
func (s *Store) Name() string { return s.name }

// Append adds records in order
func (s *Store) Append(records ...Record) {
	s.records = append(s.records, records...)
}

// Len returns the number of records
func (s *Store) Len() int { return len(s.records) }

// IsEmpty reports whether nothing was collected
func (s *Store) IsEmpty() bool { return len(s.records) == 0 }

// Records returns the records in insertion order. The slice must not be modified.
func (s *Store) Records() []Record { return s.records }

// Schema returns the sorted union of field names across all records.
// Every record's fields are a subset of the result.
func (s *Store) Schema() []string {
	seen := make(map[string]struct{})
	for _, rec := range s.records {
		for field := range rec {
			seen[field] = struct{}{}
		}
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
