package fetch

import (
	"bytes"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-backup/pkg/json"
	"github.com/ajitpratap0/nebula-backup/pkg/record"
)

// envelope is the body shape {"response": {"results": [...], "count": n}}
type envelope struct {
	Response *struct {
		Results jsonpool.RawMessage `json:"results"`
		Count   jsonpool.RawMessage `json:"count"`
	} `json:"response"`
}

// page is one decoded successful response
type page struct {
	records []record.Record
	count   float64
}

// last reports the normal termination condition
func (p *page) last() bool {
	return len(p.records) == 0 || p.count == 0
}

var null = []byte("null")

// decodePage parses a response body. Errors are of type data.
func decodePage(body []byte) (*page, error) {
	var env envelope
	if err := jsonpool.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "response body is not valid JSON")
	}
	if env.Response == nil {
		return nil, errors.New(errors.ErrorTypeData, "response body has no response object")
	}
	if len(env.Response.Results) == 0 {
		return nil, errors.New(errors.ErrorTypeData, "response has no results field")
	}

	p := &page{}

	// A count that is not a JSON number (e.g. the string "1") is rejected
	// rather than compared, so a changed API shape stops the fetch.
	if raw := bytes.TrimSpace(env.Response.Count); len(raw) > 0 && !bytes.Equal(raw, null) {
		if err := jsonpool.Unmarshal(raw, &p.count); err != nil {
			return nil, errors.Newf(errors.ErrorTypeData, "response count %s is not a number", raw).
				WithDetail("count", string(raw))
		}
	}

	if bytes.Equal(bytes.TrimSpace(env.Response.Results), null) {
		return p, nil
	}

	var items []jsonpool.RawMessage
	if err := jsonpool.Unmarshal(env.Response.Results, &items); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "response results is not an array")
	}

	p.records = make([]record.Record, 0, len(items))
	for i, item := range items {
		rec, err := record.DecodeRecord(item)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid record in results").WithDetail("index", i)
		}
		p.records = append(p.records, rec)
	}
	return p, nil
}
