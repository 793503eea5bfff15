package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	jsonpool "github.com/ajitpratap0/nebula-backup/pkg/json"
)

// Page is one scripted response of an APIServer.
type Page struct {
	// Status defaults to 200
	Status int
	// Records become response.results
	Records []map[string]interface{}
	// Count overrides response.count; nil means len(Records)
	Count *int
	// OmitCount drops response.count from the body
	OmitCount bool
	// RetryAfter sets the Retry-After header when non-empty
	RetryAfter string
	// Body replaces the generated JSON body when non-empty
	Body string
}

// RecordedRequest captures one request received by an APIServer.
type RecordedRequest struct {
	Method string
	Cursor string
	Query  url.Values
	Header http.Header
}

// APIServer is a fake cursor-paginated collection endpoint. It serves the
// scripted pages in order, then an empty page forever.
type APIServer struct {
	*httptest.Server

	mu       sync.Mutex
	pages    []Page
	requests []RecordedRequest
}

// NewAPIServer starts a server serving pages. It is closed on test cleanup.
func NewAPIServer(t testing.TB, pages ...Page) *APIServer {
	t.Helper()

	s := &APIServer{pages: pages}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Cursor: r.URL.Query().Get("cursor"),
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	var page Page
	if len(s.pages) > 0 {
		page = s.pages[0]
		s.pages = s.pages[1:]
	} else {
		page = Page{Count: Count(0)}
	}
	s.mu.Unlock()

	if page.RetryAfter != "" {
		w.Header().Set("Retry-After", page.RetryAfter)
	}
	w.Header().Set("Content-Type", "application/json")

	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}

	body := []byte(page.Body)
	if page.Body == "" {
		body = pageBody(page)
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func pageBody(page Page) []byte {
	results := page.Records
	if results == nil {
		results = []map[string]interface{}{}
	}
	inner := map[string]interface{}{"results": results}
	if !page.OmitCount {
		count := len(results)
		if page.Count != nil {
			count = *page.Count
		}
		inner["count"] = count
		inner["remaining"] = 0
	}

	body, err := jsonpool.Marshal(map[string]interface{}{"response": inner})
	if err != nil {
		panic(err)
	}
	return body
}

// Requests returns every request received so far
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Cursors returns the cursor parameter of every request
func (s *APIServer) Cursors() []string {
	var cursors []string
	for _, r := range s.Requests() {
		cursors = append(cursors, r.Cursor)
	}
	return cursors
}

// Records generates n records with ids starting at offset. Every third
// record carries an extra sparse field.
func Records(n, offset int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		rec := map[string]interface{}{
			"_id":  fmt.Sprintf("id-%d", offset+i),
			"seq":  offset + i,
			"name": fmt.Sprintf("record %d", offset+i),
		}
		if (offset+i)%3 == 0 {
			rec["note"] = "sparse"
		}
		out[i] = rec
	}
	return out
}

// Count returns a pointer to n for Page.Count
func Count(n int) *int {
	return &n
}
