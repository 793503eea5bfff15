package backup

import (
	"time"

	"github.com/ajitpratap0/nebula-backup/internal/fetch"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

// Status is the outcome of one source in a run
type Status string

const (
	// StatusUploaded means an artifact reached remote storage
	StatusUploaded Status = "uploaded"
	// StatusNoData means the collection was empty; nothing was written
	StatusNoData Status = "no_data"
	// StatusFailed means the source produced no remote artifact because of an error
	StatusFailed Status = "failed"
)

// SourceOutcome describes what happened to one source
type SourceOutcome struct {
	Name    string           `json:"name"`
	URL     string           `json:"url"`
	Status  Status           `json:"status"`
	Records int              `json:"records"`
	Stop    fetch.StopReason `json:"stop"`
	// Partial is set when pagination ended before the collection was exhausted
	Partial   bool          `json:"partial"`
	Requests  int           `json:"requests"`
	Backoffs  int           `json:"backoffs"`
	LocalPath string        `json:"local_path,omitempty"`
	RemoteID  string        `json:"remote_id,omitempty"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	// ErrorType categorizes Error, e.g. transfer or file
	ErrorType errors.ErrorType `json:"error_type,omitempty"`
	Err       error            `json:"-"`
}

func (o *SourceOutcome) fail(err error) {
	o.Status = StatusFailed
	o.Err = err
	if err != nil {
		o.Error = err.Error()
		o.ErrorType = errors.TypeOf(err)
	}
}

// Report summarizes one run
type Report struct {
	RunID      string          `json:"run_id"`
	Folder     string          `json:"folder"`
	FolderID   string          `json:"folder_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Sources    []SourceOutcome `json:"sources"`
	// Error is set when the run could not start, e.g. the folder could not be created
	Error string `json:"error,omitempty"`
}

// Count returns the number of sources with status s
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Sources {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
