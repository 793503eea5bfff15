package fetch

// State is a state of the pagination loop.
//
//	Requesting   -> Accumulating  page with results and count > 0
//	Requesting   -> Backoff       429 within the retry budget
//	Requesting   -> Done          empty page, other status, malformed body, transport failure
//	Backoff      -> Requesting    same cursor after the Retry-After delay
//	Accumulating -> Requesting    cursor advanced by the page size after the politeness delay
//	any          -> Done          context canceled
type State int

const (
	// StateRequesting issues the GET for the current cursor
	StateRequesting State = iota
	// StateBackoff waits out a rate-limit response
	StateBackoff
	// StateAccumulating appends a page and advances the cursor
	StateAccumulating
	// StateDone is terminal
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateBackoff:
		return "backoff"
	case StateAccumulating:
		return "accumulating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// StopReason records why pagination ended.
type StopReason int

const (
	// StopExhausted is the normal end: an empty page or count 0
	StopExhausted StopReason = iota
	// StopUnexpectedStatus is a non-2xx status other than 429
	StopUnexpectedStatus
	// StopMalformedResponse is a body without response.results
	StopMalformedResponse
	// StopTransportFailure is a connection error or timeout
	StopTransportFailure
	// StopCanceled means the context was canceled
	StopCanceled
	// StopRetryBudgetExhausted means too many consecutive 429s on one cursor
	StopRetryBudgetExhausted
)

func (r StopReason) String() string {
	switch r {
	case StopExhausted:
		return "exhausted"
	case StopUnexpectedStatus:
		return "unexpected_status"
	case StopMalformedResponse:
		return "malformed_response"
	case StopTransportFailure:
		return "transport_failure"
	case StopCanceled:
		return "canceled"
	case StopRetryBudgetExhausted:
		return "retry_budget_exhausted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name
func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Partial reports whether the fetch ended before the collection was exhausted
func (r StopReason) Partial() bool {
	return r != StopExhausted
}
