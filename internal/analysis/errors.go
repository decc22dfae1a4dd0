package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned before any network I/O when no API key is
	// set for the active provider. It is a distinct outcome, not a failure.
	ErrNotConfigured = errors.New("analysis: provider not configured")

	// ErrMalformedResponse means the model replied, but no JSON of the
	// expected shape could be extracted. No partial data is ever returned.
	ErrMalformedResponse = errors.New("analysis: malformed model response")

	// ErrBadRequest means the request itself could not be serialized; a
	// programmer or config error, not worth retrying.
	ErrBadRequest = errors.New("analysis: request encoding failed")
)

// StatusError is a non-200 provider response. The body is truncated for
// diagnosis; upstream treats it like a transport failure.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis: %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// FailureClass buckets analysis errors for the calling loop, which owns the
// retry/skip policy; the client itself never retries.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureUnconfigured
	FailureTransport
	FailureBadRequest
	FailureMalformed
)

func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNotConfigured):
		return FailureUnconfigured
	case errors.Is(err, ErrBadRequest):
		return FailureBadRequest
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	default:
		// DNS, timeouts, resets and non-200 statuses all land here: skip
		// this cycle, try again on the next scheduled capture.
		return FailureTransport
	}
}

func truncateBody(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
