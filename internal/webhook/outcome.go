package webhook

import "net/http"

// Status is the terminal state of one dispatch.
type Status int

const (
	// StatusRejected: signature or payload failed verification.
	StatusRejected Status = iota + 1
	// StatusUnhandled: verified, but no handler is registered for the type.
	StatusUnhandled
	// StatusHandled: the handler ran to completion, including guard skips.
	StatusHandled
	// StatusFailed: the handler hit a recoverable error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRejected:
		return "rejected"
	case StatusUnhandled:
		return "unhandled"
	case StatusHandled:
		return "handled"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Outcome reports what Handle did with one delivery.
type Outcome struct {
	Status  Status
	Kind    EventKind
	EventID string
	Note    string
	Err     error
}

// HTTPStatus is the response code for the processor. Failures answer 400
// so the processor redelivers.
func (o Outcome) HTTPStatus() int {
	switch o.Status {
	case StatusUnhandled, StatusHandled:
		return http.StatusOK
	default:
		return http.StatusBadRequest
	}
}
