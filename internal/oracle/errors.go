package oracle

import (
	"errors"
	"fmt"
)

// Kind classifies an oracle failure. Callers branch on the kind to decide
// whether to retry, fall back to heuristics, or reject the input.
type Kind int

const (
	// KindBadRequest: the input was rejected (guard violation or HTTP 400).
	// Never retried.
	KindBadRequest Kind = iota + 1
	// KindRateExhausted: the API kept throttling after all retries.
	KindRateExhausted
	// KindTransport: network failure or server-side error after all retries.
	KindTransport
	// KindMalformedResponse: the API answered but the payload was unusable.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindRateExhausted:
		return "rate_exhausted"
	case KindTransport:
		return "transport"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is a classified oracle failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("oracle %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is an oracle Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == kind
}
