package woocommerce

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call to the WooCommerce backend.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork means no response was received.
	KindNetwork
	// KindServer means the backend answered with a non-2xx status.
	KindServer
	// KindMapping means the body could not be decoded.
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_failure"
	case KindServer:
		return "server_failure"
	case KindMapping:
		return "mapping_failure"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every Client call.
type Error struct {
	Kind       Kind
	StatusCode int // set for KindServer
	Op         string
	Err        error
}

// Sentinels for errors.Is; they match any Error of the same kind.
var (
	ErrNetwork = &Error{Kind: KindNetwork}
	ErrServer  = &Error{Kind: KindServer}
	ErrMapping = &Error{Kind: KindMapping}
	ErrUnknown = &Error{Kind: KindUnknown}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == KindServer && e.StatusCode != 0 {
		msg = fmt.Sprintf("%s(%d)", msg, e.StatusCode)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on StatusCode when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// ServerFailure builds a KindServer target for errors.Is, e.g.
// errors.Is(err, ServerFailure(500)).
func ServerFailure(status int) *Error {
	return &Error{Kind: KindServer, StatusCode: status}
}

// StatusCode returns the backend status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindServer {
		return e.StatusCode, true
	}
	return 0, false
}

// KindOf reports the failure kind of err; non-client errors are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
