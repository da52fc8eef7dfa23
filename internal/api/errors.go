package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed backend call. The kind decides retry
// behavior and the user-facing message.
type ErrorKind string

const (
	// KindNetwork covers transport failures: refused connections, resets,
	// timeouts. Retried with linear backoff.
	KindNetwork ErrorKind = "network"
	// KindNotFound is a 404-class failure. Never retried.
	KindNotFound ErrorKind = "not_found"
	// KindServer is a 5xx-class failure. Retried once more after a longer
	// cooldown, then surfaced.
	KindServer ErrorKind = "server"
	// KindValidation means required fields were missing before the call was
	// issued, or the backend rejected the request shape. Never retried.
	KindValidation ErrorKind = "validation"
)

// Error is the typed error surfaced by the client after classification.
type Error struct {
	Kind   ErrorKind
	Status int
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing description for the error kind.
func (e *Error) Message() string {
	switch e.Kind {
	case KindNotFound:
		return "Resource not found. The session or character no longer exists."
	case KindServer:
		return "The story service had an internal problem. Please try again."
	case KindValidation:
		return "The request was incomplete. Check your character before retrying."
	default:
		return "Connection error. Check your network and try again."
	}
}

// KindOf extracts the classified kind from an error chain. Unclassified
// errors default to network, matching how unknown transport failures behave.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindNetwork
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsNetwork(err error) bool    { return KindOf(err) == KindNetwork }
func IsServer(err error) bool     { return KindOf(err) == KindServer }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// classifyStatus maps an HTTP status to an error kind. 404 is terminal,
// 5xx is a server fault, every other non-2xx rejection is treated as a
// request problem and not retried.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}
