package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call so callers can branch without matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindValidation
	KindNetwork
	KindTimeout
	KindRateLimited
	KindAuth
	KindForbidden
	KindNotFound
	KindClient
	KindServer
	KindProtocol
	KindClosed
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindConfig:      "config",
	KindValidation:  "validation",
	KindNetwork:     "network",
	KindTimeout:     "timeout",
	KindRateLimited: "rate_limited",
	KindAuth:        "auth",
	KindForbidden:   "forbidden",
	KindNotFound:    "not_found",
	KindClient:      "client",
	KindServer:      "server",
	KindProtocol:    "protocol",
	KindClosed:      "closed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether a failure of this kind is worth another attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// Error is a classified failure of a gateway call.
type Error struct {
	Kind   Kind
	Status int    // HTTP status when one was received
	Path   string // request path when known
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and message, which lets the sentinels
// below be used with errors.Is even after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg != "" && t.Msg == e.Msg
}

var (
	// ErrMissingClientID is returned when no client id is configured.
	ErrMissingClientID = &Error{Kind: KindConfig, Msg: "client id is not configured"}
	// ErrMissingCredential is returned for a private call without a usable access token.
	ErrMissingCredential = &Error{Kind: KindConfig, Msg: "access token required"}
	// ErrClosed is returned for requests rejected by a disposed scheduler.
	ErrClosed = &Error{Kind: KindClosed, Msg: "scheduler closed"}
	// ErrResponseTooLarge is returned when a response body exceeds the client limit.
	ErrResponseTooLarge = &Error{Kind: KindProtocol, Msg: "response too large"}
)

// NewError builds a classified error.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validationf builds a validation error that never reaches the network.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Classify maps a non-2xx HTTP status to an error kind.
func Classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status < 600:
		return KindServer
	case status >= 400 && status < 500:
		return KindClient
	default:
		return KindProtocol
	}
}

// StatusError builds the classified error for an HTTP response status.
func StatusError(status int, path string) *Error {
	return &Error{
		Kind:   Classify(status),
		Status: status,
		Path:   path,
		Msg:    fmt.Sprintf("api returned %s", http.StatusText(status)),
	}
}
