// Package apperr holds the error taxonomy shared by every request path.
// Each Kind maps to one HTTP status and one message that is safe to show
// to clients; the wrapped cause is only ever logged.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Kind classifies a failure.
type Kind int

const (
	Unexpected Kind = iota
	Unauthenticated
	Forbidden
	NotFound
	Conflict
	PaymentRequired
	PayloadTooLarge
	UnsupportedMediaType
	BadInput
	ValidationFailure
	UpstreamUnavailable
	RateLimited
	AuthFailure
	RequestFailed
	StorageIOFailure
)

var kindNames = map[Kind]string{
	Unexpected:           "unexpected",
	Unauthenticated:      "unauthenticated",
	Forbidden:            "forbidden",
	NotFound:             "not_found",
	Conflict:             "conflict",
	PaymentRequired:      "payment_required",
	PayloadTooLarge:      "payload_too_large",
	UnsupportedMediaType: "unsupported_media_type",
	BadInput:             "bad_input",
	ValidationFailure:    "validation_failure",
	UpstreamUnavailable:  "upstream_unavailable",
	RateLimited:          "rate_limited",
	AuthFailure:          "auth_failure",
	RequestFailed:        "request_failed",
	StorageIOFailure:     "storage_io_failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the HTTP status code for a kind.
func Status(k Kind) int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict, BadInput:
		// duplicate registration is reported as 400
		return http.StatusBadRequest
	case PaymentRequired:
		return http.StatusPaymentRequired
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case UnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case ValidationFailure, UpstreamUnavailable:
		return http.StatusBadGateway
	case RateLimited:
		return http.StatusTooManyRequests
	case AuthFailure, RequestFailed, StorageIOFailure, Unexpected:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error is a classified failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without a cause.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

// Wrap returns a classified error around cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Err: cause}
}

// KindOf extracts the kind of err, or Unexpected when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// InternalMessage is returned for anything not classified.
const InternalMessage = "Internal server error"

// Response is the JSON error body.
type Response struct {
	Error string `json:"error"`
}

// Write logs err and writes its status and safe message.
func Write(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	msg := InternalMessage

	var e *Error
	if errors.As(err, &e) {
		status = Status(e.Kind)
		msg = e.Message
	}

	evt := logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).Int("status", status).Msg("request failed")

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, status, Response{Error: msg})
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
