package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies request failures. The kind decides the HTTP status and the
// short machine-readable code in the error response body.
type Kind string

const (
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindCodecConversion      Kind = "codec_conversion"
	KindExtractionFailed     Kind = "extraction_failed"
	KindInvalidModelResponse Kind = "invalid_model_response"
	KindUpstreamTimeout      Kind = "upstream_timeout"
	KindInternal             Kind = "internal_error"
)

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

// E wraps err with a kind and a user-facing message. err may be nil.
func E(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the message intended for the caller, without the
// wrapped cause chain.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An error occurred"
}

// HTTPStatus maps an error kind to the response status code. Unsupported
// uploads and codec failures are user-correctable; everything else is a
// server-side failure the caller may retry.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnsupportedMediaType, KindCodecConversion:
		return http.StatusBadRequest
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
