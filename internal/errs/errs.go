// Package errs defines the gateway's error taxonomy and maps it to
// JSON-RPC 2.0 error codes.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a taxonomy entry from the spec's error table.
type Kind string

const (
	KindParseError      Kind = "parse-error"
	KindInvalidRequest  Kind = "invalid-request"
	KindMethodNotFound  Kind = "method-not-found"
	KindInvalidParams   Kind = "invalid-params"
	KindInternal        Kind = "internal-error"
	KindProviderError   Kind = "provider-error"
	KindModelNotFound   Kind = "model-not-found"
	KindAuthError       Kind = "auth-error"
	KindRateLimit       Kind = "rate-limit"
)

// Code returns the JSON-RPC-analogous numeric code for a Kind.
func Code(k Kind) int {
	switch k {
	case KindParseError:
		return -32700
	case KindInvalidRequest:
		return -32600
	case KindMethodNotFound:
		return -32601
	case KindInvalidParams:
		return -32602
	case KindInternal:
		return -32603
	case KindProviderError:
		return -32000
	case KindModelNotFound:
		return -32001
	case KindAuthError:
		return -32002
	case KindRateLimit:
		return -32003
	default:
		return -32603
	}
}

// Error is a taxonomy-tagged error carrying optional structured data for
// the RPC layer's `error.data` field.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a taxonomy error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a taxonomy kind to an underlying error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithData attaches structured data (e.g. availableModels, retryAfterMs)
// returned on the wire as error.data.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

// As reports whether err (or anything it wraps) is a taxonomy *Error.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, defaulting to internal-error
// for anything that was never classified.
func KindOf(err error) Kind {
	if te, ok := As(err); ok {
		return te.Kind
	}
	return KindInternal
}
