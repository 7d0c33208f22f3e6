package domain

import (
	"errors"
)

var (
	// ErrNotImplemented signals an operation or search mode the backend does not support.
	ErrNotImplemented = errors.New("operation not implemented")
	// ErrConnection signals an unreachable backend or a connection-level failure.
	ErrConnection = errors.New("connection error")
	// ErrOperationFailed signals a request the backend accepted but could not complete.
	ErrOperationFailed = errors.New("operation failed")

	// ErrInvalidJSON signals malformed document or metadata JSON.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrInvalidRequest signals a malformed search or load request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// BackendError is the error every vector store operation reports.
// Kind is one of ErrNotImplemented, ErrConnection or ErrOperationFailed.
type BackendError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *BackendError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *BackendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotImplemented reports an unsupported operation.
func NotImplemented(op string) error {
	return &BackendError{Kind: ErrNotImplemented, Detail: op}
}

// ConnectionError reports a connection-level failure. err may be nil.
func ConnectionError(detail string, err error) error {
	return &BackendError{Kind: ErrConnection, Detail: detail, Err: err}
}

// OperationFailed reports a failure to complete an accepted request. err may be nil.
func OperationFailed(detail string, err error) error {
	return &BackendError{Kind: ErrOperationFailed, Detail: detail, Err: err}
}

// KindOf returns the taxonomy sentinel carried by err, or nil when err is
// outside the taxonomy.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotImplemented):
		return ErrNotImplemented
	case errors.Is(err, ErrConnection):
		return ErrConnection
	case errors.Is(err, ErrOperationFailed):
		return ErrOperationFailed
	default:
		return nil
	}
}
