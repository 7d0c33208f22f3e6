package kbase

import "github.com/kailas-cloud/kbase/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotImplemented    = domain.ErrNotImplemented
	ErrConnection        = domain.ErrConnection
	ErrOperationFailed   = domain.ErrOperationFailed
	ErrInvalidJSON       = domain.ErrInvalidJSON
	ErrInvalidRequest    = domain.ErrInvalidRequest
	ErrEmbeddingProvider = domain.ErrEmbeddingProvider
	ErrRateLimited       = domain.ErrRateLimited
)

// BackendError is the error type vector store operations report.
type BackendError = domain.BackendError
