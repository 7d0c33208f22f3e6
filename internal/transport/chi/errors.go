package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeNotImplemented  ErrorCode = "not_implemented"
	CodeConnection      ErrorCode = "connection_error"
	CodeOperationFailed ErrorCode = "operation_failed"
	CodeInvalidJSON     ErrorCode = "invalid_json"
	CodeBadRequest      ErrorCode = "bad_request"
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeTooLarge        ErrorCode = "request_too_large"
	CodeRateLimited     ErrorCode = "rate_limited"
	CodeInternal        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle an error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorHandlers are tried in order. Backend kinds come first so a backend
// error caused by a bad request still reports the backend's classification.
// A provider rate limit, which backends report as a connection error, is
// matched ahead of ErrConnection.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	sentinelHandler(domain.ErrConnection, http.StatusServiceUnavailable, CodeConnection),
	sentinelHandler(domain.ErrOperationFailed, http.StatusUnprocessableEntity, CodeOperationFailed),
	sentinelHandler(domain.ErrInvalidJSON, http.StatusBadRequest, CodeInvalidJSON),
	sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeBadRequest),
	tooLargeHandler,
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The message is the error text: taxonomy errors carry no secrets.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func tooLargeHandler(w http.ResponseWriter, err error) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, err.Error())
	return true
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r)
	for _, h := range errorHandlers {
		if h(w, err) {
			logger.Warn("Request failed", zap.Error(err))
			return
		}
	}
	logger.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
