package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode represents machine-readable error codes
type ErrorCode string

const (
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string    `json:"error"`                // HTTP status text
	Message   string    `json:"message"`              // Human-readable description
	Code      ErrorCode `json:"code"`                 // Machine-readable error code
	RequestID string    `json:"request_id,omitempty"` // Request ID for debugging
}

// NewErrorResponse creates a new error response
func NewErrorResponse(statusCode int, code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
}

// writeErrorResponse writes a structured error response to the http response writer
func writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errResp *ErrorResponse) {
	// Add request ID from chi middleware if available
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		errResp.RequestID = reqID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errResp)
}

// NotFoundError creates a not found error response
func NotFoundError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusNotFound, NewErrorResponse(http.StatusNotFound, ErrCodeNotFound, message))
}

// InternalError creates an internal server error response
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusInternalServerError, NewErrorResponse(http.StatusInternalServerError, ErrCodeInternal, message))
}

// UnavailableError reports that the edge cannot route traffic yet.
func UnavailableError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusServiceUnavailable, NewErrorResponse(http.StatusServiceUnavailable, ErrCodeUnavailable, message))
}

// RateLimitedError is the httprate limit handler.
func RateLimitedError(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, r, http.StatusTooManyRequests, NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded, retry later"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
