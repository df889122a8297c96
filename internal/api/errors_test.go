package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		wantCode   ErrorCode
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { NotFoundError(w, r, "gone") }, http.StatusNotFound, ErrCodeNotFound},
		{"internal", func(w http.ResponseWriter, r *http.Request) { InternalError(w, r, "boom") }, http.StatusInternalServerError, ErrCodeInternal},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { UnavailableError(w, r, "later") }, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"rate limited", RateLimitedError, http.StatusTooManyRequests, ErrCodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))
			rr := httptest.NewRecorder()

			tt.write(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected application/json, got %s", ct)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Code)
			}
			if resp.Error != http.StatusText(tt.wantStatus) {
				t.Errorf("Expected error %q, got %q", http.StatusText(tt.wantStatus), resp.Error)
			}
			if resp.RequestID != "req-42" {
				t.Errorf("Expected request ID req-42, got %q", resp.RequestID)
			}
		})
	}
}
