// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
)

// MasterBeta is the production-shaped table: 4 parts master, 1 part beta.
func MasterBeta() *environments.WeightTable {
	return environments.MustWeightTable(
		environments.Weight{Name: "master", Weight: 4},
		environments.Weight{Name: "beta", Weight: 1},
	)
}

// NewDirectory creates a directory over a static source seeded with urls.
// It is refreshed once when urls can resolve the table's default.
func NewDirectory(t *testing.T, table *environments.WeightTable, urls map[string]string) (*directory.Directory, *directory.StaticSource) {
	t.Helper()
	src := directory.NewStaticSource(urls)
	dir := directory.New(src, table, directory.WithRetry(1, time.Millisecond))
	if _, ok := urls[table.Default()]; ok {
		if err := dir.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
	}
	return dir, src
}

// SequenceSelector returns names in order and repeats the last one.
type SequenceSelector struct {
	mu    sync.Mutex
	names []string
	next  int
}

// NewSequenceSelector creates a selector that replays names.
func NewSequenceSelector(names ...string) *SequenceSelector {
	return &SequenceSelector{names: names}
}

// Pick implements rollout.Selector.
func (s *SequenceSelector) Pick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.names[min(s.next, len(s.names)-1)]
	s.next++
	return name
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
	Cookies []*http.Cookie
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, r.Path, body)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// FindCookie returns the Set-Cookie named name from rr, or nil.
func FindCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
