package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/router"
)

type noBranches struct{}

func (noBranches) Resolve(ctx context.Context, name string) (environments.Resolution, bool, error) {
	return environments.Resolution{}, false, nil
}

type fixedSplit struct{ res environments.Resolution }

func (f fixedSplit) Resolve(string, string) environments.Resolution { return f.res }

type seen struct {
	host, requested, resolved, forwardedFor string
}

func newUpstream(t *testing.T, cacheControl string, got *seen) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.host = r.Host
		got.requested = r.Header.Get(router.HeaderRequestedEnvironment)
		got.resolved = r.Header.Get(router.HeaderResolvedEnvironment)
		got.forwardedFor = r.Header.Get("X-Forwarded-For")
		if cacheControl != "" {
			w.Header().Set("Cache-Control", cacheControl)
		}
		_, _ = w.Write([]byte("hello from " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newEdge(res environments.Resolution) *router.Router {
	var rt *router.Router
	fwd := New(Config{Scheme: "http"}, func(resp *http.Response) error {
		return rt.ModifyResponse(resp)
	}, zerolog.Nop())
	rt = router.New(router.Config{}, noBranches{}, fixedSplit{res: res}, fwd, router.WithCookiePolicy(router.AllowAllCookies))
	return rt
}

func TestForward_ProxiesToUpstream(t *testing.T) {
	var got seen
	upstream := newUpstream(t, "public, max-age=600", &got)
	host := strings.TrimPrefix(upstream.URL, "http://")

	// scheme-less URL as returned by the platform
	rt := newEdge(environments.Resolution{Name: "master", URL: host})

	req := httptest.NewRequest(http.MethodGet, "http://www.example.com/about?branch=preview", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "hello from /about" {
		t.Errorf("Unexpected body %q", body)
	}
	if got.host != host {
		t.Errorf("Expected upstream Host %s, got %s", host, got.host)
	}
	if got.requested != "preview" {
		t.Errorf("Expected requested header preview upstream, got %q", got.requested)
	}
	if got.resolved != "master" {
		t.Errorf("Expected resolved header master upstream, got %q", got.resolved)
	}
	if got.forwardedFor == "" {
		t.Error("Expected X-Forwarded-For to be set")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=600, "+router.CDNNoCacheDirectives {
		t.Errorf("Expected rewritten Cache-Control, got %q", cc)
	}
}

func TestForward_PinnedSessionKeepsCacheControl(t *testing.T) {
	var got seen
	upstream := newUpstream(t, "public, max-age=600", &got)
	rt := newEdge(environments.Resolution{Name: "master", URL: upstream.URL})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", "env=master")
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=600" {
		t.Errorf("Expected Cache-Control unchanged, got %q", cc)
	}
	if got.requested != "" {
		t.Errorf("Expected no requested header upstream, got %q", got.requested)
	}
}

func TestForward_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rt := newEdge(environments.Resolution{Name: "master", URL: url})
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
	if got := rec.Header().Get(router.HeaderResolvedEnvironment); got != "master" {
		t.Errorf("Expected resolved header on error response, got %q", got)
	}
}

func TestForward_NoURL(t *testing.T) {
	rt := newEdge(environments.Resolution{Name: "master"})
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
}

func TestUpstreamURL(t *testing.T) {
	f := New(Config{}, nil, zerolog.Nop())

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"master.elasticbeanstalk.com", "https://master.elasticbeanstalk.com", false},
		{"http://localhost:3000", "http://localhost:3000", false},
		{"https://example.com/base", "https://example.com/base", false},
		{"", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		u, err := f.upstreamURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("upstreamURL(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("upstreamURL(%q): %v", tt.in, err)
			continue
		}
		if u.String() != tt.want {
			t.Errorf("upstreamURL(%q) = %s, want %s", tt.in, u, tt.want)
		}
	}
}
