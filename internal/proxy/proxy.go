// Package proxy forwards routed requests to the chosen environment.
package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/router"
	"github.com/hollowverse/releasemanager/internal/telemetry"
)

var errNoTarget = errors.New("no upstream URL for environment")

// Config configures a Forwarder.
type Config struct {
	// Scheme is prepended to directory URLs that have none, e.g. Elastic
	// Beanstalk endpoint hostnames.
	Scheme string
	// InsecureSkipVerify disables upstream certificate checks. Environment
	// endpoints may present a certificate for the public domain instead of
	// their own hostname.
	InsecureSkipVerify bool
}

type upstreamKey struct{}

// Forwarder implements router.Forwarder on top of httputil.ReverseProxy.
type Forwarder struct {
	scheme string
	proxy  *httputil.ReverseProxy
	log    zerolog.Logger
}

// New creates a forwarder. modifyResponse runs on every upstream response
// before it is written; pass (*router.Router).ModifyResponse.
func New(cfg Config, modifyResponse func(*http.Response) error, log zerolog.Logger) *Forwarder {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	f := &Forwarder{scheme: scheme, log: log}
	f.proxy = &httputil.ReverseProxy{
		Rewrite:        f.rewrite,
		Transport:      transport,
		ModifyResponse: modifyResponse,
		ErrorHandler:   f.handleError,
	}
	return f
}

// Forward implements router.Forwarder.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, target router.Target) {
	u, err := f.upstreamURL(target.URL)
	if err != nil {
		f.handleError(w, r, fmt.Errorf("environment %s: %w", target.ResolvedEnvironmentName, err))
		return
	}

	ctx := context.WithValue(r.Context(), upstreamKey{}, upstream{url: u, target: target})
	f.proxy.ServeHTTP(w, r.WithContext(ctx))
}

type upstream struct {
	url    *url.URL
	target router.Target
}

// rewrite points the outgoing request at the upstream. The Host header is
// the upstream's, so load balancers in front of the environment route it.
func (f *Forwarder) rewrite(pr *httputil.ProxyRequest) {
	up := pr.In.Context().Value(upstreamKey{}).(upstream)

	pr.SetURL(up.url)
	pr.SetXForwarded()

	if up.target.RequestedBranchName != "" {
		pr.Out.Header.Set(router.HeaderRequestedEnvironment, up.target.RequestedBranchName)
	}
	pr.Out.Header.Set(router.HeaderResolvedEnvironment, up.target.ResolvedEnvironmentName)
}

func (f *Forwarder) upstreamURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errNoTarget
	}
	if !strings.Contains(raw, "://") {
		raw = f.scheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: missing host", raw)
	}
	return u, nil
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	telemetry.UpstreamErrors.Inc()

	target, _ := router.TargetFromContext(r.Context())
	f.log.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("resolved", target.ResolvedEnvironmentName).
		Str("path", r.URL.Path).
		Msg("upstream request failed")

	w.WriteHeader(http.StatusBadGateway)
}
