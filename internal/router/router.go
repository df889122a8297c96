// Package router decides which environment serves each request.
//
// Priority: an explicit branch preview (query parameter, then cookie) wins
// if the branch exists; otherwise the traffic splitter picks, honouring the
// session's environment cookie. The decision is recorded in cookies so the
// session stays on the same environment, and attached to the request
// context so the response's Cache-Control can be rewritten on the way back.
package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/branch"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/telemetry"
)

// Headers set on the response (and by the forwarder on the upstream request).
const (
	HeaderRequestedEnvironment = "X-Hollowverse-Requested-Environment"
	HeaderResolvedEnvironment  = "X-Hollowverse-Resolved-Environment"
)

// BranchQueryParam overrides the branch cookie for a single link.
const BranchQueryParam = "branch"

// Defaults for Config.
const (
	DefaultTrafficSplitCookieName   = "env"
	DefaultBranchCookieName         = "branch"
	DefaultTrafficSplitCookieMaxAge = 24 * time.Hour
	DefaultBranchCookieMaxAge       = 2 * time.Hour
)

// TrafficSplitter resolves a regular session. It never fails.
type TrafficSplitter interface {
	Resolve(requested, userAgent string) environments.Resolution
}

// Forwarder proxies the request to target and writes the upstream response.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, target Target)
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(w http.ResponseWriter, r *http.Request, target Target)

func (f ForwarderFunc) Forward(w http.ResponseWriter, r *http.Request, target Target) {
	f(w, r, target)
}

// Config holds cookie settings. Zero values take the defaults.
type Config struct {
	TrafficSplitCookieName   string
	BranchCookieName         string
	TrafficSplitCookieMaxAge time.Duration
	BranchCookieMaxAge       time.Duration
}

func (c Config) withDefaults() Config {
	if c.TrafficSplitCookieName == "" {
		c.TrafficSplitCookieName = DefaultTrafficSplitCookieName
	}
	if c.BranchCookieName == "" {
		c.BranchCookieName = DefaultBranchCookieName
	}
	if c.TrafficSplitCookieMaxAge <= 0 {
		c.TrafficSplitCookieMaxAge = DefaultTrafficSplitCookieMaxAge
	}
	if c.BranchCookieMaxAge <= 0 {
		c.BranchCookieMaxAge = DefaultBranchCookieMaxAge
	}
	return c
}

// Router is the routing decision engine. It keeps no per-request state.
type Router struct {
	cfg      Config
	branches branch.Resolver
	split    TrafficSplitter
	cookies  CookiePolicy
	fwd      Forwarder
	log      zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(rt *Router) { rt.log = l }
}

// WithCookiePolicy replaces DefaultPathPolicy.
func WithCookiePolicy(p CookiePolicy) Option {
	return func(rt *Router) { rt.cookies = p }
}

// New creates a router. All collaborators are required.
func New(cfg Config, branches branch.Resolver, split TrafficSplitter, fwd Forwarder, opts ...Option) *Router {
	rt := &Router{
		cfg:      cfg.withDefaults(),
		branches: branches,
		split:    split,
		cookies:  DefaultPathPolicy(),
		fwd:      fwd,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// ServeHTTP routes and forwards the request.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.Middleware(http.HandlerFunc(rt.forward)).ServeHTTP(w, r)
}

func (rt *Router) forward(w http.ResponseWriter, r *http.Request) {
	target, _ := TargetFromContext(r.Context())
	rt.fwd.Forward(w, r, target)
}

// Middleware resolves the target, writes cookies and diagnostic headers,
// and calls next with the Context and Target attached to the request.
// next is expected to forward; see TargetFromContext.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCookies := rt.cookies.IsSetCookieAllowedForPath(NormalizePath(r.URL.Path))

		rc := Context{
			RequestedBranchName:      r.URL.Query().Get(BranchQueryParam),
			RequestedEnvironmentName: readCookie(r, rt.cfg.TrafficSplitCookieName),
		}
		if rc.RequestedBranchName == "" {
			rc.RequestedBranchName = readCookie(r, rt.cfg.BranchCookieName)
		}

		var (
			res      environments.Resolution
			resolved bool
		)
		if rc.BranchRequested() {
			w.Header().Set(HeaderRequestedEnvironment, rc.RequestedBranchName)

			res, resolved = rt.resolveBranch(r, rc.RequestedBranchName)
			if resolved && setCookies {
				http.SetCookie(w, stickyCookie(rt.cfg.BranchCookieName, res.Name, rt.cfg.BranchCookieMaxAge))
			}
			// client went away during the lookup
			if r.Context().Err() != nil {
				return
			}
		}

		if !resolved {
			res = rt.split.Resolve(rc.RequestedEnvironmentName, r.UserAgent())
			if setCookies {
				http.SetCookie(w, clearedCookie(rt.cfg.BranchCookieName))
				http.SetCookie(w, stickyCookie(rt.cfg.TrafficSplitCookieName, res.Name, rt.cfg.TrafficSplitCookieMaxAge))
			}
		}

		w.Header().Set(HeaderResolvedEnvironment, res.Name)

		target := Target{
			URL:                      res.URL,
			RequestedBranchName:      rc.RequestedBranchName,
			RequestedEnvironmentName: rc.RequestedEnvironmentName,
			ResolvedEnvironmentName:  res.Name,
		}
		next.ServeHTTP(w, r.WithContext(withRouting(r.Context(), rc, target)))
	})
}

// resolveBranch absorbs lookup failures: an error is the same as no branch.
func (rt *Router) resolveBranch(r *http.Request, name string) (environments.Resolution, bool) {
	res, ok, err := rt.branches.Resolve(r.Context(), name)
	switch {
	case err != nil && r.Context().Err() != nil:
		// client went away; not a platform failure
		return environments.Resolution{}, false
	case errors.Is(err, branch.ErrBreakerOpen):
		telemetry.BranchLookups.WithLabelValues("breaker_open").Inc()
		telemetry.RoutingDecisions.WithLabelValues("branch", "fallback").Inc()
		return environments.Resolution{}, false
	case err != nil:
		telemetry.BranchLookups.WithLabelValues("error").Inc()
		telemetry.RoutingDecisions.WithLabelValues("branch", "fallback").Inc()
		rt.log.Warn().Err(err).Str("branch", name).Msg("branch lookup failed, falling back to traffic split")
		return environments.Resolution{}, false
	case !ok || res.URL == "":
		telemetry.BranchLookups.WithLabelValues("not_found").Inc()
		telemetry.RoutingDecisions.WithLabelValues("branch", "fallback").Inc()
		return environments.Resolution{}, false
	}
	telemetry.BranchLookups.WithLabelValues("found").Inc()
	telemetry.RoutingDecisions.WithLabelValues("branch", "resolved").Inc()
	return res, true
}

// ModifyResponse rewrites Cache-Control on a proxied response. It fits
// httputil.ReverseProxy.ModifyResponse.
func (rt *Router) ModifyResponse(resp *http.Response) error {
	if resp.Request != nil {
		RewriteCacheControl(resp.Request, resp.Header)
	}
	return nil
}
