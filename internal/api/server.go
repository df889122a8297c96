// Package api serves the operations surface of the edge: the current
// environment directory, the weight table, a change stream and metrics.
// It listens separately from routed traffic.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/logging"
	"github.com/hollowverse/releasemanager/internal/telemetry"
)

// Directory is the part of *directory.Directory the ops API reads.
type Directory interface {
	Snapshot() *directory.Snapshot
	Subscribe() (<-chan string, func())
}

// WeightEntry is one row of GET /v1/weights.
type WeightEntry struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
	Share  float64 `json:"share" yaml:"share"`
}

// WeightsResponse is the body of GET /v1/weights.
type WeightsResponse struct {
	Default      string        `json:"default" yaml:"default"`
	Selector     string        `json:"selector" yaml:"selector"`
	Environments []WeightEntry `json:"environments" yaml:"environments"`
}

// EnvironmentResponse is the body of GET /v1/environments/{name}.
type EnvironmentResponse struct {
	Name     string  `json:"name" yaml:"name"`
	URL      string  `json:"url" yaml:"url"`
	Weighted bool    `json:"weighted" yaml:"weighted"`
	Share    float64 `json:"share,omitempty" yaml:"share,omitempty"`
}

type Server struct {
	dir        Directory
	table      *environments.WeightTable
	selector   string
	rateLimit  int
	keepAlive  time.Duration
	log        zerolog.Logger
	metricsHdl http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit sets requests per minute per client IP on /v1.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithLogger sets the access and error logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSelectorName reports which selector the edge uses.
func WithSelectorName(name string) Option {
	return func(s *Server) { s.selector = name }
}

// WithStreamKeepAlive sets how often the change stream sends a comment to
// keep idle connections open.
func WithStreamKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

func NewServer(dir Directory, table *environments.WeightTable, opts ...Option) *Server {
	s := &Server{
		dir:        dir,
		table:      table,
		selector:   "weighted",
		rateLimit:  60,
		keepAlive:  30 * time.Second,
		log:        zerolog.Nop(),
		metricsHdl: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware, logging.Middleware(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metricsHdl)

	r.Route("/v1", func(r chi.Router) {
		r.Use(httprate.Limit(
			s.rateLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(RateLimitedError),
		))

		// long-lived; no request timeout
		r.Get("/environments/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Second))
			r.Get("/environments", s.handleEnvironments)
			r.Get("/environments/{name}", s.handleEnvironment)
			r.Get("/weights", s.handleWeights)
		})
	})

	return r
}

// handleHealth reports ready once the directory can resolve the default
// environment.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.dir.Snapshot().Lookup(s.table.Default()); !ok {
		UnavailableError(w, r, fmt.Sprintf("default environment %s has no URL yet", s.table.Default()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleEnvironments(w http.ResponseWriter, r *http.Request) {
	snap := s.dir.Snapshot()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", snap.ETag)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	url, ok := s.dir.Snapshot().Lookup(name)
	if !ok {
		NotFoundError(w, r, fmt.Sprintf("environment %s is not in the directory", name))
		return
	}
	resp := EnvironmentResponse{Name: name, URL: url, Weighted: s.table.Has(name)}
	if resp.Weighted {
		resp.Share = s.table.Share(name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	entries := s.table.Entries()
	resp := WeightsResponse{
		Default:      s.table.Default(),
		Selector:     s.selector,
		Environments: make([]WeightEntry, len(entries)),
	}
	for i, e := range entries {
		resp.Environments[i] = WeightEntry{Name: e.Name, Weight: e.Weight, Share: s.table.Share(e.Name)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStream sends an "init" event with the current ETag, then an
// "update" event for every new directory snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming not supported")
		return
	}

	ch, unsubscribe := s.dir.Subscribe()
	defer unsubscribe()

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "init", s.dir.Snapshot().ETag)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case etag, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "update", etag)
			flusher.Flush()
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event, etag string) {
	data, _ := json.Marshal(map[string]string{"etag": etag})
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
