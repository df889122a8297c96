package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// RoutingDecisions counts routed requests by how the target was chosen.
	// kind is "branch" or "environment"; outcome is one of resolved, fallback,
	// requested, assigned, bot.
	RoutingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_decisions_total",
			Help: "Routing decisions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	// EnvironmentAssignments counts requests served per environment. Branch
	// previews are not labelled individually.
	EnvironmentAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "environment_assignments_total",
			Help: "Requests routed to each weighted environment",
		},
		[]string{"env"},
	)
	BranchLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "branch_lookups_total",
			Help: "Branch preview lookups by result",
		},
		[]string{"result"},
	)
	DirectoryRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_refreshes_total",
			Help: "Environment directory refreshes by result",
		},
		[]string{"result"},
	)
	DirectoryEnvironments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "directory_environments",
		Help: "Number of environments currently in the directory snapshot",
	})
	UpstreamErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upstream_errors_total",
		Help: "Requests that failed while proxying to the upstream",
	})
	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_clients",
		Help: "Number of currently connected SSE clients",
	})
)

func Init() {
	prometheus.MustRegister(
		httpReqs, httpDur,
		RoutingDecisions, EnvironmentAssignments, BranchLookups,
		DirectoryRefreshes, DirectoryEnvironments,
		UpstreamErrors, SSEClients,
	)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// route pattern is only known after chi has matched
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
