// Package logging configures zerolog and provides the access-log middleware.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/router"
)

// Formats accepted by Setup.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Setup builds the process logger. out defaults to stderr.
func Setup(level, format string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch format {
	case FormatJSON, "":
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q (expected json or console)", format)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Middleware writes one access-log line per request, including the routing
// decision when the edge router made one.
func Middleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev = ev.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start))

			if requested := ww.Header().Get(router.HeaderRequestedEnvironment); requested != "" {
				ev = ev.Str("requested", requested)
			}
			if resolved := ww.Header().Get(router.HeaderResolvedEnvironment); resolved != "" {
				ev = ev.Str("resolved", resolved)
			}
			ev.Msg("request")
		})
	}
}
