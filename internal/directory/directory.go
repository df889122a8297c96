// Package directory keeps an eventually consistent table of environment name
// → base URL, refreshed out of band from a deployment platform Source.
//
// Readers call Lookup on the hot path without locking; a refresh builds a new
// Snapshot and swaps it in atomically. A request may observe a slightly stale
// table, which is expected.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/telemetry"
)

// ErrDefaultUnresolvable is returned by Refresh when the source has no URL for
// the Default Environment. No traffic can be routed without it, so the
// previous snapshot is kept.
var ErrDefaultUnresolvable = errors.New("default environment has no URL in the directory")

const (
	defaultMaxTries        = 4
	defaultInitialInterval = 500 * time.Millisecond
)

// Directory is the Environment Directory Adapter consumed by the traffic
// split resolver.
type Directory struct {
	source      Source
	names       []string
	defaultName string
	current     atomic.Pointer[Snapshot]
	notify      *notifier
	log         zerolog.Logger

	maxTries        uint
	initialInterval time.Duration
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger used for refresh events.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Directory) { d.log = l }
}

// WithRetry sets how many times a refresh attempts the source and the first
// backoff interval between attempts.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(d *Directory) {
		d.maxTries = maxTries
		d.initialInterval = initialInterval
	}
}

// New creates a directory for the environments in table. It serves an empty
// snapshot until Refresh succeeds.
func New(source Source, table *environments.WeightTable, opts ...Option) *Directory {
	d := &Directory{
		source:          source,
		names:           table.Names(),
		defaultName:     table.Default(),
		notify:          newNotifier(),
		log:             zerolog.Nop(),
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.current.Store(emptySnapshot)
	return d
}

// Lookup returns the current URL of the named environment.
func (d *Directory) Lookup(name string) (string, bool) {
	return d.Snapshot().Lookup(name)
}

// Snapshot returns the current snapshot. It is never nil.
func (d *Directory) Snapshot() *Snapshot {
	return d.current.Load()
}

// Subscribe returns a channel receiving the ETag of every new snapshot and
// an unsubscribe func.
func (d *Directory) Subscribe() (<-chan string, func()) {
	return d.notify.subscribe()
}

// Refresh queries the source, retrying transient failures with exponential
// backoff, and swaps in the new snapshot.
//
// Error Handling:
//   - source keeps failing: returns the last error, snapshot unchanged
//   - source has no URL for the default environment: ErrDefaultUnresolvable,
//     snapshot unchanged
//   - ctx cancelled: returns ctx error, snapshot unchanged
func (d *Directory) Refresh(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialInterval

	urls, err := backoff.Retry(ctx, func() (map[string]string, error) {
		return d.source.Fetch(ctx, d.names)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(d.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.log.Warn().Err(err).Str("source", d.source.Name()).Dur("retry_in", next).Msg("directory fetch failed")
		}),
	)
	if err != nil {
		telemetry.DirectoryRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh directory from %s: %w", d.source.Name(), err)
	}

	if urls[d.defaultName] == "" {
		telemetry.DirectoryRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s", ErrDefaultUnresolvable, d.defaultName)
	}

	next := BuildSnapshot(urls)
	prev := d.current.Swap(next)
	telemetry.DirectoryRefreshes.WithLabelValues("ok").Inc()
	telemetry.DirectoryEnvironments.Set(float64(len(next.Environments)))

	if prev.ETag != next.ETag {
		for _, name := range d.names {
			if _, ok := next.Environments[name]; !ok {
				d.log.Warn().Str("env", name).Msg("environment missing from directory, sessions pinned to it fall back")
			}
		}
		d.log.Info().Str("etag", next.ETag).Int("count", len(next.Environments)).Msg("directory updated")
		d.notify.publish(next.ETag)
	}
	return nil
}

// Run refreshes every interval until ctx is cancelled. Failures are logged
// and the previous snapshot keeps serving.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
				d.log.Error().Err(err).Msg("directory refresh failed, keeping previous snapshot")
			}
		}
	}
}
