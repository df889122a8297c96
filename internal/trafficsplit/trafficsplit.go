// Package trafficsplit resolves which weighted environment serves a regular
// (non-preview) session.
package trafficsplit

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/x-way/crawlerdetect"

	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/rollout"
	"github.com/hollowverse/releasemanager/internal/telemetry"
)

// Directory resolves an environment name to its current base URL.
type Directory interface {
	Lookup(name string) (string, bool)
}

// BotClassifier reports whether a user agent belongs to an automated client.
type BotClassifier func(userAgent string) bool

// IsBot is the default classifier.
func IsBot(userAgent string) bool {
	return crawlerdetect.IsCrawler(userAgent)
}

// Outcomes reported by ResolveWithOutcome and the routing_decisions metric.
const (
	OutcomeBot       = "bot"
	OutcomeRequested = "requested"
	OutcomeAssigned  = "assigned"
	OutcomeFallback  = "fallback"
)

// Resolver picks the environment for a session. It holds no per-request
// state and is safe for concurrent use if its Selector is.
type Resolver struct {
	table    *environments.WeightTable
	selector rollout.Selector
	dir      Directory
	isBot    BotClassifier
	log      zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBotClassifier replaces the default crawler detection.
func WithBotClassifier(fn BotClassifier) Option {
	return func(r *Resolver) { r.isBot = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// New creates a resolver. It fails if the directory has no URL for the
// default environment, since nothing could be routed.
func New(table *environments.WeightTable, selector rollout.Selector, dir Directory, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		table:    table,
		selector: selector,
		dir:      dir,
		isBot:    IsBot,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, ok := dir.Lookup(table.Default()); !ok {
		return nil, fmt.Errorf("%w: %s", directory.ErrDefaultUnresolvable, table.Default())
	}
	return r, nil
}

// Resolve returns the environment for a session that previously pinned
// requested (empty if none) and sends userAgent. It always returns a
// resolution; unknown, stale or unresolvable names fall back.
func (r *Resolver) Resolve(requested, userAgent string) environments.Resolution {
	res, _ := r.ResolveWithOutcome(requested, userAgent)
	return res
}

// ResolveWithOutcome is Resolve plus how the environment was chosen.
//
// Order:
//  1. bots always get the default environment
//  2. a requested name present in the weight table is kept
//  3. otherwise a fresh weighted pick
//  4. a name the directory cannot resolve falls back to the default
func (r *Resolver) ResolveWithOutcome(requested, userAgent string) (environments.Resolution, string) {
	var name, outcome string
	switch {
	case userAgent != "" && r.isBot(userAgent):
		name, outcome = r.table.Default(), OutcomeBot
	case requested != "" && r.table.Has(requested):
		name, outcome = requested, OutcomeRequested
	default:
		name, outcome = r.selector.Pick(), OutcomeAssigned
	}

	if url, ok := r.dir.Lookup(name); ok {
		telemetry.RoutingDecisions.WithLabelValues("environment", outcome).Inc()
		telemetry.EnvironmentAssignments.WithLabelValues(name).Inc()
		return environments.Resolution{Name: name, URL: url}, outcome
	}

	def := r.table.Default()
	url, ok := r.dir.Lookup(def)
	if !ok {
		// the refresher refuses snapshots without the default, so this only
		// happens if the directory was never loaded
		r.log.Error().Str("env", def).Msg("default environment has no URL")
	} else {
		r.log.Debug().Str("env", name).Str("resolved", def).Msg("environment not in directory, using default")
	}
	telemetry.RoutingDecisions.WithLabelValues("environment", OutcomeFallback).Inc()
	telemetry.EnvironmentAssignments.WithLabelValues(def).Inc()
	return environments.Resolution{Name: def, URL: url}, OutcomeFallback
}

// Table returns the weight table the resolver splits by.
func (r *Resolver) Table() *environments.WeightTable {
	return r.table
}
