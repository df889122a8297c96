package branch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/hollowverse/releasemanager/internal/environments"
)

// ErrBreakerOpen is returned while the breaker rejects lookups after
// repeated failures.
var ErrBreakerOpen = errors.New("branch lookup circuit open")

// BreakerConfig configures a BreakerResolver.
type BreakerConfig struct {
	// Timeout bounds a single lookup.
	Timeout time.Duration
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial lookup.
	OpenTimeout time.Duration
}

// callerGone marks a lookup abandoned because the caller's context ended.
// It says nothing about the platform's health.
type callerGone struct{ err error }

func (c *callerGone) Error() string { return c.err.Error() }
func (c *callerGone) Unwrap() error { return c.err }

// result carries a lookup through gobreaker's interface{} return.
type result struct {
	res environments.Resolution
	ok  bool
}

// BreakerResolver decorates a Resolver with a per-call timeout and a circuit
// breaker, so a slow or failing platform API costs at most Timeout per
// request and nothing at all once the breaker opens.
type BreakerResolver struct {
	next    Resolver
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

// NewBreakerResolver wraps next.
func NewBreakerResolver(next Resolver, cfg BreakerConfig, log zerolog.Logger) *BreakerResolver {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "branch-lookup",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var gone *callerGone
			return errors.As(err, &gone)
		},
	})

	return &BreakerResolver{next: next, timeout: cfg.Timeout, cb: cb}
}

// Resolve implements Resolver. "Not found" is a successful lookup and does
// not count towards opening the breaker, and neither does a lookup cut short
// because ctx was cancelled.
func (b *BreakerResolver) Resolve(ctx context.Context, branch string) (environments.Resolution, bool, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		res, ok, err := b.next.Resolve(callCtx, branch)
		if err != nil {
			// the per-call timeout still counts; only the caller leaving does not
			if ctx.Err() != nil {
				return nil, &callerGone{err: err}
			}
			return nil, err
		}
		return result{res: res, ok: ok}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return environments.Resolution{}, false, ErrBreakerOpen
		}
		var gone *callerGone
		if errors.As(err, &gone) {
			err = gone.err
		}
		return environments.Resolution{}, false, err
	}

	r := out.(result)
	return r.res, r.ok, nil
}

// State reports the breaker state for diagnostics.
func (b *BreakerResolver) State() string {
	return b.cb.State().String()
}
