package router

import "context"

// Context is the routing input computed once per request from the query
// string and cookies. Empty strings mean absent.
type Context struct {
	RequestedBranchName      string
	RequestedEnvironmentName string
}

// BranchRequested reports whether the request asked for a branch preview.
func (c Context) BranchRequested() bool { return c.RequestedBranchName != "" }

// EnvironmentPinned reports whether the session already had a traffic-split
// environment.
func (c Context) EnvironmentPinned() bool { return c.RequestedEnvironmentName != "" }

// Target is where a request is forwarded, plus what the forwarder may echo
// in diagnostic headers.
type Target struct {
	URL                      string
	RequestedBranchName      string
	RequestedEnvironmentName string
	ResolvedEnvironmentName  string
}

type ctxKey struct{}

type routing struct {
	rc     Context
	target Target
}

func withRouting(ctx context.Context, rc Context, target Target) context.Context {
	return context.WithValue(ctx, ctxKey{}, routing{rc: rc, target: target})
}

// FromContext returns the routing context attached by the router.
func FromContext(ctx context.Context) (Context, bool) {
	v, ok := ctx.Value(ctxKey{}).(routing)
	return v.rc, ok
}

// TargetFromContext returns the resolved target attached by the router.
func TargetFromContext(ctx context.Context) (Target, bool) {
	v, ok := ctx.Value(ctxKey{}).(routing)
	return v.target, ok
}
