package router

import "net/http"

// CDNNoCacheDirectives keep shared caches from storing a response while
// leaving browser caching directives alone. The "s-" directives are only
// honoured by shared caches.
const CDNNoCacheDirectives = "s-maxage=0, proxy-revalidate"

// RewriteCacheControl appends CDNNoCacheDirectives to h when the response
// must not be cached by a CDN: a branch preview was requested, or the
// session had no environment pinned yet and its response would be reused
// after it gets one. Requests the router never saw are left alone.
func RewriteCacheControl(r *http.Request, h http.Header) {
	rc, ok := FromContext(r.Context())
	if !ok {
		return
	}
	if !rc.BranchRequested() && rc.EnvironmentPinned() {
		return
	}

	// upstreams normally send one value; only the first is kept
	values := h.Values("Cache-Control")
	if len(values) == 0 || values[0] == "" {
		h.Set("Cache-Control", CDNNoCacheDirectives)
		return
	}
	h.Set("Cache-Control", values[0]+", "+CDNNoCacheDirectives)
}
