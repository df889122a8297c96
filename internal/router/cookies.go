package router

import (
	"net/http"
	"strings"
	"time"
)

// CookiePolicy gates every Set-Cookie the router writes. It receives the
// path as returned by NormalizePath.
type CookiePolicy interface {
	IsSetCookieAllowedForPath(path string) bool
}

// CookiePolicyFunc adapts a function to CookiePolicy.
type CookiePolicyFunc func(path string) bool

func (f CookiePolicyFunc) IsSetCookieAllowedForPath(path string) bool { return f(path) }

// AllowAllCookies permits cookies on every path.
var AllowAllCookies = CookiePolicyFunc(func(string) bool { return true })

// PathPolicy forbids cookies on paths with any of the given prefixes or
// suffixes. Entries are matched against normalized paths, so a suffix for
// JavaScript files is written ".js/".
//
// Static assets are often served with immutable caching. A Set-Cookie stored
// with such a response would be replayed by the browser cache and pin the
// session back to whatever environment served the asset first.
type PathPolicy struct {
	NoCookiePrefixes []string
	NoCookieSuffixes []string
}

// DefaultPathPolicy excludes static assets and the logging endpoint.
func DefaultPathPolicy() PathPolicy {
	return PathPolicy{
		NoCookiePrefixes: []string{"/static/", "/log/"},
		NoCookieSuffixes: []string{".js/", ".css/", ".map/", ".png/", ".jpg/", ".svg/", ".ico/", ".woff/", ".woff2/"},
	}
}

// IsSetCookieAllowedForPath implements CookiePolicy.
func (p PathPolicy) IsSetCookieAllowedForPath(path string) bool {
	for _, prefix := range p.NoCookiePrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	for _, suffix := range p.NoCookieSuffixes {
		if strings.HasSuffix(path, suffix) {
			return false
		}
	}
	return true
}

// NormalizePath lower-cases path and makes it end in exactly one added
// slash, so "/About" and "/about/" are the same path.
func NormalizePath(path string) string {
	return strings.ToLower(strings.TrimSuffix(path, "/")) + "/"
}

func stickyCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge).UTC(),
		HttpOnly: true,
		Secure:   true,
	}
}

func clearedCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   true,
	}
}

func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
