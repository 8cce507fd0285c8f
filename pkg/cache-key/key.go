package cachekey

import (
	"fmt"
	"net/http"
	"strings"
)

var ErrMalformedKey = fmt.Errorf("malformed cache key")

const methodSeparator = " "

// Key returns the canonical cache key for a request: the method plus the
// request URI (path and query). The same resource always maps to the
// same key regardless of headers or body.
func Key(r *http.Request) string {
	return r.Method + methodSeparator + r.URL.RequestURI()
}

// KeyForPath returns the cache key for a plain GET of the given
// root-relative path. Used where there is no request at hand, e.g. when
// pre-caching the static manifest or refreshing a known endpoint.
func KeyForPath(path string) string {
	return http.MethodGet + methodSeparator + path
}

// RequestFromKey reconstructs a caching-wise equal request from a key.
// It returns an error if the key cannot be parsed.
func RequestFromKey(key string) (*http.Request, error) {
	method, uri, found := strings.Cut(key, methodSeparator)
	if !found || method == "" || !strings.HasPrefix(uri, "/") {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, key)
	}
	return http.NewRequest(method, uri, nil)
}
