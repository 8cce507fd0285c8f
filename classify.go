package offlinecache

import "net/http"

// Classification is the caching decision derived once per request.
// It drives strategy selection in ServeHTTP and is never re-derived
// further down the call chain.
type Classification int

const (
	// ClassBypass: the request is not cacheable (non-GET) and is
	// forwarded untouched.
	ClassBypass Classification = iota
	// ClassAPI: an API call, served network-first.
	ClassAPI
	// ClassAsset: a static asset (image, script, style or font),
	// served cache-first.
	ClassAsset
	// ClassNavigation: a page navigation, served network-first with a
	// hard fallback to the app shell document.
	ClassNavigation
	// ClassOther: everything else, served stale-while-revalidate.
	ClassOther
)

func (c Classification) String() string {
	switch c {
	case ClassBypass:
		return "bypass"
	case ClassAPI:
		return "api"
	case ClassAsset:
		return "asset"
	case ClassNavigation:
		return "navigation"
	default:
		return "other"
	}
}

// Classify derives the classification of a request from its method, its
// URL path, its declared destination (Sec-Fetch-Dest) and its
// navigation mode (Sec-Fetch-Mode). The rules apply in order; the first
// match wins.
func (w *Worker) Classify(r *http.Request) Classification {
	if r.Method != http.MethodGet {
		return ClassBypass
	}
	if w.isAPI(r) {
		return ClassAPI
	}
	if isAsset(r) {
		return ClassAsset
	}
	if isNavigation(r) {
		return ClassNavigation
	}
	return ClassOther
}
