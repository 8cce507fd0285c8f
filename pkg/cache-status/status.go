// Package cachestatus builds the Cache-Status response header (RFC 9211)
// so every strategy decision made by the worker is observable on the
// response itself.
package cachestatus

import "strings"

const cacheName = "ia-sport-offline"

type FwdReason string

const (
	// The cache was configured to not handle this request
	// (e.g. a non-GET request).
	FwdBypass FwdReason = "bypass"

	// The cache did not contain any response that matched the
	// request URI.
	FwdUriMiss FwdReason = "uri-miss"

	// The cache did not contain any response that could be used to
	// satisfy this request.
	FwdMiss FwdReason = "miss"

	// The cache contained a response, but it was stale and the
	// request was forwarded anyway.
	FwdStale FwdReason = "stale"
)

type Status struct {
	hit       bool
	fwdReason FwdReason
	stored    bool
	detail    string
}

// Hit marks the response as served from cache.
func (s *Status) Hit() {
	s.hit = true
	s.fwdReason = ""
}

// Forward marks the request as forwarded to the origin for the
// given reason.
func (s *Status) Forward(reason FwdReason) {
	s.hit = false
	s.fwdReason = reason
}

// Stored records that the forwarded response was written to cache.
func (s *Status) Stored() {
	s.stored = true
}

// Detail adds free-form extra information.
func (s *Status) Detail(detail string) {
	s.detail = detail
}

// IsHit reports whether the response was served from cache.
func (s *Status) IsHit() bool {
	return s.hit
}

func (s *Status) String() string {
	sb := strings.Builder{}
	sb.WriteString(cacheName)
	if s.hit {
		sb.WriteString("; hit")
	} else {
		sb.WriteString("; fwd=")
		if s.fwdReason != "" {
			sb.WriteString(string(s.fwdReason))
		} else {
			sb.WriteString(string(FwdMiss))
		}
	}
	if s.stored {
		sb.WriteString("; stored")
	}
	if s.detail != "" {
		sb.WriteString("; detail=" + s.detail)
	}
	return sb.String()
}
