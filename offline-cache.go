// Package offlinecache implements the offline worker of the IA Sport
// client: it fronts the origin, classifies every request once, and
// serves it with a caching strategy (cache-first, network-first or
// stale-while-revalidate) backed by named, version-stamped caches.
package offlinecache

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ia-sport/offline-cache/cache"
	cachestatus "github.com/ia-sport/offline-cache/pkg/cache-status"
	serializer "github.com/ia-sport/offline-cache/pkg/response-serializer"

	"github.com/rs/zerolog"
)

const (
	defaultAPIPrefix = "/api/"
	defaultShellPath = "/index.html"
	defaultSyncPath  = "/api/predictions"
)

// DefaultPrecache is the static asset manifest warmed at install time.
var DefaultPrecache = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/logo192.png",
	"/logo512.png",
	"/static/css/main.css",
	"/static/js/main.js",
}

type Config struct {
	// Storage for cache entries.
	Cache cache.CacheProvider
	// URL of the origin server the worker fronts.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Cache names for the current deployment.
	// The zero value means the default v1 set.
	Caches cache.Set
	// Path prefix identifying API calls.
	APIPrefix string
	// App shell document served when a navigation fails entirely.
	ShellPath string
	// Static asset manifest pre-cached at install.
	// Defaults to DefaultPrecache.
	Precache []string
	// Endpoint re-fetched by the predictions background sync.
	SyncPath string
	// Optional function for mutating the incoming request.
	RequestModifier func(*http.Request)
}

type Worker struct {
	cache         cache.CacheProvider
	caches        cache.Set
	origin        url.URL
	originHost    string
	apiPrefix     string
	shellPath     string
	syncPath      string
	precache      []string
	client        *http.Client
	log           zerolog.Logger
	modifyRequest func(*http.Request)

	stateMu sync.Mutex
	state   State

	syncMu   sync.Mutex
	syncTags map[string]bool

	// background work started while handling requests (the refresh leg
	// of stale-while-revalidate); Wait drains it
	pending sync.WaitGroup
}

// New initializes the offline worker.
// The worker holds no state in memory that must survive a restart; all
// durable state lives in the cache provider.
func New(config Config) *Worker {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Logger()

	caches := config.Caches
	if caches == (cache.Set{}) {
		caches = cache.DefaultSet("v1")
	}

	w := &Worker{
		cache:         config.Cache,
		caches:        caches,
		origin:        config.OriginURL,
		originHost:    config.OriginHost,
		apiPrefix:     config.APIPrefix,
		shellPath:     config.ShellPath,
		syncPath:      config.SyncPath,
		precache:      config.Precache,
		log:           logger,
		modifyRequest: config.RequestModifier,
		syncTags:      make(map[string]bool),
	}
	if w.apiPrefix == "" {
		w.apiPrefix = defaultAPIPrefix
	}
	if w.shellPath == "" {
		w.shellPath = defaultShellPath
	}
	if w.syncPath == "" {
		w.syncPath = defaultSyncPath
	}
	if w.precache == nil {
		w.precache = DefaultPrecache
	}

	transport := http.DefaultTransport
	if config.OriginHost != "" {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: config.OriginHost,
			},
		}
	}
	w.client = &http.Client{Transport: transport}

	return w
}

// ServeHTTP implements the http.Handler interface.
// Each request is classified once; the classification picks the
// strategy that produces the response.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.modifyRequest != nil {
		w.modifyRequest(r)
	}
	class := w.Classify(r)
	log := w.log.With().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Stringer("class", class).
		Logger()

	switch class {
	case ClassBypass:
		w.serveBypass(rw, r, log)
	case ClassAPI:
		w.serveNetworkFirst(rw, r, false, log)
	case ClassAsset:
		w.serveCacheFirst(rw, r, log)
	case ClassNavigation:
		w.serveNetworkFirst(rw, r, true, log)
	default:
		w.serveStaleWhileRevalidate(rw, r, log)
	}
}

// Wait drains background cache writes. Callers must not assume the
// cache reflects a returned response until Wait has returned.
func (w *Worker) Wait() {
	w.pending.Wait()
}

// fetch forwards the request to the origin.
func (w *Worker) fetch(r *http.Request) (*http.Response, error) {
	out := r.Clone(r.Context())
	out.URL.Scheme = w.origin.Scheme
	out.URL.Host = w.origin.Host
	if w.originHost != "" {
		out.Host = w.originHost
	}
	out.RequestURI = ""
	return w.client.Do(out)
}

// ok mirrors the passed/failed split of strategies: only responses in
// the 2xx range are ever written to cache.
func ok(res *http.Response) bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}

// store writes a clone of the response into the named cache.
// The response body stays readable for the caller.
func (w *Worker) store(cacheName, key string, res *http.Response, requestedAt time.Time) error {
	bts, err := serializer.ResponseToBytes(res)
	if err != nil {
		return err
	}
	return w.cache.Put(cacheName, key, cache.Entry{
		RequestedAt: requestedAt,
		ReceivedAt:  time.Now(),
		Bytes:       bts,
	})
}

func (w *Worker) writeResponse(rw http.ResponseWriter, r *http.Request, res *http.Response, cs *cachestatus.Status, log zerolog.Logger) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(rw.Header(), res.Header)
	rw.Header().Set("Cache-Status", cs.String())
	rw.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(rw, res.Body)
	if err != nil {
		log.Error().Err(err).Msg("Could not write response body to client")
	}
	w.logRequest(r, res.StatusCode, cs, log)
	log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
}

// writeStored serves a stored entry. It reports whether the entry could
// be deserialized and written.
func (w *Worker) writeStored(rw http.ResponseWriter, r *http.Request, entry cache.Entry, cs *cachestatus.Status, log zerolog.Logger) bool {
	res, err := serializer.BytesToResponse(entry.Bytes)
	if err != nil {
		log.Error().Err(err).Msg("Could not create response from stored entry")
		return false
	}
	w.writeResponse(rw, r, res, cs, log)
	return true
}

func (w *Worker) logRequest(r *http.Request, status int, cs *cachestatus.Status, log zerolog.Logger) {
	isHit := 0
	if cs.IsHit() {
		isHit = 1
	}
	log.Debug().
		Int("status", status).
		Str("cacheStatus", cs.String()).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// strip upstream proxy headers, some clients do not like them
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}

func isNavigation(r *http.Request) bool {
	return r.Header.Get("Sec-Fetch-Mode") == "navigate"
}

func isAsset(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Dest") {
	case "image", "script", "style", "font":
		return true
	}
	return false
}

func (w *Worker) isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, w.apiPrefix)
}
