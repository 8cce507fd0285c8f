package offlinecache

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	cachekey "github.com/ia-sport/offline-cache/pkg/cache-key"
	cachestatus "github.com/ia-sport/offline-cache/pkg/cache-status"
)

// serveBypass forwards the request untouched, with no cache reads or
// writes on either side.
func (w *Worker) serveBypass(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	cs := &cachestatus.Status{}
	cs.Forward(cachestatus.FwdBypass)
	res, err := w.fetch(r)
	if err != nil {
		log.Error().Err(err).Msg("Could not reach origin")
		rw.Header().Set("Cache-Status", cs.String())
		http.Error(rw, "origin unreachable", http.StatusBadGateway)
		return
	}
	w.writeResponse(rw, r, res, cs, log)
}

// serveCacheFirst serves static assets: a stored entry is returned
// without any network call; on a miss the origin response is stored
// (when ok) and returned; a network failure propagates with no further
// fallback.
func (w *Worker) serveCacheFirst(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	key := cachekey.Key(r)
	cs := &cachestatus.Status{}

	if entry, found, err := w.cache.Get(w.caches.Static, key); err != nil {
		log.Error().Err(err).Msg("Could not retrieve from cache")
	} else if found {
		cs.Hit()
		if w.writeStored(rw, r, entry, cs, log) {
			return
		}
	}

	cs.Forward(cachestatus.FwdUriMiss)
	requestedAt := time.Now()
	res, err := w.fetch(r)
	if err != nil {
		log.Error().Err(err).Msg("Fetch failed")
		rw.Header().Set("Cache-Status", cs.String())
		http.Error(rw, "origin unreachable", http.StatusBadGateway)
		return
	}
	if ok(res) {
		if err := w.store(w.caches.Static, key, res, requestedAt); err != nil {
			log.Error().Err(err).Msg("Could not write to cache")
		} else {
			cs.Stored()
		}
	}
	w.writeResponse(rw, r, res, cs, log)
}

// serveNetworkFirst serves API calls and navigations: the origin is
// tried first and ok responses are stored; on a network failure the
// stored entry for this exact request is served instead. Navigations
// (shellFallback) additionally fall back to the cached app shell
// document when no entry exists. Non-ok responses pass through
// uncached.
func (w *Worker) serveNetworkFirst(rw http.ResponseWriter, r *http.Request, shellFallback bool, log zerolog.Logger) {
	key := cachekey.Key(r)
	cs := &cachestatus.Status{}
	cs.Forward(cachestatus.FwdUriMiss)

	requestedAt := time.Now()
	res, err := w.fetch(r)
	if err == nil {
		if ok(res) {
			if err := w.store(w.caches.Data, key, res, requestedAt); err != nil {
				log.Error().Err(err).Msg("Could not write to cache")
			} else {
				cs.Stored()
			}
		}
		w.writeResponse(rw, r, res, cs, log)
		return
	}
	log.Debug().Err(err).Msg("Fetch failed, falling back to cache")

	if entry, found, cacheErr := w.cache.Get(w.caches.Data, key); cacheErr != nil {
		log.Error().Err(cacheErr).Msg("Could not retrieve from cache")
	} else if found {
		cs.Hit()
		cs.Detail("offline")
		if w.writeStored(rw, r, entry, cs, log) {
			return
		}
	}

	if shellFallback {
		shellKey := cachekey.KeyForPath(w.shellPath)
		if entry, found, cacheErr := w.cache.Get(w.caches.Static, shellKey); cacheErr == nil && found {
			cs.Hit()
			cs.Detail("shell")
			if w.writeStored(rw, r, entry, cs, log) {
				return
			}
		}
	}

	rw.Header().Set("Cache-Status", cs.String())
	http.Error(rw, "origin unreachable", http.StatusBadGateway)
}

// serveStaleWhileRevalidate returns the stored entry immediately when
// one exists and refreshes it from the network in the background; the
// refreshed entry is only observable on a later request. Without a
// stored entry the network response is awaited, stored when ok, and
// returned.
func (w *Worker) serveStaleWhileRevalidate(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	key := cachekey.Key(r)
	cs := &cachestatus.Status{}

	if entry, found, err := w.cache.Get(w.caches.Dynamic, key); err != nil {
		log.Error().Err(err).Msg("Could not retrieve from cache")
	} else if found {
		// refresh leg runs after the response has been returned;
		// Worker.Wait observes its completion
		refresh := r.Clone(context.Background())
		w.pending.Add(1)
		go func() {
			defer w.pending.Done()
			w.revalidate(refresh, key, log)
		}()

		cs.Hit()
		cs.Detail("revalidating")
		if w.writeStored(rw, r, entry, cs, log) {
			return
		}
	}

	cs.Forward(cachestatus.FwdUriMiss)
	requestedAt := time.Now()
	res, err := w.fetch(r)
	if err != nil {
		log.Error().Err(err).Msg("Fetch failed")
		rw.Header().Set("Cache-Status", cs.String())
		http.Error(rw, "origin unreachable", http.StatusBadGateway)
		return
	}
	if ok(res) {
		if err := w.store(w.caches.Dynamic, key, res, requestedAt); err != nil {
			log.Error().Err(err).Msg("Could not write to cache")
		} else {
			cs.Stored()
		}
	}
	w.writeResponse(rw, r, res, cs, log)
}

func (w *Worker) revalidate(r *http.Request, key string, log zerolog.Logger) {
	requestedAt := time.Now()
	res, err := w.fetch(r)
	if err != nil {
		log.Debug().Err(err).Msg("Revalidation fetch failed")
		return
	}
	defer res.Body.Close()
	if !ok(res) {
		log.Trace().Int("status", res.StatusCode).Msg("Not storing non-ok revalidation response")
		return
	}
	if err := w.store(w.caches.Dynamic, key, res, requestedAt); err != nil {
		log.Error().Err(err).Msg("Could not write revalidated response to cache")
	}
}
