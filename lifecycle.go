package offlinecache

import (
	"context"
	"net/http"
	"time"

	cachekey "github.com/ia-sport/offline-cache/pkg/cache-key"
	"github.com/ia-sport/offline-cache/pkg/lifetime"
)

// State is the worker's lifecycle state. A worker only serves with its
// own cache generation once active; activation claims all clients
// immediately, so an in-flight page load can switch caching behavior
// mid-session.
type State int

const (
	StateParked State = iota
	StateInstalled
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	default:
		return "parked"
	}
}

func (w *Worker) State() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.state = s
	w.log.Info().Stringer("state", s).Msg("Worker state changed")
}

// Install pre-populates the static cache with the asset manifest.
// Population is best-effort: a manifest entry that fails to fetch is
// logged and skipped, and will be fetched on first real use instead.
// The precache work is registered on the event; installation is
// idempotent.
func (w *Worker) Install(ctx context.Context, evt *lifetime.Event) {
	w.log.Info().Msg("Install")
	evt.WaitUntil(func() {
		w.precacheAssets(ctx)
	})
	w.setState(StateInstalled)
}

func (w *Worker) precacheAssets(ctx context.Context) {
	for _, path := range w.precache {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("Could not create precache request")
			continue
		}
		// bypass intermediary HTTP caches so install always gets
		// fresh bytes
		req.Header.Set("Cache-Control", "no-cache")

		requestedAt := time.Now()
		res, err := w.fetch(req)
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("Could not precache asset")
			continue
		}
		if !ok(res) {
			w.log.Warn().Int("status", res.StatusCode).Str("path", path).Msg("Not precaching non-ok response")
			res.Body.Close()
			continue
		}
		if err := w.store(w.caches.Static, cachekey.KeyForPath(path), res, requestedAt); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("Could not store precached asset")
		}
		res.Body.Close()
		w.log.Trace().Str("path", path).Msg("Precached asset")
	}
}

// Activate garbage-collects cache generations: every cache name not in
// the current set is deleted. The worker claims clients immediately by
// flipping to the active state before the cleanup completes.
func (w *Worker) Activate(ctx context.Context, evt *lifetime.Event) {
	w.log.Info().Msg("Activate")
	evt.WaitUntil(func() {
		w.cleanupCaches(ctx)
	})
	w.setState(StateActive)
}

func (w *Worker) cleanupCaches(ctx context.Context) {
	names, err := w.cache.Names()
	if err != nil {
		w.log.Error().Err(err).Msg("Could not enumerate cache names")
		return
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if w.caches.Contains(name) {
			continue
		}
		w.log.Info().Str("cache", name).Msg("Removing old cache")
		if err := w.cache.DeleteCache(name); err != nil {
			w.log.Error().Err(err).Str("cache", name).Msg("Could not remove old cache")
		}
	}
}

// MessageSkipWaiting instructs an installed worker to activate
// immediately. It is the control message the page sends to drive a
// seamless version upgrade.
const MessageSkipWaiting = "SKIP_WAITING"

type Message struct {
	Type string `json:"type"`
}

// HandleMessage processes a cross-context control message.
// Unknown message types are ignored.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) {
	if msg.Type != MessageSkipWaiting {
		w.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown message")
		return
	}
	if w.State() == StateActive {
		return
	}
	evt := lifetime.NewEvent()
	w.Activate(ctx, evt)
	evt.Wait()
}
