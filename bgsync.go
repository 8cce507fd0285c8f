package offlinecache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ia-sport/offline-cache/cache"
	cachekey "github.com/ia-sport/offline-cache/pkg/cache-key"
	"github.com/ia-sport/offline-cache/pkg/lifetime"
	serializer "github.com/ia-sport/offline-cache/pkg/response-serializer"
)

// SyncTagPredictions identifies the predictions-refresh job. It is the
// only tag the worker handles; any other tag is ignored.
const SyncTagPredictions = "sync-predictions"

// RequestSync queues a named sync to run on the next connectivity
// signal. Queueing the same tag twice is a no-op.
func (w *Worker) RequestSync(tag string) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()
	w.syncTags[tag] = true
	w.log.Debug().Str("tag", tag).Msg("Sync queued")
}

func (w *Worker) queuedSyncs() []string {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()
	tags := make([]string, 0, len(w.syncTags))
	for tag := range w.syncTags {
		tags = append(tags, tag)
	}
	return tags
}

func (w *Worker) dequeueSync(tag string) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()
	delete(w.syncTags, tag)
}

// HandleSync runs the deferred job for the given tag, keeping the event
// alive until the job completes. Failures are logged, not retried here;
// retry is the sync scheduler's job (see RunSyncLoop).
func (w *Worker) HandleSync(ctx context.Context, tag string, evt *lifetime.Event) {
	if tag != SyncTagPredictions {
		w.log.Debug().Str("tag", tag).Msg("Ignoring unknown sync tag")
		return
	}
	evt.WaitUntil(func() {
		if err := w.syncPredictions(ctx); err != nil {
			w.log.Error().Err(err).Msg("Sync failed")
		}
	})
}

// RunSyncLoop drives queued syncs from connectivity signals: each
// signal on the online channel retries every queued tag, and a tag
// stays queued until its job succeeds. This gives queued syncs
// at-least-once-eventually, best-effort semantics.
func (w *Worker) RunSyncLoop(ctx context.Context, online <-chan struct{}) {
	w.log.Info().Msg("Starting sync loop")
	for {
		select {
		case <-ctx.Done():
			return
		case <-online:
		}
		for _, tag := range w.queuedSyncs() {
			if tag != SyncTagPredictions {
				w.log.Debug().Str("tag", tag).Msg("Dropping unknown sync tag")
				w.dequeueSync(tag)
				continue
			}
			if err := w.syncPredictions(ctx); err != nil {
				w.log.Error().Err(err).Str("tag", tag).Msg("Sync failed, leaving tag queued")
				continue
			}
			w.dequeueSync(tag)
		}
	}
}

// syncPredictions re-fetches the predictions listing and, if the
// payload reports success, overwrites the data-cache entry with the
// fresh payload.
func (w *Worker) syncPredictions(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.syncPath, nil)
	if err != nil {
		return err
	}

	requestedAt := time.Now()
	res, err := w.fetch(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	var envelope struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if !envelope.Success {
		w.log.Debug().Msg("Not caching unsuccessful sync payload")
		return nil
	}

	fresh := &http.Response{
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
	bts, err := serializer.ResponseToBytes(fresh)
	if err != nil {
		return err
	}
	err = w.cache.Put(w.caches.Data, cachekey.KeyForPath(w.syncPath), cache.Entry{
		RequestedAt: requestedAt,
		ReceivedAt:  time.Now(),
		Bytes:       bts,
	})
	if err != nil {
		return err
	}
	w.log.Debug().Str("path", w.syncPath).Msg("Refreshed predictions cache")
	return nil
}
