package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ia-sport/offline-cache/kvstore"
)

const listingBody = `{"success":true,"data":[{"id":"1","league":"La Liga","prediction":"1X2","odds":1.8,"confidence":80,"result":"PENDING"}],"count":1,"freeViewsLeft":2}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, kvstore.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	store := kvstore.NewMemStore()
	c := New(Config{
		BaseURL: server.URL,
		Store:   store,
	})
	return c, server, store
}

func TestPredictionsUpdatesSnapshot(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	})
	c, _, _ := newTestClient(t, r)

	listing, err := c.Predictions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !listing.Success || len(listing.Data) != 1 || listing.Cached {
		t.Fatalf("listing is %+v", listing)
	}

	snapshot, _, found := c.Snapshot()
	if !found {
		t.Fatal("no snapshot after successful read")
	}
	if len(snapshot.Data) != 1 || snapshot.Data[0].ID != "1" {
		t.Fatalf("snapshot is %+v", snapshot)
	}
	if _, found := c.LastSync(); !found {
		t.Fatal("last sync not stamped")
	}
}

func TestPredictionsFallsBackToSnapshotOffline(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingBody))
	})
	c, server, _ := newTestClient(t, r)

	if _, err := c.Predictions(context.Background()); err != nil {
		t.Fatal(err)
	}

	// total network failure from here on
	server.Close()

	listing, err := c.Predictions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !listing.Cached {
		t.Fatal("fallback listing not tagged as cached")
	}
	if len(listing.Data) != 1 || listing.Data[0].ID != "1" {
		t.Fatalf("fallback listing is %+v", listing.Data)
	}
}

func TestPredictionsOfflineWithoutSnapshotFails(t *testing.T) {
	c, server, _ := newTestClient(t, chi.NewRouter())
	server.Close()

	_, err := c.Predictions(context.Background())
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("error is %v", err)
	}
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c, _, store := newTestClient(t, r)

	redirected := false
	c.onUnauthorized = func() { redirected = true }
	if err := c.SaveSession("expired-token", User{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	// a snapshot exists, but 401 is a received response and must not
	// hit the fallback path
	store.Put(kvstore.KeyCachedPredictions, []byte(listingBody))

	_, err := c.Predictions(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error is %v", err)
	}
	if !redirected {
		t.Fatal("unauthorized hook not invoked")
	}
	if _, found := c.Token(); found {
		t.Fatal("token still present")
	}
	if _, found := c.CurrentUser(); found {
		t.Fatal("user record still present")
	}
}

func TestBearerTokenAttached(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/predictions", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(listingBody))
	})
	c, _, _ := newTestClient(t, r)
	c.SaveSession("token-123", User{ID: "u1"})

	if _, err := c.Predictions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer token-123" {
		t.Fatalf("authorization header is %q", got)
	}
}

func TestServerErrorPassesThroughUncached(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"Error en el servidor"}`))
	})
	c, _, _ := newTestClient(t, r)

	listing, err := c.Predictions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if listing.Success || listing.Message != "Error en el servidor" {
		t.Fatalf("listing is %+v", listing)
	}
	if _, _, found := c.Snapshot(); found {
		t.Fatal("error response written to snapshot")
	}
}

func TestPredictionsByDate(t *testing.T) {
	var gotDate string
	r := chi.NewRouter()
	r.Get("/predictions", func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("date")
		w.Write([]byte(listingBody))
	})
	c, _, _ := newTestClient(t, r)

	if _, err := c.PredictionsByDate(context.Background(), "2026-08-28"); err != nil {
		t.Fatal(err)
	}
	if gotDate != "2026-08-28" {
		t.Fatalf("date param is %q", gotDate)
	}
}

func TestPushSubscriptionLifecycle(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/notifications/subscribe", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	r.Post("/notifications/unsubscribe", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	c, _, _ := newTestClient(t, r)

	sub := Subscription{Endpoint: "https://push.example/abc"}
	if err := c.SubscribePush(context.Background(), sub, "web"); err != nil {
		t.Fatal(err)
	}
	if !c.PushSubscribed() {
		t.Fatal("subscribed flag not set")
	}
	if err := c.UnsubscribePush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.PushSubscribed() {
		t.Fatal("subscribed flag still set")
	}
}
