package offlinecache

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/ia-sport/offline-cache/cache"
	"github.com/ia-sport/offline-cache/pkg/lifetime"
)

func installAndActivate(t *testing.T, w *Worker) {
	t.Helper()
	evt := lifetime.NewEvent()
	w.Install(context.Background(), evt)
	evt.Wait()
	evt = lifetime.NewEvent()
	w.Activate(context.Background(), evt)
	evt.Wait()
}

func shellHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset " + r.URL.Path))
	})
	return mux
}

func TestInstallPrecachesManifest(t *testing.T) {
	manifest := []string{"/", "/index.html", "/static/js/main.js"}
	w, server := newTestWorker(t, shellHandler(), Config{Precache: manifest})

	evt := lifetime.NewEvent()
	w.Install(context.Background(), evt)
	evt.Wait()
	server.Close()

	if w.State() != StateInstalled {
		t.Fatalf("state is %s", w.State())
	}
	// every manifest entry must be servable without the network
	for _, path := range manifest {
		rr := get(t, w, path, assetHeaders)
		if rr.Body.String() != "asset "+path {
			t.Fatalf("body for %s is %s", path, rr.Body.String())
		}
	}
}

func TestInstallSendsCacheBypass(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Cache-Control")
		w.Write([]byte("shell"))
	})
	w, _ := newTestWorker(t, mux, Config{Precache: []string{"/index.html"}})

	evt := lifetime.NewEvent()
	w.Install(context.Background(), evt)
	evt.Wait()

	if got != "no-cache" {
		t.Fatalf("cache control is %q", got)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	manifest := []string{"/index.html", "/logo192.png"}
	w, _ := newTestWorker(t, shellHandler(), Config{Precache: manifest})

	for i := 0; i < 2; i++ {
		evt := lifetime.NewEvent()
		w.Install(context.Background(), evt)
		evt.Wait()
	}

	keys, err := w.cache.Keys(w.caches.Static)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"GET /index.html", "GET /logo192.png"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("static cache keys are %v", keys)
	}
}

func TestInstallIsBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("shell"))
	})
	// /missing.css is not served and must not abort the install
	w, _ := newTestWorker(t, mux, Config{Precache: []string{"/missing.css", "/index.html"}})

	evt := lifetime.NewEvent()
	w.Install(context.Background(), evt)
	evt.Wait()

	if w.State() != StateInstalled {
		t.Fatalf("state is %s", w.State())
	}
	keys, _ := w.cache.Keys(w.caches.Static)
	if !reflect.DeepEqual(keys, []string{"GET /index.html"}) {
		t.Fatalf("static cache keys are %v", keys)
	}
}

func TestActivateCleansOldGenerations(t *testing.T) {
	provider := cache.NewMemCache()
	for _, old := range []string{"ia-sport-static-v0", "ia-sport-v0", "ia-sport-data-v0"} {
		provider.Put(old, "GET /stale", cache.Entry{Bytes: []byte("stale")})
	}
	caches := cache.DefaultSet("v1")
	provider.Put(caches.Data, "GET /api/predictions", cache.Entry{Bytes: []byte("fresh")})

	w, _ := newTestWorker(t, http.NewServeMux(), Config{Cache: provider, Caches: caches})

	evt := lifetime.NewEvent()
	w.Activate(context.Background(), evt)
	evt.Wait()

	names, err := provider.Names()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{caches.Data}) {
		t.Fatalf("cache names are %v", names)
	}
	if w.State() != StateActive {
		t.Fatalf("state is %s", w.State())
	}
}

func TestSkipWaitingMessagePromotes(t *testing.T) {
	w, _ := newTestWorker(t, shellHandler(), Config{Precache: []string{"/index.html"}})

	evt := lifetime.NewEvent()
	w.Install(context.Background(), evt)
	evt.Wait()
	if w.State() != StateInstalled {
		t.Fatalf("state is %s", w.State())
	}

	w.HandleMessage(context.Background(), Message{Type: "SKIP_WAITING"})
	if w.State() != StateActive {
		t.Fatalf("state is %s", w.State())
	}
}

func TestUnknownMessageIgnored(t *testing.T) {
	w, _ := newTestWorker(t, http.NewServeMux(), Config{})
	w.HandleMessage(context.Background(), Message{Type: "PING"})
	if w.State() != StateParked {
		t.Fatalf("state is %s", w.State())
	}
}
