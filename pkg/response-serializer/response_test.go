package serializer

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func recordedResponse(t *testing.T, status int, body string) *http.Response {
	t.Helper()
	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Type", "application/json")
	rr.WriteHeader(status)
	rr.Body.WriteString(body)
	return rr.Result()
}

func TestRoundTrip(t *testing.T) {
	res := recordedResponse(t, http.StatusOK, `{"success":true}`)

	bts, err := ResponseToBytes(res)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := BytesToResponse(bts)
	if err != nil {
		t.Fatal(err)
	}

	if stored.StatusCode != http.StatusOK {
		t.Fatalf("status is %d", stored.StatusCode)
	}
	if ct := stored.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type is %s", ct)
	}
	if body, _ := io.ReadAll(stored.Body); string(body) != `{"success":true}` {
		t.Fatalf("body is %s", body)
	}
}

func TestSerializeKeepsBodyReadable(t *testing.T) {
	res := recordedResponse(t, http.StatusOK, "hello")

	if _, err := ResponseToBytes(res); err != nil {
		t.Fatal(err)
	}

	// the original response must still be servable after storing
	if body, err := io.ReadAll(res.Body); err != nil || string(body) != "hello" {
		t.Fatalf("body is %s (err %v)", body, err)
	}
}
