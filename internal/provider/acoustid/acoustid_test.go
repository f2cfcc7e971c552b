package acoustid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tunetag/internal/metadata"
)

func newTestClient(url string) *Client {
	c := New("test-key")
	c.apiURL = url
	return c
}

func TestLookupByFingerprint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("client") != "test-key" {
			t.Errorf("client = %q, want test-key", q.Get("client"))
		}
		if q.Get("fingerprint") == "" {
			t.Error("missing fingerprint parameter")
		}
		if q.Get("duration") != "200" {
			t.Errorf("duration = %q, want 200", q.Get("duration"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "ok",
			"results": [{
				"id": "acoustid-1",
				"score": 0.97,
				"recordings": [{
					"id": "mbid-1",
					"title": "Blinding Lights",
					"duration": 200,
					"artists": [{"id": "a1", "name": "The Weeknd"}],
					"releasegroups": [{"id": "rg-1", "title": "After Hours"}]
				}]
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.LookupByFingerprint(context.Background(), metadata.FingerprintQuery{
		Fingerprint: "AQADtEm",
		Duration:    200 * time.Second,
	})
	if err != nil {
		t.Fatalf("LookupByFingerprint failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(results))
	}

	r := results[0]
	if r.RecordingID != "mbid-1" {
		t.Errorf("recording id = %q, want mbid-1", r.RecordingID)
	}
	if r.Title != "Blinding Lights" {
		t.Errorf("title = %q", r.Title)
	}
	if r.PrimaryArtist() != "The Weeknd" {
		t.Errorf("artist = %q", r.PrimaryArtist())
	}
	if r.Album != "After Hours" {
		t.Errorf("album = %q", r.Album)
	}
	if r.ProviderScore != 0.97 {
		t.Errorf("provider score = %v, want 0.97", r.ProviderScore)
	}
	if r.Duration != 200*time.Second {
		t.Errorf("duration = %v, want 200s", r.Duration)
	}
}

func TestLookupFiltersLowScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "ok",
			"results": [
				{"id": "weak", "score": 0.2, "recordings": [{"id": "mbid-weak", "title": "Noise"}]},
				{"id": "strong", "score": 0.9, "recordings": [{"id": "mbid-strong", "title": "Signal"}]}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.LookupByFingerprint(context.Background(), metadata.FingerprintQuery{Fingerprint: "x", Duration: time.Minute})
	if err != nil {
		t.Fatalf("LookupByFingerprint failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 candidate after score filtering, got %d", len(results))
	}
	if results[0].RecordingID != "mbid-strong" {
		t.Errorf("kept %q, want the strong match", results[0].RecordingID)
	}
}

func TestLookupMissingKey(t *testing.T) {
	c := New("")
	_, err := c.LookupByFingerprint(context.Background(), metadata.FingerprintQuery{Fingerprint: "x"})
	if !errors.Is(err, metadata.ErrProviderAuth) {
		t.Errorf("error = %v, want ErrProviderAuth", err)
	}
}

func TestLookupAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "error", "error": {"code": 4, "message": "invalid fingerprint"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.LookupByFingerprint(context.Background(), metadata.FingerprintQuery{Fingerprint: "x"})
	if err == nil {
		t.Fatal("expected error for API-level failure")
	}
}
