package lastfm

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

func TestSearchByText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != "track.getInfo" {
			t.Errorf("method = %q, want track.getInfo", q.Get("method"))
		}
		if q.Get("autocorrect") != "1" {
			t.Error("autocorrect not requested")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"track": {
				"name": "Blinding Lights",
				"mbid": "mbid-1",
				"duration": "200040",
				"artist": {"name": "The Weeknd feat. Nobody"},
				"album": {
					"title": "After Hours",
					"image": [
						{"#text": "https://img/small.png", "size": "small"},
						{"#text": "https://img/large.png", "size": "extralarge"}
					]
				},
				"toptags": {"tag": [
					{"name": "synthpop"},
					{"name": "pop"},
					{"name": "electronic"},
					{"name": "dance"}
				]}
			}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.SearchByText(context.Background(), metadata.SearchQuery{
		Title:  "Blinding Lights",
		Artist: "The Weeknd",
	})
	if err != nil {
		t.Fatalf("SearchByText error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Title != "Blinding Lights" {
		t.Errorf("title = %q", r.Title)
	}
	if r.PrimaryArtist() != "The Weeknd" {
		t.Errorf("primary artist = %q, want The Weeknd", r.PrimaryArtist())
	}
	if len(r.Artists) != 2 {
		t.Errorf("artists = %v, want featuring credit split out", r.Artists)
	}
	if r.Album != "After Hours" {
		t.Errorf("album = %q", r.Album)
	}
	if r.Duration != 200040*time.Millisecond {
		t.Errorf("duration = %v", r.Duration)
	}
	if r.Genre != "Synthpop, Pop, Electronic" {
		t.Errorf("genre = %q, want top 3 tags title-cased", r.Genre)
	}
	if r.ArtworkURL != "https://img/large.png" {
		t.Errorf("artwork = %q, want the largest image", r.ArtworkURL)
	}
}

func TestSearchByTextNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": 6, "message": "Track not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.SearchByText(context.Background(), metadata.SearchQuery{Title: "Nonexistent"})
	if err != nil {
		t.Fatalf("not-found must be an empty result, got error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}

func TestSearchByTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": 10, "message": "Invalid API key"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.SearchByText(context.Background(), metadata.SearchQuery{Title: "Test"})
	if err == nil {
		t.Fatal("expected error for non-not-found API error")
	}
}

func TestSearchByTextMissingKey(t *testing.T) {
	c := New("")
	_, err := c.SearchByText(context.Background(), metadata.SearchQuery{Title: "Test"})
	if !errors.Is(err, metadata.ErrProviderAuth) {
		t.Errorf("error = %v, want ErrProviderAuth", err)
	}
}

func TestSearchByTextEmptyQuery(t *testing.T) {
	c := New("key")
	results, err := c.SearchByText(context.Background(), metadata.SearchQuery{})
	if err != nil || results != nil {
		t.Errorf("empty query: results=%v err=%v, want nil/nil", results, err)
	}
}
