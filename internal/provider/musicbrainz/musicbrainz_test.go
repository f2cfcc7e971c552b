package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tunetag/internal/metadata"
	"tunetag/internal/provider"
	"tunetag/internal/ratelimit"
)

func newTestClient(srvURL string) *Client {
	c := New("tunetag-test/1.0")
	c.apiURL = srvURL
	c.caaURL = srvURL
	c.doer = provider.NewDoer(5*time.Second, ratelimit.New(0))
	return c
}

func TestSearchByText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recording" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("missing User-Agent header")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"recordings": [{
				"id": "rec-1",
				"title": "Bohemian Rhapsody",
				"length": 354000,
				"artist-credit": [{"artist": {"id": "a1", "name": "Queen"}}],
				"releases": [{
					"id": "rel-1",
					"title": "A Night at the Opera",
					"status": "Official",
					"date": "1975-10-31",
					"artist-credit": [{"artist": {"id": "a1", "name": "Queen"}}],
					"release-group": {"primary-type": "Album"},
					"media": [{"position": 1, "track": [{"number": "11"}]}]
				}],
				"isrcs": ["GBUM71029604"]
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.SearchByText(context.Background(), metadata.SearchQuery{
		Title:  "Bohemian Rhapsody",
		Artist: "Queen",
	})
	if err != nil {
		t.Fatalf("SearchByText error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Title != "Bohemian Rhapsody" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.PrimaryArtist() != "Queen" {
		t.Errorf("Artist = %q, want Queen", r.PrimaryArtist())
	}
	if r.Album != "A Night at the Opera" {
		t.Errorf("Album = %q", r.Album)
	}
	if r.AlbumArtist != "Queen" {
		t.Errorf("AlbumArtist = %q", r.AlbumArtist)
	}
	if r.Year != 1975 || r.ReleaseDate != "1975-10-31" {
		t.Errorf("date = %d / %q", r.Year, r.ReleaseDate)
	}
	if r.TrackNumber != 11 {
		t.Errorf("TrackNumber = %d, want 11", r.TrackNumber)
	}
	if r.DiscNumber != 1 {
		t.Errorf("DiscNumber = %d, want 1", r.DiscNumber)
	}
	if r.ISRC != "GBUM71029604" {
		t.Errorf("ISRC = %q", r.ISRC)
	}
	if r.Duration != 354*time.Second {
		t.Errorf("Duration = %v, want 354s", r.Duration)
	}
	if r.ReleaseID != "rel-1" {
		t.Errorf("ReleaseID = %q, want rel-1", r.ReleaseID)
	}
	if r.FromIDLookup {
		t.Error("text search results must not be marked as id lookups")
	}
}

func TestSearchByTextEmptyQuery(t *testing.T) {
	c := newTestClient("http://unused")
	results, err := c.SearchByText(context.Background(), metadata.SearchQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for empty query, got %v", results)
	}
}

func TestLookupByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recording/mbid-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "mbid-1",
			"title": "Blinding Lights",
			"length": 200040,
			"artist-credit": [{"artist": {"id": "a1", "name": "The Weeknd"}}],
			"releases": [{
				"id": "rel-1",
				"title": "After Hours",
				"status": "Official",
				"date": "2020-03-20",
				"release-group": {"primary-type": "Album"}
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	cand, err := c.LookupByID(context.Background(), "mbid-1")
	if err != nil {
		t.Fatalf("LookupByID error: %v", err)
	}
	if cand == nil {
		t.Fatal("expected a candidate")
	}
	if !cand.FromIDLookup {
		t.Error("id lookup result must be marked FromIDLookup")
	}
	if cand.Title != "Blinding Lights" || cand.Album != "After Hours" {
		t.Errorf("candidate = %q / %q", cand.Title, cand.Album)
	}
}

func TestFetchArtwork(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/release/rel-1/front-500" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	data, mime, err := c.FetchArtwork(context.Background(), "rel-1")
	if err != nil {
		t.Fatalf("FetchArtwork error: %v", err)
	}
	if len(data) != len(jpeg) {
		t.Errorf("got %d bytes, want %d", len(data), len(jpeg))
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}
}

func TestFetchArtworkNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, _, err := c.FetchArtwork(context.Background(), "rel-missing")
	if !errors.Is(err, metadata.ErrNoArtwork) {
		t.Errorf("error = %v, want ErrNoArtwork", err)
	}
}

func TestPickBestRelease(t *testing.T) {
	releases := []release{
		{ID: "boot", Title: "Live Bootleg", Status: "Bootleg", Date: "1980"},
		{
			ID: "comp", Title: "Greatest Hits", Status: "Official", Date: "1981",
			ReleaseGroup: releaseGroup{PrimaryType: "Album", SecondaryTypes: []string{"Compilation"}},
		},
		{
			ID: "album", Title: "Original Album", Status: "Official", Date: "1979",
			ReleaseGroup: releaseGroup{PrimaryType: "Album"},
		},
	}

	best := pickBestRelease(releases)
	if best.ID != "album" {
		t.Errorf("picked %q, want the official non-compilation album", best.ID)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		query metadata.SearchQuery
		want  string
	}{
		{
			name:  "title and artist",
			query: metadata.SearchQuery{Title: "Test", Artist: "Artist"},
			want:  `recording:"Test" AND artist:"Artist"`,
		},
		{
			name:  "title artist album",
			query: metadata.SearchQuery{Title: "Test", Artist: "Artist", Album: "Album"},
			want:  `recording:"Test" AND artist:"Artist" AND release:"Album"`,
		},
		{
			name:  "title only",
			query: metadata.SearchQuery{Title: "Test"},
			want:  `recording:"Test"`,
		},
		{
			name:  "empty",
			query: metadata.SearchQuery{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.query)
			if got != tt.want {
				t.Errorf("buildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
