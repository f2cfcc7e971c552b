package metadata

import (
	"reflect"
	"testing"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		artist     string
		wantTitle  string
		wantArtist string
	}{
		{
			name:       "clean title and artist",
			title:      "Blinding Lights",
			artist:     "The Weeknd",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "official video parentheses",
			title:      "Blinding Lights (Official Video)",
			artist:     "The Weeknd",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "official music video brackets",
			title:      "Blinding Lights [Official Music Video]",
			artist:     "The Weeknd",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "official audio",
			title:      "Blinding Lights (Official Audio)",
			artist:     "The Weeknd",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "lyrics suffix",
			title:      "Blinding Lights (Lyrics)",
			artist:     "The Weeknd",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "remastered with year",
			title:      "Africa (Remastered 2018)",
			artist:     "Toto",
			wantTitle:  "Africa",
			wantArtist: "Toto",
		},
		{
			name:       "featuring in title",
			title:      "HUMBLE. (feat. Jay Rock)",
			artist:     "Kendrick Lamar",
			wantTitle:  "HUMBLE.",
			wantArtist: "Kendrick Lamar",
		},
		{
			name:       "ft. in title",
			title:      "Locked Out Of Heaven (ft. Bruno Mars)",
			artist:     "Some Artist",
			wantTitle:  "Locked Out Of Heaven",
			wantArtist: "Some Artist",
		},
		{
			name:       "artist dash title no artist metadata",
			title:      "The Weeknd - Blinding Lights",
			artist:     "",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "artist dash title with video suffix no artist",
			title:      "The Weeknd - Blinding Lights (Official Video)",
			artist:     "",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
		{
			name:       "multiple suffixes",
			title:      "Song Name (feat. Other) (Official Video) [HD]",
			artist:     "Main Artist",
			wantTitle:  "Song Name",
			wantArtist: "Main Artist",
		},
		{
			name:       "explicit tag",
			title:      "WAP (Explicit)",
			artist:     "Cardi B",
			wantTitle:  "WAP",
			wantArtist: "Cardi B",
		},
		{
			name:       "empty title",
			title:      "",
			artist:     "Some Artist",
			wantTitle:  "",
			wantArtist: "Some Artist",
		},
		{
			name:       "whitespace cleanup",
			title:      "  Blinding Lights  ",
			artist:     "  The Weeknd  ",
			wantTitle:  "Blinding Lights",
			wantArtist: "The Weeknd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeQuery(tt.title, tt.artist, "")
			if got.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Artist != tt.wantArtist {
				t.Errorf("artist = %q, want %q", got.Artist, tt.wantArtist)
			}
		})
	}
}

func TestSplitFilename(t *testing.T) {
	tests := []struct {
		path       string
		wantTitle  string
		wantArtist string
	}{
		{"/music/The Weeknd - Blinding Lights.mp3", "Blinding Lights", "The Weeknd"},
		{"/music/01 - The Weeknd - Blinding Lights.flac", "Blinding Lights", "The Weeknd"},
		{"/music/03. Bohemian Rhapsody.ogg", "Bohemian Rhapsody", ""},
		{"/music/nocturne.m4a", "nocturne", ""},
		{"Queen - Under Pressure.mp3", "Under Pressure", "Queen"},
	}

	for _, tt := range tests {
		title, artist := SplitFilename(tt.path)
		if title != tt.wantTitle || artist != tt.wantArtist {
			t.Errorf("SplitFilename(%q) = (%q, %q), want (%q, %q)",
				tt.path, title, artist, tt.wantTitle, tt.wantArtist)
		}
	}
}

func TestQueryFromItemPrefersTags(t *testing.T) {
	item := &AudioItem{
		Path: "/music/wrong artist - wrong title.mp3",
		Tags: map[string][]string{
			FieldTitle:  {"Blinding Lights"},
			FieldArtist: {"The Weeknd"},
			FieldAlbum:  {"After Hours"},
		},
	}

	q := QueryFromItem(item)
	if q.Title != "Blinding Lights" {
		t.Errorf("title = %q, want tag value", q.Title)
	}
	if q.Artist != "The Weeknd" {
		t.Errorf("artist = %q, want tag value", q.Artist)
	}
	if q.Album != "After Hours" {
		t.Errorf("album = %q, want tag value", q.Album)
	}
}

func TestQueryFromItemFallsBackToFilename(t *testing.T) {
	item := &AudioItem{
		Path: "/music/Queen - Under Pressure.mp3",
		Tags: map[string][]string{},
	}

	q := QueryFromItem(item)
	if q.Title != "Under Pressure" {
		t.Errorf("title = %q, want filename title", q.Title)
	}
	if q.Artist != "Queen" {
		t.Errorf("artist = %q, want filename artist", q.Artist)
	}
}

func TestCanonicalArtists(t *testing.T) {
	tests := []struct {
		credit string
		want   []string
	}{
		{"The Weeknd", []string{"The Weeknd"}},
		{"Kendrick Lamar feat. Jay Rock", []string{"Kendrick Lamar", "Jay Rock"}},
		{"Kendrick Lamar (feat. Jay Rock)", []string{"Kendrick Lamar", "Jay Rock"}},
		{"Silk Sonic ft. Bruno Mars & Anderson .Paak", []string{"Silk Sonic", "Bruno Mars", "Anderson .Paak"}},
		{"Queen & David Bowie", []string{"Queen", "David Bowie"}},
		{"Artist A, Artist B; Artist C", []string{"Artist A", "Artist B", "Artist C"}},
		{"", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		got := CanonicalArtists(tt.credit)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("CanonicalArtists(%q) = %v, want %v", tt.credit, got, tt.want)
		}
	}
}
