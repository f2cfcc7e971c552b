package metadata

import (
	"context"
	"time"
)

// Tag field names used throughout the merge and write paths. They mirror
// the taglib property names so MergedMetadata maps 1:1 onto tag frames.
const (
	FieldTitle       = "TITLE"
	FieldArtist      = "ARTIST"
	FieldAlbum       = "ALBUM"
	FieldAlbumArtist = "ALBUMARTIST"
	FieldTrackNumber = "TRACKNUMBER"
	FieldDiscNumber  = "DISCNUMBER"
	FieldDate        = "DATE"
	FieldGenre       = "GENRE"
	FieldISRC        = "ISRC"
)

// AudioItem is the unit of work for one resolution run: a file plus the
// signals already attached to it (container duration, existing tags,
// filename tokens).
type AudioItem struct {
	Path     string
	Duration time.Duration
	Tags     map[string][]string
	Tokens   []string
}

// ExistingTag returns the first value of a tag in the existing snapshot.
func (it *AudioItem) ExistingTag(field string) string {
	if vals, ok := it.Tags[field]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// FingerprintQuery is the lookup key for the fingerprint provider.
// Immutable once computed.
type FingerprintQuery struct {
	Fingerprint string
	Duration    time.Duration
}

// SearchQuery is a cleaned-up text query for provider search.
type SearchQuery struct {
	Title  string
	Artist string
	Album  string
}

// Candidate is one provider's proposed identity for an AudioItem.
// Candidates from different providers never share identifiers; they are
// joined only by content similarity.
type Candidate struct {
	Provider    string
	RecordingID string
	ReleaseID   string

	Title       string
	Artists     []string // ordered, primary first
	Album       string
	AlbumArtist string
	TrackNumber int
	DiscNumber  int
	Year        int
	ReleaseDate string // full date "2020-03-20" when available
	Genre       string
	ISRC        string
	ArtworkURL  string
	Duration    time.Duration

	// FromIDLookup marks candidates fetched by identifier after a
	// fingerprint hit, as opposed to fuzzy text search.
	FromIDLookup bool

	// ProviderScore is the provider's own similarity score, when it
	// reports one (fingerprint matches). Not comparable across providers.
	ProviderScore float64

	// AlsoSeenOn lists providers whose duplicate candidates were folded
	// into this one during de-duplication.
	AlsoSeenOn []string

	Retrieved time.Time
}

// PrimaryArtist returns the first credited artist, or "".
func (c *Candidate) PrimaryArtist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

// FieldCount reports how many tag-relevant fields are populated. Used as
// the final tie-breaker and to pick de-duplication representatives.
func (c *Candidate) FieldCount() int {
	n := 0
	for _, s := range []string{c.Title, c.Album, c.AlbumArtist, c.ReleaseDate, c.Genre, c.ISRC, c.ArtworkURL} {
		if s != "" {
			n++
		}
	}
	if len(c.Artists) > 0 {
		n++
	}
	if c.TrackNumber > 0 {
		n++
	}
	if c.DiscNumber > 0 {
		n++
	}
	if c.Year > 0 {
		n++
	}
	if c.Duration > 0 {
		n++
	}
	return n
}

// ScoredCandidate is a Candidate plus its pipeline confidence in [0,1].
// The scoring formula is provider-agnostic so candidates from different
// providers are comparable.
type ScoredCandidate struct {
	Candidate
	Confidence float64
}

// FieldValue is one merged tag value with its traceable source.
type FieldValue struct {
	Value  string
	Source string // provider name, or "existing"
	Score  float64
}

// Set reports whether the field carries a value.
func (f FieldValue) Set() bool { return f.Value != "" }

// MergedMetadata is the final record chosen for writing. Each field is
// independently sourced; every non-empty field traces back to a candidate
// or to the file's existing tags.
type MergedMetadata struct {
	Title       FieldValue
	Artist      FieldValue
	Album       FieldValue
	AlbumArtist FieldValue
	TrackNumber FieldValue
	DiscNumber  FieldValue
	Date        FieldValue
	Genre       FieldValue
	ISRC        FieldValue

	// Identifiers of the overall best candidate, kept for artwork lookup.
	RecordingID string
	ReleaseID   string
	ArtworkURL  string

	Confidence float64
}

// Fields returns the merged values keyed by tag field name, skipping
// empty ones.
func (m *MergedMetadata) Fields() map[string]FieldValue {
	out := make(map[string]FieldValue)
	for name, fv := range map[string]FieldValue{
		FieldTitle:       m.Title,
		FieldArtist:      m.Artist,
		FieldAlbum:       m.Album,
		FieldAlbumArtist: m.AlbumArtist,
		FieldTrackNumber: m.TrackNumber,
		FieldDiscNumber:  m.DiscNumber,
		FieldDate:        m.Date,
		FieldGenre:       m.Genre,
		FieldISRC:        m.ISRC,
	} {
		if fv.Set() {
			out[name] = fv
		}
	}
	return out
}

// TagWriteResult is the terminal outcome of embedding metadata into a file.
type TagWriteResult struct {
	Path            string
	ChangedFields   []string
	ArtworkEmbedded bool
}

// Provider is the contract every text-searchable catalog client implements.
type Provider interface {
	Name() string
	SearchByText(ctx context.Context, query SearchQuery) ([]Candidate, error)
}

// IDLookupProvider fetches an authoritative record by the provider's own
// recording identifier.
type IDLookupProvider interface {
	Provider
	LookupByID(ctx context.Context, id string) (*Candidate, error)
}

// ArtworkProvider resolves cover art bytes for a release identifier.
// Returns image bytes plus MIME type.
type ArtworkProvider interface {
	Name() string
	FetchArtwork(ctx context.Context, releaseID string) ([]byte, string, error)
}

// FingerprintProvider resolves an acoustic fingerprint into candidate
// recordings, each carrying the provider's own similarity score.
type FingerprintProvider interface {
	Name() string
	LookupByFingerprint(ctx context.Context, query FingerprintQuery) ([]Candidate, error)
}
