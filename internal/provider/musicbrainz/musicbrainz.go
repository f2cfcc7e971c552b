package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tunetag/internal/metadata"
	"tunetag/internal/provider"
	"tunetag/internal/ratelimit"
)

// MusicBrainz enforces 1 request/second per client.
const minRequestInterval = time.Second

const defaultUserAgent = "tunetag/1.0 (https://github.com/tunetag)"

// Client is a MusicBrainz Web API client. It implements
// metadata.IDLookupProvider (text search plus MBID-keyed recording lookup)
// and metadata.ArtworkProvider via the Cover Art Archive.
type Client struct {
	userAgent string
	doer      *provider.Doer
	apiURL    string
	caaURL    string
}

// New creates a new MusicBrainz client. userAgent identifies the
// application per MusicBrainz etiquette; empty selects a default.
func New(userAgent string) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		userAgent: userAgent,
		doer:      provider.NewDoer(10*time.Second, ratelimit.New(minRequestInterval)),
		apiURL:    "https://musicbrainz.org/ws/2",
		caaURL:    "https://coverartarchive.org",
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// SearchByText queries the recording search API and returns matching tracks.
func (c *Client) SearchByText(ctx context.Context, query metadata.SearchQuery) ([]metadata.Candidate, error) {
	q := buildQuery(query)
	if q == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=5", c.apiURL, url.QueryEscape(q))
	var searchResp searchResponse
	if err := c.getJSON(ctx, reqURL, &searchResp); err != nil {
		return nil, fmt.Errorf("musicbrainz search: %w", err)
	}

	var candidates []metadata.Candidate
	for _, rec := range searchResp.Recordings {
		candidates = append(candidates, candidateFromRecording(rec, false))
	}
	return candidates, nil
}

// LookupByID fetches one recording by its MBID. Identifier-keyed lookups
// return authoritative records and are marked as such for scoring.
func (c *Client) LookupByID(ctx context.Context, id string) (*metadata.Candidate, error) {
	reqURL := fmt.Sprintf("%s/recording/%s?inc=artists+releases+release-groups+isrcs+media&fmt=json", c.apiURL, url.PathEscape(id))
	var rec recording
	if err := c.getJSON(ctx, reqURL, &rec); err != nil {
		return nil, fmt.Errorf("musicbrainz recording lookup: %w", err)
	}
	if rec.ID == "" {
		return nil, nil
	}
	cand := candidateFromRecording(rec, true)
	return &cand, nil
}

// FetchArtwork downloads the front cover from the Cover Art Archive for a
// release MBID. A 404 means the release simply has no art.
func (c *Client) FetchArtwork(ctx context.Context, releaseID string) ([]byte, string, error) {
	reqURL := fmt.Sprintf("%s/release/%s/front-500", c.caaURL, url.PathEscape(releaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create cover art request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("cover art fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", metadata.ErrNoArtwork
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("cover art fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read cover art: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func buildQuery(query metadata.SearchQuery) string {
	var parts []string
	if query.Title != "" {
		parts = append(parts, fmt.Sprintf("recording:%q", query.Title))
	}
	if query.Artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", query.Artist))
	}
	if query.Album != "" {
		parts = append(parts, fmt.Sprintf("release:%q", query.Album))
	}
	return strings.Join(parts, " AND ")
}

func candidateFromRecording(rec recording, fromIDLookup bool) metadata.Candidate {
	c := metadata.Candidate{
		Provider:     "musicbrainz",
		RecordingID:  rec.ID,
		Title:        rec.Title,
		Duration:     time.Duration(rec.Length) * time.Millisecond,
		FromIDLookup: fromIDLookup,
		Retrieved:    time.Now(),
	}

	for _, ac := range rec.ArtistCredit {
		c.Artists = append(c.Artists, ac.Artist.Name)
	}
	if len(rec.ISRCs) > 0 {
		c.ISRC = rec.ISRCs[0]
	}

	if len(rec.Releases) > 0 {
		rel := pickBestRelease(rec.Releases)
		c.ReleaseID = rel.ID
		c.Album = rel.Title
		if len(rel.ArtistCredit) > 0 {
			c.AlbumArtist = rel.ArtistCredit[0].Artist.Name
		}
		c.Year = parseYear(rel.Date)
		c.ReleaseDate = rel.Date

		if len(rel.Media) > 0 {
			c.DiscNumber = rel.Media[0].Position
			if len(rel.Media[0].Track) > 0 {
				if n, err := strconv.Atoi(rel.Media[0].Track[0].Number); err == nil {
					c.TrackNumber = n
				}
			}
		}
	}

	return c
}

// pickBestRelease selects the most appropriate release for tagging.
// Prefers: Official status, Album type, no secondary types (not a
// compilation), earliest date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0
	if rel.Status == "Official" {
		score += 4
	}
	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}
	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score += 1
	}
	return score
}

func parseYear(date string) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

// MusicBrainz API response types

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
	ISRCs        []string       `json:"isrcs"`
}

type artistCredit struct {
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup releaseGroup   `json:"release-group"`
	Media        []media        `json:"media"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

type media struct {
	Position int     `json:"position"`
	Track    []track `json:"track"`
}

type track struct {
	Number string `json:"number"`
}
