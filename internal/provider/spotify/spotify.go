package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tunetag/internal/metadata"
	"tunetag/internal/provider"
	"tunetag/internal/ratelimit"
)

const minRequestInterval = 100 * time.Millisecond

// Client is a Spotify Web API client. It implements
// metadata.IDLookupProvider: text search for the fallback path, plus
// track-id lookups when the identifier is already known (e.g. the file
// came from the Spotify downloader collaborator).
type Client struct {
	clientID     string
	clientSecret string
	doer         *provider.Doer

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	cacheMu    sync.Mutex
	genreCache map[string][]string // artist ID → genres

	// Overridable for testing
	tokenURL string
	apiURL   string
}

// New creates a new Spotify client using the client-credentials flow.
func New(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		doer:         provider.NewDoer(10*time.Second, ratelimit.New(minRequestInterval)),
		genreCache:   make(map[string][]string),
		tokenURL:     "https://accounts.spotify.com/api/token",
		apiURL:       "https://api.spotify.com/v1",
	}
}

func (c *Client) Name() string { return "spotify" }

// SearchByText queries the Spotify search API and returns matching tracks.
func (c *Client) SearchByText(ctx context.Context, query metadata.SearchQuery) ([]metadata.Candidate, error) {
	q := buildSearchQuery(query)
	if q == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/search?type=track&limit=5&q=%s", c.apiURL, url.QueryEscape(q))
	var searchResp searchResponse
	if err := c.getJSON(ctx, reqURL, &searchResp); err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}

	candidates := make([]metadata.Candidate, 0, len(searchResp.Tracks.Items))
	for _, item := range searchResp.Tracks.Items {
		candidates = append(candidates, c.candidateFromTrack(ctx, item, false))
	}
	return candidates, nil
}

// LookupByID fetches one track by its Spotify ID.
func (c *Client) LookupByID(ctx context.Context, id string) (*metadata.Candidate, error) {
	reqURL := fmt.Sprintf("%s/tracks/%s", c.apiURL, url.PathEscape(id))
	var item trackItem
	if err := c.getJSON(ctx, reqURL, &item); err != nil {
		return nil, fmt.Errorf("spotify track lookup: %w", err)
	}
	if item.ID == "" {
		return nil, nil
	}
	cand := c.candidateFromTrack(ctx, item, true)
	return &cand, nil
}

func (c *Client) candidateFromTrack(ctx context.Context, item trackItem, fromIDLookup bool) metadata.Candidate {
	cand := metadata.Candidate{
		Provider:     "spotify",
		RecordingID:  item.ID,
		Title:        item.Name,
		Album:        item.Album.Name,
		TrackNumber:  item.TrackNumber,
		DiscNumber:   item.DiscNumber,
		Year:         parseYear(item.Album.ReleaseDate),
		ReleaseDate:  item.Album.ReleaseDate,
		ISRC:         item.ExternalIDs.ISRC,
		Duration:     time.Duration(item.DurationMs) * time.Millisecond,
		FromIDLookup: fromIDLookup,
		Retrieved:    time.Now(),
	}
	for _, a := range item.Artists {
		cand.Artists = append(cand.Artists, a.Name)
	}
	if len(item.Album.Artists) > 0 {
		cand.AlbumArtist = item.Album.Artists[0].Name
	}
	if len(item.Album.Images) > 0 {
		cand.ArtworkURL = item.Album.Images[0].URL
	}

	// Spotify carries no track-level genre; enrich from the primary
	// artist, with a cache to avoid redundant API calls.
	if len(item.Artists) > 0 && item.Artists[0].ID != "" {
		if genres, err := c.artistGenres(ctx, item.Artists[0].ID); err == nil && len(genres) > 0 {
			cand.Genre = formatGenres(genres)
		}
	}

	return cand
}

// artistGenres returns genres for an artist, using cache when available.
func (c *Client) artistGenres(ctx context.Context, artistID string) ([]string, error) {
	c.cacheMu.Lock()
	if genres, ok := c.genreCache[artistID]; ok {
		c.cacheMu.Unlock()
		return genres, nil
	}
	c.cacheMu.Unlock()

	reqURL := fmt.Sprintf("%s/artists/%s", c.apiURL, url.PathEscape(artistID))
	var artistResp artistResponse
	if err := c.getJSON(ctx, reqURL, &artistResp); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.genreCache[artistID] = artistResp.Genres
	c.cacheMu.Unlock()

	return artistResp.Genres, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getToken returns a valid access token, refreshing if necessary.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("no spotify credentials configured: %w", metadata.ErrProviderAuth)
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.doer.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned %d: %s: %w", resp.StatusCode, body, metadata.ErrProviderAuth)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	// Refresh a bit early to avoid edge-case expiry
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return c.accessToken, nil
}

// formatGenres title-cases and joins genres (max 3).
func formatGenres(genres []string) string {
	limit := 3
	if len(genres) < limit {
		limit = len(genres)
	}
	formatted := make([]string, limit)
	for i := 0; i < limit; i++ {
		formatted[i] = titleCase(genres[i])
	}
	return strings.Join(formatted, ", ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func buildSearchQuery(query metadata.SearchQuery) string {
	var parts []string
	if query.Title != "" {
		parts = append(parts, "track:"+query.Title)
	}
	if query.Artist != "" {
		parts = append(parts, "artist:"+query.Artist)
	}
	if query.Album != "" {
		parts = append(parts, "album:"+query.Album)
	}
	return strings.Join(parts, " ")
}

func parseYear(releaseDate string) int {
	if len(releaseDate) >= 4 {
		if y, err := strconv.Atoi(releaseDate[:4]); err == nil {
			return y
		}
	}
	return 0
}

// Spotify API response types

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Artists     []artist   `json:"artists"`
	Album       albumInfo  `json:"album"`
	TrackNumber int        `json:"track_number"`
	DiscNumber  int        `json:"disc_number"`
	DurationMs  int        `json:"duration_ms"`
	ExternalIDs externalID `json:"external_ids"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	Name        string   `json:"name"`
	Artists     []artist `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	Images      []image  `json:"images"`
}

type image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type externalID struct {
	ISRC string `json:"isrc"`
}

type artistResponse struct {
	Genres []string `json:"genres"`
}
