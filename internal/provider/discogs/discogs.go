package discogs

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

// Discogs allows 60 authenticated requests per minute.
const minRequestInterval = time.Second

// Client is a Discogs database search client that implements
// metadata.Provider. Discogs is the secondary discography source; it
// carries its own user-agent and personal access token.
type Client struct {
	userAgent string
	token     string
	doer      *provider.Doer
	apiURL    string
}

// New creates a new Discogs client.
func New(userAgent, token string) *Client {
	return &Client{
		userAgent: userAgent,
		token:     token,
		doer:      provider.NewDoer(10*time.Second, ratelimit.New(minRequestInterval)),
		apiURL:    "https://api.discogs.com",
	}
}

func (c *Client) Name() string { return "discogs" }

// SearchByText queries the release database. Discogs has no per-track
// search; results describe the release, so candidates carry no track
// title and only release-derived fields. Their confidence stays low on
// their own and they enrich album, year and genre when another provider
// confirms the match.
func (c *Client) SearchByText(ctx context.Context, query metadata.SearchQuery) ([]metadata.Candidate, error) {
	if query.Artist == "" && query.Title == "" {
		return nil, nil
	}
	if c.userAgent == "" {
		return nil, fmt.Errorf("no discogs user-agent configured: %w", metadata.ErrProviderAuth)
	}

	params := url.Values{}
	params.Set("type", "release")
	params.Set("per_page", "5")
	if query.Artist != "" {
		params.Set("artist", query.Artist)
	}
	if query.Album != "" {
		params.Set("release_title", query.Album)
	} else if query.Title != "" {
		params.Set("track", query.Title)
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := fmt.Sprintf("%s/database/search?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create discogs request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discogs search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("discogs search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode discogs response: %w", err)
	}

	return parseResults(searchResp.Results), nil
}

// parseResults maps release hits to candidates. Nothing from the search
// query is echoed back: a candidate built from the query itself would
// score a perfect title/artist similarity by construction and could push
// an unrelated release past the confidence threshold.
func parseResults(results []searchResult) []metadata.Candidate {
	var candidates []metadata.Candidate
	now := time.Now()
	for _, res := range results {
		// Release titles come as "Artist - Album".
		artist, album := splitReleaseTitle(res.Title)
		c := metadata.Candidate{
			Provider:    "discogs",
			RecordingID: strconv.Itoa(res.ID),
			Album:       album,
			Genre:       strings.Join(res.Genres, ", "),
			ArtworkURL:  res.CoverImage,
			Retrieved:   now,
		}
		if artist != "" {
			c.Artists = metadata.CanonicalArtists(artist)
		}
		if y, err := strconv.Atoi(res.Year); err == nil {
			c.Year = y
		}
		candidates = append(candidates, c)
	}
	return candidates
}

func splitReleaseTitle(title string) (artist, album string) {
	parts := strings.SplitN(title, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(title)
}

// Discogs API response types

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Year       string   `json:"year"`
	Genres     []string `json:"genre"`
	CoverImage string   `json:"cover_image"`
}
