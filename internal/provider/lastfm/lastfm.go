package lastfm

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

// Last.fm asks applications to stay under 5 requests per second.
const minRequestInterval = 200 * time.Millisecond

// At most this many top tags become the genre string.
const maxGenreTags = 3

// Client is a Last.fm API client that implements metadata.Provider.
// Last.fm is the social-tagging source: its main contribution is
// corrected names and listener tags folded into the genre field.
type Client struct {
	apiKey string
	doer   *provider.Doer
	apiURL string
}

// New creates a new Last.fm client with the application's API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		doer:   provider.NewDoer(10*time.Second, ratelimit.New(minRequestInterval)),
		apiURL: "https://ws.audioscrobbler.com/2.0/",
	}
}

func (c *Client) Name() string { return "lastfm" }

// SearchByText resolves a track via track.getInfo with autocorrect, which
// fixes common misspellings in the query itself.
func (c *Client) SearchByText(ctx context.Context, query metadata.SearchQuery) ([]metadata.Candidate, error) {
	if query.Title == "" {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("no lastfm api key configured: %w", metadata.ErrProviderAuth)
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("track", query.Title)
	if query.Artist != "" {
		params.Set("artist", query.Artist)
	}
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create lastfm request: %w", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lastfm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lastfm returned %d: %s", resp.StatusCode, body)
	}

	var infoResp trackInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&infoResp); err != nil {
		return nil, fmt.Errorf("decode lastfm response: %w", err)
	}
	// Error code 6 is "track not found": an empty result, not a failure.
	if infoResp.Error == 6 {
		return nil, nil
	}
	if infoResp.Error != 0 {
		return nil, fmt.Errorf("lastfm API error %d: %s", infoResp.Error, infoResp.Message)
	}
	if infoResp.Track.Name == "" {
		return nil, nil
	}

	return []metadata.Candidate{candidateFromTrack(infoResp.Track)}, nil
}

func candidateFromTrack(tr trackInfo) metadata.Candidate {
	c := metadata.Candidate{
		Provider:    "lastfm",
		RecordingID: tr.MBID,
		Title:       tr.Name,
		Album:       tr.Album.Title,
		ArtworkURL:  largestImage(tr.Album.Images),
		Retrieved:   time.Now(),
	}
	if tr.Artist.Name != "" {
		c.Artists = metadata.CanonicalArtists(tr.Artist.Name)
	}
	if ms, err := strconv.Atoi(tr.Duration); err == nil && ms > 0 {
		c.Duration = time.Duration(ms) * time.Millisecond
	}

	var tags []string
	for _, tag := range tr.TopTags.Tags {
		if tag.Name == "" {
			continue
		}
		tags = append(tags, titleCase(tag.Name))
		if len(tags) == maxGenreTags {
			break
		}
	}
	c.Genre = strings.Join(tags, ", ")

	return c
}

func largestImage(images []image) string {
	// Last.fm lists sizes small to mega; the last usable URL wins.
	var best string
	for _, img := range images {
		if img.URL != "" {
			best = img.URL
		}
	}
	return best
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

// Last.fm API response types

type trackInfoResponse struct {
	Track   trackInfo `json:"track"`
	Error   int       `json:"error"`
	Message string    `json:"message"`
}

type trackInfo struct {
	Name     string `json:"name"`
	MBID     string `json:"mbid"`
	Duration string `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title  string  `json:"title"`
		Images []image `json:"image"`
	} `json:"album"`
	TopTags struct {
		Tags []tag `json:"tag"`
	} `json:"toptags"`
}

type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type tag struct {
	Name string `json:"name"`
}
