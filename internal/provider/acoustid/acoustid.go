package acoustid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tunetag/internal/metadata"
	"tunetag/internal/provider"
	"tunetag/internal/ratelimit"
)

// Matches the provider scores below this are discarded before they reach
// the aggregator. Deliberately lower than the pipeline's min-confidence:
// it only bounds downstream work, it does not decide matches.
const scoreFloor = 0.4

// AcoustID allows 3 requests per second per client key.
const minRequestInterval = 334 * time.Millisecond

// Client is an AcoustID Web Service client that implements
// metadata.FingerprintProvider.
type Client struct {
	apiKey string
	doer   *provider.Doer
	apiURL string
}

// New creates a new AcoustID client with the application's API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		doer:   provider.NewDoer(10*time.Second, ratelimit.New(minRequestInterval)),
		apiURL: "https://api.acoustid.org/v2/lookup",
	}
}

func (c *Client) Name() string { return "acoustid" }

// LookupByFingerprint resolves a chromaprint fingerprint into candidate
// recordings, each tagged with AcoustID's own similarity score.
func (c *Client) LookupByFingerprint(ctx context.Context, query metadata.FingerprintQuery) ([]metadata.Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no acoustid api key configured: %w", metadata.ErrProviderAuth)
	}

	params := url.Values{}
	params.Set("client", c.apiKey)
	params.Set("duration", strconv.Itoa(int(query.Duration.Seconds())))
	params.Set("fingerprint", query.Fingerprint)
	params.Set("meta", "recordings releasegroups")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create acoustid request: %w", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("acoustid lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("acoustid lookup returned %d: %s", resp.StatusCode, body)
	}

	var lookupResp lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookupResp); err != nil {
		return nil, fmt.Errorf("decode acoustid response: %w", err)
	}
	if lookupResp.Status != "ok" {
		return nil, fmt.Errorf("acoustid API error: %s", lookupResp.Error.Message)
	}

	return parseResults(lookupResp.Results), nil
}

func parseResults(results []lookupResult) []metadata.Candidate {
	var candidates []metadata.Candidate
	now := time.Now()
	for _, res := range results {
		if res.Score < scoreFloor {
			continue
		}
		for _, rec := range res.Recordings {
			c := metadata.Candidate{
				Provider:      "acoustid",
				RecordingID:   rec.ID,
				Title:         rec.Title,
				Duration:      time.Duration(rec.Duration) * time.Second,
				ProviderScore: res.Score,
				Retrieved:     now,
			}
			for _, a := range rec.Artists {
				c.Artists = append(c.Artists, a.Name)
			}
			if len(rec.ReleaseGroups) > 0 {
				c.Album = rec.ReleaseGroups[0].Title
			}
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// AcoustID API response types

type lookupResponse struct {
	Status  string         `json:"status"`
	Results []lookupResult `json:"results"`
	Error   apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lookupResult struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Duration      int            `json:"duration"`
	Artists       []artist       `json:"artists"`
	ReleaseGroups []releaseGroup `json:"releasegroups"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type releaseGroup struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
