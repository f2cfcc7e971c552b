package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"tunetag/internal/logger"
)

// DefaultMaxArtworkBytes caps downloaded cover art at 2 MiB.
const DefaultMaxArtworkBytes = 2 << 20

// ArtworkFetcher resolves cover art for a merged record. Sources are tried
// in priority order and the first success wins; missing artwork is a
// partial outcome, never a failure.
type ArtworkFetcher struct {
	sources    []ArtworkProvider
	httpClient *http.Client
	maxBytes   int64
	logger     *logger.Logger
}

// NewArtworkFetcher creates a fetcher. maxBytes <= 0 selects the default cap.
func NewArtworkFetcher(sources []ArtworkProvider, maxBytes int64, log *logger.Logger) *ArtworkFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxArtworkBytes
	}
	return &ArtworkFetcher{
		sources:    sources,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxBytes:   maxBytes,
		logger:     log,
	}
}

// Fetch returns artwork bytes and MIME type for the merged record, or
// ErrNoArtwork when every source came up empty.
func (f *ArtworkFetcher) Fetch(ctx context.Context, merged *MergedMetadata, trail *RunTrail) ([]byte, string, error) {
	if merged.ReleaseID != "" {
		for _, src := range f.sources {
			start := time.Now()
			data, mime, err := src.FetchArtwork(ctx, merged.ReleaseID)
			n := 0
			if len(data) > 0 {
				n = 1
			}
			trail.RecordQuery(providerQuery(src.Name(), "artwork", n, err, start))
			if err != nil {
				f.logger.Debug("  artwork via %s failed: %v", src.Name(), err)
				continue
			}
			if data, mime, err = f.validate(data, mime); err != nil {
				f.logger.Debug("  artwork via %s rejected: %v", src.Name(), err)
				continue
			}
			return data, mime, nil
		}
	}

	if merged.ArtworkURL != "" {
		start := time.Now()
		data, mime, err := f.download(ctx, merged.ArtworkURL)
		n := 0
		if len(data) > 0 {
			n = 1
		}
		trail.RecordQuery(providerQuery("artwork-url", "artwork", n, err, start))
		if err == nil {
			return data, mime, nil
		}
		f.logger.Debug("  artwork from %s failed: %v", merged.ArtworkURL, err)
	}

	return nil, "", ErrNoArtwork
}

func (f *ArtworkFetcher) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create artwork request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("artwork download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read artwork: %w", err)
	}

	return f.validate(data, resp.Header.Get("Content-Type"))
}

// validate enforces the byte cap and normalizes the MIME type to the single
// allowed wire format: one JPEG or PNG blob.
func (f *ArtworkFetcher) validate(data []byte, declaredMIME string) ([]byte, string, error) {
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("artwork exceeds %d byte limit", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", ErrNoArtwork
	}

	mime := http.DetectContentType(data)
	switch mime {
	case "image/jpeg", "image/png":
		return data, mime, nil
	}
	return nil, "", fmt.Errorf("unsupported artwork format %s (declared %s)", mime, declaredMIME)
}
