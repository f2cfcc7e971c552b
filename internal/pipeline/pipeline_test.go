package pipeline

import (
	"testing"

	"tunetag/internal/config"
	"tunetag/internal/logger"
)

func TestBuildProvidersSkipsMissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig()

	searchers, disco, artSources := buildProviders(cfg, logger.New(false))

	if len(searchers) != 1 {
		t.Fatalf("got %d searchers, want only musicbrainz", len(searchers))
	}
	if searchers[0].Name() != "musicbrainz" {
		t.Errorf("searcher = %q, want musicbrainz", searchers[0].Name())
	}
	if disco == nil {
		t.Error("expected musicbrainz to be wired as the id-lookup provider")
	}
	if len(artSources) != 1 {
		t.Errorf("got %d artwork sources, want 1", len(artSources))
	}
}

func TestBuildProvidersWiresCredentialedProviders(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LastFMAPIKey = "key"
	cfg.DiscogsUserAgent = "tunetag-test/1.0"
	cfg.SpotifyClientID = "id"
	cfg.SpotifyClientSecret = "secret"

	searchers, _, _ := buildProviders(cfg, logger.New(false))

	if len(searchers) != len(cfg.Providers) {
		t.Fatalf("got %d searchers, want %d", len(searchers), len(cfg.Providers))
	}
	for i, name := range cfg.Providers {
		if searchers[i].Name() != name {
			t.Errorf("searcher[%d] = %q, want %q (priority order)", i, searchers[i].Name(), name)
		}
	}
}
