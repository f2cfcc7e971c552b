package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"tunetag/internal/cache"
	"tunetag/internal/config"
	"tunetag/internal/fingerprint"
	"tunetag/internal/logger"
	"tunetag/internal/metadata"
	"tunetag/internal/provider/acoustid"
	"tunetag/internal/provider/discogs"
	"tunetag/internal/provider/lastfm"
	"tunetag/internal/provider/musicbrainz"
	"tunetag/internal/provider/spotify"
	"tunetag/pkg/utils"
)

type Hooks struct {
	OnFilesFound func(total int)
	OnProgress   func()
	OnWarning    func(msg string)
}

// Summary aggregates the terminal outcomes of one pipeline run.
type Summary struct {
	Total   int
	Tagged  int
	Partial int
	NoMatch int
	Failed  int
}

// Run resolves and tags every audio file under the given paths. Multiple
// files are resolved concurrently, bounded by parallel_jobs; each file is
// exclusively owned by its run. Per-file failures are counted and logged,
// never aborting the rest of the batch.
func Run(ctx context.Context, cfg config.Config, log *logger.Logger, paths []string, hooks Hooks) (*Summary, error) {
	files, err := utils.CollectAudioFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files found")
	}
	if hooks.OnFilesFound != nil {
		hooks.OnFilesFound(len(files))
	}

	if !cfg.Enable {
		log.Info("Metadata resolution is disabled in configuration")
		return &Summary{Total: len(files)}, nil
	}

	resolver, store, err := buildResolver(cfg, log)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	log.Info("=== Resolving metadata for %d files ===", len(files))

	summary := &Summary{Total: len(files)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.ParallelJobs)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			log.Debug("[%d/%d] Processing: %s", i+1, len(files), path)
			res, err := resolver.Resolve(gctx, path)

			mu.Lock()
			record(summary, res, err, log)
			mu.Unlock()

			if hooks.OnProgress != nil {
				hooks.OnProgress()
			}
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("resolution cancelled: %w", err)
	}

	log.Info("Tagged %d, partial %d, no match %d, failed %d",
		summary.Tagged, summary.Partial, summary.NoMatch, summary.Failed)

	if summary.Failed > 0 && hooks.OnWarning != nil {
		hooks.OnWarning(fmt.Sprintf("%d of %d files failed metadata resolution", summary.Failed, summary.Total))
	}
	if summary.Failed == summary.Total {
		return summary, fmt.Errorf("all %d files failed metadata resolution", summary.Total)
	}
	return summary, nil
}

func record(summary *Summary, res *metadata.Result, err error, log *logger.Logger) {
	if err != nil {
		log.Warn("Failed: %s: %v", res.Trail.Path, err)
		summary.Failed++
		return
	}

	switch res.Outcome {
	case metadata.OutcomeTagged:
		summary.Tagged++
		logChangedFields(res, log)
	case metadata.OutcomePartial:
		summary.Partial++
		logChangedFields(res, log)
	case metadata.OutcomeNoMatch:
		summary.NoMatch++
		log.Debug("No confident match: %s", res.Trail.Path)
	default:
		summary.Failed++
	}

	for _, p := range res.Trail.DisabledProviders() {
		log.Warn("Provider %s disabled for this run (auth rejected)", p)
	}
}

func logChangedFields(res *metadata.Result, log *logger.Logger) {
	if res.Write == nil {
		return
	}
	if len(res.Write.ChangedFields) == 0 {
		log.Debug("Already tagged: %s", res.Trail.Path)
		return
	}
	log.Debug("Tagged %s (run %s): changed %v", res.Trail.Path, res.Trail.RunID, res.Write.ChangedFields)
}

// buildResolver wires providers, fingerprinting, cache and artwork
// sources from configuration. Per-provider credentials arrive as explicit
// constructor arguments, never ambient state.
func buildResolver(cfg config.Config, log *logger.Logger) (*metadata.Resolver, *cache.Store, error) {
	searchers, disco, artSources := buildProviders(cfg, log)

	var fp metadata.FingerprintProvider
	opts := metadata.ResolverOptions{DryRun: cfg.DryRun}

	if cfg.AcoustIDAPIKey != "" {
		chroma := fingerprint.New(cfg.FpcalcPath)
		if chroma.Available() {
			fp = acoustid.New(cfg.AcoustIDAPIKey)
			opts.Fingerprinter = chroma
		} else {
			log.Warn("fpcalc not found, falling back to text search only")
		}
	} else {
		log.Debug("No AcoustID API key configured, skipping fingerprint lookup")
	}

	if cfg.FetchCoverArt {
		opts.Artwork = metadata.NewArtworkFetcher(artSources, cfg.MaxArtworkBytes, log)
	}

	var store *cache.Store
	if cfg.CachePath != "" {
		var err error
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open fingerprint cache: %w", err)
		}
		opts.Cache = store
	}

	agg := metadata.NewAggregator(fp, disco, searchers, log)
	scorer := metadata.NewScorer(cfg.Providers)
	merger := metadata.NewMerger(cfg.MinConfidence, cfg.PreferExistingTags)

	return metadata.NewResolver(agg, scorer, merger, log, opts), store, nil
}

// buildProviders instantiates the configured providers in priority order.
// Providers whose credentials are missing are skipped for the run rather
// than failing it, so a fresh install works against the open catalogs
// before any API keys are configured.
func buildProviders(cfg config.Config, log *logger.Logger) ([]metadata.Provider, metadata.IDLookupProvider, []metadata.ArtworkProvider) {
	var searchers []metadata.Provider
	var disco metadata.IDLookupProvider
	var artSources []metadata.ArtworkProvider

	for _, name := range cfg.Providers {
		if key := cfg.MissingCredential(name); key != "" {
			log.Warn("Provider %s skipped: %s is not configured", name, key)
			continue
		}
		switch name {
		case "musicbrainz":
			mb := musicbrainz.New(cfg.MusicBrainzUserAgent)
			searchers = append(searchers, mb)
			disco = mb
			artSources = append(artSources, mb)
		case "lastfm":
			searchers = append(searchers, lastfm.New(cfg.LastFMAPIKey))
		case "discogs":
			searchers = append(searchers, discogs.New(cfg.DiscogsUserAgent, cfg.DiscogsToken))
		case "spotify":
			searchers = append(searchers, spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret))
		}
	}
	return searchers, disco, artSources
}
