package metadata

import (
	"context"
	"errors"
	"fmt"

	"go.senan.xyz/taglib"

	"tunetag/internal/logger"
)

// Fingerprinter computes an acoustic fingerprint for a file, or reports
// that none can be computed. Implemented by internal/fingerprint.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string) (*FingerprintQuery, error)
}

// Cache is an optional fingerprint → candidate-set store shared across
// runs. Staleness is tolerated; last write wins.
type Cache interface {
	Get(ctx context.Context, fingerprint string) ([]Candidate, bool, error)
	Put(ctx context.Context, fingerprint string, candidates []Candidate) error
}

// Result is the terminal outcome of one resolution run.
type Result struct {
	Item    *AudioItem
	Outcome string
	Write   *TagWriteResult
	Trail   *RunTrail
}

// Resolver orchestrates one resolution run per AudioItem: snapshot the
// file's signals, fingerprint, aggregate candidates, score, merge, fetch
// artwork and write tags. The item is exclusively owned by its run until
// the outcome is reported.
type Resolver struct {
	fingerprinter Fingerprinter
	aggregator    *Aggregator
	scorer        *Scorer
	merger        *Merger
	artwork       *ArtworkFetcher
	writer        *TagWriter
	cache         Cache
	logger        *logger.Logger
	dryRun        bool
}

// ResolverOptions collects the optional collaborators of a Resolver.
type ResolverOptions struct {
	Fingerprinter Fingerprinter   // nil: skip fingerprinting
	Artwork       *ArtworkFetcher // nil: skip cover art
	Cache         Cache           // nil: no caching
	DryRun        bool
}

// NewResolver wires a resolution pipeline.
func NewResolver(agg *Aggregator, scorer *Scorer, merger *Merger, log *logger.Logger, opts ResolverOptions) *Resolver {
	return &Resolver{
		fingerprinter: opts.Fingerprinter,
		aggregator:    agg,
		scorer:        scorer,
		merger:        merger,
		artwork:       opts.Artwork,
		writer:        NewTagWriter(),
		cache:         opts.Cache,
		logger:        log,
		dryRun:        opts.DryRun,
	}
}

// LoadItem snapshots a file's existing tags, container duration and
// filename tokens into an AudioItem.
func LoadItem(path string) (*AudioItem, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, &TagWriteError{Path: path, Err: fmt.Errorf("read tags: %w", err)}
	}
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return nil, &TagWriteError{Path: path, Err: fmt.Errorf("read properties: %w", err)}
	}
	return &AudioItem{
		Path:     path,
		Duration: props.Length,
		Tags:     tags,
		Tokens:   FilenameTokens(path),
	}, nil
}

// Resolve runs the pipeline for one file. Provider failures never escape:
// they are recorded in the trail. The returned error is non-nil only for
// the fatal cases — an unreadable/unwritable file or caller cancellation.
func (r *Resolver) Resolve(ctx context.Context, path string) (*Result, error) {
	trail := NewRunTrail(path)

	item, err := LoadItem(path)
	if err != nil {
		trail.Outcome = OutcomeFailed
		return &Result{Outcome: OutcomeFailed, Trail: trail}, err
	}
	res := &Result{Item: item, Trail: trail}

	fpq := r.fingerprint(ctx, path)
	candidates := r.gather(ctx, item, fpq, trail)
	r.logger.Debug("  %d candidate(s) after de-duplication", len(candidates))

	if err := ctx.Err(); err != nil {
		trail.Outcome = OutcomeFailed
		res.Outcome = OutcomeFailed
		return res, err
	}

	scored := r.scorer.ScoreAll(item, candidates)
	merged, err := r.merger.Merge(item, scored, trail)
	if err != nil {
		if errors.Is(err, ErrNoConfidentMatch) {
			r.logger.Debug("  no candidate cleared the threshold, leaving file untouched")
			res.Outcome = OutcomeNoMatch
			return res, nil
		}
		trail.Outcome = OutcomeFailed
		res.Outcome = OutcomeFailed
		return res, err
	}

	r.logger.Debug("  best match: %q by %q (confidence %.2f)", merged.Title.Value, merged.Artist.Value, merged.Confidence)

	var art []byte
	artMissing := false
	if r.artwork != nil {
		var mime string
		art, mime, err = r.artwork.Fetch(ctx, merged, trail)
		if err != nil {
			artMissing = true
			r.logger.Debug("  proceeding without cover art: %v", err)
		} else {
			r.logger.Debug("  fetched %d bytes of %s cover art", len(art), mime)
		}
	}

	if r.dryRun {
		res.Outcome = OutcomeTagged
		if artMissing {
			res.Outcome = OutcomePartial
		}
		trail.Outcome = res.Outcome
		return res, nil
	}

	write, err := r.writer.Write(ctx, item, merged, art)
	if err != nil {
		trail.Outcome = OutcomeFailed
		res.Outcome = OutcomeFailed
		return res, err
	}
	res.Write = write

	res.Outcome = OutcomeTagged
	if artMissing {
		res.Outcome = OutcomePartial
	}
	trail.Outcome = res.Outcome
	return res, nil
}

// fingerprint computes the lookup key, consulting nothing on failure:
// a missing fpcalc binary or key degrades to text search.
func (r *Resolver) fingerprint(ctx context.Context, path string) *FingerprintQuery {
	if r.fingerprinter == nil {
		return nil
	}
	fpq, err := r.fingerprinter.Fingerprint(ctx, path)
	if err != nil {
		r.logger.Debug("  fingerprinting skipped: %v", err)
		return nil
	}
	return fpq
}

// gather returns the candidate set, via the shared cache when one is
// configured and the fingerprint is known.
func (r *Resolver) gather(ctx context.Context, item *AudioItem, fpq *FingerprintQuery, trail *RunTrail) []Candidate {
	if r.cache != nil && fpq != nil {
		if cached, ok, err := r.cache.Get(ctx, fpq.Fingerprint); err != nil {
			r.logger.Debug("  cache read failed: %v", err)
		} else if ok {
			r.logger.Debug("  cache hit: %d candidate(s)", len(cached))
			return cached
		}
	}

	candidates := r.aggregator.Aggregate(ctx, item, fpq, trail)

	if r.cache != nil && fpq != nil && len(candidates) > 0 {
		if err := r.cache.Put(ctx, fpq.Fingerprint, candidates); err != nil {
			r.logger.Debug("  cache write failed: %v", err)
		}
	}
	return candidates
}
