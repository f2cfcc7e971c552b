package metadata

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tunetag/internal/logger"
)

// How many fingerprint recording identifiers get promoted to
// identifier-keyed lookups. Bounds downstream work on noisy fingerprints.
const maxIDLookups = 3

// Duration tolerance for treating two candidates as the same recording.
const dedupeTolerance = 2 * time.Second

// Aggregator fans out to all enabled providers and returns the union of
// their candidates. Each provider call is independent: one provider's
// failure never prevents the others from completing, and failures are
// recorded in the run trail rather than raised.
type Aggregator struct {
	fingerprinter FingerprintProvider
	discography   IDLookupProvider
	searchers     []Provider
	logger        *logger.Logger
}

// NewAggregator wires the enabled providers. fingerprinter and
// discography may be nil; searchers may be empty.
func NewAggregator(fp FingerprintProvider, disco IDLookupProvider, searchers []Provider, log *logger.Logger) *Aggregator {
	return &Aggregator{
		fingerprinter: fp,
		discography:   disco,
		searchers:     searchers,
		logger:        log,
	}
}

// Aggregate collects candidates for one item. The fingerprint provider is
// always tried first; when it yields candidates their identifiers are
// resolved against the discography database by direct lookup. Only when
// fingerprinting yields nothing usable does the text-search fan-out run.
func (a *Aggregator) Aggregate(ctx context.Context, item *AudioItem, fpq *FingerprintQuery, trail *RunTrail) []Candidate {
	var candidates []Candidate

	if a.fingerprinter != nil && fpq != nil && fpq.Fingerprint != "" {
		candidates = a.fromFingerprint(ctx, fpq, trail)
	}

	if len(candidates) == 0 {
		candidates = a.fromTextSearch(ctx, item, trail)
	}

	return dedupe(candidates)
}

func (a *Aggregator) fromFingerprint(ctx context.Context, fpq *FingerprintQuery, trail *RunTrail) []Candidate {
	start := time.Now()
	matches, err := a.fingerprinter.LookupByFingerprint(ctx, *fpq)
	trail.RecordQuery(providerQuery(a.fingerprinter.Name(), "fingerprint", len(matches), err, start))
	if err != nil {
		a.logger.Debug("  fingerprint lookup via %s failed: %v", a.fingerprinter.Name(), err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	candidates := matches
	if a.discography == nil {
		return candidates
	}

	ids := recordingIDs(matches, maxIDLookups)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			start := time.Now()
			c, err := a.discography.LookupByID(gctx, id)
			n := 0
			if c != nil {
				n = 1
			}
			mu.Lock()
			trail.RecordQuery(providerQuery(a.discography.Name(), "id", n, err, start))
			if err != nil {
				a.logger.Debug("  id lookup %s via %s failed: %v", id, a.discography.Name(), err)
			} else if c != nil {
				candidates = append(candidates, *c)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return candidates
}

func (a *Aggregator) fromTextSearch(ctx context.Context, item *AudioItem, trail *RunTrail) []Candidate {
	query := QueryFromItem(item)
	if query.Title == "" {
		return nil
	}

	var (
		mu         sync.Mutex
		candidates []Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range a.searchers {
		p := p
		g.Go(func() error {
			start := time.Now()
			results, err := p.SearchByText(gctx, query)
			mu.Lock()
			trail.RecordQuery(providerQuery(p.Name(), "search", len(results), err, start))
			candidates = append(candidates, results...)
			mu.Unlock()
			if err != nil {
				a.logger.Debug("  search via %s failed: %v", p.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return candidates
}

func providerQuery(name, kind string, n int, err error, start time.Time) ProviderQuery {
	q := ProviderQuery{
		Provider:   name,
		Kind:       kind,
		Candidates: n,
		Elapsed:    time.Since(start),
	}
	if err != nil {
		q.Err = err.Error()
		q.Disabled = errors.Is(err, ErrProviderAuth)
	}
	return q
}

func recordingIDs(matches []Candidate, limit int) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.RecordingID == "" || seen[m.RecordingID] {
			continue
		}
		seen[m.RecordingID] = true
		ids = append(ids, m.RecordingID)
		if len(ids) == limit {
			break
		}
	}
	return ids
}

// dedupe folds candidates that agree on normalized title, primary artist
// and duration within tolerance. The representative is the candidate with
// more populated fields; the other's provider is retained in AlsoSeenOn
// so merge provenance keeps both.
func dedupe(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		merged := false
		for i := range out {
			if !sameRecording(&out[i], &c) {
				continue
			}
			if c.FieldCount() > out[i].FieldCount() {
				c.AlsoSeenOn = append(append([]string{}, out[i].AlsoSeenOn...), out[i].Provider)
				out[i] = c
			} else {
				out[i].AlsoSeenOn = append(out[i].AlsoSeenOn, c.Provider)
			}
			merged = true
			break
		}
		if !merged {
			out = append(out, c)
		}
	}
	return out
}

func sameRecording(a, b *Candidate) bool {
	if normalize(a.Title) != normalize(b.Title) {
		return false
	}
	if normalize(a.PrimaryArtist()) != normalize(b.PrimaryArtist()) {
		return false
	}
	if a.Duration == 0 || b.Duration == 0 {
		return true
	}
	delta := a.Duration - b.Duration
	if delta < 0 {
		delta = -delta
	}
	return delta <= dedupeTolerance
}
