package metadata

import (
	"time"

	"github.com/google/uuid"
)

// Run outcomes reported upstream.
const (
	OutcomeTagged  = "tagged"
	OutcomePartial = "tagged-partial"
	OutcomeNoMatch = "no-match"
	OutcomeFailed  = "failed"
)

// ProviderQuery records one provider call made during a run.
type ProviderQuery struct {
	Provider   string
	Kind       string // "fingerprint", "id", "search", "artwork"
	Candidates int
	Err        string
	Disabled   bool // auth failure disabled the provider for the run
	Elapsed    time.Duration
}

// FieldWinner records which candidate supplied one merged field.
type FieldWinner struct {
	Field        string
	Source       string
	Value        string
	Score        float64
	KeptExisting bool
}

// RunTrail is the provenance log for one resolution run: which providers
// were queried, which candidate won each field, and the final confidence.
// Intermediate failures land here instead of propagating to the caller.
type RunTrail struct {
	RunID      string
	Path       string
	Started    time.Time
	Queries    []ProviderQuery
	Discarded  []ScoredCandidate // below threshold, kept for diagnostics
	Winners    []FieldWinner
	Confidence float64
	Outcome    string
}

// NewRunTrail starts a trail for one AudioItem.
func NewRunTrail(path string) *RunTrail {
	return &RunTrail{
		RunID:   uuid.NewString(),
		Path:    path,
		Started: time.Now(),
	}
}

// RecordQuery appends a provider call record.
func (t *RunTrail) RecordQuery(q ProviderQuery) {
	t.Queries = append(t.Queries, q)
}

// DisabledProviders lists providers that hit an auth error during the run.
func (t *RunTrail) DisabledProviders() []string {
	var out []string
	seen := make(map[string]bool)
	for _, q := range t.Queries {
		if q.Disabled && !seen[q.Provider] {
			seen[q.Provider] = true
			out = append(out, q.Provider)
		}
	}
	return out
}
