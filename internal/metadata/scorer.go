package metadata

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Scoring weights. Title and primary artist dominate; duration closeness
// and the identifier-keyed bonus round the score out. An exact
// title+artist match at zero duration delta lands at 0.90 before the
// bonus, so identifier-keyed exact matches reach 1.0.
const (
	titleWeight    = 0.35
	artistWeight   = 0.35
	durationWeight = 0.20
	idLookupBonus  = 0.10

	// Duration deltas beyond this contribute nothing.
	durationWindow = 10 * time.Second
)

// Scorer computes provider-agnostic confidence for candidates against one
// item's signals. The same formula applies to every provider so scores
// are comparable; priority only breaks exact ties.
type Scorer struct {
	priority map[string]int
}

// NewScorer creates a Scorer with the configured provider-priority order.
// Providers missing from the list sort after all listed ones.
func NewScorer(providerPriority []string) *Scorer {
	prio := make(map[string]int, len(providerPriority))
	for i, name := range providerPriority {
		prio[name] = i
	}
	return &Scorer{priority: prio}
}

// Score computes the confidence of one candidate in [0,1].
func (s *Scorer) Score(item *AudioItem, c *Candidate) ScoredCandidate {
	query := QueryFromItem(item)

	titleScore := similarity(normalize(query.Title), normalize(c.Title))
	artistScore := similarity(normalize(query.Artist), normalize(c.PrimaryArtist()))
	if query.Artist == "" {
		// Without an artist signal the candidate's artist cannot count
		// against it; fall back to the title evidence.
		artistScore = titleScore
	}

	durScore := durationCloseness(item.Duration, c.Duration)

	score := titleScore*titleWeight + artistScore*artistWeight + durScore*durationWeight
	if c.FromIDLookup {
		score += idLookupBonus
	}
	return ScoredCandidate{Candidate: *c, Confidence: clamp01(score)}
}

// ScoreAll scores every candidate and sorts the result best first, with
// the deterministic tie-break: provider priority, then field richness.
func (s *Scorer) ScoreAll(item *AudioItem, candidates []Candidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for i := range candidates {
		scored = append(scored, s.Score(item, &candidates[i]))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		pi, pj := s.providerRank(scored[i].Provider), s.providerRank(scored[j].Provider)
		if pi != pj {
			return pi < pj
		}
		return scored[i].FieldCount() > scored[j].FieldCount()
	})
	return scored
}

func (s *Scorer) providerRank(name string) int {
	if r, ok := s.priority[name]; ok {
		return r
	}
	return len(s.priority)
}

// durationCloseness maps the duration delta onto [0,1]: zero delta scores
// 1.0, falling off linearly to 0 at the window edge. Unknown durations on
// either side score 0 rather than rewarding missing data.
func durationCloseness(a, b time.Duration) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	return clamp01(1 - delta.Seconds()/durationWindow.Seconds())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// similarity returns how similar two normalized strings are (0.0-1.0).
// Uses compact comparison plus token overlap to handle cases like
// "theweeknd" vs "the weeknd".
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if strings.ReplaceAll(a, " ", "") == strings.ReplaceAll(b, " ", "") {
		return 1.0
	}

	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	matches := 0
	for _, t := range tokensA {
		if setB[t] {
			matches++
		}
	}

	maxLen := len(tokensA)
	if len(tokensB) > maxLen {
		maxLen = len(tokensB)
	}
	return float64(matches) / float64(maxLen)
}

// normalize lowercases and strips punctuation for comparison.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenize splits a normalized string into non-empty tokens.
func tokenize(s string) []string {
	fields := strings.Fields(s)
	var result []string
	for _, f := range fields {
		if f != "" {
			result = append(result, f)
		}
	}
	return result
}
