package metadata

import (
	"strconv"
	"strings"
)

// Existing tags are only overwritten when a candidate beats this for the
// specific field, protecting user-curated values from merely good-enough
// external data.
const existingOverrideThreshold = 0.9

// DefaultMinConfidence is the pipeline threshold when none is configured.
const DefaultMinConfidence = 0.5

// Merger reconciles the scored candidates of one item into a single
// MergedMetadata record. Field values are selected independently, so one
// provider may supply the album while another supplies the track number.
type Merger struct {
	minConfidence  float64
	preferExisting bool
}

// NewMerger creates a Merger. A non-positive minConfidence falls back to
// the default threshold.
func NewMerger(minConfidence float64, preferExisting bool) *Merger {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Merger{minConfidence: minConfidence, preferExisting: preferExisting}
}

type fieldSpec struct {
	name string
	get  func(*ScoredCandidate) string
}

// Field extraction order. Values already honor the candidate's artist
// ordering (primary first), keeping multi-artist fields consistent.
var fieldSpecs = []fieldSpec{
	{FieldTitle, func(c *ScoredCandidate) string { return c.Title }},
	{FieldArtist, func(c *ScoredCandidate) string { return strings.Join(c.Artists, ", ") }},
	{FieldAlbum, func(c *ScoredCandidate) string { return c.Album }},
	{FieldAlbumArtist, func(c *ScoredCandidate) string { return c.AlbumArtist }},
	{FieldTrackNumber, func(c *ScoredCandidate) string { return positiveInt(c.TrackNumber) }},
	{FieldDiscNumber, func(c *ScoredCandidate) string { return positiveInt(c.DiscNumber) }},
	{FieldDate, candidateDate},
	{FieldGenre, func(c *ScoredCandidate) string { return c.Genre }},
	{FieldISRC, func(c *ScoredCandidate) string { return c.ISRC }},
}

// Merge selects the final record, or returns ErrNoConfidentMatch when no
// candidate clears the threshold. Candidates below the threshold are
// recorded in the trail for diagnostics but never supply a field.
// Selection is deterministic for a given candidate set: scored must
// already be sorted best first (Scorer.ScoreAll).
func (m *Merger) Merge(item *AudioItem, scored []ScoredCandidate, trail *RunTrail) (*MergedMetadata, error) {
	var eligible []ScoredCandidate
	for _, sc := range scored {
		if sc.Confidence >= m.minConfidence {
			eligible = append(eligible, sc)
		} else {
			trail.Discarded = append(trail.Discarded, sc)
		}
	}
	if len(eligible) == 0 {
		trail.Outcome = OutcomeNoMatch
		return nil, ErrNoConfidentMatch
	}

	best := eligible[0]
	merged := &MergedMetadata{
		RecordingID: best.RecordingID,
		ReleaseID:   best.ReleaseID,
		Confidence:  best.Confidence,
	}
	if merged.ReleaseID == "" {
		merged.ReleaseID = firstNonEmpty(eligible, func(c *ScoredCandidate) string { return c.ReleaseID })
	}
	merged.ArtworkURL = firstNonEmpty(eligible, func(c *ScoredCandidate) string { return c.ArtworkURL })

	for _, spec := range fieldSpecs {
		fv, winner := m.selectField(item, spec, eligible)
		merged.setField(spec.name, fv)
		if fv.Set() {
			trail.Winners = append(trail.Winners, winner)
		}
	}

	trail.Confidence = best.Confidence
	return merged, nil
}

// selectField picks one field's value: the top-ranked eligible candidate
// with a non-empty value, unless prefer-existing keeps the file's own tag.
func (m *Merger) selectField(item *AudioItem, spec fieldSpec, eligible []ScoredCandidate) (FieldValue, FieldWinner) {
	var fv FieldValue
	for i := range eligible {
		if v := spec.get(&eligible[i]); v != "" {
			fv = FieldValue{Value: v, Source: eligible[i].Provider, Score: eligible[i].Confidence}
			break
		}
	}

	existing := strings.TrimSpace(item.ExistingTag(spec.name))
	if m.preferExisting && existing != "" && fv.Score <= existingOverrideThreshold {
		kept := FieldValue{Value: existing, Source: "existing"}
		return kept, FieldWinner{Field: spec.name, Source: "existing", Value: existing, KeptExisting: true}
	}

	return fv, FieldWinner{Field: spec.name, Source: fv.Source, Value: fv.Value, Score: fv.Score}
}

func (m *MergedMetadata) setField(name string, fv FieldValue) {
	switch name {
	case FieldTitle:
		m.Title = fv
	case FieldArtist:
		m.Artist = fv
	case FieldAlbum:
		m.Album = fv
	case FieldAlbumArtist:
		m.AlbumArtist = fv
	case FieldTrackNumber:
		m.TrackNumber = fv
	case FieldDiscNumber:
		m.DiscNumber = fv
	case FieldDate:
		m.Date = fv
	case FieldGenre:
		m.Genre = fv
	case FieldISRC:
		m.ISRC = fv
	}
}

func candidateDate(c *ScoredCandidate) string {
	if c.ReleaseDate != "" {
		return c.ReleaseDate
	}
	if c.Year > 0 {
		return strconv.Itoa(c.Year)
	}
	return ""
}

func positiveInt(n int) string {
	if n > 0 {
		return strconv.Itoa(n)
	}
	return ""
}

func firstNonEmpty(scs []ScoredCandidate, get func(*ScoredCandidate) string) string {
	for i := range scs {
		if v := get(&scs[i]); v != "" {
			return v
		}
	}
	return ""
}
