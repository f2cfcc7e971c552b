package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Noise suffixes commonly left behind by rippers and uploaders.
var titleCleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\(official\s+(music\s+)?video\)`),
	regexp.MustCompile(`(?i)\s*\(official\s+audio\)`),
	regexp.MustCompile(`(?i)\s*\(official\s+lyric\s+video\)`),
	regexp.MustCompile(`(?i)\s*\(lyrics?\)`),
	regexp.MustCompile(`(?i)\s*\(audio\)`),
	regexp.MustCompile(`(?i)\s*\(hd\)`),
	regexp.MustCompile(`(?i)\s*\(hq\)`),
	regexp.MustCompile(`(?i)\s*\(explicit\)`),
	regexp.MustCompile(`(?i)\s*\(remaster(?:ed)?(?:\s+\d{4})?\)`),
	regexp.MustCompile(`(?i)\s*\[official\s+(music\s+)?video\]`),
	regexp.MustCompile(`(?i)\s*\[official\s+audio\]`),
	regexp.MustCompile(`(?i)\s*\[lyrics?\]`),
	regexp.MustCompile(`(?i)\s*\[audio\]`),
	regexp.MustCompile(`(?i)\s*\[hd\]`),
	regexp.MustCompile(`(?i)\s*\[hq\]`),
	regexp.MustCompile(`(?i)\s*\[explicit\]`),
	regexp.MustCompile(`(?i)\s*\[remaster(?:ed)?(?:\s+\d{4})?\]`),
}

// Featuring credits, both embedded in titles and appended to artist strings.
var (
	featuringParenPattern = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+([^\)\]]+)[\)\]]`)
	featuringTailPattern  = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+(.+)$`)
)

// Pattern for "Artist - Title" filenames.
var artistTitleSeparator = regexp.MustCompile(`^(.+?)\s*[-–—]\s*(.+)$`)

// Leading track numbers like "01 - " or "03." in filenames.
var trackNumberPrefix = regexp.MustCompile(`^\d{1,3}\s*[-._]\s*`)

// Separators between co-credited artists.
var creditSeparator = regexp.MustCompile(`\s*(?:,|;|&|\sx\s|\sX\s)\s*`)

// QueryFromItem derives the text search query for one item. Existing tags
// win over filename guesses; the filename is only parsed when the tags
// carry no title.
func QueryFromItem(item *AudioItem) SearchQuery {
	title := strings.TrimSpace(item.ExistingTag(FieldTitle))
	artist := strings.TrimSpace(item.ExistingTag(FieldArtist))
	album := strings.TrimSpace(item.ExistingTag(FieldAlbum))

	if title == "" {
		title, artist = SplitFilename(item.Path)
		if artist == "" {
			artist = strings.TrimSpace(item.ExistingTag(FieldArtist))
		}
	}

	return NormalizeQuery(title, artist, album)
}

// NormalizeQuery cleans raw title/artist/album strings into a SearchQuery.
func NormalizeQuery(title, artist, album string) SearchQuery {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	for _, p := range titleCleanupPatterns {
		title = p.ReplaceAllString(title, "")
	}

	// Featuring credits are stripped from the title for a cleaner search;
	// providers credit them on the artist side.
	title = featuringParenPattern.ReplaceAllString(title, "")

	// If artist is empty, try "Artist - Title" embedded in the title string.
	if artist == "" {
		if m := artistTitleSeparator.FindStringSubmatch(title); m != nil {
			artist = strings.TrimSpace(m[1])
			title = strings.TrimSpace(m[2])
		}
	}

	return SearchQuery{
		Title:  strings.TrimSpace(title),
		Artist: strings.TrimSpace(artist),
		Album:  strings.TrimSpace(album),
	}
}

// SplitFilename parses "Artist - Title.ext" shaped filenames. Returns
// title and artist; artist is "" when no separator is present.
func SplitFilename(path string) (title, artist string) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = trackNumberPrefix.ReplaceAllString(base, "")
	base = strings.TrimSpace(base)

	if m := artistTitleSeparator.FindStringSubmatch(base); m != nil {
		return strings.TrimSpace(m[2]), strings.TrimSpace(m[1])
	}
	return base, ""
}

// FilenameTokens derives lowercase comparison tokens from a file path.
func FilenameTokens(path string) []string {
	title, artist := SplitFilename(path)
	return tokenize(normalize(artist + " " + title))
}

// CanonicalArtists splits an artist credit string into an ordered list,
// primary artist first. Featuring credits ("feat.", "ft.", "featuring")
// and common separators all become secondary entries, so providers that
// disagree on featuring conventions still agree on the primary name and
// only pay a similarity penalty on the tail.
func CanonicalArtists(credit string) []string {
	credit = strings.TrimSpace(credit)
	if credit == "" {
		return nil
	}

	var tail string
	if m := featuringParenPattern.FindStringSubmatch(credit); m != nil {
		tail = m[1]
		credit = featuringParenPattern.ReplaceAllString(credit, "")
	} else if m := featuringTailPattern.FindStringSubmatch(credit); m != nil {
		tail = m[1]
		credit = featuringTailPattern.ReplaceAllString(credit, "")
	}

	var out []string
	for _, part := range splitCredits(credit) {
		out = append(out, part)
	}
	for _, part := range splitCredits(tail) {
		out = append(out, part)
	}
	return out
}

func splitCredits(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	fields := creditSeparator.Split(s, -1)
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
