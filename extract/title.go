// Package extract implements the semantic gate between raw harvested
// candidates and artist profiles: the music-video title filter, the
// deterministic artist-name extractor, and social-link mining from
// description and channel-about HTML.
package extract

import (
	"regexp"
	"strings"
)

// Secondary markers that qualify a title when a structural artist-song
// pattern is also present.
var secondaryMarkers = []string{
	"official video",
	"music video",
	"official mv",
	"official audio",
}

// nameBlocklist rejects extraction results that name an aggregator, not
// an artist.
var nameBlocklist = map[string]bool{
	"various artists": true,
	"vevo":            true,
	"topic":           true,
}

// featuredSplit matches the first token that introduces featured or
// secondary artists. Applied left-to-right; everything from the match on
// is discarded.
var featuredSplit = regexp.MustCompile(`(?i)(?:\bfeat\.|\bfeaturing\b|\bft\.|\s&\s|\s\+\s|\band\b|\sx\s|,|\bvs\.?\b|\bwith\b|\sw/\s?)`)

// TitleAccepted is the first gate on a harvested candidate: true when the
// title unambiguously announces an official music video, or carries a
// weaker marker together with an artist-song structure.
func TitleAccepted(title string) bool {
	folded := strings.ToLower(title)
	if strings.Contains(folded, "official music video") {
		return true
	}

	marked := false
	for _, m := range secondaryMarkers {
		if strings.Contains(folded, m) {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}
	return hasArtistSongStructure(title)
}

// hasArtistSongStructure recognizes the title shapes "A - B", "A | B",
// "A : B", "A (Official ...)" and "A [Official ...]" with both sides
// non-empty after trimming.
func hasArtistSongStructure(title string) bool {
	if left, right, ok := splitOutsideBrackets(title); ok {
		return strings.TrimSpace(left) != "" && strings.TrimSpace(right) != ""
	}

	for _, open := range []byte{'(', '['} {
		idx := strings.IndexByte(title, open)
		if idx <= 0 {
			continue
		}
		head := strings.TrimSpace(title[:idx])
		tail := strings.ToLower(strings.TrimSpace(title[idx+1:]))
		if head != "" && strings.HasPrefix(tail, "official") {
			return true
		}
	}
	return false
}

// splitOutsideBrackets splits title at the first of '-', '|' or ':' that
// sits outside parentheses and square brackets.
func splitOutsideBrackets(title string) (left, right string, ok bool) {
	depth := 0
	for i, r := range title {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case '-', '|', ':':
			if depth == 0 {
				return title[:i], title[i+len(string(r)):], true
			}
		}
	}
	return "", "", false
}

// ExtractArtistName derives the canonical artist name from an accepted
// title: the left side of the first separator, quotes stripped, featured
// artists removed. Returns false when nothing usable remains.
func ExtractArtistName(title string) (string, bool) {
	raw := title
	if left, _, ok := splitOutsideBrackets(title); ok {
		raw = left
	} else if idx := strings.IndexAny(title, "(["); idx > 0 {
		raw = title[:idx]
	}

	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	raw = strings.TrimSpace(raw)

	if loc := featuredSplit.FindStringIndex(raw); loc != nil {
		raw = strings.TrimSpace(raw[:loc[0]])
	}
	raw = strings.Trim(raw, `"' `)

	if raw == "" || allPunctuation(raw) {
		return "", false
	}
	if nameBlocklist[strings.ToLower(raw)] {
		return "", false
	}
	return raw, true
}

func allPunctuation(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return false
		}
		if r > 127 { // non-ASCII letters count as substance
			return false
		}
	}
	return true
}
