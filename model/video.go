package model

import "regexp"

// videoIDPattern matches the three URL shapes the harvester and extractor
// both need to recognize: watch?v=, youtu.be/, and /shorts/.
var videoIDPattern = regexp.MustCompile(`(?:watch\?v=|youtu\.be/|/shorts/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID pulls the 11-character opaque video token out of a YouTube
// URL. Returns "" if none of the three shapes
// match.
func ExtractVideoID(url string) string {
	m := videoIDPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// CandidateVideo is a search-result item extracted from a harvested search
// page, before any semantic filtering has run.
type CandidateVideo struct {
	VideoID            string
	URL                string
	Title              string
	ChannelID          string
	ChannelURL         string
	DescriptionSnippet string
	ViewCount          int64 // 0 means unknown
	UploadHint         string
}
