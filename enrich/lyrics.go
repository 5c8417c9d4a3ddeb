package enrich

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/ssharples/music-discovery-system/analyzer"
	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

const (
	lyricsSiteBase     = "https://genius.com/"
	lyricsTimeout      = 30 * time.Second
	lyricsOp           = "lyrics.page"
	lyricsFetchWorkers = 3
)

// LyricsSource fetches lyrics pages for up to three of the artist's songs
// and hands each text to the Analyzer, merging the resulting themes.
type LyricsSource struct {
	fetcher  PageFetcher
	analyzer analyzer.Analyzer
	gate     *Gate
	base     string
}

// NewLyricsSource builds the source; nil analyzer disables it.
func NewLyricsSource(fetcher PageFetcher, a analyzer.Analyzer, gate *Gate) *LyricsSource {
	if a == nil {
		return nil
	}
	return &LyricsSource{fetcher: fetcher, analyzer: a, gate: gate, base: lyricsSiteBase}
}

func (s *LyricsSource) Name() string           { return "lyrics" }
func (s *LyricsSource) Timeout() time.Duration { return lyricsTimeout }

// Tracks narrows an upstream outcome to the candidate song titles.
func (s *LyricsSource) Tracks(outcome Outcome) []string {
	data, ok := outcome.(SpotifyData)
	if !ok {
		return nil
	}
	if len(data.TopTracks) > maxLyricsTracks {
		return data.TopTracks[:maxLyricsTracks]
	}
	return data.TopTracks
}

// EnrichTracks runs the per-song fetch+analyze fan-out for the given
// titles. Individual song failures are logged and skipped; the source
// fails only when no song yields an analysis.
func (s *LyricsSource) EnrichTracks(ctx context.Context, snapshot *model.ArtistProfile, tracks []string) (Outcome, error) {
	if len(tracks) > maxLyricsTracks {
		tracks = tracks[:maxLyricsTracks]
	}

	type result struct {
		analysis model.LyricAnalysis
		ok       bool
	}

	jobs := make(chan string, len(tracks))
	results := make(chan result, len(tracks))

	workers := lyricsFetchWorkers
	if len(tracks) < workers {
		workers = len(tracks)
	}
	for w := 0; w < workers; w++ {
		go func() {
			for title := range jobs {
				analysis, err := s.analyzeOne(ctx, snapshot.Name, title)
				if err != nil {
					log.Debug().Str("artist", snapshot.Name).Str("title", title).Err(err).
						Msg("lyrics lookup failed")
					results <- result{}
					continue
				}
				results <- result{analysis: analysis, ok: true}
			}
		}()
	}
	for _, title := range tracks {
		jobs <- title
	}
	close(jobs)

	data := LyricsData{}
	succeeded := 0
	for range tracks {
		r := <-results
		if !r.ok {
			continue
		}
		succeeded++
		data.Themes = model.UnionCapped(data.Themes, r.analysis.Themes, model.MaxLyricThemes)
		if data.Language == "" {
			data.Language = r.analysis.Language
		}
	}

	if succeeded == 0 {
		return nil, pkgerrors.New(pkgerrors.NotFound, "no lyrics found for any candidate song")
	}
	return data, nil
}

// Enrich satisfies Source for completeness; without track titles the
// lyrics pass does not apply.
func (s *LyricsSource) Enrich(context.Context, *model.ArtistProfile) (Outcome, error) {
	return nil, nil
}

func (s *LyricsSource) analyzeOne(ctx context.Context, artist, title string) (model.LyricAnalysis, error) {
	pageURL := s.base + slugify(artist) + "-" + slugify(title) + "-lyrics"

	v, err := s.gate.Do(lyricsOp, pageURL, 0, func() (any, error) {
		html, _, err := s.fetcher.Fetch(ctx, pageURL, fetch.RenderOptions{})
		if err != nil {
			return nil, err
		}
		return html, nil
	})
	if err != nil {
		return model.LyricAnalysis{}, err
	}
	html, ok := v.(string)
	if !ok {
		return model.LyricAnalysis{}, pkgerrors.New(pkgerrors.DataQuality, "unexpected cached page shape")
	}

	text := strings.TrimSpace(visibleText(html))
	if text == "" {
		return model.LyricAnalysis{}, pkgerrors.New(pkgerrors.DataQuality, "empty lyrics page")
	}
	return s.analyzer.AnalyzeLyrics(ctx, text, "")
}

// slugify renders a name the way lyrics sites key their pages: lowercase
// alphanumerics joined by single dashes, with apostrophes dropped.
func slugify(s string) string {
	var b strings.Builder
	dash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			// "can't" keys as "cant", not "can-t".
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
