// Package harvest converts a search surface into a lazy, finite stream of
// candidate videos by scrolling one browser session until the target is
// met, the page stops yielding new results, or a hard ceiling is hit.
package harvest

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
)

// Options tunes one Harvester instance.
type Options struct {
	Host            string        // search surface host
	Ceiling         int           // hard cap on candidates per harvest
	NoProgressLimit int           // consecutive empty scrolls before giving up
	Settle          time.Duration // per-scroll settle delay
	Composer        URLComposer
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = "www.youtube.com"
	}
	if o.Ceiling == 0 {
		o.Ceiling = 1000
	}
	if o.NoProgressLimit == 0 {
		o.NoProgressLimit = 3
	}
	if o.Settle == 0 {
		o.Settle = 500 * time.Millisecond
	}
	if o.Composer == nil {
		o.Composer = SPTokenComposer{}
	}
	return o
}

// Harvester owns one browser session per Harvest call, reusing it across
// every scroll step and releasing it when the stream terminates.
type Harvester struct {
	fetcher fetch.Fetcher
	opts    Options
}

// New constructs a Harvester over the given Fetcher.
func New(fetcher fetch.Fetcher, opts Options) *Harvester {
	return &Harvester{fetcher: fetcher, opts: opts.withDefaults()}
}

// navigateTimeout bounds the initial page load of one harvest.
const navigateTimeout = 15 * time.Second

// Harvest opens the search page and returns a single-consumer channel of
// candidates in DOM order, deduplicated by video id. The channel is
// unbuffered: production is demand-driven. It closes when maxCandidates
// have been sent, the page stops yielding, the ceiling is hit, or ctx is
// cancelled. maxCandidates <= 0 means "up to the ceiling".
func (h *Harvester) Harvest(ctx context.Context, query string, filters map[string]string, maxCandidates int) (<-chan model.CandidateVideo, error) {
	searchURL, err := h.opts.Composer.Compose(h.opts.Host, query, filters)
	if err != nil {
		return nil, err
	}

	limit := h.opts.Ceiling
	if maxCandidates > 0 && maxCandidates < limit {
		limit = maxCandidates
	}

	sess, err := h.fetcher.OpenSession(ctx, fetch.RenderOptions{JavaScriptEnabled: true})
	if err != nil {
		return nil, err
	}

	out := make(chan model.CandidateVideo)
	go h.run(ctx, sess, searchURL, limit, out)
	return out, nil
}

func (h *Harvester) run(ctx context.Context, sess fetch.Session, searchURL string, limit int, out chan<- model.CandidateVideo) {
	defer close(out)
	defer h.fetcher.CloseSession(sess)

	seen := make(map[string]bool)
	emitted := 0

	emit := func(html string) bool {
		for _, cand := range ParseCandidates(html) {
			if seen[cand.VideoID] {
				continue
			}
			seen[cand.VideoID] = true
			select {
			case out <- cand:
				emitted++
			case <-ctx.Done():
				return false
			}
			if emitted >= limit {
				return false
			}
		}
		return true
	}

	html, err := sess.Navigate(ctx, searchURL, time.Now().Add(navigateTimeout))
	if err != nil {
		log.Warn().Str("url", searchURL).Err(err).Msg("harvest navigation failed")
		return
	}
	if !emit(html) {
		return
	}

	noProgress := 0
	scrollErrors := 0
	for noProgress < h.opts.NoProgressLimit {
		if ctx.Err() != nil {
			return
		}

		html, err := sess.Scroll(ctx, h.opts.Settle)
		if err != nil {
			scrollErrors++
			noProgress++
			log.Debug().Err(err).Int("consecutive_errors", scrollErrors).Msg("scroll step failed")
			if scrollErrors >= 2 {
				return
			}
			continue
		}
		scrollErrors = 0

		before := emitted
		if !emit(html) {
			return
		}
		if emitted > before {
			noProgress = 0
		} else {
			noProgress++
		}
	}
}

// ParseCandidates scans a rendered search page for video renderers and
// extracts one candidate per unique watchable link, in DOM order.
func ParseCandidates(html string) []model.CandidateVideo {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var candidates []model.CandidateVideo
	seen := make(map[string]bool)

	renderers := doc.Find("ytd-video-renderer, div.video-renderer, [data-video-renderer]")
	if renderers.Length() > 0 {
		renderers.Each(func(_ int, s *goquery.Selection) {
			if cand, ok := candidateFromRenderer(s); ok && !seen[cand.VideoID] {
				seen[cand.VideoID] = true
				candidates = append(candidates, cand)
			}
		})
		return candidates
	}

	// No renderer containers: fall back to a bare link scan.
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id := model.ExtractVideoID(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(a.Text())
		}
		candidates = append(candidates, model.CandidateVideo{
			VideoID: id,
			URL:     absoluteWatchURL(href, id),
			Title:   title,
		})
	})
	return candidates
}

func candidateFromRenderer(s *goquery.Selection) (model.CandidateVideo, bool) {
	var cand model.CandidateVideo

	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if id := model.ExtractVideoID(href); id != "" {
			cand.VideoID = id
			cand.URL = absoluteWatchURL(href, id)
			cand.Title = strings.TrimSpace(a.AttrOr("title", ""))
			if cand.Title == "" {
				cand.Title = strings.TrimSpace(a.Text())
			}
			return false
		}
		return true
	})
	if cand.VideoID == "" {
		return cand, false
	}

	if t := strings.TrimSpace(s.Find("#video-title, .video-title").First().Text()); t != "" {
		cand.Title = t
	}

	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		switch {
		case strings.Contains(href, "/channel/"):
			cand.ChannelURL = href
			cand.ChannelID = channelIDFromURL(href)
			return false
		case strings.Contains(href, "/@"):
			cand.ChannelURL = href
			return false
		}
		return true
	})

	cand.DescriptionSnippet = strings.TrimSpace(
		s.Find(".metadata-snippet-text, .description-snippet, [data-snippet]").First().Text())
	cand.UploadHint = strings.TrimSpace(s.Find("[data-upload-hint]").First().Text())

	return cand, true
}

func channelIDFromURL(href string) string {
	idx := strings.Index(href, "/channel/")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("/channel/"):]
	if cut := strings.IndexAny(id, "/?#"); cut >= 0 {
		id = id[:cut]
	}
	return id
}

func absoluteWatchURL(href, id string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return "https://www.youtube.com/watch?v=" + id
}
