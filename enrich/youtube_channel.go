package enrich

import (
	"context"
	"regexp"
	"time"

	"github.com/ssharples/music-discovery-system/common"
	"github.com/ssharples/music-discovery-system/extract"
	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

const (
	youtubeChannelBase    = "https://www.youtube.com/channel/"
	youtubeChannelTimeout = 15 * time.Second
	youtubeChannelOp      = "youtube.channel"
)

var (
	ytSubscribersPattern = regexp.MustCompile(`([\d.,]+[KMBkmb]?)\s*subscribers`)
	emailPattern         = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// YouTubeChannelSource scrapes the channel About page for the subscriber
// count, social links, and a contact email.
type YouTubeChannelSource struct {
	fetcher PageFetcher
	gate    *Gate
	base    string
}

// NewYouTubeChannelSource builds the source.
func NewYouTubeChannelSource(fetcher PageFetcher, gate *Gate) *YouTubeChannelSource {
	return &YouTubeChannelSource{fetcher: fetcher, gate: gate, base: youtubeChannelBase}
}

func (s *YouTubeChannelSource) Name() string           { return "youtube_channel" }
func (s *YouTubeChannelSource) Timeout() time.Duration { return youtubeChannelTimeout }

// Enrich fetches the About page of the snapshot's channel.
func (s *YouTubeChannelSource) Enrich(ctx context.Context, snapshot *model.ArtistProfile) (Outcome, error) {
	channelID := snapshot.Identifiers.YouTubeChannelID
	if channelID == "" {
		return nil, nil
	}

	v, err := s.gate.Do(youtubeChannelOp, channelID, 1, func() (any, error) {
		html, _, err := s.fetcher.Fetch(ctx, s.base+channelID+"/about", fetch.RenderOptions{})
		if err != nil {
			return nil, err
		}
		return html, nil
	})
	if err != nil {
		return nil, err
	}
	html, ok := v.(string)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.DataQuality, "unexpected cached page shape")
	}
	return parseChannelAbout(channelID, html)
}

func parseChannelAbout(channelID, html string) (Outcome, error) {
	data := YouTubeChannelData{
		ChannelID: channelID,
		Links:     extract.ExtractSocialLinks(html),
	}

	text := visibleText(html)
	if m := ytSubscribersPattern.FindStringSubmatch(text); m != nil {
		subs, err := common.ParseAbbreviatedCount(m[1])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.DataQuality, "subscriber count", err)
		}
		data.Subscribers = subs
	}
	if m := emailPattern.FindString(text); m != "" && common.IsWellFormedEmail(m) {
		data.Email = m
	}
	if data.Bio == "" {
		data.Bio = extractMetaDescription(html)
	}
	return data, nil
}
