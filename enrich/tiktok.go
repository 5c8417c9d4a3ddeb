package enrich

import (
	"context"
	"regexp"
	"time"

	"github.com/ssharples/music-discovery-system/common"
	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

const (
	tiktokBase    = "https://www.tiktok.com/@"
	tiktokTimeout = 15 * time.Second
	tiktokOp      = "tiktok.profile"
)

var (
	ttFollowersPattern = regexp.MustCompile(`([\d.,]+[KMBkmb]?)\s*Followers`)
	ttLikesPattern     = regexp.MustCompile(`([\d.,]+[KMBkmb]?)\s*Likes`)
)

// TikTokSource scrapes the public profile page of the artist's TikTok
// handle for follower and total-likes counts.
type TikTokSource struct {
	fetcher PageFetcher
	gate    *Gate
	base    string
}

// NewTikTokSource builds the source.
func NewTikTokSource(fetcher PageFetcher, gate *Gate) *TikTokSource {
	return &TikTokSource{fetcher: fetcher, gate: gate, base: tiktokBase}
}

func (s *TikTokSource) Name() string           { return "tiktok" }
func (s *TikTokSource) Timeout() time.Duration { return tiktokTimeout }

// Enrich fetches the profile page for the snapshot's TikTok handle.
func (s *TikTokSource) Enrich(ctx context.Context, snapshot *model.ArtistProfile) (Outcome, error) {
	handle := snapshot.Identifiers.TikTokHandle
	if handle == "" {
		return nil, nil
	}

	v, err := s.gate.Do(tiktokOp, handle, 1, func() (any, error) {
		html, _, err := s.fetcher.Fetch(ctx, s.base+handle, fetch.RenderOptions{})
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
		return nil, pkgerrors.New(pkgerrors.DataQuality, "unexpected cached profile shape")
	}
	return parseTikTokProfile(handle, html)
}

func parseTikTokProfile(handle, html string) (Outcome, error) {
	text := extractMetaDescription(html) + "\n" + visibleText(html)
	data := TikTokData{Handle: handle}

	if m := ttFollowersPattern.FindStringSubmatch(text); m != nil {
		followers, err := common.ParseAbbreviatedCount(m[1])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.DataQuality, "tiktok follower count", err)
		}
		data.Followers = followers
	}
	if m := ttLikesPattern.FindStringSubmatch(text); m != nil {
		likes, err := common.ParseAbbreviatedCount(m[1])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.DataQuality, "tiktok likes count", err)
		}
		data.Likes = likes
	}

	if data.Followers == 0 && data.Likes == 0 {
		return nil, pkgerrors.New(pkgerrors.DataQuality, "no counts on profile page")
	}
	return data, nil
}
