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
	instagramBase    = "https://www.instagram.com/"
	instagramTimeout = 15 * time.Second
	instagramOp      = "instagram.profile"
)

var (
	// "1.2M Followers, 300 Following, 512 Posts" as packed into the
	// profile meta description.
	igMetaPattern = regexp.MustCompile(`([\d.,]+[KMBkmb]?)\s*Followers?,\s*[\d.,]+[KMBkmb]?\s*Following,\s*([\d.,]+[KMBkmb]?)\s*Posts?`)

	igFollowersPattern = regexp.MustCompile(`([\d.,]+[KMBkmb]?)\s*[Ff]ollowers`)
	igBioURLPattern    = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// InstagramSource scrapes the public profile page of the artist's
// Instagram handle.
type InstagramSource struct {
	fetcher PageFetcher
	gate    *Gate
	base    string
}

// NewInstagramSource builds the source against the public profile host.
func NewInstagramSource(fetcher PageFetcher, gate *Gate) *InstagramSource {
	return &InstagramSource{fetcher: fetcher, gate: gate, base: instagramBase}
}

func (s *InstagramSource) Name() string           { return "instagram" }
func (s *InstagramSource) Timeout() time.Duration { return instagramTimeout }

// Enrich fetches the profile page for the snapshot's Instagram handle.
// Without a handle the source does not apply.
func (s *InstagramSource) Enrich(ctx context.Context, snapshot *model.ArtistProfile) (Outcome, error) {
	handle := snapshot.Identifiers.InstagramHandle
	if handle == "" {
		return nil, nil
	}

	v, err := s.gate.Do(instagramOp, handle, 1, func() (any, error) {
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
	return parseInstagramProfile(handle, html)
}

func parseInstagramProfile(handle, html string) (Outcome, error) {
	data := InstagramData{Handle: handle}

	meta := extractMetaDescription(html)
	if m := igMetaPattern.FindStringSubmatch(meta); m != nil {
		followers, err := common.ParseAbbreviatedCount(m[1])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.DataQuality, "instagram follower count", err)
		}
		data.Followers = followers
		if posts, err := common.ParseAbbreviatedCount(m[2]); err == nil {
			data.Posts = posts
		}
	} else if m := igFollowersPattern.FindStringSubmatch(visibleText(html)); m != nil {
		followers, err := common.ParseAbbreviatedCount(m[1])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.DataQuality, "instagram follower count", err)
		}
		data.Followers = followers
	}

	if data.Followers == 0 {
		return nil, pkgerrors.New(pkgerrors.DataQuality, "no follower count on profile page")
	}

	// The first external URL in the bio block, if any.
	for _, raw := range igBioURLPattern.FindAllString(meta, -1) {
		if common.IsAbsoluteURL(raw) {
			data.BioURL = raw
			break
		}
	}
	return data, nil
}
