// Package score computes the deterministic enrichment score of a frozen
// artist profile.
package score

import (
	"strings"

	"github.com/ssharples/music-discovery-system/common"
	"github.com/ssharples/music-discovery-system/model"
)

// Component weights. They sum to 1; bonuses on top are capped so the
// total never exceeds 1.
const (
	weightYouTubeID   = 0.10
	weightInstagram   = 0.15
	weightSpotifyID   = 0.15
	weightEmail       = 0.20
	weightWebsite     = 0.10
	weightGenres      = 0.10
	weightBio         = 0.10
	weightAvatar      = 0.05
	weightLyricThemes = 0.05

	bonusInstagramFollowers = 0.05
	bonusSpotifyFollowers   = 0.05

	followerBonusThreshold = 1000
	minBioLength           = 50
)

// Score rates how completely a profile was enriched, in [0, 1]. It is a
// pure function of the profile: equal profiles always score equally.
func Score(p *model.ArtistProfile) float64 {
	var s float64

	if p.Identifiers.YouTubeChannelID != "" {
		s += weightYouTubeID
	}
	if p.Identifiers.InstagramHandle != "" {
		s += weightInstagram
	}
	if p.Identifiers.SpotifyID != "" {
		s += weightSpotifyID
	}
	if common.IsWellFormedEmail(p.Email) {
		s += weightEmail
	}
	if common.IsAbsoluteURL(p.Links[model.PlatformWebsite]) {
		s += weightWebsite
	}
	if len(p.Genres) > 0 {
		s += weightGenres
	}
	if len(strings.TrimSpace(p.Bio)) > minBioLength {
		s += weightBio
	}
	if p.AvatarURL != "" {
		s += weightAvatar
	}
	if len(p.LyricThemes) > 0 {
		s += weightLyricThemes
	}

	if p.FollowerCounts[model.FollowerInstagramFollowers] > followerBonusThreshold {
		s += bonusInstagramFollowers
	}
	if p.FollowerCounts[model.FollowerSpotifyFollowers] > followerBonusThreshold {
		s += bonusSpotifyFollowers
	}

	if s > 1 {
		s = 1
	}
	return s
}
