package model

import (
	"sort"
	"strings"
	"time"
)

// ArtistStatus is a debugging and reporting label; it never drives
// pipeline control flow.
type ArtistStatus string

const (
	StatusDiscovered ArtistStatus = "discovered"
	StatusEnriching  ArtistStatus = "enriching"
	StatusEnriched   ArtistStatus = "enriched"
	StatusStored     ArtistStatus = "stored"
	StatusRejected   ArtistStatus = "rejected"
)

// Recognized follower-count keys.
const (
	FollowerYouTubeSubscribers  = "youtube_subscribers"
	FollowerSpotifyFollowers    = "spotify_followers"
	FollowerSpotifyMonthlyListn = "spotify_monthly_listeners"
	FollowerInstagramFollowers  = "instagram_followers"
	FollowerTikTokFollowers     = "tiktok_followers"
	FollowerTikTokLikes         = "tiktok_likes"
)

// Identifiers bundles the strong per-platform IDs/handles used for
// deduplication and for filling SocialLinks.
type Identifiers struct {
	YouTubeChannelID string
	SpotifyID        string
	InstagramHandle  string
	TikTokHandle     string
}

// ArtistProfile is mutated in place by the EnrichmentCoordinator's merge
// step and frozen before scoring and storage.
type ArtistProfile struct {
	Name            string
	Identifiers     Identifiers
	Links           SocialLinks
	Genres          []string
	Bio             string
	FollowerCounts  map[string]int64
	Location        string
	AvatarURL       string
	Email           string
	LyricThemes     []string
	EnrichmentScore float64

	Status        ArtistStatus
	DiscoveryDate time.Time
	LastUpdated   time.Time
}

// NewArtistProfile constructs a freshly extracted profile with the maps
// initialized, ready for the EnrichmentCoordinator to mutate.
func NewArtistProfile(name string, channelID string, discoveredAt time.Time) *ArtistProfile {
	return &ArtistProfile{
		Name:           name,
		Identifiers:    Identifiers{YouTubeChannelID: channelID},
		Links:          SocialLinks{},
		Genres:         []string{},
		FollowerCounts: map[string]int64{},
		LyricThemes:    []string{},
		Status:         StatusDiscovered,
		DiscoveryDate:  discoveredAt,
		LastUpdated:    discoveredAt,
	}
}

// Clone returns a deep-enough copy for the EnrichmentCoordinator's
// "merge into a fresh copy" rule.
func (p *ArtistProfile) Clone() *ArtistProfile {
	c := *p
	c.Links = p.Links.Clone()
	c.Genres = append([]string(nil), p.Genres...)
	c.LyricThemes = append([]string(nil), p.LyricThemes...)
	c.FollowerCounts = make(map[string]int64, len(p.FollowerCounts))
	for k, v := range p.FollowerCounts {
		c.FollowerCounts[k] = v
	}
	return &c
}

// Fingerprint builds the stable identity string: the lexicographic
// join of available strong identifiers in priority order, falling back to
// the normalized name.
func (p *ArtistProfile) Fingerprint() string {
	var parts []string
	if p.Identifiers.YouTubeChannelID != "" {
		parts = append(parts, "yt:"+p.Identifiers.YouTubeChannelID)
	}
	if p.Identifiers.SpotifyID != "" {
		parts = append(parts, "sp:"+p.Identifiers.SpotifyID)
	}
	if p.Identifiers.InstagramHandle != "" {
		parts = append(parts, "ig:"+p.Identifiers.InstagramHandle)
	}
	if p.Identifiers.TikTokHandle != "" {
		parts = append(parts, "tt:"+p.Identifiers.TikTokHandle)
	}
	if len(parts) == 0 {
		return "name:" + NormalizeName(p.Name)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// NormalizeName applies the Deduplicator's canonical normalization:
// case-fold, strip non-alphanumeric, collapse whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ', r == '\t', r == '\n':
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		default:
			// punctuation: stripped entirely, not treated as a separator
		}
	}
	return strings.TrimSpace(b.String())
}
