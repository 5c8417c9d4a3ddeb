// Package enrich fans one artist profile out across per-source enrichment
// workers with failure isolation: no source's failure prevents another
// source's result from being applied.
package enrich

import (
	"github.com/ssharples/music-discovery-system/model"
)

// Outcome is the closed set of per-source enrichment results. Each
// variant knows how to apply itself to a profile under the shared merge
// rules, so the presence of every field is explicit.
type Outcome interface {
	apply(p *model.ArtistProfile)
}

// SpotifyData is the outcome of the Spotify source: API fields plus
// whatever the artist-page scrape recovered.
type SpotifyData struct {
	ArtistID         string
	URL              string
	Genres           []string
	Followers        int64
	MonthlyListeners int64
	AvatarURL        string
	Bio              string
	TopCity          string
	TopTracks        []string
}

func (d SpotifyData) apply(p *model.ArtistProfile) {
	model.FillString(&p.Identifiers.SpotifyID, d.ArtistID)
	if p.Links == nil {
		p.Links = model.SocialLinks{}
	}
	p.Links.Merge(model.SocialLinks{model.PlatformSpotify: d.URL})
	p.Genres = model.UnionCapped(p.Genres, d.Genres, model.MaxGenres)
	model.MergeCount(p.FollowerCounts, model.FollowerSpotifyFollowers, d.Followers)
	model.MergeCount(p.FollowerCounts, model.FollowerSpotifyMonthlyListn, d.MonthlyListeners)
	model.FillString(&p.AvatarURL, d.AvatarURL)
	model.FillString(&p.Bio, d.Bio)
	model.FillString(&p.Location, d.TopCity)
}

// InstagramData is the outcome of the Instagram profile scrape.
type InstagramData struct {
	Handle    string
	Followers int64
	Posts     int64
	BioURL    string
}

func (d InstagramData) apply(p *model.ArtistProfile) {
	model.FillString(&p.Identifiers.InstagramHandle, d.Handle)
	model.MergeCount(p.FollowerCounts, model.FollowerInstagramFollowers, d.Followers)
	if d.BioURL != "" {
		p.Links.Merge(model.SocialLinks{model.PlatformWebsite: d.BioURL})
	}
}

// TikTokData is the outcome of the TikTok profile scrape.
type TikTokData struct {
	Handle    string
	Followers int64
	Likes     int64
}

func (d TikTokData) apply(p *model.ArtistProfile) {
	model.FillString(&p.Identifiers.TikTokHandle, d.Handle)
	model.MergeCount(p.FollowerCounts, model.FollowerTikTokFollowers, d.Followers)
	model.MergeCount(p.FollowerCounts, model.FollowerTikTokLikes, d.Likes)
}

// YouTubeChannelData is the outcome of the channel About page scrape or
// the Data API lookup.
type YouTubeChannelData struct {
	ChannelID   string
	Subscribers int64
	Links       model.SocialLinks
	Email       string
	AvatarURL   string
	Bio         string
}

func (d YouTubeChannelData) apply(p *model.ArtistProfile) {
	model.FillString(&p.Identifiers.YouTubeChannelID, d.ChannelID)
	model.MergeCount(p.FollowerCounts, model.FollowerYouTubeSubscribers, d.Subscribers)
	p.Links.Merge(d.Links)
	model.FillString(&p.Email, d.Email)
	model.FillString(&p.AvatarURL, d.AvatarURL)
	model.FillString(&p.Bio, d.Bio)
}

// LyricsData is the outcome of the lyrics source: merged analysis across
// up to three songs.
type LyricsData struct {
	Themes   []string
	Language string
}

func (d LyricsData) apply(p *model.ArtistProfile) {
	p.LyricThemes = model.UnionCapped(p.LyricThemes, d.Themes, model.MaxLyricThemes)
}
