package score

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ssharples/music-discovery-system/model"
)

func fullProfile() *model.ArtistProfile {
	p := model.NewArtistProfile("Alice", "UCalice", time.Now())
	p.Identifiers.InstagramHandle = "alice"
	p.Identifiers.SpotifyID = "spotalice"
	p.Email = "booking@alice.example"
	p.Links[model.PlatformWebsite] = "https://alice.example"
	p.Genres = []string{"pop"}
	p.Bio = strings.Repeat("x", 60)
	p.AvatarURL = "https://img.example/alice.jpg"
	p.LyricThemes = []string{"love"}
	p.FollowerCounts[model.FollowerInstagramFollowers] = 5000
	p.FollowerCounts[model.FollowerSpotifyFollowers] = 5000
	return p
}

func TestScoreBounds(t *testing.T) {
	empty := model.NewArtistProfile("", "", time.Time{})
	assert.Equal(t, 0.0, Score(empty))

	// Fully enriched plus both bonuses would exceed 1 without the cap.
	assert.Equal(t, 1.0, Score(fullProfile()))
}

func TestScoreDeterminism(t *testing.T) {
	p := fullProfile()
	assert.Equal(t, Score(p), Score(p))
	assert.Equal(t, Score(p), Score(p.Clone()))
}

func TestScoreComponents(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*model.ArtistProfile)
		want  float64
	}{
		{"youtube id only", func(p *model.ArtistProfile) {
			p.Identifiers.YouTubeChannelID = "UCx"
		}, 0.10},
		{"instagram handle only", func(p *model.ArtistProfile) {
			p.Identifiers.InstagramHandle = "x"
		}, 0.15},
		{"spotify id only", func(p *model.ArtistProfile) {
			p.Identifiers.SpotifyID = "x"
		}, 0.15},
		{"well-formed email", func(p *model.ArtistProfile) {
			p.Email = "a@b.example"
		}, 0.20},
		{"malformed email scores nothing", func(p *model.ArtistProfile) {
			p.Email = "not-an-email"
		}, 0},
		{"absolute website", func(p *model.ArtistProfile) {
			p.Links[model.PlatformWebsite] = "https://a.example"
		}, 0.10},
		{"relative website scores nothing", func(p *model.ArtistProfile) {
			p.Links[model.PlatformWebsite] = "/about"
		}, 0},
		{"genre", func(p *model.ArtistProfile) {
			p.Genres = []string{"pop"}
		}, 0.10},
		{"short bio scores nothing", func(p *model.ArtistProfile) {
			p.Bio = "short"
		}, 0},
		{"long bio", func(p *model.ArtistProfile) {
			p.Bio = strings.Repeat("y", 51)
		}, 0.10},
		{"bio padding does not count", func(p *model.ArtistProfile) {
			p.Bio = "short" + strings.Repeat(" ", 60)
		}, 0},
		{"avatar", func(p *model.ArtistProfile) {
			p.AvatarURL = "https://img.example/a.jpg"
		}, 0.05},
		{"lyric themes", func(p *model.ArtistProfile) {
			p.LyricThemes = []string{"love"}
		}, 0.05},
		{"instagram follower bonus needs >1000", func(p *model.ArtistProfile) {
			p.FollowerCounts[model.FollowerInstagramFollowers] = 1000
		}, 0},
		{"instagram follower bonus", func(p *model.ArtistProfile) {
			p.FollowerCounts[model.FollowerInstagramFollowers] = 1001
		}, 0.05},
		{"spotify follower bonus", func(p *model.ArtistProfile) {
			p.FollowerCounts[model.FollowerSpotifyFollowers] = 2000
		}, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.NewArtistProfile("Artist", "", time.Time{})
			tt.setup(p)
			assert.InDelta(t, tt.want, Score(p), 1e-9)
		})
	}
}
