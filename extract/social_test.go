package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/model"
)

func TestDecodeRedirect(t *testing.T) {
	envelope := "https://www.youtube.com/redirect?event=video_description&q=https%3A%2F%2Fwww.instagram.com%2Fartistx"
	assert.Equal(t, "https://www.instagram.com/artistx", DecodeRedirect(envelope))

	assert.Equal(t, "", DecodeRedirect("https://www.youtube.com/redirect?event=video_description"))
	assert.Equal(t, "", DecodeRedirect("://bad"))
}

func TestExtractSocialLinksFromRedirectEnvelope(t *testing.T) {
	desc := "follow me https://www.youtube.com/redirect?event=video_description&q=https%3A%2F%2Fwww.instagram.com%2Fartistx"
	links := ExtractSocialLinks(desc)
	require.Contains(t, links, model.PlatformInstagram)
	assert.Equal(t, "https://www.instagram.com/artistx", links[model.PlatformInstagram])
}

// Mining the redirect envelope of a URL finds at least what mining the
// bare URL finds.
func TestRedirectDecodingRoundTrip(t *testing.T) {
	bare := "https://www.tiktok.com/@artistx"
	enveloped := "https://www.youtube.com/redirect?event=channel_description&q=https%3A%2F%2Fwww.tiktok.com%2F%40artistx"

	fromBare := ExtractSocialLinks(bare)
	fromEnvelope := ExtractSocialLinks(enveloped)

	for platform, link := range fromBare {
		assert.Equal(t, link, fromEnvelope[platform])
	}
}

func TestExtractSocialLinksBuckets(t *testing.T) {
	desc := `Spotify: https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb
Instagram: https://www.instagram.com/radiohead
TikTok: https://www.tiktok.com/@radiohead
Twitter https://twitter.com/radiohead
Site https://www.radiohead.com/
Ignore https://www.instagram.com/explore
Ignore https://www.tiktok.com/login`

	links := ExtractSocialLinks(desc)
	assert.Equal(t, "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb", links[model.PlatformSpotify])
	assert.Equal(t, "https://www.instagram.com/radiohead", links[model.PlatformInstagram])
	assert.Equal(t, "https://www.tiktok.com/@radiohead", links[model.PlatformTikTok])
	assert.Equal(t, "https://twitter.com/radiohead", links[model.PlatformTwitter])
	assert.Equal(t, "https://www.radiohead.com/", links[model.PlatformWebsite])
}

func TestExtractSocialLinksRejectsGenericPaths(t *testing.T) {
	links := ExtractSocialLinks("https://www.instagram.com/login https://twitter.com/home https://www.facebook.com/")
	assert.Empty(t, links)
}

func TestExtractSocialLinksKeepsFirstPerPlatform(t *testing.T) {
	links := ExtractSocialLinks("https://www.instagram.com/first https://www.instagram.com/second")
	assert.Equal(t, "https://www.instagram.com/first", links[model.PlatformInstagram])
}

func TestHandleFromURL(t *testing.T) {
	assert.Equal(t, "radiohead", HandleFromURL(model.PlatformInstagram, "https://www.instagram.com/Radiohead"))
	assert.Equal(t, "radiohead", HandleFromURL(model.PlatformTikTok, "https://www.tiktok.com/@radiohead"))
	assert.Equal(t, "4Z8W4fKeB5YxbusRsdQVPb", HandleFromURL(model.PlatformSpotify, "https://open.spotify.com/artist/4Z8W4fKeB5YxbusRsdQVPb"))
	assert.Equal(t, "", HandleFromURL(model.PlatformSpotify, "https://open.spotify.com/playlist/xyz"))
}
