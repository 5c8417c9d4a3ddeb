package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ssharples/music-discovery-system/model"
)

var (
	// redirectPattern matches the outbound-link envelope YouTube wraps
	// description links in; the real target hides URL-encoded in the q
	// parameter.
	redirectPattern = regexp.MustCompile(`https?://[^\s"'<>]*?/redirect\?[^\s"'<>]+`)

	// bareURLPattern matches plain URLs in free text or HTML.
	bareURLPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+`)
)

// genericPathSegments are first path segments that denote a site section
// rather than a profile; a social URL pointing at one carries no handle.
var genericPathSegments = map[string]bool{
	"": true, "home": true, "explore": true, "login": true,
}

// DecodeRedirect unwraps one redirect-envelope URL, returning the decoded
// q target, or "" when the envelope carries none.
func DecodeRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query().Get("q")
	if q == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(q); err == nil {
		return decoded
	}
	return q
}

// ExtractSocialLinks mines a description or channel-about document for
// profile URLs. Redirect envelopes are decoded first so their targets join
// the candidate pool alongside bare URLs, then each URL is bucketed by
// platform.
func ExtractSocialLinks(text string) model.SocialLinks {
	pool := make([]string, 0, 8)

	for _, envelope := range redirectPattern.FindAllString(text, -1) {
		if target := DecodeRedirect(envelope); target != "" {
			pool = append(pool, target)
		}
	}
	pool = append(pool, bareURLPattern.FindAllString(text, -1)...)

	links := model.SocialLinks{}
	for _, raw := range pool {
		platform, cleaned, ok := classifyURL(raw)
		if !ok {
			continue
		}
		if _, exists := links[platform]; !exists {
			links[platform] = cleaned
		}
	}
	return links
}

// classifyURL buckets one URL into a social platform, rejecting URLs whose
// path names a site section rather than a profile.
func classifyURL(raw string) (model.SocialPlatform, string, bool) {
	raw = strings.TrimRight(raw, ".,;)")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	first := firstPathSegment(u.Path)

	switch {
	case host == "open.spotify.com":
		if !strings.HasPrefix(u.Path, "/artist/") {
			return "", "", false
		}
		return model.PlatformSpotify, raw, true
	case host == "instagram.com":
		if genericPathSegments[strings.ToLower(first)] {
			return "", "", false
		}
		return model.PlatformInstagram, raw, true
	case host == "tiktok.com":
		if first == "" || !strings.HasPrefix(first, "@") {
			return "", "", false
		}
		return model.PlatformTikTok, raw, true
	case host == "twitter.com" || host == "x.com":
		if genericPathSegments[strings.ToLower(first)] {
			return "", "", false
		}
		return model.PlatformTwitter, raw, true
	case host == "facebook.com":
		if genericPathSegments[strings.ToLower(first)] {
			return "", "", false
		}
		return model.PlatformFacebook, raw, true
	case host == "youtube.com" || host == "youtu.be" || host == "music.youtube.com":
		if genericPathSegments[strings.ToLower(first)] || first == "redirect" {
			return "", "", false
		}
		return model.PlatformYouTube, raw, true
	case isAggregatorHost(host):
		return "", "", false
	default:
		if first == "" && u.Path != "" && u.Path != "/" {
			return "", "", false
		}
		return model.PlatformWebsite, raw, true
	}
}

// isAggregatorHost filters infrastructure hosts that appear in channel
// pages but never identify an artist site.
func isAggregatorHost(host string) bool {
	for _, suffix := range []string{
		"googleusercontent.com", "ggpht.com", "gstatic.com",
		"googlevideo.com", "google.com",
	} {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func firstPathSegment(path string) string {
	path = strings.Trim(path, "/")
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx]
	}
	return path
}

// HandleFromURL recovers the bare profile handle from a platform URL:
// the first path segment, with Instagram/Twitter handles lowercased and
// the TikTok "@" prefix stripped.
func HandleFromURL(platform model.SocialPlatform, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := firstPathSegment(u.Path)
	switch platform {
	case model.PlatformTikTok:
		return strings.ToLower(strings.TrimPrefix(seg, "@"))
	case model.PlatformInstagram, model.PlatformTwitter:
		return strings.ToLower(seg)
	case model.PlatformSpotify:
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] == "artist" {
			return parts[1]
		}
		return ""
	default:
		return seg
	}
}
