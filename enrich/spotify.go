package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/ssharples/music-discovery-system/common"
	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

const (
	spotifyAPIBase  = "https://api.spotify.com/v1"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyPageBase = "https://open.spotify.com/artist/"
	spotifyTimeout  = 20 * time.Second
	maxLyricsTracks = 3
	spotifySearchOp = "spotify.search"
	spotifyArtistOp = "spotify.artist"
)

var (
	monthlyListenersText = regexp.MustCompile(`([\d,.]+)\s*monthly\s*listeners?`)
	monthlyListenersJSON = regexp.MustCompile(`"monthlyListeners":(\d+)`)
	topCityPattern       = regexp.MustCompile(`"city":"([^"]+)"`)
)

// SpotifySource resolves an artist through the Spotify Web API, then
// scrapes the public artist page for the fields the API does not expose
// (monthly listeners, top city, bio).
type SpotifySource struct {
	httpClient *http.Client
	fetcher    PageFetcher
	gate       *Gate
	limiter    *rate.Limiter
	apiBase    string
	pageBase   string
}

// NewSpotifySource builds the source with an OAuth client-credentials
// HTTP client. Returns nil when the credentials are absent, which
// disables the source.
func NewSpotifySource(ctx context.Context, clientID, clientSecret string, fetcher PageFetcher, gate *Gate) *SpotifySource {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return &SpotifySource{
		httpClient: conf.Client(ctx),
		fetcher:    fetcher,
		gate:       gate,
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		apiBase:    spotifyAPIBase,
		pageBase:   spotifyPageBase,
	}
}

func (s *SpotifySource) Name() string           { return "spotify" }
func (s *SpotifySource) Timeout() time.Duration { return spotifyTimeout }

type spotifyArtist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Genres    []string `json:"genres"`
	Followers struct {
		Total int64 `json:"total"`
	} `json:"followers"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type spotifySearchResponse struct {
	Artists struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
}

type spotifyTopTracksResponse struct {
	Tracks []struct {
		Name string `json:"name"`
	} `json:"tracks"`
}

// Enrich searches for the artist by name, picks the best match, loads its
// top tracks, and augments the result with an artist-page scrape.
func (s *SpotifySource) Enrich(ctx context.Context, snapshot *model.ArtistProfile) (Outcome, error) {
	artist, err := s.searchArtist(ctx, snapshot.Name)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, nil
	}

	data := SpotifyData{
		ArtistID:  artist.ID,
		URL:       artist.ExternalURLs.Spotify,
		Genres:    artist.Genres,
		Followers: artist.Followers.Total,
	}
	if data.URL == "" {
		data.URL = s.pageBase + artist.ID
	}
	if len(artist.Images) > 0 {
		data.AvatarURL = artist.Images[0].URL
	}

	if tracks, err := s.topTracks(ctx, artist.ID); err == nil {
		data.TopTracks = tracks
	}

	// Page scrape failures lose only the scrape-derived fields.
	if s.fetcher != nil {
		s.scrapeArtistPage(ctx, artist.ID, &data)
	}
	return data, nil
}

// Tracks lists up to three candidate song titles for the lyrics pass.
func (s *SpotifySource) Tracks(outcome Outcome) []string {
	data, ok := outcome.(SpotifyData)
	if !ok {
		return nil
	}
	if len(data.TopTracks) > maxLyricsTracks {
		return data.TopTracks[:maxLyricsTracks]
	}
	return data.TopTracks
}

func (s *SpotifySource) searchArtist(ctx context.Context, name string) (*spotifyArtist, error) {
	params := common.CanonicalQuery(map[string]string{"q": name, "type": "artist"})
	v, err := s.gate.Do(spotifySearchOp, params, 1, func() (any, error) {
		var decoded spotifySearchResponse
		searchURL := fmt.Sprintf("%s/search?q=%s&type=artist&limit=5", s.apiBase, url.QueryEscape(name))
		if err := s.getJSON(ctx, searchURL, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}

	decoded, ok := v.(spotifySearchResponse)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.DataQuality, "unexpected cached search shape")
	}
	return pickArtist(decoded.Artists.Items, name), nil
}

// pickArtist prefers an exact normalized-name match; otherwise the first
// result stands in as the best relevance match.
func pickArtist(items []spotifyArtist, name string) *spotifyArtist {
	if len(items) == 0 {
		return nil
	}
	target := model.NormalizeName(name)
	for i := range items {
		if model.NormalizeName(items[i].Name) == target {
			return &items[i]
		}
	}
	return &items[0]
}

func (s *SpotifySource) topTracks(ctx context.Context, artistID string) ([]string, error) {
	params := common.CanonicalQuery(map[string]string{"artist": artistID})
	v, err := s.gate.Do(spotifyArtistOp, params, 1, func() (any, error) {
		var decoded spotifyTopTracksResponse
		tracksURL := fmt.Sprintf("%s/artists/%s/top-tracks?market=US", s.apiBase, artistID)
		if err := s.getJSON(ctx, tracksURL, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}

	decoded, ok := v.(spotifyTopTracksResponse)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.DataQuality, "unexpected cached top-tracks shape")
	}
	names := make([]string, 0, len(decoded.Tracks))
	for _, t := range decoded.Tracks {
		names = append(names, t.Name)
	}
	return names, nil
}

func (s *SpotifySource) scrapeArtistPage(ctx context.Context, artistID string, data *SpotifyData) {
	html, _, err := s.fetcher.Fetch(ctx, s.pageBase+artistID, fetch.RenderOptions{})
	if err != nil {
		return
	}

	if m := monthlyListenersJSON.FindStringSubmatch(html); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			data.MonthlyListeners = n
		}
	} else if m := monthlyListenersText.FindStringSubmatch(html); m != nil {
		if n, err := common.ParseAbbreviatedCount(m[1]); err == nil {
			data.MonthlyListeners = n
		}
	}

	if m := topCityPattern.FindStringSubmatch(html); m != nil {
		data.TopCity = m[1]
	}
	if data.Bio == "" {
		data.Bio = extractMetaDescription(html)
	}
}

func (s *SpotifySource) getJSON(ctx context.Context, rawURL string, dst any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.Cancelled, "spotify rate wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("new spotify request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.Transient, "spotify request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.RateLimited, "spotify rate limited")
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.NotFound, "spotify resource not found")
	case resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.Blocked, "spotify forbidden")
	case resp.StatusCode >= http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.Transient, "spotify error "+resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.New(pkgerrors.DataQuality, "spotify "+resp.Status+": "+string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.DataQuality, "decode spotify response", err)
	}
	return nil
}
