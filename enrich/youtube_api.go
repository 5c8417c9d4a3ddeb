package enrich

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

const youtubeAPIOp = "youtube.videos"

// YouTubeAPISource reads channel statistics through the Data API when an
// API key is configured. It runs alongside the About-page scrape; the
// merge rules reconcile the two (counts keep the larger value).
type YouTubeAPISource struct {
	apiKey  string
	gate    *Gate
	service *ytapi.Service
}

// NewYouTubeAPISource builds the source, or nil when apiKey is empty.
func NewYouTubeAPISource(apiKey string, gate *Gate) *YouTubeAPISource {
	if apiKey == "" {
		return nil
	}
	return &YouTubeAPISource{apiKey: apiKey, gate: gate}
}

func (s *YouTubeAPISource) Name() string           { return "youtube_api" }
func (s *YouTubeAPISource) Timeout() time.Duration { return youtubeChannelTimeout }

func (s *YouTubeAPISource) connect(ctx context.Context) error {
	if s.service != nil {
		return nil
	}
	httpClient := &http.Client{Timeout: youtubeChannelTimeout}
	service, err := ytapi.NewService(ctx, option.WithAPIKey(s.apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.Transient, "create youtube service", err)
	}
	s.service = service
	return nil
}

// Enrich looks the channel up by id and maps its statistics.
func (s *YouTubeAPISource) Enrich(ctx context.Context, snapshot *model.ArtistProfile) (Outcome, error) {
	channelID := snapshot.Identifiers.YouTubeChannelID
	if channelID == "" {
		return nil, nil
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	v, err := s.gate.Do(youtubeAPIOp, channelID, 1, func() (any, error) {
		resp, err := s.service.Channels.
			List([]string{"snippet", "statistics"}).
			Id(channelID).
			MaxResults(1).
			Context(ctx).
			Do()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.Transient, "youtube channels.list", err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp, ok := v.(*ytapi.ChannelListResponse)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.DataQuality, "unexpected cached channel shape")
	}
	if len(resp.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.NotFound, "channel not found: "+channelID)
	}

	item := resp.Items[0]
	data := YouTubeChannelData{ChannelID: channelID, Links: model.SocialLinks{}}
	if item.Statistics != nil {
		data.Subscribers = int64(item.Statistics.SubscriberCount)
	}
	if item.Snippet != nil {
		data.Bio = item.Snippet.Description
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.High != nil {
			data.AvatarURL = item.Snippet.Thumbnails.High.Url
		}
	}
	return data, nil
}
