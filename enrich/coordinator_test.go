package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

func noSleep(context.Context, time.Duration) error { return nil }

// stubSource returns a scripted sequence of (outcome, error) pairs, one
// per Enrich call.
type stubSource struct {
	name     string
	outcomes []Outcome
	errs     []error
	calls    int
}

func (s *stubSource) Name() string           { return s.name }
func (s *stubSource) Timeout() time.Duration { return time.Second }

func (s *stubSource) Enrich(context.Context, *model.ArtistProfile) (Outcome, error) {
	i := s.calls
	s.calls++
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	return s.outcomes[i], s.errs[i]
}

func TestSourceFailureIsIsolated(t *testing.T) {
	spotify := &stubSource{
		name:     "spotify",
		outcomes: []Outcome{nil},
		errs:     []error{pkgerrors.New(pkgerrors.Blocked, "anti-bot page")},
	}
	instagram := &stubSource{
		name:     "instagram",
		outcomes: []Outcome{InstagramData{Handle: "artistx", Followers: 12345}},
		errs:     []error{nil},
	}

	c := NewCoordinator([]Source{spotify, instagram}, nil).WithSleep(noSleep)
	p := model.NewArtistProfile("Artist X", "UCx", time.Now())
	p.Identifiers.InstagramHandle = "artistx"

	res := c.Enrich(context.Background(), p, time.Time{})

	assert.Equal(t, int64(12345), res.Profile.FollowerCounts[model.FollowerInstagramFollowers])
	assert.Empty(t, res.Profile.Identifiers.SpotifyID)
	assert.NotContains(t, res.Profile.FollowerCounts, model.FollowerSpotifyFollowers)
	require.Contains(t, res.Failures, "spotify")
	assert.Equal(t, pkgerrors.Blocked, pkgerrors.KindOf(res.Failures["spotify"]))
}

func TestTransientFailuresAreRetried(t *testing.T) {
	flaky := &stubSource{
		name:     "spotify",
		outcomes: []Outcome{nil, nil, SpotifyData{ArtistID: "sp1"}},
		errs: []error{
			pkgerrors.New(pkgerrors.Transient, "timeout"),
			pkgerrors.New(pkgerrors.Transient, "reset"),
			nil,
		},
	}

	c := NewCoordinator([]Source{flaky}, nil).WithSleep(noSleep)
	res := c.Enrich(context.Background(), model.NewArtistProfile("A", "", time.Now()), time.Time{})

	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, "sp1", res.Profile.Identifiers.SpotifyID)
	assert.Empty(t, res.Failures)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	gone := &stubSource{
		name:     "instagram",
		outcomes: []Outcome{nil},
		errs:     []error{pkgerrors.New(pkgerrors.NotFound, "no such profile")},
	}

	c := NewCoordinator([]Source{gone}, nil).WithSleep(noSleep)
	c.Enrich(context.Background(), model.NewArtistProfile("A", "", time.Now()), time.Time{})

	assert.Equal(t, 1, gone.calls)
}

func TestRetriesGiveUpAfterTwo(t *testing.T) {
	alwaysDown := &stubSource{
		name:     "tiktok",
		outcomes: []Outcome{nil},
		errs:     []error{pkgerrors.New(pkgerrors.Transient, "down")},
	}

	c := NewCoordinator([]Source{alwaysDown}, nil).WithSleep(noSleep)
	res := c.Enrich(context.Background(), model.NewArtistProfile("A", "", time.Now()), time.Time{})

	assert.Equal(t, 3, alwaysDown.calls) // initial attempt + 2 retries
	assert.Contains(t, res.Failures, "tiktok")
}

func TestSourceThatDoesNotApplyIsNoFailure(t *testing.T) {
	inapplicable := &stubSource{name: "tiktok", outcomes: []Outcome{nil}, errs: []error{nil}}

	c := NewCoordinator([]Source{inapplicable}, nil).WithSleep(noSleep)
	res := c.Enrich(context.Background(), model.NewArtistProfile("A", "", time.Now()), time.Time{})

	assert.Empty(t, res.Failures)
}

func TestInputProfileIsNotMutated(t *testing.T) {
	src := &stubSource{
		name:     "spotify",
		outcomes: []Outcome{SpotifyData{ArtistID: "sp1", Followers: 10}},
		errs:     []error{nil},
	}

	c := NewCoordinator([]Source{src}, nil).WithSleep(noSleep)
	original := model.NewArtistProfile("A", "", time.Now())
	res := c.Enrich(context.Background(), original, time.Time{})

	assert.Empty(t, original.Identifiers.SpotifyID)
	assert.Equal(t, "sp1", res.Profile.Identifiers.SpotifyID)
	assert.Equal(t, model.StatusEnriched, res.Profile.Status)
}

func TestMergeAcrossSourcesKeepsMaxCounts(t *testing.T) {
	a := &stubSource{
		name:     "youtube_channel",
		outcomes: []Outcome{YouTubeChannelData{ChannelID: "UCx", Subscribers: 500}},
		errs:     []error{nil},
	}
	b := &stubSource{
		name:     "youtube_api",
		outcomes: []Outcome{YouTubeChannelData{ChannelID: "UCx", Subscribers: 720}},
		errs:     []error{nil},
	}

	c := NewCoordinator([]Source{a, b}, nil).WithSleep(noSleep)
	p := model.NewArtistProfile("A", "UCx", time.Now())
	res := c.Enrich(context.Background(), p, time.Time{})

	assert.Equal(t, int64(720), res.Profile.FollowerCounts[model.FollowerYouTubeSubscribers])
}
