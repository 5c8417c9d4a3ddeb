package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/store"
)

func TestUpsertInsertsThenMerges(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := model.NewArtistProfile("Alice", "UCalice", time.Now())
	p.FollowerCounts[model.FollowerYouTubeSubscribers] = 100
	p.Identifiers.SpotifyID = "spot1" // same identifiers as the update, so the fingerprints match

	first, err := s.UpsertArtist(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ArtistCount())

	update := model.NewArtistProfile("Alice", "UCalice", time.Now())
	update.FollowerCounts[model.FollowerYouTubeSubscribers] = 50 // stale, must not shrink
	update.Identifiers.SpotifyID = "spot1"
	update.Bio = "a bio"

	second, err := s.UpsertArtist(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.ArtistCount())
	assert.Equal(t, int64(100), second.Profile.FollowerCounts[model.FollowerYouTubeSubscribers])
	assert.Equal(t, "spot1", second.Profile.Identifiers.SpotifyID)
	assert.Equal(t, "a bio", second.Profile.Bio)
}

func TestFindArtistByIdentifiers(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := model.NewArtistProfile("The Weeknd", "UCweeknd", time.Now())
	p.Identifiers.InstagramHandle = "theweeknd"
	_, err := s.UpsertArtist(ctx, p)
	require.NoError(t, err)

	byChannel, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByYouTubeChannelID, Value: "UCweeknd"})
	require.NoError(t, err)
	require.NotNil(t, byChannel)

	byHandle, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByInstagramHandle, Value: "theweeknd"})
	require.NoError(t, err)
	require.NotNil(t, byHandle)

	byName, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByNormalizedName, Value: "the weeknd"})
	require.NoError(t, err)
	require.NotNil(t, byName)

	missing, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.BySpotifyID, Value: "absent"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindReturnsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := model.NewArtistProfile("Alice", "UCalice", time.Now())
	_, err := s.UpsertArtist(ctx, p)
	require.NoError(t, err)

	rec, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByYouTubeChannelID, Value: "UCalice"})
	require.NoError(t, err)
	rec.Profile.Name = "Mutated"

	again, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByYouTubeChannelID, Value: "UCalice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Profile.Name)
}

func TestRecordSessionIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	snap := model.Snapshot{ID: "sess_1", State: model.SessionRunning}
	require.NoError(t, s.RecordSession(ctx, snap))

	snap.State = model.SessionCompleted
	require.NoError(t, s.RecordSession(ctx, snap))

	assert.Equal(t, model.SessionCompleted, s.sessions["sess_1"].State)
}

func TestAppendSessionEventJournals(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AppendSessionEvent(ctx, "sess_1", model.ProgressEvent{Type: model.EventSessionStarted}))
	require.NoError(t, s.AppendSessionEvent(ctx, "sess_1", model.ProgressEvent{Type: model.EventSessionCompleted}))

	events := s.SessionEvents("sess_1")
	require.Len(t, events, 2)
	assert.Equal(t, model.EventSessionStarted, events[0].Type)
	assert.Equal(t, model.EventSessionCompleted, events[1].Type)
}
