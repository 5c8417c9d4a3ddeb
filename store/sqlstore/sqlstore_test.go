package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "discovery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := model.NewArtistProfile("Alice", "UCalice", time.Now())
	p.Genres = []string{"pop", "electronic"}
	p.FollowerCounts[model.FollowerSpotifyFollowers] = 1234
	p.Links[model.PlatformInstagram] = "https://www.instagram.com/alice"
	p.EnrichmentScore = 0.55

	rec, err := s.UpsertArtist(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	found, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByYouTubeChannelID, Value: "UCalice"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Alice", found.Profile.Name)
	assert.Equal(t, []string{"pop", "electronic"}, found.Profile.Genres)
	assert.Equal(t, int64(1234), found.Profile.FollowerCounts[model.FollowerSpotifyFollowers])
	assert.Equal(t, "https://www.instagram.com/alice", found.Profile.Links[model.PlatformInstagram])
	assert.InDelta(t, 0.55, found.Profile.EnrichmentScore, 1e-9)
}

func TestUpsertMergesByFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := model.NewArtistProfile("Alice", "UCalice", time.Now())
	p.FollowerCounts[model.FollowerYouTubeSubscribers] = 100
	first, err := s.UpsertArtist(ctx, p)
	require.NoError(t, err)

	again := model.NewArtistProfile("Alice", "UCalice", time.Now())
	again.FollowerCounts[model.FollowerYouTubeSubscribers] = 50
	again.Bio = "late bio"
	second, err := s.UpsertArtist(ctx, again)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), second.Profile.FollowerCounts[model.FollowerYouTubeSubscribers])
	assert.Equal(t, "late bio", second.Profile.Bio)
}

func TestFindByNormalizedName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := model.NewArtistProfile("The Weeknd", "", time.Now())
	_, err := s.UpsertArtist(ctx, p)
	require.NoError(t, err)

	found, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByNormalizedName, Value: "the weeknd"})
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := s.FindArtistBy(ctx, store.Identifier{Kind: store.ByNormalizedName, Value: "someone else"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordSessionReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap := model.Snapshot{ID: "sess_1", State: model.SessionRunning, StartedAt: time.Now()}
	require.NoError(t, s.RecordSession(ctx, snap))

	snap.State = model.SessionCompleted
	snap.Counters.ArtistsStored = 3
	require.NoError(t, s.RecordSession(ctx, snap))

	var state string
	var stored int
	err := s.db.QueryRow("SELECT state, artists_stored FROM sessions WHERE id = ?", "sess_1").
		Scan(&state, &stored)
	require.NoError(t, err)
	assert.Equal(t, "completed", state)
	assert.Equal(t, 3, stored)
}

func TestAppendSessionEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSessionEvent(ctx, "sess_1", model.ProgressEvent{
		Type: model.EventArtistStored, ArtistName: "Alice", Timestamp: time.Now(),
	}))

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM session_events WHERE session_id = ?", "sess_1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPathFromURL(t *testing.T) {
	assert.Equal(t, "/var/data/d.db", PathFromURL("sqlite:///var/data/d.db"))
	assert.Equal(t, "d.db", PathFromURL("d.db"))
}
