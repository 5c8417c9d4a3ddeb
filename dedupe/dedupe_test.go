package dedupe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/store"
	"github.com/ssharples/music-discovery-system/store/memstore"
)

func TestFreshProfilesHaveDistinctFingerprints(t *testing.T) {
	d := New(memstore.New())
	ctx := context.Background()

	profiles := []*model.ArtistProfile{
		model.NewArtistProfile("Alice", "UCalice", time.Now()),
		model.NewArtistProfile("Bob", "UCbob", time.Now()),
		model.NewArtistProfile("Alice", "UCalice", time.Now()), // in-session dup
		model.NewArtistProfile("Carol", "", time.Now()),
		model.NewArtistProfile("carol", "", time.Now()), // same normalized name
	}

	seen := map[string]bool{}
	for _, p := range profiles {
		v := d.CheckAndRegister(ctx, p)
		if v.Fresh {
			fp := p.Fingerprint()
			assert.False(t, seen[fp], "fingerprint %s registered twice", fp)
			seen[fp] = true
		}
	}
	assert.Len(t, seen, 3)
}

func TestCrossSessionDuplicateViaStore(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	stored := model.NewArtistProfile("Drake", "UCdrake", time.Now())
	rec, err := st.UpsertArtist(ctx, stored)
	require.NoError(t, err)

	d := New(st)
	candidate := model.NewArtistProfile("Drake", "UCdrake", time.Now())
	v := d.CheckAndRegister(ctx, candidate)

	assert.False(t, v.Fresh)
	assert.Equal(t, rec.ID, v.StoredID)
}

func TestNameOnlyFallbackRequiresExactNormalizedMatch(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	stored := model.NewArtistProfile("Drake", "", time.Now())
	_, err := st.UpsertArtist(ctx, stored)
	require.NoError(t, err)

	d := New(st)

	exact := model.NewArtistProfile("DRAKE", "", time.Now())
	assert.False(t, d.CheckAndRegister(ctx, exact).Fresh)

	// A name that merely contains the stored one is not a duplicate.
	similar := model.NewArtistProfile("Drake Bell", "", time.Now())
	assert.True(t, d.CheckAndRegister(ctx, similar).Fresh)
}

func TestMissingIdentifiersFallThrough(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	stored := model.NewArtistProfile("Mallrat", "", time.Now())
	stored.Identifiers.InstagramHandle = "mallrat"
	_, err := st.UpsertArtist(ctx, stored)
	require.NoError(t, err)

	d := New(st)

	// No channel id, no spotify id; only the instagram handle matches.
	candidate := model.NewArtistProfile("Someone Else", "", time.Now())
	candidate.Identifiers.InstagramHandle = "mallrat"
	v := d.CheckAndRegister(ctx, candidate)
	assert.False(t, v.Fresh)
}

// A store that fails lookups degrades dedup to session-local only.
type failingStore struct{ store.Store }

func (failingStore) FindArtistBy(context.Context, store.Identifier) (*store.ArtistRecord, error) {
	return nil, fmt.Errorf("store unreachable")
}

func TestStoreErrorsDegradeToSessionDedup(t *testing.T) {
	d := New(failingStore{})
	ctx := context.Background()

	p := model.NewArtistProfile("Alice", "UCalice", time.Now())
	assert.True(t, d.CheckAndRegister(ctx, p).Fresh)

	again := model.NewArtistProfile("Alice", "UCalice", time.Now())
	assert.False(t, d.CheckAndRegister(ctx, again).Fresh)
}
