// Package dedupe guards the pipeline against processing the same artist
// twice: once within the running session via an in-memory fingerprint
// registry, and across sessions via read-through lookups against the
// store.
package dedupe

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/store"
)

// Verdict is the result of one check-and-register call.
type Verdict struct {
	Fresh    bool
	StoredID string // set when the duplicate lives in the store
}

// fresh is the verdict for a first-seen artist.
var fresh = Verdict{Fresh: true}

// duplicateOf marks a store-level duplicate.
func duplicateOf(storedID string) Verdict {
	return Verdict{StoredID: storedID}
}

// Deduplicator owns the in-session fingerprint registry and consults the
// store for cross-session duplicates. One instance lives per session and
// is discarded with it.
type Deduplicator struct {
	store store.Store

	mu   sync.Mutex
	seen map[string]bool
}

// New constructs a Deduplicator reading through to st.
func New(st store.Store) *Deduplicator {
	return &Deduplicator{store: st, seen: map[string]bool{}}
}

// CheckAndRegister decides whether profile is first-seen. A missing
// identifier never blocks the check; the lookup falls through to the
// next identifier, ending with the exact normalized-name match. Store
// read errors are logged and treated as "no match" so a flaky store
// degrades to weaker dedup instead of failing the artist.
func (d *Deduplicator) CheckAndRegister(ctx context.Context, profile *model.ArtistProfile) Verdict {
	fp := profile.Fingerprint()

	d.mu.Lock()
	if d.seen[fp] {
		d.mu.Unlock()
		return Verdict{}
	}
	d.mu.Unlock()

	for _, id := range store.IdentifiersOf(profile) {
		if id.Value == "" {
			continue
		}
		rec, err := d.store.FindArtistBy(ctx, id)
		if err != nil {
			log.Warn().Str("kind", string(id.Kind)).Err(err).Msg("dedup store lookup failed")
			continue
		}
		if rec != nil {
			d.register(fp)
			return duplicateOf(rec.ID)
		}
	}

	d.register(fp)
	return fresh
}

// SeenInSession reports whether the fingerprint was already registered in
// this session.
func (d *Deduplicator) SeenInSession(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[fp]
}

func (d *Deduplicator) register(fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[fp] = true
}
