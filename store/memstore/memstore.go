// Package memstore is the in-process Store adapter: the zero-config
// default for local runs and the backend the test suite drives.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/store"
)

// Store keeps every record in process memory behind one mutex.
type Store struct {
	mu        sync.RWMutex
	artists   map[string]*store.ArtistRecord // fingerprint -> record
	sessions  map[string]model.Snapshot
	journals  map[string][]model.ProgressEvent
	clockFunc func() time.Time
}

var _ store.Store = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		artists:   map[string]*store.ArtistRecord{},
		sessions:  map[string]model.Snapshot{},
		journals:  map[string][]model.ProgressEvent{},
		clockFunc: time.Now,
	}
}

// WithClock overrides the timestamp source (tests only).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.clockFunc = now
	return s
}

// FindArtistBy scans for a record whose profile carries the identifier.
func (s *Store) FindArtistBy(_ context.Context, id store.Identifier) (*store.ArtistRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.artists {
		if matches(rec, id) {
			out := cloneRecord(rec)
			return &out, nil
		}
	}
	return nil, nil
}

func matches(rec *store.ArtistRecord, id store.Identifier) bool {
	p := rec.Profile
	switch id.Kind {
	case store.ByYouTubeChannelID:
		return p.Identifiers.YouTubeChannelID == id.Value
	case store.BySpotifyID:
		return p.Identifiers.SpotifyID == id.Value
	case store.ByInstagramHandle:
		return p.Identifiers.InstagramHandle == id.Value
	case store.ByTikTokHandle:
		return p.Identifiers.TikTokHandle == id.Value
	case store.ByNormalizedName:
		return model.NormalizeName(p.Name) == id.Value
	default:
		return false
	}
}

// UpsertArtist inserts or merges by fingerprint under one lock, making
// the insert-or-merge atomic with respect to concurrent sessions.
func (s *Store) UpsertArtist(_ context.Context, profile *model.ArtistProfile) (*store.ArtistRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clockFunc()
	fp := profile.Fingerprint()

	rec, ok := s.artists[fp]
	if !ok {
		stored := profile.Clone()
		rec = &store.ArtistRecord{
			ID:          "artist_" + uuid.NewString(),
			Fingerprint: fp,
			Profile:     *stored,
			CreatedAt:   now,
		}
		s.artists[fp] = rec
	} else {
		model.MergeProfiles(&rec.Profile, profile)
	}
	rec.UpdatedAt = now

	out := cloneRecord(rec)
	return &out, nil
}

// RecordSession stores the latest snapshot for the session id.
func (s *Store) RecordSession(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.ID] = snap
	return nil
}

// AppendSessionEvent appends to the session's journal.
func (s *Store) AppendSessionEvent(_ context.Context, sessionID string, ev model.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journals[sessionID] = append(s.journals[sessionID], ev)
	return nil
}

// SessionEvents returns a copy of the journal for inspection.
func (s *Store) SessionEvents(sessionID string) []model.ProgressEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ProgressEvent(nil), s.journals[sessionID]...)
}

// ArtistCount reports how many distinct fingerprints are stored.
func (s *Store) ArtistCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artists)
}

func cloneRecord(rec *store.ArtistRecord) store.ArtistRecord {
	out := *rec
	out.Profile = *rec.Profile.Clone()
	return out
}
