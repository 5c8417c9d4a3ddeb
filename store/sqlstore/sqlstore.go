// Package sqlstore is the SQLite Store adapter used for local runs when a
// store URL is configured. It keeps one row per artist fingerprint and an
// append-only session journal.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/store"
)

// Store persists artists and sessions in a SQLite database.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	youtube_channel_id TEXT NOT NULL DEFAULT '',
	spotify_id TEXT NOT NULL DEFAULT '',
	instagram_handle TEXT NOT NULL DEFAULT '',
	tiktok_handle TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	genres TEXT NOT NULL DEFAULT '[]',
	links TEXT NOT NULL DEFAULT '{}',
	follower_counts TEXT NOT NULL DEFAULT '{}',
	lyric_themes TEXT NOT NULL DEFAULT '[]',
	enrichment_score REAL NOT NULL DEFAULT 0
		CHECK (enrichment_score >= 0 AND enrichment_score <= 1),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artists_normalized_name ON artists(normalized_name);
CREATE INDEX IF NOT EXISTS idx_artists_youtube ON artists(youtube_channel_id);
CREATE INDEX IF NOT EXISTS idx_artists_spotify ON artists(spotify_id);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	videos_seen INTEGER NOT NULL DEFAULT 0 CHECK (videos_seen >= 0),
	videos_accepted INTEGER NOT NULL DEFAULT 0 CHECK (videos_accepted >= 0),
	artists_enriched INTEGER NOT NULL DEFAULT 0 CHECK (artists_enriched >= 0),
	artists_stored INTEGER NOT NULL DEFAULT 0 CHECK (artists_stored >= 0),
	budget_exhausted INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP,
	ended_at TIMESTAMP,
	last_error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS session_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
`

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

var identifierColumns = map[store.IdentifierKind]string{
	store.ByYouTubeChannelID: "youtube_channel_id",
	store.BySpotifyID:        "spotify_id",
	store.ByInstagramHandle:  "instagram_handle",
	store.ByTikTokHandle:     "tiktok_handle",
	store.ByNormalizedName:   "normalized_name",
}

// FindArtistBy looks an artist up by one identifier column.
func (s *Store) FindArtistBy(ctx context.Context, id store.Identifier) (*store.ArtistRecord, error) {
	col, ok := identifierColumns[id.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown identifier kind %q", id.Kind)
	}
	if id.Value == "" {
		return nil, nil
	}

	query, args, err := artistSelect().
		Where(sq.Eq{col: id.Value}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build artist query: %w", err)
	}

	rec, err := scanArtist(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find artist by %s: %w", col, err)
	}
	return rec, nil
}

// UpsertArtist inserts or merges by fingerprint inside one transaction.
func (s *Store) UpsertArtist(ctx context.Context, profile *model.ArtistProfile) (*store.ArtistRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	fp := profile.Fingerprint()

	query, args, err := artistSelect().Where(sq.Eq{"fingerprint": fp}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fingerprint query: %w", err)
	}

	existing, err := scanArtist(tx.QueryRowContext(ctx, query, args...))
	switch {
	case err == sql.ErrNoRows:
		rec := &store.ArtistRecord{
			ID:          "artist_" + uuid.NewString(),
			Fingerprint: fp,
			Profile:     *profile.Clone(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.insertArtist(ctx, tx, rec); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit insert: %w", err)
		}
		return rec, nil
	case err != nil:
		return nil, fmt.Errorf("load existing artist: %w", err)
	}

	model.MergeProfiles(&existing.Profile, profile)
	existing.UpdatedAt = now
	if err := s.updateArtist(ctx, tx, existing); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}
	return existing, nil
}

// RecordSession writes the snapshot, replacing any previous row for the
// same session id.
func (s *Store) RecordSession(ctx context.Context, snap model.Snapshot) error {
	query, args, err := sq.Replace("sessions").
		Columns("id", "state", "videos_seen", "videos_accepted", "artists_enriched",
			"artists_stored", "budget_exhausted", "started_at", "ended_at", "last_error").
		Values(snap.ID, string(snap.State), snap.Counters.VideosSeen, snap.Counters.VideosAccepted,
			snap.Counters.ArtistsEnriched, snap.Counters.ArtistsStored,
			boolToInt(snap.Counters.BudgetExhausted), snap.StartedAt, snap.EndedAt, snap.LastError).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// AppendSessionEvent appends one row to the journal.
func (s *Store) AppendSessionEvent(ctx context.Context, sessionID string, ev model.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	query, args, err := sq.Insert("session_events").
		Columns("session_id", "event_type", "payload", "created_at").
		Values(sessionID, string(ev.Type), string(payload), time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append session event: %w", err)
	}
	return nil
}

func artistSelect() sq.SelectBuilder {
	return sq.Select("id", "fingerprint", "name", "youtube_channel_id", "spotify_id",
		"instagram_handle", "tiktok_handle", "bio", "location", "avatar_url", "email",
		"genres", "links", "follower_counts", "lyric_themes", "enrichment_score",
		"created_at", "updated_at").
		From("artists")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtist(row rowScanner) (*store.ArtistRecord, error) {
	var (
		rec                                   store.ArtistRecord
		genres, links, followerCounts, themes string
	)
	p := &rec.Profile
	err := row.Scan(&rec.ID, &rec.Fingerprint, &p.Name,
		&p.Identifiers.YouTubeChannelID, &p.Identifiers.SpotifyID,
		&p.Identifiers.InstagramHandle, &p.Identifiers.TikTokHandle,
		&p.Bio, &p.Location, &p.AvatarURL, &p.Email,
		&genres, &links, &followerCounts, &themes, &p.EnrichmentScore,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, col := range []struct {
		blob string
		dst  any
	}{
		{genres, &p.Genres},
		{links, &p.Links},
		{followerCounts, &p.FollowerCounts},
		{themes, &p.LyricThemes},
	} {
		if err := json.Unmarshal([]byte(col.blob), col.dst); err != nil {
			return nil, fmt.Errorf("decode artist column: %w", err)
		}
	}
	return &rec, nil
}

func (s *Store) insertArtist(ctx context.Context, tx *sql.Tx, rec *store.ArtistRecord) error {
	cols, vals, err := artistValues(rec)
	if err != nil {
		return err
	}
	query, args, err := sq.Insert("artists").Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return fmt.Errorf("build artist insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert artist: %w", err)
	}
	return nil
}

func (s *Store) updateArtist(ctx context.Context, tx *sql.Tx, rec *store.ArtistRecord) error {
	cols, vals, err := artistValues(rec)
	if err != nil {
		return err
	}
	update := sq.Update("artists").Where(sq.Eq{"fingerprint": rec.Fingerprint})
	for i, col := range cols {
		if col == "id" || col == "fingerprint" || col == "created_at" {
			continue
		}
		update = update.Set(col, vals[i])
	}
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build artist update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update artist: %w", err)
	}
	return nil
}

func artistValues(rec *store.ArtistRecord) ([]string, []any, error) {
	p := &rec.Profile
	genres, err := json.Marshal(p.Genres)
	if err != nil {
		return nil, nil, fmt.Errorf("encode genres: %w", err)
	}
	links, err := json.Marshal(p.Links)
	if err != nil {
		return nil, nil, fmt.Errorf("encode links: %w", err)
	}
	counts, err := json.Marshal(p.FollowerCounts)
	if err != nil {
		return nil, nil, fmt.Errorf("encode follower counts: %w", err)
	}
	themes, err := json.Marshal(p.LyricThemes)
	if err != nil {
		return nil, nil, fmt.Errorf("encode themes: %w", err)
	}

	cols := []string{"id", "fingerprint", "name", "normalized_name",
		"youtube_channel_id", "spotify_id", "instagram_handle", "tiktok_handle",
		"bio", "location", "avatar_url", "email",
		"genres", "links", "follower_counts", "lyric_themes",
		"enrichment_score", "created_at", "updated_at"}
	vals := []any{rec.ID, rec.Fingerprint, p.Name, model.NormalizeName(p.Name),
		p.Identifiers.YouTubeChannelID, p.Identifiers.SpotifyID,
		p.Identifiers.InstagramHandle, p.Identifiers.TikTokHandle,
		p.Bio, p.Location, p.AvatarURL, p.Email,
		string(genres), string(links), string(counts), string(themes),
		p.EnrichmentScore, rec.CreatedAt, rec.UpdatedAt}
	return cols, vals, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PathFromURL strips the scheme prefix of a configured store URL such as
// "sqlite:///var/data/discovery.db".
func PathFromURL(storeURL string) string {
	for _, prefix := range []string{"sqlite://", "sqlite3://", "file://"} {
		if strings.HasPrefix(storeURL, prefix) {
			return strings.TrimPrefix(storeURL, prefix)
		}
	}
	return storeURL
}
