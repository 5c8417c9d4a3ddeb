// Package store defines the persistence port the discovery pipeline
// writes through. The core only ever sees this interface; concrete
// adapters live in the memstore and sqlstore subpackages.
package store

import (
	"context"
	"time"

	"github.com/ssharples/music-discovery-system/model"
)

// IdentifierKind selects which strong identifier a lookup runs against.
type IdentifierKind string

const (
	ByYouTubeChannelID IdentifierKind = "youtube_channel_id"
	BySpotifyID        IdentifierKind = "spotify_id"
	ByInstagramHandle  IdentifierKind = "instagram_handle"
	ByTikTokHandle     IdentifierKind = "tiktok_handle"
	ByNormalizedName   IdentifierKind = "normalized_name"
)

// Identifier is one lookup key for FindArtistBy.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// ArtistRecord is a stored artist row.
type ArtistRecord struct {
	ID          string
	Fingerprint string
	Profile     model.ArtistProfile
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence port. UpsertArtist is atomic insert-or-merge
// by fingerprint; implementations apply the same merge rules the
// enrichment coordinator uses.
type Store interface {
	// FindArtistBy returns the matching record, or nil when none exists.
	FindArtistBy(ctx context.Context, id Identifier) (*ArtistRecord, error)

	// UpsertArtist inserts profile, or merges it into the record sharing
	// its fingerprint.
	UpsertArtist(ctx context.Context, profile *model.ArtistProfile) (*ArtistRecord, error)

	// RecordSession persists a session snapshot, idempotently by session
	// id.
	RecordSession(ctx context.Context, snap model.Snapshot) error

	// AppendSessionEvent appends one event to the session's journal.
	AppendSessionEvent(ctx context.Context, sessionID string, ev model.ProgressEvent) error
}

// IdentifiersOf lists the strong identifiers of a profile in lookup
// priority order, ending with the normalized-name fallback.
func IdentifiersOf(p *model.ArtistProfile) []Identifier {
	var ids []Identifier
	if p.Identifiers.YouTubeChannelID != "" {
		ids = append(ids, Identifier{Kind: ByYouTubeChannelID, Value: p.Identifiers.YouTubeChannelID})
	}
	if p.Identifiers.SpotifyID != "" {
		ids = append(ids, Identifier{Kind: BySpotifyID, Value: p.Identifiers.SpotifyID})
	}
	if p.Identifiers.InstagramHandle != "" {
		ids = append(ids, Identifier{Kind: ByInstagramHandle, Value: p.Identifiers.InstagramHandle})
	}
	if p.Identifiers.TikTokHandle != "" {
		ids = append(ids, Identifier{Kind: ByTikTokHandle, Value: p.Identifiers.TikTokHandle})
	}
	ids = append(ids, Identifier{Kind: ByNormalizedName, Value: model.NormalizeName(p.Name)})
	return ids
}
