package model

import "time"

// EventType names one of the tagged ProgressEvent variants.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventPhaseProgress    EventType = "phase_progress"
	EventCandidateFound   EventType = "candidate_found"
	EventArtistAccepted   EventType = "artist_accepted"
	EventArtistRejected   EventType = "artist_rejected"
	EventArtistEnriched   EventType = "artist_enriched"
	EventArtistStored     EventType = "artist_stored"
	EventSessionCompleted EventType = "session_completed"
	EventSessionFailed    EventType = "session_failed"
	EventLagged           EventType = "lagged"
)

// ProgressEvent is the single concrete type carrying every tagged
// variant; Type discriminates which of the optional fields are
// meaningful.
type ProgressEvent struct {
	Type      EventType
	SessionID string
	Timestamp time.Time

	Phase   string // PhaseProgress
	Message string // PhaseProgress, ArtistRejected, SessionFailed

	VideoID    string // CandidateFound, ArtistAccepted, ArtistRejected
	ArtistName string // ArtistAccepted, ArtistRejected, ArtistEnriched, ArtistStored

	RejectReason string // ArtistRejected

	Summary *SessionSummary // SessionCompleted, SessionFailed

	LaggedCount int // Lagged
}

// NewEvent stamps a ProgressEvent with the session id and current time.
func NewEvent(sessionID string, typ EventType, now time.Time) ProgressEvent {
	return ProgressEvent{Type: typ, SessionID: sessionID, Timestamp: now}
}
