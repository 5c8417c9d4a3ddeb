// Package model holds the shared data types of the discovery pipeline:
// sessions, candidate videos, artist profiles, and progress events.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState is one of the sticky terminal states or the two transient
// states of the session state machine.
type SessionState string

const (
	SessionPending   SessionState = "pending"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionCancelled SessionState = "cancelled"
)

// SessionRequest is the immutable input to a discovery session.
type SessionRequest struct {
	Query        string
	TargetCount  int
	Filters      map[string]string
	MaxCostUnits int // 0 means unbounded
}

// Validate enforces the SessionRequest invariants.
func (r SessionRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	if r.TargetCount < 0 {
		return fmt.Errorf("target_count must be non-negative")
	}
	if r.MaxCostUnits < 0 {
		return fmt.Errorf("max_cost_units must not be negative")
	}
	return nil
}

// WithDefaults returns a copy of r with zero-valued optional fields
// replaced by their documented defaults.
func (r SessionRequest) WithDefaults() SessionRequest {
	out := r
	if out.TargetCount == 0 {
		out.TargetCount = 50
	}
	if out.Filters == nil {
		out.Filters = map[string]string{}
	}
	return out
}

// Counters tracks the running totals of a session.
type Counters struct {
	VideosSeen      int
	VideosAccepted  int
	ArtistsEnriched int
	ArtistsStored   int
	BudgetExhausted bool
}

// Session is the process-lived aggregate the SessionOrchestrator owns
// exclusively for the lifetime of one discovery run.
type Session struct {
	ID        string
	Request   SessionRequest
	State     SessionState
	Counters  Counters
	StartedAt time.Time
	EndedAt   time.Time
	LastError error
	Metadata  map[string]string
}

// NewSessionID mints a process-unique session identifier.
func NewSessionID() string {
	return "sess_" + uuid.NewString()
}

// Snapshot is a point-in-time copy of a Session, safe to hand to callers
// without exposing the orchestrator's internal lock.
type Snapshot struct {
	ID        string
	State     SessionState
	Counters  Counters
	StartedAt time.Time
	EndedAt   time.Time
	LastError string
}

// SessionSummary is carried by the terminal SessionCompleted /
// SessionFailed progress events.
type SessionSummary struct {
	SessionID       string
	State           SessionState
	Counters        Counters
	Duration        time.Duration
	ErrorKind       string
	ErrorMessage    string
	BudgetExhausted bool
}
