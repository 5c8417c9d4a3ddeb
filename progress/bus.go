// Package progress implements the per-session ProgressBus: a bounded
// multi-consumer fan-out of model.ProgressEvent with a drop-the-slowest
// back-pressure policy.
package progress

import (
	"sync"
	"time"

	"github.com/ssharples/music-discovery-system/model"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Bus fans events out to any number of subscribers without ever blocking
// the publisher. It is created per session and closed when the session
// ends.
type Bus struct {
	sessionID  string
	bufferSize int

	mu     sync.Mutex
	subs   map[int]chan model.ProgressEvent
	nextID int
	closed bool
}

// New constructs a Bus for the given session.
func New(sessionID string) *Bus {
	return &Bus{sessionID: sessionID, bufferSize: DefaultBufferSize, subs: map[int]chan model.ProgressEvent{}}
}

// Subscription is a live handle a caller reads events from until it is
// closed or the bus terminates.
type Subscription struct {
	ch  <-chan model.ProgressEvent
	bus *Bus
	id  int
}

// Events returns the channel to range over.
func (s *Subscription) Events() <-chan model.ProgressEvent { return s.ch }

// Unsubscribe detaches the subscription; safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
}

// Subscribe registers a new consumer. There is no backlog replay:
// the subscriber only receives events published after this call returns.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.ProgressEvent, b.bufferSize)
	id := b.nextID
	b.nextID++
	if b.closed {
		close(ch)
		return &Subscription{ch: ch, bus: b, id: id}
	}
	b.subs[id] = ch
	return &Subscription{ch: ch, bus: b, id: id}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish fans ev out to every live subscriber. A subscriber whose buffer
// is full is dropped (after receiving a final Lagged event on a
// best-effort basis) rather than blocking the publisher.
func (b *Bus) Publish(ev model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropLocked(id, ch)
		}
	}
}

// dropLocked disconnects a slow subscriber, attempting to deliver a final
// Lagged event without blocking. Caller holds b.mu.
func (b *Bus) dropLocked(id int, ch chan model.ProgressEvent) {
	delete(b.subs, id)
	lag := model.ProgressEvent{
		Type:        model.EventLagged,
		SessionID:   b.sessionID,
		Timestamp:   time.Now(),
		LaggedCount: len(ch) + 1,
	}
	// Drain one slot so the lagged notice has room, then best-effort send.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- lag:
	default:
	}
	close(ch)
}

// Close flushes terminal publication to every remaining subscriber
// synchronously and tears the bus down; it is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
