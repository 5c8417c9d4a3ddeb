package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/progress"
)

func TestSubscribeReceivesOnlyFutureEvents(t *testing.T) {
	b := progress.New("s1")
	b.Publish(model.ProgressEvent{Type: model.EventSessionStarted})

	sub := b.Subscribe()
	b.Publish(model.ProgressEvent{Type: model.EventCandidateFound, VideoID: "v1"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, model.EventCandidateFound, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestCloseFlushesAndClosesChannel(t *testing.T) {
	b := progress.New("s1")
	sub := b.Subscribe()
	b.Publish(model.ProgressEvent{Type: model.EventSessionCompleted})
	b.Close()

	ev, ok := <-sub.Events()
	require.True(t, ok)
	assert.Equal(t, model.EventSessionCompleted, ev.Type)

	_, ok = <-sub.Events()
	assert.False(t, ok, "channel should be closed after bus Close")
}

func TestSlowSubscriberIsDroppedWithoutBlockingPublisher(t *testing.T) {
	b := progress.New("s1")
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < progress.DefaultBufferSize*2; i++ {
			b.Publish(model.ProgressEvent{Type: model.EventPhaseProgress})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	var sawLagged bool
	for ev := range sub.Events() {
		if ev.Type == model.EventLagged {
			sawLagged = true
		}
	}
	assert.True(t, sawLagged, "expected a terminal Lagged event")
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := progress.New("s1")
	sub := b.Subscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()
}
