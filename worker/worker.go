// Package worker runs the per-session enrichment worker pool: a bounded
// set of goroutines draining accepted artists from the session's work
// queue, enriching each one, and handing the result back to the session
// driver.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/ssharples/music-discovery-system/enrich"
	"github.com/ssharples/music-discovery-system/model"
)

// Task is one unit of enrichment work: the accepted candidate and the
// profile extracted from it.
type Task struct {
	Video   model.CandidateVideo
	Profile *model.ArtistProfile
}

// Handler receives each task's enrichment result on the worker goroutine
// that produced it. Handlers must be safe for concurrent invocation.
type Handler func(ctx context.Context, task Task, res enrich.Result)

// DefaultSize is the per-session worker count.
const DefaultSize = 8

// Pool drains a task channel with bounded concurrency. Each worker
// processes one artist at a time; the fan-out across enrichment sources
// happens inside the coordinator.
type Pool struct {
	coordinator *enrich.Coordinator
	size        int
	perArtist   time.Duration // overall enrichment deadline per artist, 0 for none
}

// NewPool builds a Pool of the given size over coordinator.
func NewPool(coordinator *enrich.Coordinator, size int, perArtist time.Duration) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{coordinator: coordinator, size: size, perArtist: perArtist}
}

// Run consumes tasks until the channel closes or ctx is cancelled,
// invoking handle for every completed enrichment. It returns after every
// in-flight task has finished.
func (p *Pool) Run(ctx context.Context, tasks <-chan Task, handle Handler) {
	workers := pool.New().WithMaxGoroutines(p.size)

	for task := range tasks {
		if ctx.Err() != nil {
			// Cancellation observed: stop picking up queued work. The
			// driver owns terminal events for anything left behind.
			break
		}
		task := task
		workers.Go(func() {
			var deadline time.Time
			if p.perArtist > 0 {
				deadline = time.Now().Add(p.perArtist)
			}

			res := p.coordinator.Enrich(ctx, task.Profile, deadline)
			for name, err := range res.Failures {
				log.Debug().Str("artist", task.Profile.Name).Str("source", name).
					Err(err).Msg("source failed during enrichment")
			}
			handle(ctx, task, res)
		})
	}
	workers.Wait()
}
