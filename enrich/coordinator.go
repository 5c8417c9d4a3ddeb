package enrich

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

// PageFetcher is the slice of the strategy fetcher the sources need.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, hints fetch.RenderOptions) (string, fetch.Metadata, error)
}

// Source is one enrichment worker. A source that does not apply to the
// profile (missing handle, missing credentials) returns (nil, nil).
type Source interface {
	Name() string
	Timeout() time.Duration
	Enrich(ctx context.Context, snapshot *model.ArtistProfile) (Outcome, error)
}

// TrackLister is implemented by sources that surface candidate song
// titles for the lyrics pass.
type TrackLister interface {
	Tracks(outcome Outcome) []string
}

// Retry policy for transient and rate-limit failures.
const (
	maxRetries  = 2
	backoffBase = time.Second
)

// Coordinator runs every configured source against a fresh copy of the
// profile and merges the successes. It owns no profile state between
// calls.
type Coordinator struct {
	sources []Source
	lyrics  *LyricsSource // runs second, consuming Spotify track titles

	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	rand *rand.Rand
}

// NewCoordinator wires the configured sources. lyrics may be nil.
func NewCoordinator(sources []Source, lyrics *LyricsSource) *Coordinator {
	return &Coordinator{
		sources: sources,
		lyrics:  lyrics,
		sleep:   sleepCtx,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSleep overrides the backoff sleeper (tests only).
func (c *Coordinator) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Coordinator {
	c.sleep = sleep
	return c
}

// Result carries the enriched profile plus the per-source failures that
// were isolated along the way.
type Result struct {
	Profile  *model.ArtistProfile
	Failures map[string]error
}

// Enrich fans out across the sources, isolating failures, and returns a
// fresh profile with every successful outcome merged in. deadline bounds
// the whole call; the zero deadline means no overall bound beyond ctx.
func (c *Coordinator) Enrich(ctx context.Context, profile *model.ArtistProfile, deadline time.Time) Result {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	enriched := profile.Clone()
	enriched.Status = model.StatusEnriching

	var mu sync.Mutex
	failures := map[string]error{}
	var outcomes []Outcome
	var spotifyOutcome Outcome

	p := pool.New().WithMaxGoroutines(len(c.sources) + 1)
	for _, src := range c.sources {
		src := src
		p.Go(func() {
			outcome, err := c.runSource(ctx, src, profile)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[src.Name()] = err
				return
			}
			if outcome == nil {
				return
			}
			outcomes = append(outcomes, outcome)
			if _, ok := outcome.(SpotifyData); ok {
				spotifyOutcome = outcome
			}
		})
	}
	p.Wait()

	// The lyrics pass needs the Spotify track titles, so it runs after
	// the fan-out. Its failure is isolated like any other source.
	if c.lyrics != nil && spotifyOutcome != nil && ctx.Err() == nil {
		tracks := c.lyrics.Tracks(spotifyOutcome)
		if len(tracks) > 0 {
			outcome, err := c.runLyrics(ctx, profile, tracks)
			if err != nil {
				failures[c.lyrics.Name()] = err
			} else if outcome != nil {
				outcomes = append(outcomes, outcome)
			}
		}
	}

	for _, outcome := range outcomes {
		outcome.apply(enriched)
	}
	enriched.Status = model.StatusEnriched
	enriched.LastUpdated = time.Now().UTC()

	for name, err := range failures {
		log.Debug().Str("artist", profile.Name).Str("source", name).Err(err).
			Msg("enrichment source failed")
	}
	return Result{Profile: enriched, Failures: failures}
}

func (c *Coordinator) runSource(ctx context.Context, src Source, snapshot *model.ArtistProfile) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.Cancelled, "backoff interrupted", err)
			}
		}

		srcCtx, cancel := context.WithTimeout(ctx, src.Timeout())
		outcome, err := src.Enrich(srcCtx, snapshot)
		cancel()

		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !pkgerrors.Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Coordinator) runLyrics(ctx context.Context, snapshot *model.ArtistProfile, tracks []string) (Outcome, error) {
	lyricsCtx, cancel := context.WithTimeout(ctx, c.lyrics.Timeout())
	defer cancel()
	return c.lyrics.EnrichTracks(lyricsCtx, snapshot, tracks)
}

// backoff is exponential with ±25% jitter.
func (c *Coordinator) backoff(attempt int) time.Duration {
	base := backoffBase << (attempt - 1)
	c.mu.Lock()
	jitter := (c.rand.Float64() - 0.5) / 2 // ±0.25
	c.mu.Unlock()
	return time.Duration(float64(base) * (1 + jitter))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
