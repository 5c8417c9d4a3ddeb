// Package orchestrator drives discovery sessions: it validates requests,
// wires the harvest-filter-enrich-store pipeline for each session, owns
// the session state machine, and fans progress out to subscribers.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ssharples/music-discovery-system/dedupe"
	"github.com/ssharples/music-discovery-system/enrich"
	"github.com/ssharples/music-discovery-system/extract"
	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/harvest"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
	"github.com/ssharples/music-discovery-system/progress"
	"github.com/ssharples/music-discovery-system/quota"
	"github.com/ssharples/music-discovery-system/score"
	"github.com/ssharples/music-discovery-system/store"
	"github.com/ssharples/music-discovery-system/worker"
)

// Config tunes the orchestrator's session handling.
type Config struct {
	MaxConcurrentSessions int
	OverFetchFactor       int
	EnrichWorkers         int
	PerArtistBudget       time.Duration
	HarvestOptions        harvest.Options
	SearchCost            int // budget units one search consumes
	ProgressLogInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentSessions <= 0 {
		c.MaxConcurrentSessions = 4
	}
	if c.OverFetchFactor <= 0 {
		c.OverFetchFactor = 2
	}
	if c.EnrichWorkers <= 0 {
		c.EnrichWorkers = worker.DefaultSize
	}
	if c.SearchCost <= 0 {
		c.SearchCost = 100
	}
	if c.ProgressLogInterval <= 0 {
		c.ProgressLogInterval = 30 * time.Second
	}
	return c
}

const searchOp = "youtube.search"

// Orchestrator owns every live session in the process.
type Orchestrator struct {
	cfg         Config
	fetcher     fetch.Fetcher
	coordinator *enrich.Coordinator
	store       store.Store

	mu       sync.RWMutex
	sessions map[string]*sessionState
	active   int
}

type sessionState struct {
	mu      sync.Mutex
	session model.Session
	bus     *progress.Bus
	cancel  context.CancelFunc
}

// New wires an Orchestrator over its collaborators.
func New(cfg Config, fetcher fetch.Fetcher, coordinator *enrich.Coordinator, st store.Store) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg.withDefaults(),
		fetcher:     fetcher,
		coordinator: coordinator,
		store:       st,
		sessions:    map[string]*sessionState{},
	}
}

// Start validates the request, allocates a session, and launches its
// pipeline asynchronously. It returns the session id immediately.
func (o *Orchestrator) Start(req model.SessionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.InvalidRequest, "invalid session request", err)
	}
	if err := harvest.ValidateFilters(req.Filters); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.InvalidRequest, "invalid filters", err)
	}
	req = req.WithDefaults()

	o.mu.Lock()
	if o.active >= o.cfg.MaxConcurrentSessions {
		o.mu.Unlock()
		return "", pkgerrors.New(pkgerrors.Busy, "maximum concurrent sessions reached")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sessionID := model.NewSessionID()
	st := &sessionState{
		session: model.Session{
			ID:        sessionID,
			Request:   req,
			State:     model.SessionPending,
			StartedAt: time.Now().UTC(),
			Metadata:  map[string]string{},
		},
		bus:    progress.New(sessionID),
		cancel: cancel,
	}
	o.sessions[st.session.ID] = st
	o.active++
	o.mu.Unlock()

	go o.run(ctx, st)
	return st.session.ID, nil
}

// Cancel signals cancellation for the session. It is idempotent; a
// terminal session absorbs the signal silently.
func (o *Orchestrator) Cancel(sessionID string) error {
	o.mu.RLock()
	st, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return pkgerrors.New(pkgerrors.NotFound, "unknown session "+sessionID)
	}
	st.cancel()
	return nil
}

// Status returns a point-in-time copy of the session's counters and
// state.
func (o *Orchestrator) Status(sessionID string) (model.Snapshot, error) {
	o.mu.RLock()
	st, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return model.Snapshot{}, pkgerrors.New(pkgerrors.NotFound, "unknown session "+sessionID)
	}
	return st.snapshot(), nil
}

// Subscribe attaches a new progress subscriber. Only events published
// after the call are delivered.
func (o *Orchestrator) Subscribe(sessionID string) (*progress.Subscription, error) {
	o.mu.RLock()
	st, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.NotFound, "unknown session "+sessionID)
	}
	return st.bus.Subscribe(), nil
}

func (st *sessionState) snapshot() model.Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := model.Snapshot{
		ID:        st.session.ID,
		State:     st.session.State,
		Counters:  st.session.Counters,
		StartedAt: st.session.StartedAt,
		EndedAt:   st.session.EndedAt,
	}
	if st.session.LastError != nil {
		snap.LastError = st.session.LastError.Error()
	}
	return snap
}

// publish fans an event to subscribers and appends it to the store's
// session journal. Journal failures are logged, never fatal.
func (o *Orchestrator) publish(ctx context.Context, st *sessionState, ev model.ProgressEvent) {
	st.bus.Publish(ev)
	if err := o.store.AppendSessionEvent(ctx, st.session.ID, ev); err != nil {
		log.Warn().Str("session_id", st.session.ID).Err(err).Msg("session journal append failed")
	}
}

func (o *Orchestrator) event(st *sessionState, typ model.EventType) model.ProgressEvent {
	return model.NewEvent(st.session.ID, typ, time.Now().UTC())
}

// completion is the per-artist signal the workers send back to the
// driver's dispatch loop.
type completion struct {
	stored bool
	fatal  error
}

// run is the session driver: the single goroutine that owns the state
// machine and sequences the pipeline.
func (o *Orchestrator) run(ctx context.Context, st *sessionState) {
	st.mu.Lock()
	st.session.State = model.SessionRunning
	st.mu.Unlock()

	o.publish(ctx, st, o.event(st, model.EventSessionStarted))
	if err := o.store.RecordSession(context.Background(), st.snapshot()); err != nil {
		log.Warn().Str("session_id", st.session.ID).Err(err).Msg("session record failed")
	}

	err := o.drive(ctx, st)
	o.finish(st, err)
}

// drive runs one pass of the pipeline and returns nil on normal
// completion (including zero results), or the terminal error.
func (o *Orchestrator) drive(ctx context.Context, st *sessionState) error {
	req := st.session.Request
	target := req.TargetCount

	// Session cost budget. Admission is lenient so the first search of
	// the window always runs; see quota.Limiter.Admit.
	var budget *quota.Limiter
	if req.MaxCostUnits > 0 {
		budget = quota.NewLimiter(
			quota.WithDailyBudget(req.MaxCostUnits),
			quota.WithCost(searchOp, o.cfg.SearchCost),
		)
	}
	budgetExhausted := func() bool {
		return budget != nil && budget.Exhausted(searchOp)
	}

	if budget != nil && !budget.Admit(searchOp, 1) {
		st.mu.Lock()
		st.session.Counters.BudgetExhausted = true
		st.mu.Unlock()
		return nil
	}

	harvester := harvest.New(o.fetcher, o.cfg.HarvestOptions)
	harvestCtx, stopHarvest := context.WithCancel(ctx)
	defer stopHarvest()

	candidates, err := harvester.Harvest(harvestCtx, req.Query, req.Filters, target*o.cfg.OverFetchFactor)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.Fatal, "harvest failed to start", err)
	}

	deduper := dedupe.New(o.store)
	tasks := make(chan worker.Task, target)
	completions := make(chan completion, target*o.cfg.OverFetchFactor+1)

	pool := worker.NewPool(o.coordinator, o.cfg.EnrichWorkers, o.cfg.PerArtistBudget)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx, tasks, func(ctx context.Context, task worker.Task, res enrich.Result) {
			completions <- o.completeArtist(ctx, st, task, res)
		})
	}()

	progressTick := time.NewTicker(o.cfg.ProgressLogInterval)
	defer progressTick.Stop()

	var pending []worker.Task
	inflight := 0
	stored := 0
	harvestDone := false
	var terminalErr error

	dispatch := func() {
		for len(pending) > 0 && inflight+stored < target && terminalErr == nil {
			task := pending[0]
			pending = pending[1:]
			tasks <- task
			inflight++
		}
		if stored >= target && len(pending) > 0 {
			for _, task := range pending {
				o.rejectArtist(ctx, st, task, "session target reached")
			}
			pending = nil
			stopHarvest()
		}
	}

	for {
		if harvestDone && inflight == 0 && len(pending) == 0 {
			break
		}
		if terminalErr != nil && inflight == 0 {
			break
		}

		select {
		case cand, ok := <-candidates:
			if !ok {
				candidates = nil
				harvestDone = true
				continue
			}
			if task, accepted := o.acceptCandidate(ctx, st, deduper, cand); accepted {
				pending = append(pending, task)
				dispatch()
			}
			if budgetExhausted() && stored+inflight >= target {
				stopHarvest()
			}

		case comp := <-completions:
			inflight--
			if comp.fatal != nil && terminalErr == nil {
				terminalErr = comp.fatal
				stopHarvest()
			}
			if comp.stored {
				stored++
			}
			dispatch()

		case <-progressTick.C:
			o.logProgress(st)

		case <-ctx.Done():
			close(tasks)
			o.drainCompletions(completions, poolDone)
			return pkgerrors.New(pkgerrors.Cancelled, "session cancelled")
		}

		if harvestDone && len(pending) > 0 && stored+inflight < target {
			dispatch()
		}
	}

	close(tasks)
	o.drainCompletions(completions, poolDone)

	st.mu.Lock()
	st.session.Counters.BudgetExhausted = st.session.Counters.BudgetExhausted || budgetExhausted()
	st.mu.Unlock()

	return terminalErr
}

// drainCompletions keeps the completion channel flowing until the worker
// pool has fully wound down.
func (o *Orchestrator) drainCompletions(completions <-chan completion, poolDone <-chan struct{}) {
	for {
		select {
		case <-completions:
		case <-poolDone:
			return
		}
	}
}

// acceptCandidate runs the inline filter-extract-dedup stage for one
// harvested candidate.
func (o *Orchestrator) acceptCandidate(ctx context.Context, st *sessionState, deduper *dedupe.Deduplicator, cand model.CandidateVideo) (worker.Task, bool) {
	st.mu.Lock()
	st.session.Counters.VideosSeen++
	st.mu.Unlock()

	found := o.event(st, model.EventCandidateFound)
	found.VideoID = cand.VideoID
	o.publish(ctx, st, found)

	reject := func(reason string, name string) {
		ev := o.event(st, model.EventArtistRejected)
		ev.VideoID = cand.VideoID
		ev.ArtistName = name
		ev.RejectReason = reason
		o.publish(ctx, st, ev)
	}

	if !extract.TitleAccepted(cand.Title) {
		reject("title is not an official music video", "")
		return worker.Task{}, false
	}

	name, ok := extract.ExtractArtistName(cand.Title)
	if !ok {
		reject("no artist name extractable from title", "")
		return worker.Task{}, false
	}

	profile := model.NewArtistProfile(name, cand.ChannelID, time.Now().UTC())
	links := extract.ExtractSocialLinks(cand.DescriptionSnippet)
	profile.Links.Merge(links)
	if h := extract.HandleFromURL(model.PlatformInstagram, links[model.PlatformInstagram]); h != "" {
		profile.Identifiers.InstagramHandle = h
	}
	if h := extract.HandleFromURL(model.PlatformTikTok, links[model.PlatformTikTok]); h != "" {
		profile.Identifiers.TikTokHandle = h
	}
	if id := extract.HandleFromURL(model.PlatformSpotify, links[model.PlatformSpotify]); id != "" {
		profile.Identifiers.SpotifyID = id
	}

	verdict := deduper.CheckAndRegister(ctx, profile)
	if !verdict.Fresh {
		reject("duplicate artist", name)
		return worker.Task{}, false
	}

	st.mu.Lock()
	st.session.Counters.VideosAccepted++
	st.mu.Unlock()

	accepted := o.event(st, model.EventArtistAccepted)
	accepted.VideoID = cand.VideoID
	accepted.ArtistName = name
	o.publish(ctx, st, accepted)

	return worker.Task{Video: cand, Profile: profile}, true
}

// completeArtist runs the post-enrichment tail for one artist: freeze,
// score, store, events. Runs on a worker goroutine.
func (o *Orchestrator) completeArtist(ctx context.Context, st *sessionState, task worker.Task, res enrich.Result) completion {
	if ctx.Err() != nil {
		// Cancelled mid-enrichment: partial results are discarded.
		return completion{}
	}

	st.mu.Lock()
	st.session.Counters.ArtistsEnriched++
	st.mu.Unlock()

	enrichedEv := o.event(st, model.EventArtistEnriched)
	enrichedEv.ArtistName = res.Profile.Name
	o.publish(ctx, st, enrichedEv)

	frozen := res.Profile.Clone()
	frozen.EnrichmentScore = score.Score(frozen)
	frozen.Status = model.StatusStored

	if ctx.Err() != nil {
		return completion{}
	}
	rec, err := o.store.UpsertArtist(ctx, frozen)
	if err != nil {
		return completion{fatal: pkgerrors.Wrap(pkgerrors.Fatal, "store upsert failed", err)}
	}

	st.mu.Lock()
	st.session.Counters.ArtistsStored++
	st.mu.Unlock()

	storedEv := o.event(st, model.EventArtistStored)
	storedEv.ArtistName = rec.Profile.Name
	o.publish(ctx, st, storedEv)
	return completion{stored: true}
}

func (o *Orchestrator) rejectArtist(ctx context.Context, st *sessionState, task worker.Task, reason string) {
	ev := o.event(st, model.EventArtistRejected)
	ev.VideoID = task.Video.VideoID
	ev.ArtistName = task.Profile.Name
	ev.RejectReason = reason
	o.publish(ctx, st, ev)
}

// finish moves the session into its terminal state, emits the terminal
// event, flushes the bus, and releases the concurrency slot.
func (o *Orchestrator) finish(st *sessionState, err error) {
	now := time.Now().UTC()

	st.mu.Lock()
	st.session.EndedAt = now
	st.session.LastError = err
	switch {
	case err == nil:
		st.session.State = model.SessionCompleted
	case pkgerrors.Is(err, pkgerrors.Cancelled):
		st.session.State = model.SessionCancelled
	default:
		st.session.State = model.SessionFailed
	}
	summary := model.SessionSummary{
		SessionID:       st.session.ID,
		State:           st.session.State,
		Counters:        st.session.Counters,
		Duration:        now.Sub(st.session.StartedAt),
		BudgetExhausted: st.session.Counters.BudgetExhausted,
	}
	if err != nil {
		summary.ErrorKind = pkgerrors.KindOf(err).String()
		summary.ErrorMessage = err.Error()
	}
	state := st.session.State
	st.mu.Unlock()

	typ := model.EventSessionCompleted
	if state != model.SessionCompleted {
		typ = model.EventSessionFailed
	}
	ev := o.event(st, typ)
	ev.Summary = &summary
	if err != nil {
		ev.Message = err.Error()
	}
	o.publish(context.Background(), st, ev)
	st.bus.Close()

	if recErr := o.store.RecordSession(context.Background(), st.snapshot()); recErr != nil {
		log.Warn().Str("session_id", st.session.ID).Err(recErr).Msg("final session record failed")
	}

	o.mu.Lock()
	o.active--
	o.mu.Unlock()

	o.logProgress(st)
}

// logProgress writes one structured progress line for operators.
func (o *Orchestrator) logProgress(st *sessionState) {
	snap := st.snapshot()
	log.Info().
		Str("session_id", snap.ID).
		Str("state", string(snap.State)).
		Int("videos_seen", snap.Counters.VideosSeen).
		Int("videos_accepted", snap.Counters.VideosAccepted).
		Int("artists_enriched", snap.Counters.ArtistsEnriched).
		Int("artists_stored", snap.Counters.ArtistsStored).
		Msg("session progress")
}
