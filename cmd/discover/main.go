// Command discover runs one discovery session from the terminal and
// prints its progress events as newline-delimited JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ssharples/music-discovery-system/analyzer"
	"github.com/ssharples/music-discovery-system/analyzer/heuristic"
	"github.com/ssharples/music-discovery-system/analyzer/remote"
	"github.com/ssharples/music-discovery-system/config"
	"github.com/ssharples/music-discovery-system/enrich"
	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/harvest"
	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/orchestrator"
	"github.com/ssharples/music-discovery-system/pkgerrors"
	"github.com/ssharples/music-discovery-system/quota"
	"github.com/ssharples/music-discovery-system/store"
	"github.com/ssharples/music-discovery-system/store/memstore"
	"github.com/ssharples/music-discovery-system/store/sqlstore"
)

const (
	exitOK         = 0
	exitValidation = 1
	exitPipeline   = 2
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		query        string
		target       int
		filters      []string
		maxCostUnits int
		storeURL     string
		configPath   string
		concurrency  int
	)

	root := &cobra.Command{
		Use:           "discover",
		Short:         "Discover emerging music artists from recent music videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return exitErr(exitValidation, err)
			}
			if storeURL != "" {
				cfg.StoreURL = storeURL
			}
			if concurrency > 0 {
				cfg.EnrichWorkers = concurrency
			}

			parsedFilters, err := parseFilters(filters)
			if err != nil {
				return exitErr(exitValidation, err)
			}

			return run(cmd.Context(), cfg, model.SessionRequest{
				Query:        query,
				TargetCount:  target,
				Filters:      parsedFilters,
				MaxCostUnits: maxCostUnits,
			})
		},
	}

	root.Flags().StringVar(&query, "query", "", "search query (required)")
	root.Flags().IntVar(&target, "target", 50, "number of artists to discover")
	root.Flags().StringArrayVar(&filters, "filter", nil, "search filter as key=value (repeatable)")
	root.Flags().IntVar(&maxCostUnits, "max-cost-units", 0, "session cost budget (0 = unbounded)")
	root.Flags().StringVar(&storeURL, "store-url", "", "store location (empty = in-memory)")
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().IntVar(&concurrency, "concurrency", 0, "enrichment workers per session")
	_ = root.MarkFlagRequired("query")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		var coded *codedError
		code := exitPipeline
		if errors.As(err, &coded) {
			code = coded.code
		}
		log.Error().Err(err).Msg("discovery failed")
		os.Exit(code)
	}
}

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func exitErr(code int, err error) error { return &codedError{code: code, err: err} }

func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" || value == "" {
			return nil, fmt.Errorf("filter %q is not key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}

func run(ctx context.Context, cfg config.Config, req model.SessionRequest) error {
	st, cleanup, err := openStore(cfg)
	if err != nil {
		return exitErr(exitPipeline, err)
	}
	defer cleanup()

	fetcher := fetch.NewHTTPFetcher("")
	headlessSem, plainSem := fetch.NewSemaphores()
	strategies := fetch.NewStrategyFetcher(fetcher, headlessSem, plainSem)

	gate := &enrich.Gate{
		Cache: quota.NewCache(quota.DefaultTTLs()),
	}
	if cfg.DailyCostBudget > 0 {
		gate.Limiter = quota.NewLimiter(
			quota.WithDailyBudget(cfg.DailyCostBudget),
			quota.WithCost("youtube.search", 100),
			quota.WithCost("youtube.videos", 1),
			quota.WithCost("spotify.search", 1),
		)
	}

	var lyricAnalyzer analyzer.Analyzer = heuristic.New()
	if cfg.AnalyzerAPIKey != "" {
		lyricAnalyzer = remote.New("", cfg.AnalyzerAPIKey)
	}

	var sources []enrich.Source
	if spotify := enrich.NewSpotifySource(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret, strategies, gate); spotify != nil {
		sources = append(sources, spotify)
	}
	sources = append(sources,
		enrich.NewInstagramSource(strategies, gate),
		enrich.NewTikTokSource(strategies, gate),
		enrich.NewYouTubeChannelSource(strategies, gate),
	)
	if ytAPI := enrich.NewYouTubeAPISource(cfg.YouTubeAPIKey, gate); ytAPI != nil {
		sources = append(sources, ytAPI)
	}
	lyrics := enrich.NewLyricsSource(strategies, lyricAnalyzer, gate)

	coordinator := enrich.NewCoordinator(sources, lyrics)

	o := orchestrator.New(orchestrator.Config{
		MaxConcurrentSessions: cfg.MaxConcurrentSessions,
		OverFetchFactor:       cfg.OverFetchFactor,
		EnrichWorkers:         cfg.EnrichWorkers,
		HarvestOptions: harvest.Options{
			Host:            cfg.SearchHost,
			Ceiling:         cfg.HarvestCeiling,
			NoProgressLimit: cfg.NoProgressLimit,
			Settle:          cfg.ScrollSettle,
		},
	}, fetcher, coordinator, st)

	sessionID, err := o.Start(req)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.InvalidRequest) {
			return exitErr(exitValidation, err)
		}
		return exitErr(exitPipeline, err)
	}

	sub, err := o.Subscribe(sessionID)
	if err != nil {
		return exitErr(exitPipeline, err)
	}
	defer sub.Unsubscribe()

	go func() {
		<-ctx.Done()
		if err := o.Cancel(sessionID); err != nil {
			log.Warn().Err(err).Msg("cancel on shutdown failed")
		}
	}()

	encoder := json.NewEncoder(os.Stdout)
	for ev := range sub.Events() {
		if err := encoder.Encode(eventJSON(ev)); err != nil {
			return exitErr(exitPipeline, err)
		}
		switch ev.Type {
		case model.EventSessionCompleted:
			return nil
		case model.EventSessionFailed:
			return exitErr(exitPipeline, fmt.Errorf("session failed: %s", ev.Message))
		}
	}

	// The bus closed without a terminal event: succeed only when the
	// session itself reached Completed, otherwise report a pipeline failure.
	snap, statusErr := o.Status(sessionID)
	if statusErr == nil && snap.State == model.SessionCompleted {
		return nil
	}
	return exitErr(exitPipeline, fmt.Errorf("session ended without a terminal event"))
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	if cfg.StoreURL == "" {
		return memstore.New(), func() {}, nil
	}
	s, err := sqlstore.Open(sqlstore.PathFromURL(cfg.StoreURL))
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}, nil
}

// eventJSON renders one progress event in a stable wire shape.
func eventJSON(ev model.ProgressEvent) map[string]any {
	out := map[string]any{
		"type":       string(ev.Type),
		"session_id": ev.SessionID,
		"timestamp":  ev.Timestamp.Format(time.RFC3339),
	}
	if ev.VideoID != "" {
		out["video_id"] = ev.VideoID
	}
	if ev.ArtistName != "" {
		out["artist_name"] = ev.ArtistName
	}
	if ev.RejectReason != "" {
		out["reject_reason"] = ev.RejectReason
	}
	if ev.Message != "" {
		out["message"] = ev.Message
	}
	if ev.Summary != nil {
		out["summary"] = map[string]any{
			"state":            string(ev.Summary.State),
			"videos_seen":      ev.Summary.Counters.VideosSeen,
			"videos_accepted":  ev.Summary.Counters.VideosAccepted,
			"artists_enriched": ev.Summary.Counters.ArtistsEnriched,
			"artists_stored":   ev.Summary.Counters.ArtistsStored,
			"budget_exhausted": ev.Summary.BudgetExhausted,
			"duration_ms":      ev.Summary.Duration.Milliseconds(),
			"error_kind":       ev.Summary.ErrorKind,
			"error_message":    ev.Summary.ErrorMessage,
		}
	}
	return out
}
