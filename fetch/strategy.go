package fetch

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/ssharples/music-discovery-system/pkgerrors"
)

// StrategyName identifies one of the four fixed-order fetch strategies
//.
type StrategyName string

const (
	StrategyPlainHTTP       StrategyName = "plain_http"
	StrategyHeadlessDefault StrategyName = "headless_default"
	StrategyHeadlessScroll  StrategyName = "headless_scroll"
	StrategyHeadlessStealth StrategyName = "headless_stealth"
)

type strategySpec struct {
	name     StrategyName
	timeout  time.Duration
	headless bool
	opts     RenderOptions
}

// strategies is the fixed, fastest-first attempt order.
func strategies() []strategySpec {
	return []strategySpec{
		{name: StrategyPlainHTTP, timeout: 5 * time.Second, headless: false},
		{name: StrategyHeadlessDefault, timeout: 10 * time.Second, headless: true,
			opts: RenderOptions{JavaScriptEnabled: true}},
		{name: StrategyHeadlessScroll, timeout: 15 * time.Second, headless: true,
			opts: RenderOptions{JavaScriptEnabled: true, ScrollSteps: 3, SettleDelay: 500 * time.Millisecond}},
		{name: StrategyHeadlessStealth, timeout: 20 * time.Second, headless: true,
			opts: RenderOptions{JavaScriptEnabled: true, ScrollSteps: 3, SettleDelay: 500 * time.Millisecond}},
	}
}

// cooldown is the fixed pause between strategy attempts.
const cooldown = time.Second

// stealthUserAgents is the spoofed user-agent pool for the last-resort
// strategy.
var stealthUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/119.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/118.0 Safari/537.36",
}

// StrategyFetcher tries each strategy in order, bounding headless
// and plain-HTTP attempts with process-wide concurrency semaphores so a
// burst of enrichment work can't exhaust memory.
type StrategyFetcher struct {
	fetcher     Fetcher
	headlessSem *semaphore.Weighted
	plainSem    *semaphore.Weighted

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewStrategyFetcher wires fetcher behind the cascading strategies, sharing
// the given concurrency semaphores across every caller in the process
//.
func NewStrategyFetcher(fetcher Fetcher, headlessSem, plainSem *semaphore.Weighted) *StrategyFetcher {
	return &StrategyFetcher{
		fetcher:     fetcher,
		headlessSem: headlessSem,
		plainSem:    plainSem,
		rand:        rand.New(rand.NewSource(1)),
	}
}

// DefaultHeadlessLimit and DefaultPlainLimit are the process-wide
// concurrency caps shared by every fetcher in the process.
const (
	DefaultHeadlessLimit = 4
	DefaultPlainLimit    = 32
)

// NewSemaphores builds the pair of process-global semaphores every
// StrategyFetcher instance in the process should share.
func NewSemaphores() (headless, plain *semaphore.Weighted) {
	return semaphore.NewWeighted(DefaultHeadlessLimit), semaphore.NewWeighted(DefaultPlainLimit)
}

// Metadata is the structured side-channel returned alongside HTML: which
// strategy succeeded, the final URL, and any network log lines captured
// by a headless strategy.
type Metadata struct {
	Strategy   StrategyName
	FinalURL   string
	NetworkLog []string
}

// Fetch tries each strategy in order within its own timeout, returning the
// first success. hints lets a caller (e.g. the Harvester) hint at a
// preferred scroll count for the Headless-Scroll strategy.
func (f *StrategyFetcher) Fetch(ctx context.Context, url string, hints RenderOptions) (string, Metadata, error) {
	var lastErr error
	sawBlocked := false
	sawNotFoundPlain := false
	attempted := 0

	for i, spec := range strategies() {
		if ctx.Err() != nil {
			return "", Metadata{}, pkgerrors.New(pkgerrors.Cancelled, "fetch cancelled")
		}
		if i > 0 {
			select {
			case <-time.After(cooldown):
			case <-ctx.Done():
				return "", Metadata{}, pkgerrors.New(pkgerrors.Cancelled, "fetch cancelled during cooldown")
			}
		}

		attempted++
		html, meta, err := f.attempt(ctx, url, spec, hints)
		if err == nil {
			return html, meta, nil
		}
		lastErr = err

		switch pkgerrors.KindOf(err) {
		case pkgerrors.Blocked:
			sawBlocked = true
		case pkgerrors.NotFound:
			if !spec.headless {
				sawNotFoundPlain = true
			}
		}
		log.Debug().Str("url", url).Str("strategy", string(spec.name)).Err(err).Msg("fetch strategy failed")
	}

	switch {
	case sawNotFoundPlain && attempted == len(strategies()):
		return "", Metadata{}, pkgerrors.New(pkgerrors.NotFound, "no strategy could render "+url)
	case sawBlocked:
		return "", Metadata{}, pkgerrors.New(pkgerrors.Blocked, "all strategies blocked for "+url)
	case pkgerrors.Is(lastErr, pkgerrors.Transient):
		return "", Metadata{}, pkgerrors.Wrap(pkgerrors.Transient, "all strategies timed out for "+url, lastErr)
	default:
		return "", Metadata{}, pkgerrors.Wrap(pkgerrors.Fatal, "fetch failed for "+url, lastErr)
	}
}

func (f *StrategyFetcher) attempt(ctx context.Context, url string, spec strategySpec, hints RenderOptions) (string, Metadata, error) {
	deadline := time.Now().Add(spec.timeout)
	attemptCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if !spec.headless {
		if err := f.plainSem.Acquire(attemptCtx, 1); err != nil {
			return "", Metadata{}, pkgerrors.New(pkgerrors.Transient, "plain-http concurrency limit")
		}
		defer f.plainSem.Release(1)

		status, _, body, err := f.fetcher.FetchPlain(attemptCtx, url, deadline)
		if err != nil {
			return "", Metadata{}, classifyTransportError(err)
		}
		if err := classifyStatus(status); err != nil {
			return "", Metadata{}, err
		}
		return string(body), Metadata{Strategy: spec.name, FinalURL: url}, nil
	}

	if err := f.headlessSem.Acquire(attemptCtx, 1); err != nil {
		return "", Metadata{}, pkgerrors.New(pkgerrors.Transient, "headless concurrency limit")
	}
	defer f.headlessSem.Release(1)

	opts := spec.opts
	if spec.name == StrategyHeadlessScroll && hints.ScrollSteps > 0 {
		opts.ScrollSteps = hints.ScrollSteps
	}
	if spec.name == StrategyHeadlessStealth {
		f.randMu.Lock()
		opts.UserAgent = stealthUserAgents[f.rand.Intn(len(stealthUserAgents))]
		opts.ViewportW = 1280 + f.rand.Intn(200)
		opts.ViewportH = 720 + f.rand.Intn(200)
		f.randMu.Unlock()
	}

	finalURL, html, netlog, err := f.fetcher.FetchRendered(attemptCtx, url, opts, deadline)
	if err != nil {
		return "", Metadata{}, classifyTransportError(err)
	}
	return html, Metadata{Strategy: spec.name, FinalURL: finalURL, NetworkLog: netlog}, nil
}

// classifyTransportError maps a raw Fetcher error into the error-kind taxonomy
// when the Fetcher implementation hasn't already done so.
func classifyTransportError(err error) error {
	if pkgerrors.KindOf(err) != pkgerrors.Unknown {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return pkgerrors.Wrap(pkgerrors.Transient, "timeout", err)
	default:
		return pkgerrors.Wrap(pkgerrors.Transient, "transport error", err)
	}
}

func classifyStatus(status int) error {
	switch {
	case status == 0 || (status >= 200 && status < 300):
		return nil
	case status == 403 || status == 429:
		return pkgerrors.New(pkgerrors.Blocked, "blocked")
	case status == 404:
		return pkgerrors.New(pkgerrors.NotFound, "not found")
	case status >= 500:
		return pkgerrors.New(pkgerrors.Transient, "upstream error")
	default:
		return pkgerrors.New(pkgerrors.Blocked, "unexpected status")
	}
}
