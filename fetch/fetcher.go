// Package fetch defines the Fetcher port and the StrategyFetcher
//, the cascading-strategy layer every web-touching component in the
// pipeline calls through.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// RenderOptions configures a headless fetch.
type RenderOptions struct {
	ScrollSteps       int
	SettleDelay       time.Duration
	UserAgent         string
	ViewportW         int
	ViewportH         int
	JavaScriptEnabled bool
}

// Session is a reusable browser-like context obtained via OpenSession and
// released via CloseSession, letting the Harvester scroll a single search
// page without reopening a context per scroll step.
type Session interface {
	// Navigate loads url in this session and returns the rendered HTML.
	Navigate(ctx context.Context, url string, deadline time.Time) (html string, err error)
	// Scroll advances the viewport by one step and waits for network-idle
	// or the settle delay, whichever comes first.
	Scroll(ctx context.Context, settle time.Duration) (html string, err error)
}

// Fetcher is the external collaborator port every web-touching component
// depends on. Implementations wrap a headless-browser driver and a
// plain HTTP client.
type Fetcher interface {
	FetchPlain(ctx context.Context, url string, deadline time.Time) (status int, headers http.Header, body []byte, err error)
	FetchRendered(ctx context.Context, url string, opts RenderOptions, deadline time.Time) (finalURL, html string, networkLog []string, err error)
	OpenSession(ctx context.Context, opts RenderOptions) (Session, error)
	CloseSession(s Session)
}
