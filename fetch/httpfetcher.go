package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ssharples/music-discovery-system/pkgerrors"
)

// HTTPFetcher is the built-in plain-HTTP Fetcher adapter. It serves the
// strategies that need no JavaScript; rendered fetches degrade to a plain
// GET of the same URL, and a "session" replays the last response without
// scrolling. Deployments that need real rendering plug in a
// headless-browser Fetcher instead.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds the adapter around one shared client.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; music-discovery/1.0)"
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
	}
}

// FetchPlain issues one GET with the deadline applied.
func (f *HTTPFetcher) FetchPlain(ctx context.Context, url string, deadline time.Time) (int, http.Header, []byte, error) {
	reqCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, nil, pkgerrors.Wrap(pkgerrors.InvalidRequest, "build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, nil, pkgerrors.Wrap(pkgerrors.Transient, "fetch "+url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, pkgerrors.Wrap(pkgerrors.Transient, "read body", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// FetchRendered degrades to a plain GET: no JavaScript runs, so lazily
// loaded content is simply absent.
func (f *HTTPFetcher) FetchRendered(ctx context.Context, url string, opts RenderOptions, deadline time.Time) (string, string, []string, error) {
	status, _, body, err := f.FetchPlain(ctx, url, deadline)
	if err != nil {
		return "", "", nil, err
	}
	if status >= 400 {
		return "", "", nil, statusError(status)
	}
	return url, string(body), nil, nil
}

func statusError(status int) error {
	switch {
	case status == 403 || status == 429:
		return pkgerrors.New(pkgerrors.Blocked, "blocked")
	case status == 404:
		return pkgerrors.New(pkgerrors.NotFound, "not found")
	default:
		return pkgerrors.New(pkgerrors.Transient, "upstream status")
	}
}

// httpSession caches the navigated page; scrolling cannot load more
// without a script engine, so Scroll replays the same HTML and the
// harvester's no-progress counter ends the stream.
type httpSession struct {
	fetcher *HTTPFetcher
	html    string
}

func (s *httpSession) Navigate(ctx context.Context, url string, deadline time.Time) (string, error) {
	status, _, body, err := s.fetcher.FetchPlain(ctx, url, deadline)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", statusError(status)
	}
	s.html = string(body)
	return s.html, nil
}

func (s *httpSession) Scroll(ctx context.Context, settle time.Duration) (string, error) {
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return "", pkgerrors.Wrap(pkgerrors.Cancelled, "scroll interrupted", ctx.Err())
	}
	return s.html, nil
}

// OpenSession hands out one plain-HTTP session.
func (f *HTTPFetcher) OpenSession(_ context.Context, _ RenderOptions) (Session, error) {
	return &httpSession{fetcher: f}, nil
}

// CloseSession releases nothing; plain sessions hold no resources.
func (f *HTTPFetcher) CloseSession(Session) {}
