package harvest

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/fetch"
	"github.com/ssharples/music-discovery-system/model"
)

func rendererHTML(ids ...string) string {
	var page string
	for i, id := range ids {
		page += fmt.Sprintf(`<div class="video-renderer">
  <a href="/watch?v=%s" title="Artist%d - Song (Official Music Video)">Artist%d - Song (Official Music Video)</a>
  <a href="/channel/UCchan%s">channel</a>
  <div class="metadata-snippet-text">snippet %d</div>
</div>`, id, i, i, id, i)
	}
	return "<html><body>" + page + "</body></html>"
}

// fakeSession replays a fixed sequence of pages: index 0 on Navigate,
// then one page per Scroll. Past the end it repeats the last page.
type fakeSession struct {
	pages      []string
	scrollErrs []error
	pos        int
	scrolls    int
}

func (s *fakeSession) Navigate(_ context.Context, _ string, _ time.Time) (string, error) {
	return s.pages[0], nil
}

func (s *fakeSession) Scroll(_ context.Context, _ time.Duration) (string, error) {
	s.scrolls++
	if len(s.scrollErrs) > 0 {
		err := s.scrollErrs[0]
		s.scrollErrs = s.scrollErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if s.pos < len(s.pages)-1 {
		s.pos++
	}
	return s.pages[s.pos], nil
}

type fakeFetcher struct {
	session *fakeSession
	closed  bool
}

func (f *fakeFetcher) FetchPlain(context.Context, string, time.Time) (int, http.Header, []byte, error) {
	return 0, nil, nil, fmt.Errorf("not used")
}

func (f *fakeFetcher) FetchRendered(context.Context, string, fetch.RenderOptions, time.Time) (string, string, []string, error) {
	return "", "", nil, fmt.Errorf("not used")
}

func (f *fakeFetcher) OpenSession(context.Context, fetch.RenderOptions) (fetch.Session, error) {
	return f.session, nil
}

func (f *fakeFetcher) CloseSession(fetch.Session) { f.closed = true }

func collect(t *testing.T, ch <-chan model.CandidateVideo) []model.CandidateVideo {
	t.Helper()
	var out []model.CandidateVideo
	for cand := range ch {
		out = append(out, cand)
	}
	return out
}

func TestHarvestEmitsUniqueCandidatesInOrder(t *testing.T) {
	f := &fakeFetcher{session: &fakeSession{pages: []string{
		rendererHTML("aaaaaaaaaa1", "aaaaaaaaaa2"),
		rendererHTML("aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3"),
		rendererHTML("aaaaaaaaaa3"), // nothing new from here on
	}}}

	h := New(f, Options{NoProgressLimit: 2, Settle: time.Millisecond})
	ch, err := h.Harvest(context.Background(), "official music video", nil, 0)
	require.NoError(t, err)

	got := collect(t, ch)
	require.Len(t, got, 3)
	assert.Equal(t, "aaaaaaaaaa1", got[0].VideoID)
	assert.Equal(t, "aaaaaaaaaa2", got[1].VideoID)
	assert.Equal(t, "aaaaaaaaaa3", got[2].VideoID)
	assert.Equal(t, "UCchanaaaaaaaaaa1", got[0].ChannelID)
	assert.True(t, f.closed)
}

func TestHarvestStopsAtLimit(t *testing.T) {
	f := &fakeFetcher{session: &fakeSession{pages: []string{
		rendererHTML("aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3", "aaaaaaaaaa4"),
	}}}

	h := New(f, Options{Settle: time.Millisecond})
	ch, err := h.Harvest(context.Background(), "q", nil, 2)
	require.NoError(t, err)

	got := collect(t, ch)
	assert.Len(t, got, 2)
	assert.True(t, f.closed)
}

func TestHarvestTerminatesAfterTwoConsecutiveScrollErrors(t *testing.T) {
	f := &fakeFetcher{session: &fakeSession{
		pages:      []string{rendererHTML("aaaaaaaaaa1")},
		scrollErrs: []error{fmt.Errorf("nav error"), fmt.Errorf("timeout")},
	}}

	h := New(f, Options{NoProgressLimit: 10, Settle: time.Millisecond})
	ch, err := h.Harvest(context.Background(), "q", nil, 0)
	require.NoError(t, err)

	// The error termination is not an error to the consumer: the stream
	// just ends with what was already emitted.
	got := collect(t, ch)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, f.session.scrolls)
}

func TestHarvestRecoversFromSingleScrollError(t *testing.T) {
	f := &fakeFetcher{session: &fakeSession{
		pages:      []string{rendererHTML("aaaaaaaaaa1"), rendererHTML("aaaaaaaaaa1", "aaaaaaaaaa2")},
		scrollErrs: []error{fmt.Errorf("nav error"), nil},
	}}

	h := New(f, Options{NoProgressLimit: 3, Settle: time.Millisecond})
	ch, err := h.Harvest(context.Background(), "q", nil, 0)
	require.NoError(t, err)

	got := collect(t, ch)
	assert.Len(t, got, 2)
}

func TestHarvestObservesCancellation(t *testing.T) {
	f := &fakeFetcher{session: &fakeSession{pages: []string{
		rendererHTML("aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3"),
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	h := New(f, Options{Settle: time.Millisecond})
	ch, err := h.Harvest(ctx, "q", nil, 0)
	require.NoError(t, err)

	<-ch // take one, then abandon the stream
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("harvester did not terminate after cancellation")
		}
	}
}

func TestParseCandidatesFallsBackToBareLinks(t *testing.T) {
	html := `<html><body>
<a href="https://youtu.be/bbbbbbbbbb1" title="Alice - Song (Official Music Video)">x</a>
<a href="/shorts/bbbbbbbbbb2">short</a>
<a href="/about">not a video</a>
</body></html>`

	got := ParseCandidates(html)
	require.Len(t, got, 2)
	assert.Equal(t, "bbbbbbbbbb1", got[0].VideoID)
	assert.Equal(t, "Alice - Song (Official Music Video)", got[0].Title)
	assert.Equal(t, "bbbbbbbbbb2", got[1].VideoID)
}

func TestComposeIsDeterministicAndValidates(t *testing.T) {
	c := SPTokenComposer{}

	a, err := c.Compose("www.youtube.com", "new artist", map[string]string{"upload_date": "week", "sort": "date"})
	require.NoError(t, err)
	b, err := c.Compose("www.youtube.com", "new artist", map[string]string{"sort": "date", "upload_date": "week"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "search_query=new+artist")
	assert.Contains(t, a, "gl=us")
	assert.Contains(t, a, "sp=")

	_, err = c.Compose("www.youtube.com", "q", map[string]string{"upload_date": "yesterday"})
	require.Error(t, err)
	_, err = c.Compose("www.youtube.com", "q", map[string]string{"bogus": "x"})
	require.Error(t, err)

	plain, err := c.Compose("www.youtube.com", "q", map[string]string{"upload_date": "any"})
	require.NoError(t, err)
	assert.NotContains(t, plain, "sp=")
}
