// Package remote is the Analyzer adapter for an external HTTP
// text-analysis service, selected when an analyzer API key is configured.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ssharples/music-discovery-system/model"
	"github.com/ssharples/music-discovery-system/pkgerrors"
)

// DefaultEndpoint is used when no endpoint override is given.
const DefaultEndpoint = "https://api.text-analysis.example/v1/lyrics"

// Analyzer posts lyrics to the analysis endpoint and decodes the result.
type Analyzer struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New builds an Analyzer for endpoint (or DefaultEndpoint when empty)
// authenticated with apiKey.
func New(endpoint, apiKey string) *Analyzer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Analyzer{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type analyzeRequest struct {
	Text         string `json:"text"`
	LanguageHint string `json:"language_hint,omitempty"`
}

type analyzeResponse struct {
	Themes    []string `json:"themes"`
	Sentiment float64  `json:"sentiment"`
	Language  string   `json:"language"`
}

// AnalyzeLyrics posts text for analysis. The response is clamped to the
// LyricAnalysis invariants before being returned.
func (a *Analyzer) AnalyzeLyrics(ctx context.Context, text, languageHint string) (model.LyricAnalysis, error) {
	if a.apiKey == "" {
		return model.LyricAnalysis{}, pkgerrors.New(pkgerrors.InvalidRequest, "analyzer api key not configured")
	}

	body, err := json.Marshal(analyzeRequest{Text: text, LanguageHint: languageHint})
	if err != nil {
		return model.LyricAnalysis{}, fmt.Errorf("marshal analyze payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.LyricAnalysis{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.LyricAnalysis{}, pkgerrors.Wrap(pkgerrors.Transient, "analyze lyrics", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.LyricAnalysis{}, pkgerrors.New(pkgerrors.RateLimited, "analyzer rate limited")
	case resp.StatusCode >= http.StatusInternalServerError:
		return model.LyricAnalysis{}, pkgerrors.New(pkgerrors.Transient, "analyzer error "+resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.LyricAnalysis{}, pkgerrors.New(pkgerrors.DataQuality,
			fmt.Sprintf("analyzer %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return model.LyricAnalysis{}, pkgerrors.Wrap(pkgerrors.DataQuality, "decode analyzer response", err)
	}

	return clamp(decoded), nil
}

func clamp(r analyzeResponse) model.LyricAnalysis {
	if len(r.Themes) > model.MaxLyricThemes {
		r.Themes = r.Themes[:model.MaxLyricThemes]
	}
	if r.Sentiment > 1 {
		r.Sentiment = 1
	}
	if r.Sentiment < -1 {
		r.Sentiment = -1
	}
	return model.LyricAnalysis{Themes: r.Themes, Sentiment: r.Sentiment, Language: r.Language}
}
