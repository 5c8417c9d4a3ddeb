// Package heuristic is the dependency-free Analyzer: word-frequency theme
// extraction over a stop-word list plus a small sentiment lexicon. It is
// fully deterministic, which makes it the default when no external
// analysis service is configured.
package heuristic

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/ssharples/music-discovery-system/model"
)

var (
	sectionPattern = regexp.MustCompile(`\[.*?\]`)
	wordPattern    = regexp.MustCompile(`[a-zA-Z']+`)
	cyrillicWord   = regexp.MustCompile(`[а-яА-ЯёЁ]+`)
)

// stopWords are filtered before theme counting. The list covers the
// filler vocabulary that dominates English lyrics.
var stopWords = map[string]bool{
	"the": true, "and": true, "you": true, "your": true, "yours": true,
	"that": true, "this": true, "with": true, "for": true, "not": true,
	"but": true, "all": true, "are": true, "was": true, "were": true,
	"can": true, "cant": true, "can't": true, "don't": true, "dont": true,
	"she": true, "him": true, "her": true, "his": true, "hers": true,
	"they": true, "them": true, "what": true, "when": true, "where": true,
	"who": true, "how": true, "why": true, "out": true, "now": true,
	"get": true, "got": true, "just": true, "like": true, "know": true,
	"yeah": true, "ooh": true, "oh": true, "nah": true, "uh": true,
	"gonna": true, "wanna": true, "gotta": true, "aint": true, "ain't": true,
	"i'm": true, "it's": true, "i'll": true, "i've": true, "you're": true,
	"cause": true, "'cause": true, "let": true, "one": true, "two": true,
	"say": true, "said": true, "see": true, "way": true, "come": true,
	"make": true, "take": true, "been": true, "from": true, "have": true,
	"will": true, "would": true, "could": true, "should": true,
}

var positiveWords = map[string]bool{
	"love": true, "happy": true, "joy": true, "shine": true, "light": true,
	"beautiful": true, "smile": true, "good": true, "best": true,
	"sweet": true, "gold": true, "heaven": true, "dream": true,
	"dance": true, "free": true, "alive": true, "bright": true,
	"peace": true, "hope": true, "laugh": true, "warm": true, "win": true,
}

var negativeWords = map[string]bool{
	"hate": true, "pain": true, "cry": true, "tears": true, "dark": true,
	"alone": true, "lost": true, "dead": true, "death": true, "kill": true,
	"broken": true, "hurt": true, "cold": true, "fear": true, "war": true,
	"blood": true, "sad": true, "lonely": true, "demons": true,
	"nightmare": true, "hell": true, "fall": true, "lose": true,
}

// Analyzer is the deterministic default implementation.
type Analyzer struct{}

// New constructs the heuristic Analyzer.
func New() *Analyzer { return &Analyzer{} }

// AnalyzeLyrics strips section markers, counts content words, and derives
// themes from the highest-frequency words, sentiment from the
// positive/negative lexicon balance, and language from the script plus
// hint.
func (a *Analyzer) AnalyzeLyrics(_ context.Context, text, languageHint string) (model.LyricAnalysis, error) {
	cleaned := sectionPattern.ReplaceAllString(text, "")
	lowered := strings.ToLower(cleaned)
	words := wordPattern.FindAllString(lowered, -1)

	counts := make(map[string]int)
	positives, negatives := 0, 0
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if positiveWords[w] {
			positives++
		}
		if negativeWords[w] {
			negatives++
		}
		if stopWords[w] {
			continue
		}
		counts[w]++
	}

	type wordCount struct {
		word  string
		count int
	}
	ranked := make([]wordCount, 0, len(counts))
	for w, c := range counts {
		if c < 2 {
			continue
		}
		ranked = append(ranked, wordCount{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	themes := make([]string, 0, model.MaxLyricThemes)
	for _, wc := range ranked {
		if len(themes) >= model.MaxLyricThemes {
			break
		}
		themes = append(themes, wc.word)
	}

	return model.LyricAnalysis{
		Themes:    themes,
		Sentiment: sentiment(positives, negatives),
		Language:  detectLanguage(lowered, languageHint),
	}, nil
}

func sentiment(positives, negatives int) float64 {
	total := positives + negatives
	if total == 0 {
		return 0
	}
	return float64(positives-negatives) / float64(total)
}

func detectLanguage(text, hint string) string {
	if hint != "" {
		return hint
	}
	if cyrillicWord.MatchString(text) {
		return "ru"
	}
	return "en"
}
