package enrich

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractMetaDescription pulls the og:description or plain description
// meta tag out of a profile page; social sites pack the headline counts
// and bio into it.
func extractMetaDescription(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, sel := range []string{
		`meta[property="og:description"]`,
		`meta[name="description"]`,
	} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// visibleText flattens a document to its visible text with script and
// style content removed, for regex scans over rendered pages.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}
