package harvest

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// URLComposer builds the search URL for a query and filter set. The
// composition must be deterministic: equal inputs produce equal URLs,
// which double as cache keys upstream.
type URLComposer interface {
	Compose(host, query string, filters map[string]string) (string, error)
}

// Recognized filter options and their values.
var recognizedFilters = map[string]map[string]string{
	"upload_date": {
		"any": "", "hour": "A", "today": "B", "week": "C", "month": "D", "year": "E",
	},
	"duration": {
		"any": "", "short": "S", "long": "L",
	},
	"sort": {
		"relevance": "", "date": "D", "views": "V", "rating": "R",
	},
	"quality_hint": {
		"any": "", "hd": "H", "4k": "K",
	},
}

// filterOrder fixes the position of each option inside the composed
// token so composition stays order-independent of the input map.
var filterOrder = []string{"sort", "upload_date", "duration", "quality_hint"}

// SPTokenComposer is the default URLComposer. The search surface encodes
// filters in an opaque "sp" token; this composer derives one
// deterministically from the recognized options.
type SPTokenComposer struct{}

// Compose builds the results URL. Unknown filter keys or values are an
// error so a typo never silently harvests the wrong result set.
func (SPTokenComposer) Compose(host, query string, filters map[string]string) (string, error) {
	if err := ValidateFilters(filters); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("search_query", query)
	if token := composeToken(filters); token != "" {
		q.Set("sp", token)
	}
	q.Set("gl", "us")
	q.Set("hl", "en")

	u := url.URL{Scheme: "https", Host: host, Path: "/results", RawQuery: q.Encode()}
	return u.String(), nil
}

// ValidateFilters rejects unrecognized filter keys and enum values.
func ValidateFilters(filters map[string]string) error {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		values, ok := recognizedFilters[k]
		if !ok {
			return fmt.Errorf("unrecognized filter %q", k)
		}
		if _, ok := values[filters[k]]; !ok {
			return fmt.Errorf("unrecognized value %q for filter %q", filters[k], k)
		}
	}
	return nil
}

func composeToken(filters map[string]string) string {
	var b strings.Builder
	for _, k := range filterOrder {
		v, ok := filters[k]
		if !ok {
			continue
		}
		code := recognizedFilters[k][v]
		if code == "" {
			continue
		}
		b.WriteString(code)
	}
	if b.Len() == 0 {
		return ""
	}
	return "Eg" + b.String()
}
