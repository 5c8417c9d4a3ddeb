// Package common holds small shared helpers used across the discovery
// pipeline: abbreviated-count parsing, URL and email validation, and
// canonical query-string building for cache keys.
package common

import (
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ParseAbbreviatedCount converts a human-formatted follower count such as
// "1.2K", "3.4M" or "12,345" into an integer. Suffixes K, M and B are
// recognized case-insensitively; thousands separators are stripped.
// Returns an error for negative, empty, or non-numeric input.
func ParseAbbreviatedCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty count")
	}

	multiplier := int64(1)
	switch last := s[len(s)-1]; last {
	case 'k', 'K':
		multiplier = 1_000
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1_000_000
		s = s[:len(s)-1]
	case 'b', 'B':
		multiplier = 1_000_000_000
		s = s[:len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("no digits in count")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable count %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative count %q", s)
	}
	return int64(f * float64(multiplier)), nil
}

// IsWellFormedEmail reports whether s parses as a single RFC 5322 address.
func IsWellFormedEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// IsAbsoluteURL reports whether s is an absolute http(s) URL with a host.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CanonicalQuery renders params as a deterministic query string with keys
// sorted, so that equal parameter sets always produce equal cache keys.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Truncate shortens s to at most n runes, appending an ellipsis marker
// when anything was cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
