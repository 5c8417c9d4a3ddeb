package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbbreviatedCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain integer", input: "12345", want: 12345},
		{name: "thousands separators", input: "12,345", want: 12345},
		{name: "K suffix", input: "1.2K", want: 1200},
		{name: "lowercase k", input: "1.2k", want: 1200},
		{name: "M suffix", input: "3.4M", want: 3400000},
		{name: "B suffix", input: "1.1B", want: 1100000000},
		{name: "surrounding whitespace", input: "  890 ", want: 890},
		{name: "empty", input: "", wantErr: true},
		{name: "suffix only", input: "K", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAbbreviatedCount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsWellFormedEmail(t *testing.T) {
	assert.True(t, IsWellFormedEmail("booking@artist.example"))
	assert.True(t, IsWellFormedEmail("a.b+tag@sub.domain.example"))
	assert.False(t, IsWellFormedEmail(""))
	assert.False(t, IsWellFormedEmail("not-an-email"))
	assert.False(t, IsWellFormedEmail("two words@example.com"))
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, IsAbsoluteURL("https://example.com/page"))
	assert.True(t, IsAbsoluteURL("http://example.com"))
	assert.False(t, IsAbsoluteURL("/relative/path"))
	assert.False(t, IsAbsoluteURL("example.com"))
	assert.False(t, IsAbsoluteURL("ftp://example.com/file"))
}

func TestCanonicalQuery(t *testing.T) {
	a := CanonicalQuery(map[string]string{"b": "2", "a": "1"})
	b := CanonicalQuery(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "a=1&b=2", a)
	assert.Equal(t, "", CanonicalQuery(nil))
	assert.Equal(t, "q=hello+world", CanonicalQuery(map[string]string{"q": "hello world"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
