package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown and bullet", "**Up 10%** • risk: low\nmore", "Up 10% risk: low more"},
		{"emoji", "📊 Prediction Result", "Prediction Result"},
		{"headings and quotes", "# Title\n> quoted `code`", "Title quoted code"},
		{"bullets list", "Reasons:\n• one\n● two\n▪︎ three", "Reasons: one two three"},
		{"keeps punctuation", "Probability Up: 0.61 (high)! ok? a/b-c;", "Probability Up: 0.61 (high)! ok? a/b-c;"},
		{"collapses whitespace", "  a \t\t b\n\n\nc  ", "a b c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "*")
			assert.NotContains(t, got, "•")
			assert.NotContains(t, got, "\n")
			assert.NotContains(t, got, "  ")
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	in := "📊 **Prediction Result**\n**Event:** btc-up\n\n• momentum"
	once := Sanitize(in)
	assert.Equal(t, once, Sanitize(once))
}
