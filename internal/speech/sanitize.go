package speech

import (
	"regexp"
	"strings"
)

var (
	markdownChars = regexp.MustCompile("[*_~`>#]")
	bulletGlyphs  = regexp.MustCompile("[•●▪︎]")
	// Anything outside plain ASCII words, whitespace and basic punctuation.
	decorative = regexp.MustCompile(`[^\w\s.,:;%()!?/-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Sanitize prepares text for speech synthesis: markdown punctuation, bullet
// glyphs and decorative symbols are removed and all whitespace runs,
// newlines included, collapse to a single space.
func Sanitize(text string) string {
	text = markdownChars.ReplaceAllString(text, "")
	text = bulletGlyphs.ReplaceAllString(text, "")
	text = decorative.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
