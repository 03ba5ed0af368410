package tts

import (
	"regexp"
	"strings"
)

func normalizeTextForTTS(text string) string {
	text = removeMarkdown(text)
	text = removeEmojis(text)
	text = collapseWhitespace(text)
	return strings.TrimSpace(text)
}

var markdownMarkers = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"`", "", // inline code
	"*", "", // italic
)

func removeMarkdown(text string) string {
	text = headingRegex.ReplaceAllString(text, "")
	return markdownMarkers.Replace(text)
}

// removeEmojis drops symbols, control characters and variation selectors.
// Other combining marks stay; Urdu script relies on them.
func removeEmojis(text string) string {
	return removeEmojiRegex.ReplaceAllString(text, "")
}

func collapseWhitespace(text string) string {
	return multipleSpacesRegex.ReplaceAllString(text, " ")
}

var (
	headingRegex        = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Z}\p{Sc}\p{Sm}\s]|[\x{FE00}-\x{FE0F}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
