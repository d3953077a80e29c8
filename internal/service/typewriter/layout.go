package typewriter

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// markupRe matches inline rich-text tags such as <color=#f00> or </b>.
var markupRe = regexp.MustCompile(`<[^<>]+>`)

// glyphEnds returns, for each user-visible glyph in text, the byte offset just
// past it. Markup tags are skipped whole; a base character and its combining
// marks count as one glyph.
func glyphEnds(text string) []int {
	if text == "" {
		return nil
	}
	var ends []int
	pos := 0
	for _, m := range markupRe.FindAllStringIndex(text, -1) {
		ends = appendPlain(ends, text, pos, m[0])
		pos = m[1]
	}
	return appendPlain(ends, text, pos, len(text))
}

func appendPlain(ends []int, text string, from, to int) []int {
	seg := text[from:to]
	off := 0
	for off < len(seg) {
		n := norm.NFC.NextBoundaryInString(seg[off:], true)
		if n <= 0 {
			n = len(seg) - off
		}
		off += n
		ends = append(ends, from+off)
	}
	return ends
}

// GlyphCount reports how many visible glyphs text renders as.
func GlyphCount(text string) int {
	return len(glyphEnds(text))
}

// StripMarkup removes inline tags, leaving only what the reader sees.
func StripMarkup(text string) string {
	return markupRe.ReplaceAllString(text, "")
}
