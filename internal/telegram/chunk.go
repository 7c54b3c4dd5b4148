package telegram

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text into ordered segments of at most max bytes, preferring
// to cut at whitespace. A word is split only when a segment contains no
// whitespace at all; a hard split never lands inside a multi-byte rune, so
// every chunk stays valid UTF-8. Surrounding whitespace is trimmed; empty
// input yields no chunks.
func Chunk(text string, max int) []string {
	var chunks []string
	trimmed := strings.TrimSpace(text)
	for len(trimmed) > 0 {
		if len(trimmed) <= max {
			chunks = append(chunks, trimmed)
			break
		}
		cut := lastWhitespace(trimmed, max)
		if cut == -1 {
			cut = max
			for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
				cut--
			}
			if cut == 0 {
				// A single rune wider than max; split it rather than loop.
				cut = max
			}
		}
		chunks = append(chunks, strings.TrimSpace(trimmed[:cut]))
		trimmed = strings.TrimSpace(trimmed[cut:])
	}
	return chunks
}

// lastWhitespace returns the last index of a space, newline or carriage
// return at or before end, or -1.
func lastWhitespace(s string, end int) int {
	if end >= len(s) {
		end = len(s) - 1
	}
	for i := end; i >= 0; i-- {
		switch s[i] {
		case ' ', '\n', '\r':
			return i
		}
	}
	return -1
}
