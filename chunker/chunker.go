// Package chunker splits unit text into bounded, boundary-aware chunks
// suitable for embedding.
package chunker

import (
	"strings"
	"unicode"

	"github.com/poiesic/recollect/core"
)

const (
	// DefaultMaxChars is the window size used when callers do not configure one.
	DefaultMaxChars = 3000

	// LookAhead is how far past a window boundary the splitter searches for
	// the end of a sentence.
	LookAhead = 200
)

// Split divides text into chunks of roughly maxChars characters.
//
// Text that fits in a single window is returned as one chunk. Otherwise each
// boundary is placed, in order of preference, just after a sentence-ending
// mark found within LookAhead characters past the window, at the last
// whitespace inside the window, or exactly at the window edge.
//
// Chunks are trimmed, empty chunks are dropped and indices are assigned
// sequentially over the emitted chunks. Lengths are measured in runes.
// A maxChars of zero or less disables splitting.
func Split(text string, maxChars int) []*core.Chunk {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return emit(nil, string(runes))
	}

	var chunks []*core.Chunk
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = boundary(runes, start, end)
		}
		chunks = emit(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}

// boundary picks the cut position for the window runes[start:end].
// The returned position is always greater than start.
func boundary(runes []rune, start, end int) int {
	limit := min(end+LookAhead, len(runes)-1)
	for i := end; i < limit; i++ {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	for i := end; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// emit appends the trimmed segment as the next chunk unless it is empty.
func emit(chunks []*core.Chunk, segment string) []*core.Chunk {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return chunks
	}
	return append(chunks, &core.Chunk{
		Index:     len(chunks),
		Text:      segment,
		CharCount: len([]rune(segment)),
	})
}
