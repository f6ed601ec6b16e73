package core

import (
	"errors"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

var ErrInvalidChunking = errors.New("chunk size must be positive and greater than overlap")

// NormalizeText collapses every whitespace run to a single space, drops NUL and
// other control characters and trims the result. It is idempotent.
func NormalizeText(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case r == 0 || unicode.IsControl(r):
			// dropped without breaking the surrounding word
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TextChunk is one window of a text, with its start offset in runes.
type TextChunk struct {
	Index  int
	Offset int
	Text   string
}

// ChunkText splits text into windows of size runes, each starting size-overlap
// runes after the previous one. The last window may be shorter.
func ChunkText(text string, size, overlap int) ([]TextChunk, error) {
	if size <= 0 || overlap < 0 || size <= overlap {
		return nil, ErrInvalidChunking
	}
	runes := []rune(text)
	step := size - overlap

	var chunks []TextChunk
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, TextChunk{
			Index:  len(chunks),
			Offset: start,
			Text:   string(runes[start:end]),
		})
	}
	return chunks, nil
}
