// Package chunk splits extracted document text into overlapping windows.
package chunk

import (
	"fmt"

	"github.com/poiesic/finrag/core"
)

// Defaults for retrieval chunks, in characters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunker cuts text into windows of Size characters where each window starts
// Size-Overlap characters after the previous one. Offsets count runes, not
// bytes, and windows ignore word and sentence boundaries.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. overlap must be in [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive: %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d): %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a chunker with DefaultSize and DefaultOverlap.
func Default() *Chunker {
	return &Chunker{size: DefaultSize, overlap: DefaultOverlap}
}

// Split returns the windows of text, each carrying meta and its index.
// Text shorter than the window size yields a single chunk; empty text yields none.
func (c *Chunker) Split(text string, meta core.ChunkMetadata) []core.TextChunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]core.TextChunk, 0, c.Count(len(runes)))
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, core.TextChunk{
			Index:    len(chunks),
			Start:    start,
			End:      end,
			Text:     string(runes[start:end]),
			Metadata: meta,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Count returns how many chunks Split produces for text of length runes:
// 0 when empty, 1 up to the window size, otherwise ceil((length-overlap)/step).
func (c *Chunker) Count(length int) int {
	if length <= 0 {
		return 0
	}
	if length <= c.size {
		return 1
	}
	step := c.size - c.overlap
	return (length - c.overlap + step - 1) / step
}
