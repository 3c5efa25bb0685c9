package utils

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultSeparator    = "\n"
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// CharacterSplitter splits on a fixed separator and greedily merges the
// pieces back into chunks of at most ChunkSize characters, carrying up to
// ChunkOverlap characters of trailing pieces into the next chunk.
// Lengths are counted in runes. A single piece longer than ChunkSize is
// emitted on its own, oversized.
type CharacterSplitter struct {
	Separator    string
	ChunkSize    int
	ChunkOverlap int
}

func NewCharacterSplitter() *CharacterSplitter {
	return &CharacterSplitter{
		Separator:    DefaultSeparator,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// SplitText returns the ordered chunks of text. Chunks are whitespace-trimmed
// and never empty; blank input yields no chunks.
func (s *CharacterSplitter) SplitText(text string) []string {
	var pieces []string
	if s.Separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.Split(text, s.Separator) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}
	return s.merge(pieces)
}

func (s *CharacterSplitter) merge(pieces []string) []string {
	sepLen := utf8.RuneCountInString(s.Separator)

	var (
		chunks  []string
		current []string
		total   int
	)

	// separator cost of adding one more piece to current
	joinCost := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)

		if total+n+joinCost() > s.ChunkSize && len(current) > 0 {
			if chunk, ok := s.join(current); ok {
				chunks = append(chunks, chunk)
			}
			// drop leading pieces until what remains fits as overlap
			for total > s.ChunkOverlap || (total+n+joinCost() > s.ChunkSize && total > 0) {
				dropped := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					dropped += sepLen
				}
				total -= dropped
				current = current[1:]
			}
		}

		current = append(current, piece)
		if len(current) > 1 {
			total += n + sepLen
		} else {
			total += n
		}
	}

	if chunk, ok := s.join(current); ok {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (s *CharacterSplitter) join(pieces []string) (string, bool) {
	text := strings.TrimSpace(strings.Join(pieces, s.Separator))
	return text, text != ""
}
