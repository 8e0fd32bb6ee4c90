package kb

import (
	"strings"
)

// Splitter breaks documents into overlapping chunks by recursively trying
// coarser to finer separators: paragraphs first, then lines, then words,
// then raw characters.
type Splitter struct {
	// ChunkSize is the target maximum chunk length in characters
	ChunkSize int

	// ChunkOverlap is the number of characters shared between adjacent chunks
	ChunkOverlap int

	separators []string
}

// NewSplitter creates a splitter with the given size and overlap.
// Overlap is clamped below the chunk size.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// SplitDocuments splits all documents and assigns dense sequential chunk IDs
// across the whole run, in document order.
func (s *Splitter) SplitDocuments(docs []Document) []Chunk {
	var chunks []Chunk
	nextID := 0

	for _, doc := range docs {
		for _, piece := range s.SplitText(doc.Content) {
			chunks = append(chunks, Chunk{
				Content:  piece,
				Source:   doc.Source,
				ChunkID:  nextID,
				Metadata: doc.Metadata,
			})
			nextID++
		}
	}

	return chunks
}

// SplitText splits a single text into pieces no longer than ChunkSize,
// with ChunkOverlap characters carried between adjacent pieces.
func (s *Splitter) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	parts := s.splitRecursive(text, s.separators)
	return s.mergeParts(parts)
}

// splitRecursive breaks text on the first separator that produces pieces,
// recursing into any piece that is still over the chunk size.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if len(text) <= s.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardSplit(text, s.ChunkSize)
	}

	sep := separators[0]
	rest := separators[1:]

	if sep == "" {
		return hardSplit(text, s.ChunkSize)
	}

	var out []string
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if len(piece) > s.ChunkSize {
			out = append(out, s.splitRecursive(piece, rest)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// mergeParts greedily packs adjacent small parts into chunks up to ChunkSize,
// carrying the configured overlap from the tail of each chunk into the next.
func (s *Splitter) mergeParts(parts []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, part := range parts {
		if current.Len() > 0 && current.Len()+1+len(part) > s.ChunkSize {
			tail := overlapTail(current.String(), s.ChunkOverlap)
			flush()
			if tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(part)
	}
	flush()

	return chunks
}

// overlapTail returns the last n characters of text, snapped forward to a
// word boundary so overlaps do not start mid-word.
func overlapTail(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return ""
	}
	tail := text[len(text)-n:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

func hardSplit(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
