package chunker

import "strings"

// SentenceChunker splits document text into overlapping, sentence-bounded
// segments sized for embedding. The size is a soft target: a single sentence
// longer than ChunkSize is kept whole rather than truncated mid-sentence.
type SentenceChunker struct {
	chunkSize int // soft target in characters
	overlap   int // words repeated from the previous chunk
}

func NewSentenceChunker(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	return &SentenceChunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// Chunk splits text on sentence boundaries, greedily filling each chunk up
// to the size target, then prefixes every chunk after the first with the
// last overlap words of its predecessor. Empty input yields no chunks.
func (c *SentenceChunker) Chunk(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	sentences := strings.Split(trimmed, ". ")

	var chunks []string
	current := ""

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if !strings.HasSuffix(sentence, ".") &&
			!strings.HasSuffix(sentence, "!") &&
			!strings.HasSuffix(sentence, "?") {
			sentence += "."
		}

		if current == "" || len(current)+len(sentence) < c.chunkSize {
			if current != "" {
				current += " "
			}
			current += sentence
		} else {
			chunks = append(chunks, current)
			current = sentence
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	if c.overlap == 0 || len(chunks) < 2 {
		return chunks
	}

	// Prefix each chunk with the tail of the previous (pre-overlap) chunk so
	// adjacent chunks share context across the boundary.
	overlapped := make([]string, len(chunks))
	overlapped[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		words := strings.Fields(chunks[i-1])
		if len(words) > c.overlap {
			words = words[len(words)-c.overlap:]
		}
		overlapped[i] = strings.Join(words, " ") + " " + chunks[i]
	}

	return overlapped
}
