package usecase

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"aria/internal/domain"
)

// FacetRetriever exposes the three retrieval facets the assistant draws
// context from.
type FacetRetriever interface {
	ConceptContent(query string) []domain.RetrievalResult
	SimilarExercises(query string) []domain.RetrievalResult
	SolutionGuidance(query string) []domain.RetrievalResult
}

// Assembler merges the retrieval facets into a bounded, deduplicated
// context block.
type Assembler struct {
	retriever FacetRetriever
	maxChunks int
}

func NewAssembler(retriever FacetRetriever, maxChunks int) *Assembler {
	if maxChunks <= 0 {
		maxChunks = 8
	}
	return &Assembler{
		retriever: retriever,
		maxChunks: maxChunks,
	}
}

// Assemble runs the full pipeline for a question: collect, then serialize.
// It returns the prompt block and the chunks that produced it.
func (a *Assembler) Assemble(question string) (string, []domain.RetrievalResult) {
	chunks := a.Collect(question)
	return a.Context(chunks), chunks
}

// Collect gathers concept material, similar exercises and solution guidance
// for the question, drops empty chunks, deduplicates, and caps the total.
func (a *Assembler) Collect(question string) []domain.RetrievalResult {
	var all []domain.RetrievalResult
	all = append(all, a.retriever.ConceptContent(question)...)
	all = append(all, a.retriever.SimilarExercises(question)...)
	all = append(all, a.retriever.SolutionGuidance(question)...)

	seen := make(map[[32]byte]bool, len(all))
	unique := make([]domain.RetrievalResult, 0, len(all))
	for _, c := range all {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		key := dedupKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
		if len(unique) == a.maxChunks {
			break
		}
	}
	return unique
}

// Context serializes chunks into the prompt block, one labeled segment per
// chunk with its concepts and formulas when present.
func (a *Assembler) Context(chunks []domain.RetrievalResult) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ctype := strings.ToUpper(c.Metadata.ContentType)
		if ctype == "" {
			ctype = "CONTEXT"
		}
		topic := c.Metadata.Topic
		if topic == "" {
			topic = "Untitled"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "\n--- %s: %s ---\n%s", ctype, topic, c.Text)
		if len(c.Metadata.Concepts) > 0 {
			fmt.Fprintf(&b, "\nKey Concepts: %s", strings.Join(c.Metadata.Concepts, ", "))
		}
		if len(c.Metadata.Formulas) > 0 {
			fmt.Fprintf(&b, "\nRelevant Formulas: %s", strings.Join(c.Metadata.Formulas, ", "))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

// dedupKey identifies a chunk by its leading text and origin, so the same
// passage retrieved under different facets collapses to one entry.
func dedupKey(c domain.RetrievalResult) [32]byte {
	text := c.Text
	if len(text) > 400 {
		text = text[:400]
	}
	return sha256.Sum256([]byte(text + "\x00" + c.Metadata.SourceFile))
}
