package port

import "aria/internal/domain"

// Retriever searches indexed course content.
type Retriever interface {
	// Retrieve returns up to k results ranked by similarity. When tagAs is
	// non-empty, each result's content type metadata is overridden with it.
	// Retrieve never returns an error: every failure path resolves to
	// fallback content.
	Retrieve(query string, k int, tagAs string) []domain.RetrievalResult
}
