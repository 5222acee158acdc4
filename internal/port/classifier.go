package port

// RelevanceClassifier decides whether a question is in the course domain.
// The decision never blocks an answer; it only controls whether retrieval
// context and citations are attached.
type RelevanceClassifier interface {
	IsInDomain(question string) bool
}
