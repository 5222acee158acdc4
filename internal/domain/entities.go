package domain

import "time"

// Metadata carries provenance and classification for a chunk of course
// content. ContentType is one of the Content* constants or a caller tag.
type Metadata struct {
	SourceFile  string            `json:"source_file"`
	ContentType string            `json:"content_type"`
	Topic       string            `json:"topic"`
	Concepts    []string          `json:"concepts,omitempty"`
	Formulas    []string          `json:"formulas,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

const (
	ContentCourseSlide      = "course_slide"
	ContentExerciseQuestion = "exercise_question"
	ContentExerciseSolution = "exercise_solution"
)

// Chunk is the atomic retrievable unit of course text.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// RetrievalResult is one ranked hit from the retriever, scoped to a query.
type RetrievalResult struct {
	Text     string
	Metadata Metadata
	Score    float64
	Source   string
}

// Turn is a single message in a conversation. The core reads history turns
// but does not own their persistence.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Answer is the structured response returned to the UI boundary.
type Answer struct {
	Response         string   `json:"response"`
	RelevantTopics   []string `json:"relevant_topics"`
	ConceptsCovered  []string `json:"concepts_covered"`
	SuggestedReview  []string `json:"suggested_review"`
	ContextSources   []string `json:"context_sources"`
	IsCourseRelevant bool     `json:"is_course_relevant"`
}

// IndexData is the canonical in-memory index shape: parallel arrays where
// index i refers to the same logical chunk in all three.
type IndexData struct {
	Documents  []string
	Embeddings [][]float32
	Metadatas  []Metadata
}

// ConversationRecord is one logged question/answer exchange.
type ConversationRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Question       string    `json:"question"`
	Response       string    `json:"response"`
	ContextSources []string  `json:"context_sources"`
	ConceptsUsed   []string  `json:"concepts_used"`
	ResponseTime   float64   `json:"response_time"`
	Feedback       string    `json:"feedback,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
