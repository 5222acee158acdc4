package port

import "aria/internal/domain"

// LLM represents a chat completion service for text generation.
type LLM interface {
	// Chat sends the full message sequence (system prompt, history, user
	// turn) and returns the assistant reply text.
	Chat(messages []domain.Turn) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
