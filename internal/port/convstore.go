package port

import "aria/internal/domain"

// ConversationStore persists question/answer exchanges and feedback.
// The core only calls it; the storage schema belongs to the adapter.
type ConversationStore interface {
	// StoreConversation persists a record and returns its assigned ID.
	StoreConversation(rec domain.ConversationRecord) (string, error)

	// UpdateFeedback sets the feedback value for a stored conversation.
	UpdateFeedback(id, feedbackType string) error

	// ClearFeedback removes any feedback from a stored conversation.
	ClearFeedback(id string) error

	// SessionConversations returns all records for a session, oldest first.
	SessionConversations(sessionID string) ([]domain.ConversationRecord, error)

	// RecentConversations returns up to limit records, newest first.
	RecentConversations(limit int) ([]domain.ConversationRecord, error)

	Close() error
}
