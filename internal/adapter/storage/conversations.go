package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"aria/internal/domain"
)

var (
	bucketConversations = []byte("conversations")
	bucketByTime        = []byte("by_time")
	bucketBySession     = []byte("by_session")
)

// Valid feedback values.
const (
	FeedbackHelpful          = "helpful"
	FeedbackNotHelpful       = "not_helpful"
	FeedbackPartiallyHelpful = "partially_helpful"
)

// BoltConversationStore persists conversation records in BoltDB. Records
// live in the conversations bucket keyed by ID; two index buckets order
// them by time and by session.
type BoltConversationStore struct {
	db *bbolt.DB
}

func NewBoltConversationStore(path string) (*BoltConversationStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketConversations, bucketByTime, bucketBySession} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltConversationStore{db: db}, nil
}

// StoreConversation persists a record, assigning an ID and timestamp when
// they are missing.
func (s *BoltConversationStore) StoreConversation(rec domain.ConversationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		if err := tx.Bucket(bucketConversations).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByTime).Put(timeKey(rec.CreatedAt, rec.ID), []byte(rec.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketBySession).Put(sessionKey(rec.SessionID, rec.CreatedAt, rec.ID), []byte(rec.ID))
	})
	if err != nil {
		return "", fmt.Errorf("failed to store conversation: %w", err)
	}
	return rec.ID, nil
}

// UpdateFeedback sets the feedback value on a stored conversation.
func (s *BoltConversationStore) UpdateFeedback(id, feedbackType string) error {
	switch feedbackType {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackPartiallyHelpful:
	default:
		return fmt.Errorf("invalid feedback type: %s", feedbackType)
	}
	return s.setFeedback(id, feedbackType)
}

// ClearFeedback removes feedback from a stored conversation.
func (s *BoltConversationStore) ClearFeedback(id string) error {
	return s.setFeedback(id, "")
}

func (s *BoltConversationStore) setFeedback(id, feedback string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("conversation not found: %s", id)
		}

		var rec domain.ConversationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Feedback = feedback

		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

// SessionConversations returns all records for a session, oldest first.
func (s *BoltConversationStore) SessionConversations(sessionID string) ([]domain.ConversationRecord, error) {
	var records []domain.ConversationRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		convs := tx.Bucket(bucketConversations)
		c := tx.Bucket(bucketBySession).Cursor()

		prefix := append([]byte(sessionID), 0)
		for k, id := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = c.Next() {
			data := convs.Get(id)
			if data == nil {
				continue
			}
			var rec domain.ConversationRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session conversations: %w", err)
	}
	return records, nil
}

// RecentConversations returns up to limit records, newest first.
func (s *BoltConversationStore) RecentConversations(limit int) ([]domain.ConversationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []domain.ConversationRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		convs := tx.Bucket(bucketConversations)
		c := tx.Bucket(bucketByTime).Cursor()

		for k, id := c.Last(); k != nil && len(records) < limit; k, id = c.Prev() {
			data := convs.Get(id)
			if data == nil {
				continue
			}
			var rec domain.ConversationRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read recent conversations: %w", err)
	}
	return records, nil
}

// Stats summarizes stored conversations for the sessions command.
type Stats struct {
	TotalConversations int     `json:"total_conversations"`
	AvgResponseTime    float64 `json:"avg_response_time"`
	AvgQuestionLength  float64 `json:"avg_question_length"`
	AvgResponseLength  float64 `json:"avg_response_length"`
	RecentSampleSize   int     `json:"recent_sample_size"`
}

// ConversationStats computes totals plus averages over the 50 most recent
// records.
func (s *BoltConversationStore) ConversationStats() (Stats, error) {
	var stats Stats

	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.TotalConversations = tx.Bucket(bucketConversations).Stats().KeyN
		return nil
	})
	if err != nil {
		return stats, err
	}

	recent, err := s.RecentConversations(50)
	if err != nil {
		return stats, err
	}
	stats.RecentSampleSize = len(recent)
	if len(recent) == 0 {
		return stats, nil
	}

	var timeSum float64
	var timed int
	var qlen, rlen int
	for _, rec := range recent {
		if rec.ResponseTime > 0 {
			timeSum += rec.ResponseTime
			timed++
		}
		qlen += len(rec.Question)
		rlen += len(rec.Response)
	}
	if timed > 0 {
		stats.AvgResponseTime = timeSum / float64(timed)
	}
	stats.AvgQuestionLength = float64(qlen) / float64(len(recent))
	stats.AvgResponseLength = float64(rlen) / float64(len(recent))
	return stats, nil
}

func (s *BoltConversationStore) Close() error {
	return s.db.Close()
}

func timeKey(ts time.Time, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(ts.UnixNano()))
	return append(key, id...)
}

func sessionKey(sessionID string, ts time.Time, id string) []byte {
	key := make([]byte, 0, len(sessionID)+1+8+len(id))
	key = append(key, sessionID...)
	key = append(key, 0)
	var nano [8]byte
	binary.BigEndian.PutUint64(nano[:], uint64(ts.UnixNano()))
	key = append(key, nano[:]...)
	return append(key, id...)
}
