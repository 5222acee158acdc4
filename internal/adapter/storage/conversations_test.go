package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aria/internal/domain"
)

func openTestStore(t *testing.T) *BoltConversationStore {
	t.Helper()
	store, err := NewBoltConversationStore(filepath.Join(t.TempDir(), "conversations.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAndRetrieveBySession(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, q := range []string{"first question", "second question", "third question"} {
		_, err := store.StoreConversation(domain.ConversationRecord{
			SessionID: "s1",
			Question:  q,
			Response:  "answer",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	if _, err := store.StoreConversation(domain.ConversationRecord{
		SessionID: "s2",
		Question:  "other session",
		CreatedAt: base,
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	records, err := store.SessionConversations("s1")
	if err != nil {
		t.Fatalf("SessionConversations: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Question != "first question" || records[2].Question != "third question" {
		t.Errorf("session records not oldest first: %q .. %q", records[0].Question, records[2].Question)
	}
}

func TestStoreAssignsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t)

	id, err := store.StoreConversation(domain.ConversationRecord{
		SessionID: "s1",
		Question:  "q",
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if id == "" {
		t.Fatal("expected assigned ID")
	}

	records, err := store.SessionConversations("s1")
	if err != nil {
		t.Fatalf("SessionConversations: %v", err)
	}
	if records[0].ID != id {
		t.Errorf("stored ID = %q, want %q", records[0].ID, id)
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("expected assigned timestamp")
	}
}

func TestRecentConversationsNewestFirst(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := store.StoreConversation(domain.ConversationRecord{
			SessionID: "s1",
			Question:  string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	records, err := store.RecentConversations(3)
	if err != nil {
		t.Fatalf("RecentConversations: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Question != "e" || records[2].Question != "c" {
		t.Errorf("not newest first: %q .. %q", records[0].Question, records[2].Question)
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	store := openTestStore(t)

	id, err := store.StoreConversation(domain.ConversationRecord{SessionID: "s1", Question: "q"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := store.UpdateFeedback(id, "excellent"); err == nil {
		t.Error("expected error for invalid feedback type")
	}
	if err := store.UpdateFeedback(id, FeedbackHelpful); err != nil {
		t.Fatalf("UpdateFeedback: %v", err)
	}

	records, _ := store.SessionConversations("s1")
	if records[0].Feedback != FeedbackHelpful {
		t.Errorf("feedback = %q, want helpful", records[0].Feedback)
	}

	if err := store.ClearFeedback(id); err != nil {
		t.Fatalf("ClearFeedback: %v", err)
	}
	records, _ = store.SessionConversations("s1")
	if records[0].Feedback != "" {
		t.Errorf("feedback not cleared: %q", records[0].Feedback)
	}

	if err := store.UpdateFeedback("missing", FeedbackHelpful); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

func TestConversationStats(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.ConversationStats()
	if err != nil {
		t.Fatalf("ConversationStats: %v", err)
	}
	if stats.TotalConversations != 0 {
		t.Errorf("empty store total = %d", stats.TotalConversations)
	}

	for i := 0; i < 4; i++ {
		_, err := store.StoreConversation(domain.ConversationRecord{
			SessionID:    "s1",
			Question:     "1234567890",
			Response:     "12345678901234567890",
			ResponseTime: 2.0,
		})
		if err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	stats, err = store.ConversationStats()
	if err != nil {
		t.Fatalf("ConversationStats: %v", err)
	}
	if stats.TotalConversations != 4 {
		t.Errorf("total = %d, want 4", stats.TotalConversations)
	}
	if stats.AvgResponseTime != 2.0 {
		t.Errorf("avg response time = %f", stats.AvgResponseTime)
	}
	if stats.AvgQuestionLength != 10 || stats.AvgResponseLength != 20 {
		t.Errorf("avg lengths = %f, %f", stats.AvgQuestionLength, stats.AvgResponseLength)
	}
}

func TestFallbackLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ta_interactions.jsonl")
	log := NewFallbackLog(path, nil)

	log.Append(domain.ConversationRecord{
		SessionID:      "s1",
		Question:       "What is shear stress?",
		Response:       "Shear stress acts parallel to the section.",
		ContextSources: []string{"Stress Strain Notes"},
		ResponseTime:   1.5,
	})
	log.Append(domain.ConversationRecord{
		SessionID: "s1",
		Question:  "second",
		Error:     "generation failed",
	})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines []fallbackEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry fallbackEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		lines = append(lines, entry)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if lines[0].Question != "What is shear stress?" || lines[0].Timestamp == "" {
		t.Errorf("unexpected first entry: %+v", lines[0])
	}
	if lines[1].Error != "generation failed" {
		t.Errorf("second entry error = %q", lines[1].Error)
	}
}
