package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"aria/internal/domain"
)

// FallbackLog appends interaction records to a JSONL file when the
// conversation database is unavailable. Its own failures are logged and
// swallowed; losing a log line must never break a response.
type FallbackLog struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewFallbackLog(path string, logger *zap.Logger) *FallbackLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackLog{path: path, logger: logger}
}

type fallbackEntry struct {
	Timestamp      string   `json:"timestamp"`
	SessionID      string   `json:"session_id"`
	Question       string   `json:"question"`
	Response       string   `json:"response"`
	ContextSources []string `json:"context_sources"`
	ConceptsUsed   []string `json:"concepts_used"`
	ResponseTime   float64  `json:"response_time"`
	Error          string   `json:"error,omitempty"`
}

// Append writes one record as a JSON line.
func (l *FallbackLog) Append(rec domain.ConversationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fallbackEntry{
		Timestamp:      rec.CreatedAt.Format(time.RFC3339),
		SessionID:      rec.SessionID,
		Question:       rec.Question,
		Response:       rec.Response,
		ContextSources: rec.ContextSources,
		ConceptsUsed:   rec.ConceptsUsed,
		ResponseTime:   rec.ResponseTime,
		Error:          rec.Error,
	}
	if rec.CreatedAt.IsZero() {
		entry.Timestamp = time.Now().Format(time.RFC3339)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("failed to encode fallback log entry", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		l.logger.Warn("failed to create fallback log dir", zap.Error(err))
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.logger.Warn("failed to open fallback log", zap.String("path", l.path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.logger.Warn("failed to write fallback log entry", zap.Error(err))
	}
}
