package usecase

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"aria/internal/adapter/embedding"
	"aria/internal/adapter/index"
	"aria/internal/adapter/llm"
	"aria/internal/adapter/retriever"
	"aria/internal/domain"
	"aria/internal/port"
)

type memoryStore struct {
	records []domain.ConversationRecord
	err     error
}

func (m *memoryStore) StoreConversation(rec domain.ConversationRecord) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	rec.ID = "rec-1"
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *memoryStore) UpdateFeedback(string, string) error { return nil }
func (m *memoryStore) ClearFeedback(string) error          { return nil }
func (m *memoryStore) SessionConversations(string) ([]domain.ConversationRecord, error) {
	return nil, nil
}
func (m *memoryStore) RecentConversations(int) ([]domain.ConversationRecord, error) {
	return nil, nil
}
func (m *memoryStore) Close() error { return nil }

type captureLog struct {
	records []domain.ConversationRecord
}

func (c *captureLog) Append(rec domain.ConversationRecord) {
	c.records = append(c.records, rec)
}

func staticsRetriever() *stubRetriever {
	return &stubRetriever{
		concept: []domain.RetrievalResult{
			chunk("Equilibrium requires zero net force and moment.", "statics_overview.md", "Equilibrium", domain.ContentCourseSlide),
			chunk("Stress is force per unit area.", "stress_strain_notes.md", "Stress", domain.ContentCourseSlide),
		},
		solutions: []domain.RetrievalResult{
			chunk("Take moments about one support first.", "beam_solutions.md", "Reactions", domain.ContentExerciseSolution),
		},
	}
}

func TestRespondHappyPath(t *testing.T) {
	mock := &llm.MockLLM{Responses: []string{"Apply the equilibrium equations."}}
	store := &memoryStore{}
	r := NewResponder(NewAssembler(staticsRetriever(), 8), mock, ResponderOptions{Store: store})

	answer := r.Respond("How do I find beam reactions?", nil)

	if !answer.IsCourseRelevant {
		t.Error("default gate should accept every question")
	}
	if !strings.HasPrefix(answer.Response, "Apply the equilibrium equations.") {
		t.Errorf("response = %q", answer.Response)
	}
	if !strings.Contains(answer.Response, "Sources: [1] Statics Overview; [2] Stress Strain Notes; [3] Beam Solutions") {
		t.Errorf("missing numbered sources: %q", answer.Response)
	}
	if len(answer.ContextSources) != 3 {
		t.Errorf("context sources = %v", answer.ContextSources)
	}
	if len(answer.RelevantTopics) != 3 {
		t.Errorf("topics = %v", answer.RelevantTopics)
	}

	if len(store.records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.Question != "How do I find beam reactions?" || rec.SessionID != r.SessionID() {
		t.Errorf("stored record = %+v", rec)
	}
	if rec.ResponseTime < 0 {
		t.Errorf("response time = %f", rec.ResponseTime)
	}
}

func TestRespondSingleSourceUnnumbered(t *testing.T) {
	retr := &stubRetriever{
		concept: []domain.RetrievalResult{
			chunk("Only one chunk.", "torsion_notes.json", "Torsion", domain.ContentCourseSlide),
		},
	}
	mock := &llm.MockLLM{Responses: []string{"Answer."}}
	r := NewResponder(NewAssembler(retr, 8), mock, ResponderOptions{})

	answer := r.Respond("torsion?", nil)
	if !strings.Contains(answer.Response, "Sources: Torsion Notes") {
		t.Errorf("single source should be unnumbered: %q", answer.Response)
	}
	if strings.Contains(answer.Response, "[1]") {
		t.Errorf("unexpected numbering: %q", answer.Response)
	}
}

func TestRespondPromptContainsContextAndHistory(t *testing.T) {
	mock := &llm.MockLLM{Responses: []string{"ok"}}
	r := NewResponder(NewAssembler(staticsRetriever(), 8), mock, ResponderOptions{HistoryTurns: 2})

	history := []domain.Turn{
		{Role: domain.RoleUser, Content: "old question one"},
		{Role: domain.RoleAssistant, Content: "old answer one"},
		{Role: domain.RoleUser, Content: "old question two"},
		{Role: domain.RoleAssistant, Content: "old answer two"},
	}
	r.Respond("What is stress?", history)

	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(mock.Calls))
	}
	messages := mock.Calls[0]

	if messages[0].Role != domain.RoleSystem || !strings.Contains(messages[0].Content, "ARIA") {
		t.Errorf("first message should be the system prompt")
	}

	// Only the last 2 history turns survive.
	if len(messages) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(messages))
	}
	if messages[1].Content != "old question two" || messages[2].Content != "old answer two" {
		t.Errorf("history not truncated to most recent turns")
	}

	user := messages[3]
	if user.Role != domain.RoleUser {
		t.Fatalf("last message role = %q", user.Role)
	}
	for _, want := range []string{
		"Student Question: What is stress?",
		"--- COURSE_SLIDE: Equilibrium ---",
		"Concept Explanation",
		"Sources:",
	} {
		if !strings.Contains(user.Content, want) {
			t.Errorf("user message missing %q", want)
		}
	}
}

func TestRespondGenerationFailure(t *testing.T) {
	mock := &llm.MockLLM{Err: errors.New("rate limited")}
	store := &memoryStore{}
	r := NewResponder(NewAssembler(staticsRetriever(), 8), mock, ResponderOptions{Store: store})

	answer := r.Respond("What is strain?", nil)

	if !strings.Contains(answer.Response, "Technical issue") {
		t.Errorf("response = %q", answer.Response)
	}
	if !answer.IsCourseRelevant {
		t.Error("failure answer should remain course relevant")
	}
	if len(store.records) != 1 {
		t.Fatalf("failed exchange must still be logged")
	}
	if store.records[0].Error != "rate limited" {
		t.Errorf("stored error = %q", store.records[0].Error)
	}
}

func TestRespondStoreFailureFallsBackToLocalLog(t *testing.T) {
	mock := &llm.MockLLM{Responses: []string{"fine"}}
	store := &memoryStore{err: errors.New("db locked")}
	local := &captureLog{}
	r := NewResponder(NewAssembler(staticsRetriever(), 8), mock, ResponderOptions{
		Store:    store,
		Fallback: local,
	})

	answer := r.Respond("What is a truss?", nil)
	if strings.Contains(answer.Response, "Technical issue") {
		t.Errorf("store failure must not affect the response: %q", answer.Response)
	}
	if len(local.records) != 1 {
		t.Fatalf("expected fallback log record, got %d", len(local.records))
	}
	if local.records[0].Question != "What is a truss?" {
		t.Errorf("fallback record = %+v", local.records[0])
	}
}

func TestRespondKeywordGateOffTopicStillAnswered(t *testing.T) {
	mock := &llm.MockLLM{Responses: []string{"Paris. Now, back to beams?"}}
	store := &memoryStore{}
	r := NewResponder(NewAssembler(staticsRetriever(), 8), mock, ResponderOptions{
		Classifier: NewKeywordClassifier(),
		Store:      store,
	})

	answer := r.Respond("What is the capital of France?", nil)
	if answer.IsCourseRelevant {
		t.Error("off-topic question should be classified off-domain")
	}
	if answer.Response != "Paris. Now, back to beams?" {
		t.Errorf("response = %q", answer.Response)
	}
	if len(answer.ContextSources) != 0 || strings.Contains(answer.Response, "Sources:") {
		t.Error("off-domain answer must carry no retrieval context or citations")
	}

	// The off-domain prompt is context-free: system turn plus the raw question.
	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(mock.Calls))
	}
	messages := mock.Calls[0]
	if len(messages) != 2 || messages[1].Content != "What is the capital of France?" {
		t.Errorf("unexpected off-domain prompt: %+v", messages)
	}
	if strings.Contains(messages[0].Content, "context chunks") {
		t.Error("off-domain call should use the general system prompt")
	}

	if len(store.records) != 1 {
		t.Error("off-domain turn must still be logged")
	}

	accepted := r.Respond("How does a beam carry a 10 kN load?", nil)
	if !accepted.IsCourseRelevant {
		t.Error("course question should pass the gate")
	}
}

// End to end fail-soft: the encoder cannot load, the index is empty, and
// the student still gets a grounded answer citing the canned material.
func TestRespondWithBrokenEncoderServesFallbackSources(t *testing.T) {
	emb := embedding.NewLazyEmbedder(384, "all-minilm", nil, func() (port.Embedder, error) {
		return nil, errors.New("model weights missing")
	})
	idx := index.NewVectorIndex(domain.IndexData{}, 384, nil)
	retr := retriever.NewCourseRetriever(emb, idx, retriever.Options{}, nil)

	mock := &llm.MockLLM{Responses: []string{"Torsion twists shafts about their axis."}}
	r := NewResponder(NewAssembler(retr, 8), mock, ResponderOptions{})

	answer := r.Respond("explain torsion", nil)

	if answer.Response == "" {
		t.Fatal("expected non-empty response")
	}
	if len(answer.ContextSources) == 0 {
		t.Fatal("expected fallback context sources")
	}
	found := false
	for _, src := range answer.ContextSources {
		if src == "statics_overview.md" {
			found = true
		}
	}
	if !found {
		t.Errorf("fallback sources missing statics_overview.md: %v", answer.ContextSources)
	}
	if !strings.Contains(answer.Response, "Sources:") {
		t.Errorf("expected citations on fallback answer: %q", answer.Response)
	}
}

func TestPrettySourceNameHandlesMultibyteRunes(t *testing.T) {
	cases := map[string]string{
		"beam_solutions.md":  "Beam Solutions",
		"übung_solutions.md": "Übung Solutions",
		"στατική_notes.json": "Στατική Notes",
		"x.md":               "X",
	}
	for path, want := range cases {
		got := prettySourceName(path)
		if got != want {
			t.Errorf("prettySourceName(%q) = %q, want %q", path, got, want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("prettySourceName(%q) produced invalid UTF-8: %q", path, got)
		}
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := "Spannungsnachweis für Träger"
	for n := 0; n <= len(s); n++ {
		got := truncate(s, n)
		if len(got) > n {
			t.Fatalf("truncate(%q, %d) returned %d bytes", s, n, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q splits a rune", s, n, got)
		}
	}
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate should leave short strings alone, got %q", got)
	}
}

func TestNewSessionRotatesID(t *testing.T) {
	mock := &llm.MockLLM{}
	r := NewResponder(NewAssembler(&stubRetriever{}, 8), mock, ResponderOptions{})

	first := r.SessionID()
	if first == "" {
		t.Fatal("expected initial session ID")
	}
	second := r.NewSession()
	if second == first {
		t.Error("new session should change the ID")
	}
	if r.SessionID() != second {
		t.Error("SessionID should return the rotated ID")
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	for _, q := range []string{
		"Find the bending moment at midspan",
		"A column under 250 kN axial load",
		"what is stress concentration",
	} {
		if !c.IsInDomain(q) {
			t.Errorf("should accept %q", q)
		}
	}
	for _, q := range []string{
		"Best pasta recipe?",
		"Who won the match yesterday",
	} {
		if c.IsInDomain(q) {
			t.Errorf("should reject %q", q)
		}
	}
}
