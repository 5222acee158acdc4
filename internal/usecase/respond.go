package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aria/internal/domain"
	"aria/internal/port"
)

const couldNotProcessMsg = "Technical issue while processing the question. Please try again."

const systemPrompt = `You are ARIA, an Academic Tutor for Engineering Statics and Mechanics of Materials.
Answer strictly from the provided context chunks built from course files.
If the context is insufficient, say so briefly. Be concise and factual.
Always format equations with LaTeX when applicable.
Example: $\sigma = \frac{M c}{I}$`

const generalSystemPrompt = `You are ARIA, a course assistant for Engineering Statics and Mechanics of Materials.
The student's question falls outside the course material. Answer briefly and
helpfully, then steer the student back to course topics such as equilibrium,
stress and strain, or beam analysis.`

// Responder orchestrates one question/answer exchange: gate, retrieve,
// prompt, generate, cite, log.
type Responder struct {
	assembler  *Assembler
	llm        port.LLM
	classifier port.RelevanceClassifier
	store      port.ConversationStore
	fallback   FallbackLogger

	historyTurns int
	sessionID    string
	logger       *zap.Logger
}

// FallbackLogger receives records the primary store could not take.
type FallbackLogger interface {
	Append(rec domain.ConversationRecord)
}

type ResponderOptions struct {
	HistoryTurns int
	Classifier   port.RelevanceClassifier
	Store        port.ConversationStore
	Fallback     FallbackLogger
	Logger       *zap.Logger
}

func NewResponder(assembler *Assembler, llm port.LLM, opts ResponderOptions) *Responder {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 6
	}
	if opts.Classifier == nil {
		opts.Classifier = AlwaysRelevant{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Responder{
		assembler:    assembler,
		llm:          llm,
		classifier:   opts.Classifier,
		store:        opts.Store,
		fallback:     opts.Fallback,
		historyTurns: opts.HistoryTurns,
		sessionID:    uuid.NewString(),
		logger:       opts.Logger,
	}
}

// Respond answers a student question grounded in retrieved course content.
// It always returns an Answer; failures surface as an apologetic response,
// never as an error to the caller.
func (r *Responder) Respond(question string, history []domain.Turn) domain.Answer {
	start := time.Now()

	// An off-domain question still gets an answer, just without retrieval
	// context or citations.
	if !r.classifier.IsInDomain(question) {
		r.logger.Info("question classified off-domain",
			zap.String("question", truncate(question, 100)))
		return r.respondOffDomain(question, history, start)
	}

	context, content := r.assembler.Assemble(question)
	r.logger.Info("retrieved context",
		zap.Int("chunks", len(content)),
		zap.Strings("sources", sourceFiles(content)))

	messages := r.buildMessages(question, context, history)

	reply, err := r.llm.Chat(messages)
	if err != nil {
		r.logger.Error("generation failed", zap.Error(err))
		r.logInteraction(question, couldNotProcessMsg, content, time.Since(start).Seconds(), err)
		return domain.Answer{
			Response:         couldNotProcessMsg,
			ContextSources:   sourceFiles(content),
			IsCourseRelevant: true,
		}
	}

	reply = strings.TrimSpace(reply)
	if reply != "" && len(content) > 0 {
		if refs := formatSourceReferences(content); refs != "" {
			reply += "\n\nSources: " + refs
		}
	}
	if reply == "" {
		reply = "The context provided does not contain relevant information."
	}

	r.logInteraction(question, reply, content, time.Since(start).Seconds(), nil)

	return domain.Answer{
		Response:         reply,
		RelevantTopics:   topics(content),
		ConceptsCovered:  concepts(content),
		SuggestedReview:  topics(content),
		ContextSources:   sourceFiles(content),
		IsCourseRelevant: true,
	}
}

func (r *Responder) respondOffDomain(question string, history []domain.Turn, start time.Time) domain.Answer {
	messages := []domain.Turn{{Role: domain.RoleSystem, Content: generalSystemPrompt}}
	if len(history) > r.historyTurns {
		history = history[len(history)-r.historyTurns:]
	}
	messages = append(messages, history...)
	messages = append(messages, domain.Turn{Role: domain.RoleUser, Content: question})

	reply, err := r.llm.Chat(messages)
	if err != nil {
		r.logger.Error("generation failed", zap.Error(err))
		r.logInteraction(question, couldNotProcessMsg, nil, time.Since(start).Seconds(), err)
		return domain.Answer{Response: couldNotProcessMsg}
	}

	reply = strings.TrimSpace(reply)
	r.logInteraction(question, reply, nil, time.Since(start).Seconds(), nil)
	return domain.Answer{
		Response:         reply,
		IsCourseRelevant: false,
	}
}

func (r *Responder) SessionID() string {
	return r.sessionID
}

// NewSession rotates the session ID, starting a fresh conversation thread.
func (r *Responder) NewSession() string {
	r.sessionID = uuid.NewString()
	r.logger.Info("started new session", zap.String("session_id", r.sessionID))
	return r.sessionID
}

func (r *Responder) buildMessages(question, context string, history []domain.Turn) []domain.Turn {
	messages := []domain.Turn{{Role: domain.RoleSystem, Content: systemPrompt}}

	if len(history) > r.historyTurns {
		history = history[len(history)-r.historyTurns:]
	}
	messages = append(messages, history...)

	userMessage := fmt.Sprintf(`Student Question: %s

Context (from course files):
%s

Provide a direct, source-grounded answer. If the context lacks the answer, state that briefly.

1. **Concept Explanation**: Summarize the statics or mechanics principle involved in concise, factual terms.
2. **Key Steps**: List the main steps or governing quantities (e.g., free body diagram, equilibrium equations, section properties).
3. **Formula Application**: State the relevant formulas and how each quantity enters them.

Citations:
- End with 'Sources:' and list filenames or section titles of the used chunks.

Answer style: concise, academic, no speculation.`, question, context)

	return append(messages, domain.Turn{Role: domain.RoleUser, Content: userMessage})
}

// logInteraction records the exchange in the conversation store, falling
// back to the local log when the store is missing or fails. Logging never
// affects the response.
func (r *Responder) logInteraction(question, response string, content []domain.RetrievalResult, seconds float64, genErr error) {
	rec := domain.ConversationRecord{
		SessionID:      r.sessionID,
		Question:       question,
		Response:       response,
		ContextSources: sourceFiles(content),
		ConceptsUsed:   concepts(content),
		ResponseTime:   seconds,
		CreatedAt:      time.Now(),
	}
	if genErr != nil {
		rec.Error = genErr.Error()
	}

	if r.store != nil {
		_, err := r.store.StoreConversation(rec)
		if err == nil {
			return
		}
		r.logger.Warn("failed to store conversation, falling back to local log", zap.Error(err))
	}
	if r.fallback != nil {
		r.fallback.Append(rec)
	}
}

// formatSourceReferences renders up to three unique source names, numbered
// when there is more than one.
func formatSourceReferences(content []domain.RetrievalResult) string {
	var names []string
	seen := make(map[string]bool)
	for _, c := range content {
		src := c.Metadata.SourceFile
		if src == "" {
			src = c.Source
		}
		if src == "" {
			src = "unknown"
		}
		name := prettySourceName(src)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	if len(names) > 3 {
		names = names[:3]
	}
	if len(names) == 1 {
		return names[0]
	}

	refs := make([]string, len(names))
	for i, n := range names {
		refs[i] = fmt.Sprintf("[%d] %s", i+1, n)
	}
	return strings.Join(refs, "; ")
}

// prettySourceName turns a file path into a readable title: the stem with
// underscores as spaces, words capitalized.
func prettySourceName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func sourceFiles(content []domain.RetrievalResult) []string {
	out := make([]string, 0, len(content))
	for _, c := range content {
		src := c.Metadata.SourceFile
		if src == "" {
			src = "unknown"
		}
		out = append(out, src)
	}
	return out
}

func concepts(content []domain.RetrievalResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range content {
		for _, concept := range c.Metadata.Concepts {
			if concept != "" && !seen[concept] {
				seen[concept] = true
				out = append(out, concept)
			}
		}
	}
	return out
}

func topics(content []domain.RetrievalResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range content {
		if t := c.Metadata.Topic; t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a character.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
