package corpus

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"aria/internal/domain"
)

// Chunker splits extracted document text into retrievable segments.
type Chunker interface {
	Chunk(text string) []string
}

// Key engineering concepts tagged onto chunks during extraction.
var conceptTerms = []string{
	"stress", "strain", "moment", "force", "equilibrium", "deflection",
	"torsion", "bending", "shear", "axial", "centroid", "inertia",
	"beam", "truss", "frame", "column", "buckling", "fatigue",
}

// Extractor turns raw course JSON files into tagged chunks. Slide files
// become course_slide chunks; exercise files contribute their questions
// and solutions as separate chunk streams.
type Extractor struct {
	chunker Chunker
}

func NewExtractor(chunker Chunker) *Extractor {
	return &Extractor{chunker: chunker}
}

// Extract parses one JSON file into chunks. Exercise files are detected by
// top-level "questions" or "solutions" arrays; everything else is treated
// as slide content.
func (e *Extractor) Extract(path string, data []byte) ([]domain.Chunk, error) {
	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	questions, hasQuestions := content["questions"].([]any)
	solutions, hasSolutions := content["solutions"].([]any)

	if !hasQuestions && !hasSolutions {
		return e.extractSlides(path, content), nil
	}

	var chunks []domain.Chunk
	for i, q := range questions {
		chunks = append(chunks, e.extractItems(path, q, domain.ContentExerciseQuestion, i)...)
	}
	for i, s := range solutions {
		chunks = append(chunks, e.extractItems(path, s, domain.ContentExerciseSolution, i)...)
	}
	return chunks, nil
}

func (e *Extractor) extractSlides(path string, content map[string]any) []domain.Chunk {
	text := ExtractText(content)
	meta := e.metadata(path, content, domain.ContentCourseSlide)

	var chunks []domain.Chunk
	for _, piece := range e.chunker.Chunk(text) {
		chunks = append(chunks, domain.Chunk{Text: piece, Metadata: meta})
	}
	return chunks
}

func (e *Extractor) extractItems(path string, item any, contentType string, idx int) []domain.Chunk {
	text := ExtractText(item)
	itemMap, _ := item.(map[string]any)
	meta := e.metadata(path, itemMap, contentType)
	meta.Extra = map[string]string{"item_index": fmt.Sprintf("%d", idx)}

	var chunks []domain.Chunk
	for _, piece := range e.chunker.Chunk(text) {
		chunks = append(chunks, domain.Chunk{Text: piece, Metadata: meta})
	}
	return chunks
}

func (e *Extractor) metadata(path string, content map[string]any, contentType string) domain.Metadata {
	topic, _ := content["topic"].(string)
	if topic == "" {
		topic = topicFromPath(path)
	}

	return domain.Metadata{
		SourceFile:  path,
		ContentType: contentType,
		Topic:       topic,
		Concepts:    ExtractConcepts(ExtractText(content)),
		Formulas:    ExtractFormulas(content),
	}
}

// ExtractText flattens nested JSON content into readable text. Recognized
// prose fields come first; remaining string and list values follow in key
// order so output is deterministic.
func ExtractText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, ExtractText(item))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		proseKeys := []string{"text", "content", "description", "explanation"}
		prose := make(map[string]bool, len(proseKeys))
		var parts []string
		for _, key := range proseKeys {
			if val, ok := v[key]; ok {
				parts = append(parts, ExtractText(val))
				prose[key] = true
			}
		}

		rest := make([]string, 0, len(v))
		for key := range v {
			if !prose[key] {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			switch val := v[key].(type) {
			case string:
				parts = append(parts, val)
			case []any:
				parts = append(parts, ExtractText(val))
			}
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ExtractConcepts returns the known engineering terms present in the text,
// in canonical term order.
func ExtractConcepts(text string) []string {
	textLower := strings.ToLower(text)
	var found []string
	for _, term := range conceptTerms {
		if strings.Contains(textLower, term) {
			found = append(found, term)
		}
	}
	return found
}

// ExtractFormulas collects values of keys mentioning formulas or equations.
func ExtractFormulas(content map[string]any) []string {
	var keys []string
	for key := range content {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "formula") || strings.Contains(lower, "equation") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var formulas []string
	for _, key := range keys {
		switch val := content[key].(type) {
		case string:
			formulas = append(formulas, val)
		case []any:
			for _, item := range val {
				formulas = append(formulas, fmt.Sprintf("%v", item))
			}
		}
	}
	return formulas
}

func topicFromPath(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(name, "_extracted")
}
