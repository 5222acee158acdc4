package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"aria/internal/domain"
)

// The snapshot on disk comes in two schemas. The current builder writes the
// flat schema; older knowledge-base exports wrap each chunk in a span record
// with the source document inline. Load normalizes both to IndexData.

type flatSnapshot struct {
	Documents  []string          `json:"documents"`
	Embeddings [][]float32       `json:"embeddings"`
	Metadatas  []domain.Metadata `json:"metadatas"`
}

type spansSnapshot struct {
	Spans      []spanRecord `json:"spans"`
	Embeddings [][]float32  `json:"embeddings"`
}

type spanRecord struct {
	Doc  string `json:"doc"`
	Text string `json:"text"`
}

// Load reads a snapshot file, accepting either schema. A missing file
// returns empty data and no error so a fresh directory starts clean.
func Load(path string) (domain.IndexData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.IndexData{}, nil
		}
		return domain.IndexData{}, fmt.Errorf("read snapshot: %w", err)
	}

	return Decode(data)
}

// Decode parses snapshot bytes, detecting the schema by its fields.
func Decode(data []byte) (domain.IndexData, error) {
	var probe struct {
		Documents []string     `json:"documents"`
		Spans     []spanRecord `json:"spans"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return domain.IndexData{}, fmt.Errorf("parse snapshot: %w", err)
	}

	if probe.Spans != nil {
		var snap spansSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return domain.IndexData{}, fmt.Errorf("parse spans snapshot: %w", err)
		}
		out := domain.IndexData{
			Documents:  make([]string, len(snap.Spans)),
			Embeddings: snap.Embeddings,
			Metadatas:  make([]domain.Metadata, len(snap.Spans)),
		}
		for i, span := range snap.Spans {
			out.Documents[i] = span.Text
			out.Metadatas[i] = domain.Metadata{
				SourceFile:  span.Doc,
				ContentType: domain.ContentCourseSlide,
				Topic:       topicFromPath(span.Doc),
			}
		}
		return out, nil
	}

	var snap flatSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.IndexData{}, fmt.Errorf("parse snapshot: %w", err)
	}

	out := domain.IndexData{
		Documents:  snap.Documents,
		Embeddings: snap.Embeddings,
		Metadatas:  snap.Metadatas,
	}
	// Pad missing metadata so the slices stay parallel.
	for len(out.Metadatas) < len(out.Documents) {
		out.Metadatas = append(out.Metadatas, domain.Metadata{})
	}
	return out, nil
}

// Save writes the canonical flat schema.
func Save(path string, data domain.IndexData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	snap := flatSnapshot{
		Documents:  data.Documents,
		Embeddings: data.Embeddings,
		Metadatas:  data.Metadatas,
	}
	out, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func topicFromPath(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
