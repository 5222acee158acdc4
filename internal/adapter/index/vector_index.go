package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"aria/internal/domain"
	"aria/internal/port"
)

// VectorIndex is an in-memory brute-force similarity index over document
// chunks. Documents, embeddings and metadata are parallel slices sharing
// one index space.
type VectorIndex struct {
	mu        sync.RWMutex
	docs      []string
	vectors   [][]float32
	metas     []domain.Metadata
	dimension int
	rebuilt   bool
	logger    *zap.Logger
}

// NewVectorIndex wraps loaded index data. The embedding matrix is not
// validated here; EnsureEmbeddings checks shape and rebuilds if needed.
func NewVectorIndex(data domain.IndexData, dimension int, logger *zap.Logger) *VectorIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dimension <= 0 {
		dimension = 384
	}
	return &VectorIndex{
		docs:      data.Documents,
		vectors:   data.Embeddings,
		metas:     data.Metadatas,
		dimension: dimension,
		logger:    logger,
	}
}

// EnsureEmbeddings verifies the embedding matrix matches the documents in
// row count and the configured dimension in column count. On mismatch it
// re-encodes every document in batches and atomically swaps the matrix in.
// The rebuild runs at most once per process; a second mismatch after a
// rebuild means the encoder itself disagrees with the configuration, and
// retrying would loop forever.
func (idx *VectorIndex) EnsureEmbeddings(embedder port.Embedder, batchSize int) error {
	idx.mu.RLock()
	ok := idx.shapeValid()
	rebuilt := idx.rebuilt
	rows, docs := len(idx.vectors), len(idx.docs)
	idx.mu.RUnlock()

	if ok {
		return nil
	}
	if rebuilt {
		return fmt.Errorf("embedding shape still invalid after rebuild: %d rows for %d documents", rows, docs)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Re-check under the write lock; another caller may have rebuilt.
	if idx.shapeValid() {
		return nil
	}
	if idx.rebuilt {
		return fmt.Errorf("embedding shape still invalid after rebuild: %d rows for %d documents", len(idx.vectors), len(idx.docs))
	}
	idx.rebuilt = true

	idx.logger.Warn("embedding matrix does not match documents, rebuilding",
		zap.Int("documents", len(idx.docs)),
		zap.Int("rows", len(idx.vectors)),
		zap.Int("dimension", idx.dimension))

	if batchSize <= 0 {
		batchSize = 64
	}

	fresh := make([][]float32, 0, len(idx.docs))
	for i := 0; i < len(idx.docs); i += batchSize {
		end := i + batchSize
		if end > len(idx.docs) {
			end = len(idx.docs)
		}

		vectors, err := embedder.Embed(idx.docs[i:end])
		if err != nil {
			return fmt.Errorf("rebuild batch %d: %w", i/batchSize, err)
		}
		fresh = append(fresh, vectors...)
	}

	idx.vectors = fresh
	idx.logger.Info("embedding matrix rebuilt", zap.Int("documents", len(idx.docs)))
	return nil
}

// shapeValid is called with the lock held.
func (idx *VectorIndex) shapeValid() bool {
	if len(idx.vectors) != len(idx.docs) {
		return false
	}
	for _, v := range idx.vectors {
		if len(v) != idx.dimension {
			return false
		}
	}
	return true
}

// Similarities returns the cosine similarity of the query against every
// document, in document order.
func (idx *VectorIndex) Similarities(query []float32) []float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make([]float64, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = cosineSimilarity(query, v)
	}
	return scores
}

// SearchResult pairs a document index with its similarity score.
type SearchResult struct {
	Index int
	Score float64
}

// Search returns the top k documents by cosine similarity. Ties keep
// document order, so repeated queries return identical rankings. An empty
// index yields an empty result.
func (idx *VectorIndex) Search(query []float32, k int) []SearchResult {
	scores := idx.Similarities(query)
	return TopK(scores, k)
}

// TopK selects the k highest scores, breaking ties by lower index.
func TopK(scores []float64, k int) []SearchResult {
	if len(scores) == 0 || k <= 0 {
		return nil
	}

	results := make([]SearchResult, len(scores))
	for i, s := range scores {
		results[i] = SearchResult{Index: i, Score: s}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

func (idx *VectorIndex) Dimension() int {
	return idx.dimension
}

func (idx *VectorIndex) Document(i int) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docs[i]
}

func (idx *VectorIndex) Metadata(i int) domain.Metadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if i >= len(idx.metas) {
		return domain.Metadata{}
	}
	return idx.metas[i]
}

// Data returns a copy of the index content, for persisting a snapshot.
func (idx *VectorIndex) Data() domain.IndexData {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return domain.IndexData{
		Documents:  append([]string(nil), idx.docs...),
		Embeddings: append([][]float32(nil), idx.vectors...),
		Metadatas:  append([]domain.Metadata(nil), idx.metas...),
	}
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
