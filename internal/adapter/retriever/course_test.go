package retriever

import (
	"errors"
	"testing"

	"aria/internal/adapter/index"
	"aria/internal/domain"
)

// fixedEmbedder maps known texts to fixed vectors and everything else to a
// constant query vector, so similarity ordering is controlled by the test.
type fixedEmbedder struct {
	dimension int
	vectors   map[string][]float32
	fallback  []float32
	err       error
}

func (e *fixedEmbedder) Embed(texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

func (e *fixedEmbedder) Dimension() int    { return e.dimension }
func (e *fixedEmbedder) ModelName() string { return "fixed" }

func staticsIndex(t *testing.T) (*index.VectorIndex, *fixedEmbedder) {
	t.Helper()

	docs := []string{
		"The moment of a force about point A equals force times perpendicular distance. Taking moments about point A eliminates the reaction at A.",
		"Work done by an external couple equals the area under its rotation curve.",
		"The centroid of a composite area is found from the weighted sum of part centroids.",
	}
	// All documents equally similar to the query by embedding alone; the
	// keyword boost must break the tie.
	data := domain.IndexData{
		Documents: docs,
		Embeddings: [][]float32{
			{1, 0},
			{1, 0},
			{1, 0},
		},
		Metadatas: []domain.Metadata{
			{SourceFile: "moments.json", ContentType: domain.ContentCourseSlide, Topic: "moments"},
			{SourceFile: "work.json", ContentType: domain.ContentCourseSlide, Topic: "virtual work"},
			{SourceFile: "centroids.json", ContentType: domain.ContentCourseSlide, Topic: "centroids"},
		},
	}
	emb := &fixedEmbedder{dimension: 2, fallback: []float32{1, 0}}
	return index.NewVectorIndex(data, 2, nil), emb
}

func TestRetrieveKeywordBoostRanksMatchingDocFirst(t *testing.T) {
	idx, emb := staticsIndex(t)
	r := NewCourseRetriever(emb, idx, Options{}, nil)

	results := r.Retrieve("moment about point A", 3, "")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Source != "moments.json" {
		t.Errorf("top result source = %q, want moments.json", results[0].Source)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("boosted score %f not above unboosted %f", results[0].Score, results[1].Score)
	}
}

func TestKeywordBoostCappedAtSixTerms(t *testing.T) {
	boost := keywordBoost("stress and strain under a bending moment cause shear force and deflection in the beam")
	if boost < 1.299 || boost > 1.301 {
		t.Errorf("boost = %f, want cap 1.30", boost)
	}
}

func TestKeywordBoostCountsTermsNotOccurrences(t *testing.T) {
	boost := keywordBoost("moment moment moment moment moment moment moment")
	if boost < 1.049 || boost > 1.051 {
		t.Errorf("boost = %f, want 1.05 for a single repeated term", boost)
	}
	if got := keywordBoost("the quick brown fox jumps over the lazy dog"); got != 1 {
		t.Errorf("boost = %f for text without course vocabulary, want 1", got)
	}
}

func TestRetrieveOffTopicQueryLeavesRankingUnboosted(t *testing.T) {
	idx, emb := staticsIndex(t)
	r := NewCourseRetriever(emb, idx, Options{CacheSize: -1}, nil)

	if queryMentionsDomain("please summarize yesterday discussion again") {
		t.Fatal("query without course vocabulary should not trigger the boost")
	}

	results := r.Retrieve("please summarize yesterday discussion again", 3, "")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// All embeddings are identical, so without the boost the ranking stays
	// in document order with equal scores.
	want := []string{"moments.json", "work.json", "centroids.json"}
	for i, res := range results {
		if res.Source != want[i] {
			t.Errorf("rank %d source = %q, want %q", i, res.Source, want[i])
		}
		if res.Score != results[0].Score {
			t.Errorf("rank %d score = %f, want equal unboosted scores", i, res.Score)
		}
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	idx, emb := staticsIndex(t)
	r := NewCourseRetriever(emb, idx, Options{CacheSize: -1}, nil)

	a := r.Retrieve("equilibrium of forces", 3, "")
	b := r.Retrieve("equilibrium of forces", 3, "")
	if len(a) != len(b) {
		t.Fatalf("result count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Source != b[i].Source || a[i].Score != b[i].Score {
			t.Errorf("rank %d differs between runs", i)
		}
	}
}

func TestRetrieveTagOverride(t *testing.T) {
	idx, emb := staticsIndex(t)
	r := NewCourseRetriever(emb, idx, Options{}, nil)

	results := r.Retrieve("centroid of area", 2, domain.ContentExerciseSolution)
	for i, res := range results {
		if res.Metadata.ContentType != domain.ContentExerciseSolution {
			t.Errorf("result %d content type = %q, want override", i, res.Metadata.ContentType)
		}
	}
}

func TestRetrieveEmptyIndexFallback(t *testing.T) {
	idx := index.NewVectorIndex(domain.IndexData{}, 2, nil)
	emb := &fixedEmbedder{dimension: 2, fallback: []float32{1, 0}}
	r := NewCourseRetriever(emb, idx, Options{}, nil)

	for k := 1; k <= 3; k++ {
		results := r.Retrieve("anything", k, "")
		if len(results) != k {
			t.Errorf("k=%d: got %d fallback results", k, len(results))
		}
	}

	results := r.Retrieve("anything", 2, "")
	if results[0].Source != "statics_overview.md" || results[0].Score != 0.70 {
		t.Errorf("unexpected first fallback: %q %f", results[0].Source, results[0].Score)
	}
}

func TestRetrieveEmbedFailureFallback(t *testing.T) {
	idx, _ := staticsIndex(t)
	emb := &fixedEmbedder{dimension: 2, err: errors.New("encoder offline")}
	r := NewCourseRetriever(emb, idx, Options{}, nil)

	results := r.Retrieve("shear stress in a bolt", 3, "")
	if len(results) != 3 {
		t.Fatalf("expected 3 fallback results, got %d", len(results))
	}
	if results[2].Metadata.ContentType != domain.ContentExerciseSolution {
		t.Errorf("third fallback content type = %q", results[2].Metadata.ContentType)
	}
}

func TestRetrieveCacheHit(t *testing.T) {
	idx, emb := staticsIndex(t)
	r := NewCourseRetriever(emb, idx, Options{CacheSize: 10}, nil)

	first := r.Retrieve("bending moment diagram", 2, "")
	// Poison the embedder; a cache hit must not touch it.
	emb.err = errors.New("offline")
	second := r.Retrieve("bending moment diagram", 2, "")

	if len(first) != len(second) {
		t.Fatalf("cache returned different count")
	}
	for i := range first {
		if first[i].Source != second[i].Source {
			t.Errorf("cached rank %d differs", i)
		}
	}

	// A different tag is a different cache entry.
	third := r.Retrieve("bending moment diagram", 2, domain.ContentExerciseQuestion)
	if third[0].Source == first[0].Source && third[0].Metadata.ContentType == first[0].Metadata.ContentType {
		t.Errorf("tagged query should not reuse untagged entry verbatim")
	}
}

func TestFacetHelpers(t *testing.T) {
	idx, emb := staticsIndex(t)
	r := NewCourseRetriever(emb, idx, Options{ConceptK: 3, ExerciseK: 2, SolutionK: 1}, nil)

	if got := r.ConceptContent("truss analysis"); len(got) != 3 {
		t.Errorf("concept facet returned %d, want 3", len(got))
	}

	exercises := r.SimilarExercises("truss analysis")
	if len(exercises) != 2 {
		t.Fatalf("exercise facet returned %d, want 2", len(exercises))
	}
	for _, res := range exercises {
		if res.Metadata.ContentType != domain.ContentExerciseQuestion {
			t.Errorf("exercise facet content type = %q", res.Metadata.ContentType)
		}
	}

	solutions := r.SolutionGuidance("truss analysis")
	if len(solutions) != 1 {
		t.Fatalf("solution facet returned %d, want 1", len(solutions))
	}
	if solutions[0].Metadata.ContentType != domain.ContentExerciseSolution {
		t.Errorf("solution facet content type = %q", solutions[0].Metadata.ContentType)
	}
}

func TestQueryCacheEviction(t *testing.T) {
	c := NewQueryCache(2)

	c.Put("a", 1, "", []domain.RetrievalResult{{Source: "a"}})
	c.Put("b", 1, "", []domain.RetrievalResult{{Source: "b"}})
	c.Put("c", 1, "", []domain.RetrievalResult{{Source: "c"}})

	if _, hit := c.Get("a", 1, ""); hit {
		t.Error("oldest entry should have been evicted")
	}
	if _, hit := c.Get("c", 1, ""); !hit {
		t.Error("newest entry missing")
	}
	if c.Size() != 2 {
		t.Errorf("cache size = %d, want 2", c.Size())
	}
}
