package retriever

import (
	"strings"

	"go.uber.org/zap"

	"aria/internal/adapter/index"
	"aria/internal/domain"
	"aria/internal/port"
)

// CourseRetriever ranks course chunks against a question by embedding
// similarity with a keyword boost. It never returns an error: any failure
// along the pipeline degrades to canned fallback content, because the chat
// loop must always have something to ground an answer in.
type CourseRetriever struct {
	embedder  port.Embedder
	index     *index.VectorIndex
	cache     *QueryCache
	batchSize int

	conceptK  int
	exerciseK int
	solutionK int

	logger *zap.Logger
}

type Options struct {
	ConceptK  int
	ExerciseK int
	SolutionK int
	CacheSize int
	BatchSize int
}

func NewCourseRetriever(embedder port.Embedder, idx *index.VectorIndex, opts Options, logger *zap.Logger) *CourseRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ConceptK <= 0 {
		opts.ConceptK = 8
	}
	if opts.ExerciseK <= 0 {
		opts.ExerciseK = 2
	}
	if opts.SolutionK <= 0 {
		opts.SolutionK = 2
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}

	var cache *QueryCache
	if opts.CacheSize > 0 {
		cache = NewQueryCache(opts.CacheSize)
	}

	return &CourseRetriever{
		embedder:  embedder,
		index:     idx,
		cache:     cache,
		batchSize: opts.BatchSize,
		conceptK:  opts.ConceptK,
		exerciseK: opts.ExerciseK,
		solutionK: opts.SolutionK,
		logger:    logger,
	}
}

// Retrieve returns up to k chunks ranked by boosted similarity. When tagAs
// is non-empty it overrides the content type on every result, so a facet
// query can label whatever it finds.
func (r *CourseRetriever) Retrieve(query string, k int, tagAs string) []domain.RetrievalResult {
	if k <= 0 {
		return nil
	}

	if r.cache != nil {
		if results, hit := r.cache.Get(query, k, tagAs); hit {
			return results
		}
	}

	results := r.retrieve(query, k, tagAs)

	if r.cache != nil {
		r.cache.Put(query, k, tagAs, results)
	}
	return results
}

func (r *CourseRetriever) retrieve(query string, k int, tagAs string) []domain.RetrievalResult {
	if r.index.Len() == 0 {
		r.logger.Warn("index is empty, serving fallback content")
		return r.fallback(k, tagAs)
	}

	if err := r.index.EnsureEmbeddings(r.embedder, r.batchSize); err != nil {
		r.logger.Warn("index rebuild failed, serving fallback content", zap.Error(err))
		return r.fallback(k, tagAs)
	}

	vectors, err := r.embedder.Embed([]string{query})
	if err != nil || len(vectors) == 0 {
		r.logger.Warn("query embedding failed, serving fallback content", zap.Error(err))
		return r.fallback(k, tagAs)
	}

	scores := r.index.Similarities(vectors[0])
	if queryMentionsDomain(query) {
		for i := range scores {
			scores[i] *= keywordBoost(r.index.Document(i))
		}
	}

	top := index.TopK(scores, k)
	results := make([]domain.RetrievalResult, 0, len(top))
	for _, hit := range top {
		meta := r.index.Metadata(hit.Index)
		if tagAs != "" {
			meta.ContentType = tagAs
		}
		results = append(results, domain.RetrievalResult{
			Text:     r.index.Document(hit.Index),
			Metadata: meta,
			Score:    hit.Score,
			Source:   meta.SourceFile,
		})
	}
	return results
}

func (r *CourseRetriever) fallback(k int, tagAs string) []domain.RetrievalResult {
	results := FallbackContent()
	if k < len(results) {
		results = results[:k]
	}
	if tagAs != "" {
		for i := range results {
			results[i].Metadata.ContentType = tagAs
		}
	}
	return results
}

// ConceptContent is the broad facet: general course material for the
// question as asked.
func (r *CourseRetriever) ConceptContent(query string) []domain.RetrievalResult {
	return r.Retrieve(query, r.conceptK, "")
}

// SimilarExercises steers retrieval toward worked problems and labels the
// hits as exercise questions.
func (r *CourseRetriever) SimilarExercises(query string) []domain.RetrievalResult {
	return r.Retrieve("worked example exercise: "+query, r.exerciseK, domain.ContentExerciseQuestion)
}

// SolutionGuidance steers retrieval toward solution steps and labels the
// hits as exercise solutions.
func (r *CourseRetriever) SolutionGuidance(query string) []domain.RetrievalResult {
	return r.Retrieve("solution approach and steps: "+query, r.solutionK, domain.ContentExerciseSolution)
}

// Fixed course vocabulary behind the keyword prior. A query outside this
// vocabulary leaves cosine ranking untouched.
var domainTerms = []string{
	"stress", "strain", "moment", "force", "equilibrium", "deflection",
	"torsion", "bending", "shear", "axial", "centroid", "inertia",
	"beam", "truss", "frame", "column", "buckling", "fatigue",
}

func queryMentionsDomain(query string) bool {
	q := strings.ToLower(query)
	for _, term := range domainTerms {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}

// keywordBoost multiplies similarity by up to 1.30: 5% per distinct domain
// term present in the document, counting at most 6 terms.
func keywordBoost(doc string) float64 {
	docLower := strings.ToLower(doc)
	hits := 0
	for _, term := range domainTerms {
		if strings.Contains(docLower, term) {
			hits++
			if hits == 6 {
				break
			}
		}
	}
	return 1 + 0.05*float64(hits)
}
