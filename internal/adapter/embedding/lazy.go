package embedding

import (
	"sync"

	"go.uber.org/zap"

	"aria/internal/port"
)

// LazyEmbedder defers construction of the underlying embedder until the
// first Embed call, so the assistant starts instantly and only pays the
// model/connection cost when a question actually arrives.
//
// If construction fails, Embed returns zero vectors of the configured
// dimension together with the error. Callers that ignore the error still
// receive vectors of the right shape; callers that check it can switch to
// fallback content.
type LazyEmbedder struct {
	construct func() (port.Embedder, error)
	dimension int
	model     string
	logger    *zap.Logger

	mu       sync.Mutex
	embedder port.Embedder
	failed   bool
	err      error
}

func NewLazyEmbedder(dimension int, model string, logger *zap.Logger, construct func() (port.Embedder, error)) *LazyEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LazyEmbedder{
		construct: construct,
		dimension: dimension,
		model:     model,
		logger:    logger,
	}
}

// load memoizes the construction attempt. A failed attempt is not retried:
// a broken model path or unreachable endpoint will not fix itself mid-run,
// and retrying on every query would stall the chat loop.
func (l *LazyEmbedder) load() (port.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.embedder != nil {
		return l.embedder, nil
	}
	if l.failed {
		return nil, l.err
	}

	emb, err := l.construct()
	if err != nil {
		l.failed = true
		l.err = err
		l.logger.Warn("embedder unavailable, degrading to zero vectors",
			zap.String("model", l.model),
			zap.Error(err))
		return nil, err
	}

	l.embedder = emb
	l.logger.Info("embedder ready",
		zap.String("model", emb.ModelName()),
		zap.Int("dimension", emb.Dimension()))
	return emb, nil
}

func (l *LazyEmbedder) Embed(texts []string) ([][]float32, error) {
	emb, err := l.load()
	if err != nil {
		return l.zeroVectors(len(texts)), err
	}

	vectors, err := emb.Embed(texts)
	if err != nil {
		l.logger.Warn("embedding request failed, degrading to zero vectors",
			zap.String("model", l.model),
			zap.Int("texts", len(texts)),
			zap.Error(err))
		return l.zeroVectors(len(texts)), err
	}
	return vectors, nil
}

func (l *LazyEmbedder) zeroVectors(n int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, l.dimension)
	}
	return vectors
}

func (l *LazyEmbedder) Dimension() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder != nil {
		return l.embedder.Dimension()
	}
	return l.dimension
}

func (l *LazyEmbedder) ModelName() string {
	return l.model
}
