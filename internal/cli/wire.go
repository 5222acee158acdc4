package cli

import (
	"fmt"

	"go.uber.org/zap"

	"aria/config"
	"aria/internal/adapter/embedding"
	"aria/internal/adapter/index"
	"aria/internal/adapter/llm"
	"aria/internal/adapter/retriever"
	"aria/internal/adapter/storage"
	"aria/internal/port"
	"aria/internal/usecase"
)

// newEmbedder wraps the configured provider in a lazy constructor, so
// commands that never embed anything never touch the endpoint.
func newEmbedder(cfg *config.Config) port.Embedder {
	ecfg := cfg.Embedding
	return embedding.NewLazyEmbedder(ecfg.Dimension, ecfg.Model, logger, func() (port.Embedder, error) {
		switch ecfg.Provider {
		case "mock":
			return embedding.NewMockEmbedder(ecfg.Dimension), nil
		case "ollama":
			return embedding.NewOllamaEmbedder(ecfg.Model, ecfg.BaseURL)
		case "openai":
			return embedding.NewOpenAIEmbedder(ecfg.APIKeyEnv, ecfg.Model)
		default:
			if ecfg.BaseURL != "" {
				return embedding.NewOpenAICompatibleEmbedder(ecfg.APIKeyEnv, ecfg.Model, ecfg.BaseURL)
			}
			return nil, fmt.Errorf("unknown embedding provider: %s", ecfg.Provider)
		}
	})
}

func newRetriever(cfg *config.Config, emb port.Embedder) (*retriever.CourseRetriever, error) {
	data, err := index.Load(config.SnapshotPath(rootDir))
	if err != nil {
		return nil, err
	}
	if len(data.Documents) == 0 {
		// Older builds wrote the spans schema under a different name.
		if spans, err := index.Load(config.SpansSnapshotPath(rootDir)); err == nil && len(spans.Documents) > 0 {
			data = spans
		}
	}

	idx := index.NewVectorIndex(data, cfg.Embedding.Dimension, logger)
	return retriever.NewCourseRetriever(emb, idx, retriever.Options{
		ConceptK:  cfg.Retrieve.ConceptK,
		ExerciseK: cfg.Retrieve.ExerciseK,
		SolutionK: cfg.Retrieve.SolutionK,
		CacheSize: cfg.Retrieve.CacheSize,
		BatchSize: cfg.Embedding.BatchSize,
	}, logger), nil
}

// newResponder assembles the full answering pipeline. A failed database
// open is downgraded to the local JSONL log.
func newResponder(cfg *config.Config) (*usecase.Responder, func(), error) {
	emb := newEmbedder(cfg)
	retr, err := newRetriever(cfg, emb)
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.NewClient(
		cfg.Chat.Provider, cfg.Chat.Model, cfg.Chat.BaseURL, cfg.Chat.APIKeyEnv,
		cfg.Chat.MaxTokens, cfg.Chat.Temperature)
	if err != nil {
		return nil, nil, err
	}

	var classifier port.RelevanceClassifier = usecase.AlwaysRelevant{}
	if cfg.Chat.RelevanceGate == "keyword" {
		classifier = usecase.NewKeywordClassifier()
	}

	var store port.ConversationStore
	cleanup := func() {}
	if err := config.EnsureDataDirs(rootDir); err != nil {
		logger.Warn("failed to prepare data directories", zap.Error(err))
	}
	bolt, err := storage.NewBoltConversationStore(cfg.ConversationDBPath(rootDir))
	if err != nil {
		logger.Warn("conversation db unavailable, using local log only", zap.Error(err))
	} else {
		store = bolt
		cleanup = func() { bolt.Close() }
	}

	fallback := storage.NewFallbackLog(cfg.FallbackLogPath(rootDir), logger)

	responder := usecase.NewResponder(usecase.NewAssembler(retr, cfg.Retrieve.MaxContextChunks), client, usecase.ResponderOptions{
		HistoryTurns: cfg.Chat.HistoryTurns,
		Classifier:   classifier,
		Store:        store,
		Fallback:     fallback,
		Logger:       logger,
	})
	return responder, cleanup, nil
}
