package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the teaching assistant.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Chat      ChatConfig      `yaml:"chat"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig holds document ingestion configuration.
type CorpusConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`    // soft chunk size in characters
	ChunkOverlap int      `yaml:"chunk_overlap"` // overlap in words
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g., "all-minilm"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// RetrieveConfig holds retrieval and context assembly configuration.
type RetrieveConfig struct {
	ConceptK         int `yaml:"concept_k"`          // broad concept facet
	ExerciseK        int `yaml:"exercise_k"`         // worked-example facet
	SolutionK        int `yaml:"solution_k"`         // solution-guidance facet
	MaxContextChunks int `yaml:"max_context_chunks"` // cap after dedup
	CacheSize        int `yaml:"cache_size"`         // query cache entries (0 = disabled)
}

// ChatConfig holds generation configuration.
type ChatConfig struct {
	Provider      string  `yaml:"provider"` // "openai", "deepseek", "local"
	Model         string  `yaml:"model"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	BaseURL       string  `yaml:"base_url"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	HistoryTurns  int     `yaml:"history_turns"`
	RelevanceGate string  `yaml:"relevance_gate"` // "always" or "keyword"
}

// StorageConfig holds conversation logging configuration.
type StorageConfig struct {
	ConversationDB string `yaml:"conversation_db"`
	FallbackLog    string `yaml:"fallback_log"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Includes:     []string{"**/*.json"},
			Excludes:     []string{"**/embeddings/**", "**/logs/**", "**/.git/**"},
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 64,
		},
		Retrieve: RetrieveConfig{
			ConceptK:         8,
			ExerciseK:        2,
			SolutionK:        2,
			MaxContextChunks: 8,
			CacheSize:        100,
		},
		Chat: ChatConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			APIKeyEnv:     "OPENAI_API_KEY",
			MaxTokens:     500,
			Temperature:   0.2,
			HistoryTurns:  6,
			RelevanceGate: "always",
		},
		Storage: StorageConfig{
			ConversationDB: "data/conversations.db",
			FallbackLog:    "logs/ta_interactions.jsonl",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for aria.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "aria.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".aria", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SnapshotPath returns the path to the persisted embedding snapshot.
func SnapshotPath(dir string) string {
	return filepath.Join(dir, "embeddings", "embeddings_data.json")
}

// SpansSnapshotPath returns the path to the spans-schema snapshot written
// by older corpus builders.
func SpansSnapshotPath(dir string) string {
	return filepath.Join(dir, "embeddings", "kb.json")
}

// ConversationDBPath resolves the conversation database path against dir.
func (c *Config) ConversationDBPath(dir string) string {
	if filepath.IsAbs(c.Storage.ConversationDB) {
		return c.Storage.ConversationDB
	}
	return filepath.Join(dir, c.Storage.ConversationDB)
}

// FallbackLogPath resolves the fallback interaction log path against dir.
func (c *Config) FallbackLogPath(dir string) string {
	if filepath.IsAbs(c.Storage.FallbackLog) {
		return c.Storage.FallbackLog
	}
	return filepath.Join(dir, c.Storage.FallbackLog)
}

// EnsureDataDirs creates the directories the assistant writes into.
func EnsureDataDirs(dir string) error {
	for _, sub := range []string{"embeddings", "data", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return err
		}
	}
	return nil
}
