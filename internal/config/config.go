package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 150
	defaultTopK         = 5
	defaultContextChars = 3000
)

// Config is the root configuration, loaded from a YAML file.
type Config struct {
	CorpusDir string      `yaml:"corpus_dir"`
	IndexPath string      `yaml:"index_path"`
	RAG       RAGConfig   `yaml:"rag"`
	EmbedLLM  LLMConfig   `yaml:"embed_llm"`
	Store     StoreConfig `yaml:"store"`
}

// RAGConfig controls chunking and retrieval behavior.
type RAGConfig struct {
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
	ContextChars  int     `yaml:"context_chars"`
	Hybrid        bool    `yaml:"hybrid"`
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// LLMConfig points at the embedding backend.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Database DatabaseConfig `yaml:"database"`
}

// ChromemConfig configures the chromem-go backend.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

// DatabaseConfig configures the pgvector backend.
type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Debug bool   `yaml:"debug"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "chromem", "pgvector":
		return nil
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.ContextChars == 0 {
		c.RAG.ContextChars = defaultContextChars
	}
	if c.RAG.VectorWeight == 0 && c.RAG.KeywordWeight == 0 {
		c.RAG.VectorWeight = 0.6
		c.RAG.KeywordWeight = 0.4
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Chromem.Collection == "" {
		c.Store.Chromem.Collection = "orienta_corpus"
	}
}
