package models

import "time"

// Document is one source file of the corpus after text extraction.
type Document struct {
	ID     string
	Source string
	Text   string
}

// Chunk is a contiguous span of a document's text with derived metadata.
// Metadata keys: "source", and when detected "school" and "program".
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Metadata   map[string]string
}

// ScoredChunk pairs a chunk with its relevance score for one query.
// Scores are comparable only within a single result set.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult is the ranked output of one retrieval call.
type RetrievalResult struct {
	Query  string
	Chunks []ScoredChunk
}

// Filter restricts search to chunks whose metadata matches every entry.
type Filter map[string]string

// Matches reports whether the chunk metadata satisfies the filter.
func (f Filter) Matches(meta map[string]string) bool {
	for k, v := range f {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// Stats describes the currently served index.
type Stats struct {
	ChunkCount       int       `json:"chunk_count"`
	BuiltAt          time.Time `json:"index_built_at"`
	BuildID          string    `json:"build_id"`
	EmbeddingModelID string    `json:"embedding_model_id"`
	Sources          []string  `json:"sources"`
}
