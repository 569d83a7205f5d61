package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"orienta-rag/internal/helper"
	"orienta-rag/internal/models"
)

var (
	// ErrInvalidArgument flags bad caller input such as k <= 0.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDimensionMismatch flags vectors whose dimension disagrees with the
	// index. Always a build-time configuration bug.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Index is an exact brute-force cosine-similarity vector index. Build
// replaces the contents wholesale under the write lock, so concurrent
// readers observe either the old or the new contents, never a partial
// build. Fine at corpus scale of tens to low hundreds of documents.
type Index struct {
	mu        sync.RWMutex
	modelID   string
	dimension int
	chunks    []models.Chunk
	vectors   [][]float32
	norms     []float64
	buildID   string
	builtAt   time.Time
}

// New creates an empty index bound to an embedding model identifier.
// The dimension is fixed by the first Build.
func New(modelID string) *Index {
	return &Index{modelID: modelID}
}

// Build replaces the index contents with the given chunks and vectors.
func (ix *Index) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", ErrInvalidArgument, len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	buildID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}

	// Stage everything before taking the lock so queries are blocked only
	// for the swap itself.
	stagedChunks := make([]models.Chunk, len(chunks))
	copy(stagedChunks, chunks)
	stagedVectors := make([][]float32, len(vectors))
	copy(stagedVectors, vectors)
	stagedNorms := computeNorms(stagedVectors)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dimension != 0 && dim != 0 && dim != ix.dimension {
		return fmt.Errorf("%w: index has dimension %d, vectors have %d", ErrDimensionMismatch, ix.dimension, dim)
	}
	ix.chunks = stagedChunks
	ix.vectors = stagedVectors
	ix.norms = stagedNorms
	if dim != 0 {
		ix.dimension = dim
	}
	ix.buildID = buildID
	ix.builtAt = time.Now().UTC()
	return nil
}

// Search returns up to k nearest chunks by cosine similarity, ordered by
// score descending with ties broken by chunk id ascending. An optional
// filter restricts candidates by metadata equality; the result equals
// searching the whole index and discarding non-matching chunks. Searching
// an empty index returns an empty result.
func (ix *Index) Search(ctx context.Context, vector []float32, k int, filter models.Filter) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be > 0, got %d", ErrInvalidArgument, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(vector), ix.dimension)
	}

	queryNorm := vectorNorm(vector)
	results := make([]models.ScoredChunk, 0, len(ix.chunks))
	for i, chunk := range ix.chunks {
		if len(filter) > 0 && !filter.Matches(chunk.Metadata) {
			continue
		}
		results = append(results, models.ScoredChunk{
			Chunk: chunk,
			Score: cosine(ix.vectors[i], vector, ix.norms[i], queryNorm),
		})
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Chunk.ID < results[b].Chunk.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Size reports the number of indexed chunks.
func (ix *Index) Size(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks), nil
}

// ModelID returns the embedding model identifier the index was built with.
func (ix *Index) ModelID() string { return ix.modelID }

// Stats summarizes the current contents.
func (ix *Index) Stats() models.Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	seen := make(map[string]struct{})
	var sources []string
	for _, c := range ix.chunks {
		src := c.Metadata[models.MetaSource]
		if _, ok := seen[src]; ok || src == "" {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return models.Stats{
		ChunkCount:       len(ix.chunks),
		BuiltAt:          ix.builtAt,
		BuildID:          ix.buildID,
		EmbeddingModelID: ix.modelID,
		Sources:          sources,
	}
}

func computeNorms(vectors [][]float32) []float64 {
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = vectorNorm(v)
	}
	return norms
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
