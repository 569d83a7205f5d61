package retriever

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"orienta-rag/internal/chunker"
	"orienta-rag/internal/config"
	"orienta-rag/internal/helper"
	"orienta-rag/internal/index"
	"orienta-rag/internal/models"
)

// overfetchFactor widens the candidate set before hybrid re-ranking.
const overfetchFactor = 4

// Embedder is the embedding capability the retriever consumes.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// Store is the vector index contract. Build replaces contents atomically;
// Search returns up to k nearest chunks, filtered by metadata equality.
type Store interface {
	Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int, filter models.Filter) ([]models.ScoredChunk, error)
	Size(ctx context.Context) (int, error)
}

// Retriever orchestrates corpus indexing and query-time retrieval.
type Retriever struct {
	store    Store
	embedder Embedder
	cfg      *config.Config
	stats    models.Stats
}

func New(store Store, embedder Embedder, cfg *config.Config) *Retriever {
	return &Retriever{store: store, embedder: embedder, cfg: cfg}
}

// IndexCorpus chunks every document, embeds the chunks in one batch and
// rebuilds the store. Running it twice on the same corpus and config yields
// a functionally equivalent index with the same chunk ids, so re-indexing
// after a persistence failure is safe.
func (r *Retriever) IndexCorpus(ctx context.Context, docs []models.Document, chunkCfg chunker.Config) error {
	chunks, err := chunker.SplitAll(docs, chunkCfg)
	if err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if err := r.store.Build(ctx, chunks, vectors); err != nil {
		return err
	}

	buildID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	r.stats = models.Stats{
		ChunkCount:       len(chunks),
		BuiltAt:          time.Now().UTC(),
		BuildID:          buildID,
		EmbeddingModelID: r.embedder.ModelID(),
		Sources:          distinctSources(chunks),
	}
	log.Info().
		Int("documents", len(docs)).
		Int("chunks", len(chunks)).
		Str("model", r.embedder.ModelID()).
		Msg("corpus indexed")
	return nil
}

// Retrieve embeds the query and returns the top-k passages, optionally
// restricted by a profile-derived metadata filter. k <= 0 selects the
// configured default. Embedding failures are surfaced, never papered over
// with a degraded result.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter models.Filter) (*models.RetrievalResult, error) {
	if k <= 0 {
		k = r.cfg.RAG.TopK
	}
	processed := PreprocessQuery(query)
	vector, err := r.embedder.EmbedQuery(ctx, processed)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	n := k
	if r.cfg.RAG.Hybrid {
		n = k * overfetchFactor
	}
	results, err := r.store.Search(ctx, vector, n, filter)
	if err != nil {
		return nil, err
	}
	if r.cfg.RAG.Hybrid {
		results = r.blendLexical(processed, results)
	}
	if r.cfg.RAG.MinScore > 0 {
		results = aboveThreshold(results, r.cfg.RAG.MinScore)
	}
	if len(results) > k {
		results = results[:k]
	}
	return &models.RetrievalResult{Query: query, Chunks: results}, nil
}

// Stats describes the currently served index.
func (r *Retriever) Stats(ctx context.Context) (models.Stats, error) {
	// A loaded memory index knows its own build metadata; other backends
	// report what the last IndexCorpus recorded.
	if ix, ok := r.store.(*index.Index); ok {
		return ix.Stats(), nil
	}
	stats := r.stats
	size, err := r.store.Size(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	stats.ChunkCount = size
	if stats.EmbeddingModelID == "" {
		stats.EmbeddingModelID = r.embedder.ModelID()
	}
	return stats, nil
}

// ProfileFilter derives a metadata filter from a student profile. Empty
// fields impose no restriction.
func ProfileFilter(school, program string) models.Filter {
	filter := models.Filter{}
	if school != "" {
		filter[models.MetaSchool] = school
	}
	if program != "" {
		filter[models.MetaProgram] = program
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// blendLexical combines the dense score with a token-overlap score and
// re-ranks the candidates.
func (r *Retriever) blendLexical(query string, results []models.ScoredChunk) []models.ScoredChunk {
	queryTokens := tokenSet(query)
	blended := make([]models.ScoredChunk, len(results))
	for i, res := range results {
		lexical := lexicalScore(queryTokens, res.Chunk.Text)
		res.Score = r.cfg.RAG.VectorWeight*res.Score + r.cfg.RAG.KeywordWeight*lexical
		blended[i] = res
	}
	sort.Slice(blended, func(a, b int) bool {
		if blended[a].Score != blended[b].Score {
			return blended[a].Score > blended[b].Score
		}
		return blended[a].Chunk.ID < blended[b].Chunk.ID
	})
	return blended
}

func aboveThreshold(results []models.ScoredChunk, min float64) []models.ScoredChunk {
	kept := results[:0]
	for _, res := range results {
		if res.Score >= min {
			kept = append(kept, res)
		}
	}
	return kept
}

func distinctSources(chunks []models.Chunk) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, c := range chunks {
		src := c.Metadata[models.MetaSource]
		if _, ok := seen[src]; ok || src == "" {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources
}
