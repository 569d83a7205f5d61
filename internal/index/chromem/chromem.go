package chromem

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	chromemgo "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"orienta-rag/internal/config"
	"orienta-rag/internal/index"
	"orienta-rag/internal/models"
)

// Metadata keys internal to this backend, stripped before chunks are
// returned to callers.
const (
	metaDocumentID = "_document_id"
	metaOrdinal    = "_ordinal"
)

// Store is a vector store backed by an embedded chromem-go collection.
// Persistence is handled by chromem itself when a path is configured.
type Store struct {
	db             *chromemgo.DB
	collectionName string
}

// New opens (or creates) a chromem database. An empty path selects an
// in-memory database, useful for tests.
func New(cfg config.ChromemConfig) (*Store, error) {
	var db *chromemgo.DB
	var err error
	if cfg.Path == "" {
		db = chromemgo.NewDB()
	} else {
		db, err = chromemgo.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database: %w", err)
		}
	}
	return &Store{db: db, collectionName: cfg.Collection}, nil
}

// Build replaces the collection wholesale with the given chunks and their
// precomputed embeddings.
func (s *Store) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", index.ErrInvalidArgument, len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	docs := make([]chromemgo.Document, 0, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d",
				index.ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		meta := map[string]string{
			metaDocumentID: chunk.DocumentID,
			metaOrdinal:    strconv.Itoa(chunk.Ordinal),
		}
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		docs = append(docs, chromemgo.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Metadata:  meta,
			Embedding: vectors[i],
		})
	}

	if err := s.db.DeleteCollection(s.collectionName); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	log.Debug().Int("chunks", len(docs)).Str("collection", s.collectionName).Msg("chromem collection rebuilt")
	return nil
}

// Search queries the collection by embedding, applying the metadata filter
// natively through chromem's Where clause.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter models.Filter) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be > 0, got %d", index.ErrInvalidArgument, k)
	}
	collection := s.db.GetCollection(s.collectionName, nil)
	if collection == nil || collection.Count() == 0 {
		return nil, nil
	}
	// chromem rejects NResults larger than the collection.
	n := k
	if c := collection.Count(); n > c {
		n = c
	}
	results, err := collection.QueryWithOptions(ctx, chromemgo.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
		Where:          filter,
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, res := range results {
		scored = append(scored, models.ScoredChunk{
			Chunk: chunkFromResult(res),
			Score: float64(res.Similarity),
		})
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Chunk.ID < scored[b].Chunk.ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Size reports the number of stored chunks.
func (s *Store) Size(ctx context.Context) (int, error) {
	collection := s.db.GetCollection(s.collectionName, nil)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

func chunkFromResult(res chromemgo.Result) models.Chunk {
	ordinal, _ := strconv.Atoi(res.Metadata[metaOrdinal])
	meta := make(map[string]string, len(res.Metadata))
	for k, v := range res.Metadata {
		if k == metaDocumentID || k == metaOrdinal {
			continue
		}
		meta[k] = v
	}
	return models.Chunk{
		ID:         res.ID,
		DocumentID: res.Metadata[metaDocumentID],
		Ordinal:    ordinal,
		Text:       res.Content,
		Metadata:   meta,
	}
}
