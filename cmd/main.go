package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"orienta-rag/internal/chunker"
	"orienta-rag/internal/config"
	"orienta-rag/internal/embedding"
	"orienta-rag/internal/helper"
	"orienta-rag/internal/index"
	"orienta-rag/internal/index/chromem"
	"orienta-rag/internal/index/pgvector"
	"orienta-rag/internal/parser"
	"orienta-rag/internal/retriever"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	doIndex := flag.Bool("index", false, "Build the vector index from the corpus directory")
	query := flag.String("query", "", "Question to retrieve passages for")
	doStats := flag.Bool("stats", false, "Show index statistics")
	k := flag.Int("k", 0, "Number of passages to retrieve (0 = configured default)")
	school := flag.String("school", "", "Restrict retrieval to a school (e.g. emsi)")
	program := flag.String("program", "", "Restrict retrieval to a program keyword (e.g. informatique)")
	rebuild := flag.Bool("rebuild", false, "Rebuild from corpus when the persisted index is incompatible")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	switch {
	case *doIndex:
		buildIndex(ctx, cfg)
	case *query != "":
		runQuery(ctx, cfg, *query, *k, *school, *program, *rebuild)
	case *doStats:
		showStats(ctx, cfg, *rebuild)
	default:
		log.Fatal().Msg("Please provide -index, -query or -stats")
	}
}

func buildIndex(ctx context.Context, cfg *config.Config) {
	docs, err := parser.LoadCorpus(cfg.CorpusDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading corpus")
	}
	embedder := newEmbedder(cfg)
	store := newStore(cfg, index.New(embedder.ModelID()))

	r := retriever.New(store, embedder, cfg)
	chunkCfg := chunker.Config{ChunkSize: cfg.RAG.ChunkSize, Overlap: cfg.RAG.ChunkOverlap}
	if err := r.IndexCorpus(ctx, docs, chunkCfg); err != nil {
		log.Fatal().Err(err).Msg("Error indexing corpus")
	}

	if ix, ok := store.(*index.Index); ok && cfg.IndexPath != "" {
		if err := ix.Save(cfg.IndexPath); err != nil {
			log.Fatal().Err(err).Msg("Error saving index")
		}
	}
	log.Info().Msg("Index built")
}

func runQuery(ctx context.Context, cfg *config.Config, query string, k int, school, program string, rebuild bool) {
	embedder := newEmbedder(cfg)
	r := openRetriever(ctx, cfg, embedder, rebuild)

	result, err := r.Retrieve(ctx, query, k, retriever.ProfileFilter(school, program))
	if err != nil {
		log.Fatal().Err(err).Msg("Error retrieving")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Passages: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for i, res := range result.Chunks {
		fmt.Printf("%d. [%.4f] %s\n%s\n\n", i+1, res.Score, res.Chunk.ID, res.Chunk.Text)
	}

	log.Info().Msg("Context: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n", retriever.BuildContext(result, cfg.RAG.ContextChars))
}

func showStats(ctx context.Context, cfg *config.Config, rebuild bool) {
	embedder := newEmbedder(cfg)
	r := openRetriever(ctx, cfg, embedder, rebuild)
	stats, err := r.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading stats")
	}
	helper.PrettyPrint(stats)
}

// openRetriever wires the configured store for the query path. For the
// memory backend the persisted index is loaded; an incompatible artifact is
// fatal unless -rebuild is set, in which case the corpus is reindexed.
func openRetriever(ctx context.Context, cfg *config.Config, embedder *embedding.Embedder, rebuild bool) *retriever.Retriever {
	if cfg.Store.Backend != "memory" {
		return retriever.New(newStore(cfg, nil), embedder, cfg)
	}

	ix, err := index.Load(cfg.IndexPath, embedder.ModelID())
	if err == nil {
		return retriever.New(ix, embedder, cfg)
	}
	if !errors.Is(err, index.ErrIncompatibleIndex) && !rebuild {
		log.Fatal().Err(err).Msg("Error loading index (run with -index first)")
	}
	if !rebuild {
		log.Fatal().Err(err).Msg("Persisted index incompatible with configured embedder (use -rebuild)")
	}

	log.Warn().Err(err).Msg("Rebuilding index from corpus")
	docs, err := parser.LoadCorpus(cfg.CorpusDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading corpus")
	}
	ix = index.New(embedder.ModelID())
	r := retriever.New(ix, embedder, cfg)
	chunkCfg := chunker.Config{ChunkSize: cfg.RAG.ChunkSize, Overlap: cfg.RAG.ChunkOverlap}
	if err := r.IndexCorpus(ctx, docs, chunkCfg); err != nil {
		log.Fatal().Err(err).Msg("Error indexing corpus")
	}
	if cfg.IndexPath != "" {
		if err := ix.Save(cfg.IndexPath); err != nil {
			log.Fatal().Err(err).Msg("Error saving index")
		}
	}
	return r
}

func newEmbedder(cfg *config.Config) *embedding.Embedder {
	var embedder *embedding.Embedder
	var err error
	switch cfg.EmbedLLM.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(&cfg.EmbedLLM)
	default:
		embedder, err = embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	return embedder
}

// newStore selects the vector store backend. The memory backend reuses the
// given index instance when provided.
func newStore(cfg *config.Config, memory *index.Index) retriever.Store {
	switch cfg.Store.Backend {
	case "chromem":
		store, err := chromem.New(cfg.Store.Chromem)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening chromem store")
		}
		return store
	case "pgvector":
		db, err := pgvector.Connect(&cfg.Store.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		return pgvector.NewStore(db)
	case "memory":
		return memory
	default:
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("Unknown store backend")
		return nil
	}
}
