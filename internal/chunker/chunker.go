package chunker

import (
	"errors"
	"fmt"
	"strconv"

	"orienta-rag/internal/models"
)

// ErrInvalidConfig is returned when the chunking parameters are unusable.
var ErrInvalidConfig = errors.New("invalid chunk config")

const maxBoundaryWindow = 32

// Config controls how document text is split into chunks.
type Config struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"chunk_overlap"`
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidConfig, c.Overlap)
	}
	return nil
}

// boundaryWindow bounds the lookback for a whitespace split point. It is kept
// strictly below ChunkSize-Overlap so every chunk advances the cursor.
func (c Config) boundaryWindow() int {
	w := (c.ChunkSize - c.Overlap) / 2
	if w > maxBoundaryWindow {
		w = maxBoundaryWindow
	}
	return w
}

// Split cuts a document into overlapping chunks. Sizes are measured in
// runes, so a cut never lands inside a multi-byte character of accented
// text. Consecutive chunks share exactly Overlap runes, so joining
// chunks[0] with each following chunk minus its first Overlap runes
// reconstructs the document text. Splitting prefers a whitespace boundary
// within the lookback window and falls back to a hard cut. The output is
// deterministic for identical input, which keeps chunk ids stable across
// rebuilds.
func Split(doc models.Document, cfg Config) ([]models.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doc.Text == "" {
		return nil, nil
	}
	runes := []rune(doc.Text)
	if len(runes) <= cfg.ChunkSize {
		return []models.Chunk{newChunk(doc, 0, doc.Text)}, nil
	}

	window := cfg.boundaryWindow()
	var chunks []models.Chunk
	start := 0
	for ord := 0; ; ord++ {
		end := start + cfg.ChunkSize
		if end >= len(runes) {
			chunks = append(chunks, newChunk(doc, ord, string(runes[start:])))
			break
		}
		for i := end - 1; i >= end-window && i > start; i-- {
			if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
				end = i + 1
				break
			}
		}
		chunks = append(chunks, newChunk(doc, ord, string(runes[start:end])))
		start = end - cfg.Overlap
	}
	return chunks, nil
}

// SplitAll chunks every document in order.
func SplitAll(docs []models.Document, cfg Config) ([]models.Chunk, error) {
	var all []models.Chunk
	for _, doc := range docs {
		chunks, err := Split(doc, cfg)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

func newChunk(doc models.Document, ordinal int, text string) models.Chunk {
	return models.Chunk{
		ID:         doc.ID + ":" + strconv.Itoa(ordinal),
		DocumentID: doc.ID,
		Ordinal:    ordinal,
		Text:       text,
		Metadata:   deriveMetadata(doc, text),
	}
}
