package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"orienta-rag/internal/config"
	"orienta-rag/internal/index"
	"orienta-rag/internal/models"
)

// pgUndefinedTable is the SQLSTATE for a missing relation, the expected
// state before the first Build.
const pgUndefinedTable = "42P01"

// The embedding column dimension follows the configured model; it is fixed
// per build at table-creation time.
const createChunksSQL = `CREATE TABLE chunks (
	id text PRIMARY KEY,
	document_id text NOT NULL,
	ordinal integer NOT NULL,
	text text NOT NULL,
	source text,
	school text,
	program text,
	embedding vector(%d) NOT NULL
)`

// ChunkRow is the pgvector-backed chunk record.
type ChunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string    `bun:"id,pk"`
	DocumentID    string    `bun:"document_id,notnull"`
	Ordinal       int       `bun:"ordinal,notnull"`
	Text          string    `bun:"text,notnull"`
	Source        string    `bun:"source"`
	School        string    `bun:"school"`
	Program       string    `bun:"program"`
	Embedding     []float32 `bun:"embedding,notnull"`
	Score         float64   `bun:"score,scanonly"`
}

// Connect opens a bun handle against a Postgres database with the pgvector
// extension (e.g. Supabase).
func Connect(cfg *config.DatabaseConfig) (*bun.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// Store is a vector store backed by a pgvector chunks table.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Build replaces the chunks table wholesale inside one transaction, so
// concurrent readers see either the old or the new corpus.
func (s *Store) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", index.ErrInvalidArgument, len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	rows := make([]ChunkRow, 0, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d",
				index.ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		rows = append(rows, ChunkRow{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Ordinal:    chunk.Ordinal,
			Text:       chunk.Text,
			Source:     chunk.Metadata[models.MetaSource],
			School:     chunk.Metadata[models.MetaSchool],
			Program:    chunk.Metadata[models.MetaProgram],
			Embedding:  vectors[i],
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDropTable().Model((*ChunkRow)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(createChunksSQL, dim)); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// Search orders chunks by cosine distance to the query embedding and maps
// the metadata filter onto WHERE clauses.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter models.Filter) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be > 0, got %d", index.ErrInvalidArgument, k)
	}
	for key := range filter {
		switch key {
		case models.MetaSource, models.MetaSchool, models.MetaProgram:
		default:
			return nil, fmt.Errorf("%w: unknown filter key %q", index.ErrInvalidArgument, key)
		}
	}
	n, err := s.Size(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	var rows []ChunkRow
	q := s.db.NewSelect().
		Model(&rows).
		Column("id", "document_id", "ordinal", "text", "source", "school", "program").
		ColumnExpr("1 - (embedding <=> ?) AS score", vector).
		OrderExpr("embedding <=> ?", vector).
		Order("id ASC").
		Limit(k)
	for key, value := range filter {
		switch key {
		case models.MetaSource:
			q = q.Where("source = ?", value)
		case models.MetaSchool:
			q = q.Where("school = ?", value)
		case models.MetaProgram:
			q = q.Where("program = ?", value)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	scored := make([]models.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		meta := map[string]string{models.MetaSource: row.Source}
		if row.School != "" {
			meta[models.MetaSchool] = row.School
		}
		if row.Program != "" {
			meta[models.MetaProgram] = row.Program
		}
		scored = append(scored, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:         row.ID,
				DocumentID: row.DocumentID,
				Ordinal:    row.Ordinal,
				Text:       row.Text,
				Metadata:   meta,
			},
			Score: row.Score,
		})
	}
	return scored, nil
}

// Size reports the number of stored chunks. A missing table counts as
// empty; every other failure is reported so callers can tell an unreachable
// database from an empty corpus.
func (s *Store) Size(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*ChunkRow)(nil)).Count(ctx)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func isUndefinedTable(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUndefinedTable
}
