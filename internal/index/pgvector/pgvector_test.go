package pgvector_test

import (
	"context"
	"errors"
	"testing"

	"orienta-rag/internal/config"
	"orienta-rag/internal/index"
	"orienta-rag/internal/index/pgvector"
	"orienta-rag/internal/models"
)

// unreachableStore connects to a port nothing listens on. The connection is
// lazy, so input validation runs before any dial and everything that does
// reach the database fails with a connection error.
func unreachableStore(t *testing.T) *pgvector.Store {
	t.Helper()
	db, err := pgvector.Connect(&config.DatabaseConfig{URL: "postgres://nobody@127.0.0.1:1/none"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return pgvector.NewStore(db)
}

func TestSearchUnreachableDatabase(t *testing.T) {
	store := unreachableStore(t)
	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 3, nil)
	if err == nil {
		t.Fatalf("unreachable database reported success with %d results", len(results))
	}
}

func TestSizeUnreachableDatabase(t *testing.T) {
	store := unreachableStore(t)
	if _, err := store.Size(context.Background()); err == nil {
		t.Fatal("unreachable database reported as empty")
	}
}

func TestSearchInvalidK(t *testing.T) {
	store := unreachableStore(t)
	_, err := store.Search(context.Background(), []float32{1}, 0, nil)
	if !errors.Is(err, index.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearchUnknownFilterKey(t *testing.T) {
	store := unreachableStore(t)
	_, err := store.Search(context.Background(), []float32{1}, 3, models.Filter{"city": "casablanca"})
	if !errors.Is(err, index.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBuildInputValidation(t *testing.T) {
	store := unreachableStore(t)
	err := store.Build(context.Background(), []models.Chunk{{ID: "a"}}, nil)
	if !errors.Is(err, index.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	err = store.Build(context.Background(),
		[]models.Chunk{{ID: "a"}, {ID: "b"}},
		[][]float32{{1, 0, 0}, {1, 0}},
	)
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBuildAcceptsAnyModelDimension(t *testing.T) {
	store := unreachableStore(t)
	// Consistent three-dimension vectors pass validation; the only failure
	// left is the connection itself.
	err := store.Build(context.Background(),
		[]models.Chunk{{ID: "a"}},
		[][]float32{{1, 0, 0}},
	)
	if err == nil {
		t.Fatal("expected a connection error")
	}
	if errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("dimension rejected: %v", err)
	}
}
