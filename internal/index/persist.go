package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"orienta-rag/internal/models"
)

var (
	// ErrIncompatibleIndex means a persisted index was built with a
	// different embedding model than the one currently configured.
	ErrIncompatibleIndex = errors.New("incompatible persisted index")
	// ErrPersistence wraps I/O failures during save or load.
	ErrPersistence = errors.New("index persistence failed")
)

const formatVersion = 1

// snapshot is the on-disk representation of an index.
type snapshot struct {
	FormatVersion int
	ModelID       string
	Dimension     int
	BuildID       string
	BuiltAt       time.Time
	Chunks        []models.Chunk
	Vectors       [][]float32
}

// Save writes the index to path. The artifact is written to a temporary
// file in the same directory and renamed into place, so a crash mid-save
// never leaves a loadable but corrupt index.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	snap := snapshot{
		FormatVersion: formatVersion,
		ModelID:       ix.modelID,
		Dimension:     ix.dimension,
		BuildID:       ix.buildID,
		BuiltAt:       ix.builtAt,
		Chunks:        ix.chunks,
		Vectors:       ix.vectors,
	}
	ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: encoding: %v", ErrPersistence, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	log.Debug().Str("path", path).Int("chunks", len(snap.Chunks)).Msg("index saved")
	return nil
}

// Load reads a persisted index and validates it against the embedding model
// the caller is configured with. A model mismatch fails with
// ErrIncompatibleIndex so vectors from different embedding spaces are never
// mixed.
func Load(path, modelID string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrPersistence, path, err)
	}
	if snap.FormatVersion != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrPersistence, snap.FormatVersion)
	}
	if snap.ModelID != modelID {
		return nil, fmt.Errorf("%w: built with model %q, configured model is %q",
			ErrIncompatibleIndex, snap.ModelID, modelID)
	}

	ix := &Index{
		modelID:   snap.ModelID,
		dimension: snap.Dimension,
		chunks:    snap.Chunks,
		vectors:   snap.Vectors,
		norms:     computeNorms(snap.Vectors),
		buildID:   snap.BuildID,
		builtAt:   snap.BuiltAt,
	}
	log.Debug().Str("path", path).Int("chunks", len(snap.Chunks)).Msg("index loaded")
	return ix, nil
}
