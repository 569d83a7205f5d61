package chunker_test

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"orienta-rag/internal/chunker"
	"orienta-rag/internal/models"
)

func doc(id, text string) models.Document {
	return models.Document{ID: id, Source: id, Text: text}
}

func TestSplitValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  chunker.Config
	}{
		{name: "zero chunk size", cfg: chunker.Config{ChunkSize: 0, Overlap: 0}},
		{name: "negative chunk size", cfg: chunker.Config{ChunkSize: -5, Overlap: 0}},
		{name: "negative overlap", cfg: chunker.Config{ChunkSize: 100, Overlap: -1}},
		{name: "overlap equals chunk size", cfg: chunker.Config{ChunkSize: 100, Overlap: 100}},
		{name: "overlap exceeds chunk size", cfg: chunker.Config{ChunkSize: 100, Overlap: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chunker.Split(doc("d", "some text"), tt.cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	chunks, err := chunker.Split(doc("d", ""), chunker.Config{ChunkSize: 100, Overlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplitShortDocument(t *testing.T) {
	text := "un document plus court que la taille de chunk"
	chunks, err := chunker.Split(doc("d", text), chunker.Config{ChunkSize: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].ID != "d:0" || chunks[0].Ordinal != 0 {
		t.Errorf("chunk id/ordinal = %q/%d, want d:0/0", chunks[0].ID, chunks[0].Ordinal)
	}
}

func TestSplitCoverageAndOverlap(t *testing.T) {
	text := strings.Repeat("les études supérieures au maroc offrent de nombreuses filières ", 20)
	cfg := chunker.Config{ChunkSize: 100, Overlap: 15}
	chunks, err := chunker.Split(doc("d", text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks share exactly Overlap runes.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		tail := string(prev[len(prev)-cfg.Overlap:])
		head := string([]rune(chunks[i].Text)[:cfg.Overlap])
		if tail != head {
			t.Fatalf("chunk %d: overlap mismatch: %q vs %q", i, tail, head)
		}
	}

	// Dropping each chunk's leading overlap reconstructs the document.
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		sb.WriteString(string([]rune(chunks[i].Text)[cfg.Overlap:]))
	}
	if sb.String() != text {
		t.Error("reconstructed text does not match the document")
	}

	// Ordinals are contiguous from 0.
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, c.Ordinal)
		}
		if c.DocumentID != "d" {
			t.Errorf("chunk %d has document id %q", i, c.DocumentID)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("formation ingénieur informatique réseaux ", 30)
	cfg := chunker.Config{ChunkSize: 120, Overlap: 30}
	a, err := chunker.Split(doc("d", text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := chunker.Split(doc("d", text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two splits of identical input differ")
	}
}

func TestSplitPrefersWordBoundary(t *testing.T) {
	// Five-char words; a hard cut at ChunkSize would land mid-word but a
	// space sits inside the lookback window.
	text := strings.Repeat("filière ", 40)
	cfg := chunker.Config{ChunkSize: 60, Overlap: 10}
	chunks, err := chunker.Split(doc("d", text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, " ") {
			t.Errorf("chunk %d does not end at a word boundary: %q", i, c.Text)
		}
	}
}

func TestSplitHardCutFallback(t *testing.T) {
	// No whitespace anywhere: the chunker must still terminate and cover
	// the text with hard cuts.
	text := strings.Repeat("x", 500)
	cfg := chunker.Config{ChunkSize: 100, Overlap: 20}
	chunks, err := chunker.Split(doc("d", text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		sb.WriteString(chunks[i].Text[cfg.Overlap:])
	}
	if sb.String() != text {
		t.Error("hard-cut chunks do not cover the document")
	}
	for i, c := range chunks[:len(chunks)-1] {
		if len(c.Text) != cfg.ChunkSize {
			t.Errorf("chunk %d has length %d, want %d", i, len(c.Text), cfg.ChunkSize)
		}
	}
}

func TestSplitRuneBoundaries(t *testing.T) {
	// Accented text without whitespace forces hard cuts; none of them may
	// land inside a multi-byte character.
	text := strings.Repeat("é", 300)
	cfg := chunker.Config{ChunkSize: 100, Overlap: 20}
	chunks, err := chunker.Split(doc("d", text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d carries invalid utf-8: %q", i, c.Text)
		}
	}
	for i, c := range chunks[:len(chunks)-1] {
		if n := utf8.RuneCountInString(c.Text); n != cfg.ChunkSize {
			t.Errorf("chunk %d has %d runes, want %d", i, n, cfg.ChunkSize)
		}
	}
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		sb.WriteString(string([]rune(chunks[i].Text)[cfg.Overlap:]))
	}
	if sb.String() != text {
		t.Error("accented chunks do not reconstruct the document")
	}
}

func TestSplitMetadataDetection(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		school  string
		program string
	}{
		{
			name:    "school and program",
			text:    "L'EMSI propose une formation en informatique et génie logiciel.",
			school:  "emsi",
			program: "informatique",
		},
		{
			name:    "health school",
			text:    "L'ISPITS forme au métier d'infirmier.",
			school:  "ispits",
			program: "infirmier",
		},
		{
			name: "no markers",
			text: "Un texte sans mention particulière.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := chunker.Split(doc("brochure.pdf", tt.text), chunker.Config{ChunkSize: 500, Overlap: 50})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			meta := chunks[0].Metadata
			if meta[models.MetaSource] != "brochure.pdf" {
				t.Errorf("source = %q, want brochure.pdf", meta[models.MetaSource])
			}
			if meta[models.MetaSchool] != tt.school {
				t.Errorf("school = %q, want %q", meta[models.MetaSchool], tt.school)
			}
			if meta[models.MetaProgram] != tt.program {
				t.Errorf("program = %q, want %q", meta[models.MetaProgram], tt.program)
			}
		})
	}
}

func TestSplitAll(t *testing.T) {
	docs := []models.Document{
		doc("a", strings.Repeat("alpha ", 50)),
		doc("b", ""),
		doc("c", "court"),
	}
	chunks, err := chunker.SplitAll(docs, chunker.Config{ChunkSize: 100, Overlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var aChunks, cChunks int
	for _, c := range chunks {
		switch c.DocumentID {
		case "a":
			aChunks++
		case "b":
			t.Error("empty document produced a chunk")
		case "c":
			cChunks++
		}
	}
	if aChunks < 2 || cChunks != 1 {
		t.Errorf("unexpected chunk counts: a=%d c=%d", aChunks, cChunks)
	}
}
