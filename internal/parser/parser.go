package parser

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"orienta-rag/internal/models"
)

// ErrUnsupportedFormat marks files the extractor cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var whitespaceRe = regexp.MustCompile(`\s+`)

var quoteReplacer = strings.NewReplacer(
	"–", "-", "—", "-",
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// LoadCorpus extracts one Document per supported file in dir, in a stable
// order. Unsupported files are skipped, extraction failures are logged and
// the rest of the corpus is still loaded.
func LoadCorpus(dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []models.Document
	for _, name := range names {
		path := filepath.Join(dir, name)
		text, err := ExtractText(path)
		if err != nil {
			if errors.Is(err, ErrUnsupportedFormat) {
				continue
			}
			log.Warn().Err(err).Str("file", name).Msg("skipping document")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, models.Document{ID: name, Source: name, Text: text})
	}
	log.Info().Int("documents", len(docs)).Str("dir", dir).Msg("corpus loaded")
	return docs, nil
}

// ExtractText returns the cleaned plain text of a corpus file.
func ExtractText(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return extractPDF(filePath)
	case ".docx":
		return extractDOCX(filePath)
	case ".pptx":
		return extractPPTX(filePath)
	case ".xlsx", ".ods":
		return extractSheet(filePath)
	case ".txt", ".md":
		return extractText(filePath)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func extractPDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Str("file", filePath).Msg("skipping page")
			continue
		}
		text.WriteString(CleanText(pageText))
		text.WriteString("\n\n")
	}
	return strings.TrimSpace(text.String()), nil
}

func extractDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, paragraph := range strings.Split(content, "\n") {
		cleaned := CleanText(paragraph)
		if cleaned == "" {
			continue
		}
		text.WriteString(cleaned)
		text.WriteString("\n\n")
	}
	return strings.TrimSpace(text.String()), nil
}

func extractPPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := CleanText(extractTextFromXML(string(data)))
		if slideText == "" {
			continue
		}
		text.WriteString(slideText)
		text.WriteString("\n\n")
	}
	return strings.TrimSpace(text.String()), nil
}

func extractSheet(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(sheetName)
		text.WriteString("\n")
		for _, row := range rows {
			text.WriteString(CleanText(strings.Join(row, " ")))
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return strings.TrimSpace(text.String()), nil
}

func extractText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return CleanText(string(data)), nil
}

// CleanText normalizes extracted text: whitespace runs collapse to a single
// space, typographic dashes and quotes become their ASCII forms.
func CleanText(text string) string {
	text = quoteReplacer.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if endIdx := strings.Index(part, "</a:t>"); endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
