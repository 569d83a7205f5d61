package retriever

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"orienta-rag/internal/models"
)

const contextHeader = "## CONTEXTE SPÉCIALISÉ - ÉCOLES SUPÉRIEURES MAROCAINES\n" +
	"*Source: documentation officielle des établissements*\n\n"

// BuildContext assembles the retrieved passages into a markdown citation
// block for the prompt assembler, bounded to maxChars. Passages are added
// in rank order until the budget is exhausted.
func BuildContext(result *models.RetrievalResult, maxChars int) string {
	if result == nil || len(result.Chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(contextHeader)
	total := 0
	added := 0
	for _, res := range result.Chunks {
		passage := fmt.Sprintf("**[%s - extrait %d]**\n%s\n\n",
			res.Chunk.Metadata[models.MetaSource], res.Chunk.Ordinal+1, strings.TrimSpace(res.Chunk.Text))
		if maxChars > 0 && total+len(passage) > maxChars {
			break
		}
		sb.WriteString(passage)
		total += len(passage)
		added++
	}
	if added == 0 {
		return ""
	}
	return sb.String()
}

// RenderContextHTML converts the markdown context block to HTML for the
// web chat layer.
func RenderContextHTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return strings.Trim(buf.String(), " \t\n\r"), nil
}
