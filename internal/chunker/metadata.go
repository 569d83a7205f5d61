package chunker

import (
	"regexp"
	"strings"

	"orienta-rag/internal/models"
)

var (
	schoolRe  = regexp.MustCompile(models.SchoolRegex)
	programRe = regexp.MustCompile(models.ProgramRegex)
)

// deriveMetadata tags a chunk with its source label and, when the text
// mentions a known institution or study field, a school/program marker
// usable as a retrieval filter.
func deriveMetadata(doc models.Document, text string) map[string]string {
	meta := map[string]string{models.MetaSource: doc.Source}
	if m := schoolRe.FindString(text); m != "" {
		meta[models.MetaSchool] = strings.ToLower(m)
	}
	if m := programRe.FindString(text); m != "" {
		meta[models.MetaProgram] = strings.ToLower(m)
	}
	return meta
}
