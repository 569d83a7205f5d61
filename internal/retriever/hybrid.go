package retriever

import (
	"math"
	"regexp"
	"strings"

	"orienta-rag/internal/models"
)

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

var abbrevRes = buildAbbrevRes()

func buildAbbrevRes() map[*regexp.Regexp]string {
	res := make(map[*regexp.Regexp]string, len(models.Abbreviations))
	for abbrev, full := range models.Abbreviations {
		res[regexp.MustCompile(`\b`+abbrev+`\b`)] = full
	}
	return res
}

// PreprocessQuery normalizes a student question before embedding: lowercase
// and expansion of common Moroccan school acronyms, so "seuil ensa" and
// "seuil école nationale des sciences appliquées" land in the same
// neighborhood of the vector space.
func PreprocessQuery(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	for re, full := range abbrevRes {
		query = re.ReplaceAllString(query, full)
	}
	return query
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// lexicalScore is the Ochiai coefficient between the query token set and
// the chunk token set: |A∩B| / sqrt(|A|·|B|).
func lexicalScore(queryTokens map[string]struct{}, text string) float64 {
	chunkTokens := tokenSet(text)
	if len(queryTokens) == 0 || len(chunkTokens) == 0 {
		return 0
	}
	inter := 0
	for t := range chunkTokens {
		if _, ok := queryTokens[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(queryTokens))*float64(len(chunkTokens)))
}
