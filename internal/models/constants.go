package models

const (
	// Metadata keys attached to chunks and accepted in filters.
	MetaSource  = "source"
	MetaSchool  = "school"
	MetaProgram = "program"

	SchoolRegex  = `(?i)\b(ensa|emsi|ensam|emi|ensias|encg|fsjes|fst|est|ispits)\b`
	ProgramRegex = `(?i)\b(informatique|g[ée]nie|logiciel|r[ée]seaux|commerce|gestion|m[ée]decine|sant[ée]|infirmier|[ée]conomie|droit|math[ée]matiques|physique)\b`
)

// Abbreviations maps common Moroccan school acronyms to their full names,
// expanded into queries before embedding.
var Abbreviations = map[string]string{
	"ensa":   "école nationale des sciences appliquées",
	"emsi":   "école marocaine des sciences de l'ingénieur",
	"ensam":  "école nationale supérieure d'arts et métiers",
	"emi":    "école mohammadia d'ingénieurs",
	"ensias": "école nationale supérieure d'informatique et d'analyse des systèmes",
	"encg":   "école nationale de commerce et de gestion",
	"fsjes":  "faculté des sciences juridiques économiques et sociales",
	"fst":    "faculté des sciences et techniques",
	"est":    "école supérieure de technologie",
	"ispits": "institut supérieur des professions infirmières et techniques de santé",
}
