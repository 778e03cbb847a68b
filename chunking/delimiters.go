package chunking

// Boundary says on which side of a delimiter a sentence boundary is placed.
type Boundary int

const (
	// After ends the current sentence after the delimiter (sentence terminators).
	After Boundary = iota
	// Before starts a new sentence at the delimiter (structural markers).
	Before
)

// Delimiter is a sentence boundary candidate.
type Delimiter struct {
	Text     string
	Boundary Boundary
}

// ordinalLabels are the clause labels used in Spanish contracts and statutes.
var ordinalLabels = []string{
	"PRIMERA.", "SEGUNDA.", "TERCERA.", "CUARTA.", "QUINTA.",
	"SEXTA.", "SÉPTIMA.", "OCTAVA.", "NOVENA.", "DÉCIMA.",
	"PRIMERO.", "SEGUNDO.", "TERCERO.", "CUARTO.", "QUINTO.",
	"SEXTO.", "SÉPTIMO.", "OCTAVO.", "NOVENO.", "DÉCIMO.",
}

var structuralHeaders = []string{
	"Artículo", "ARTÍCULO",
	"Capítulo", "CAPÍTULO",
	"Sección", "SECCIÓN",
	"Título", "TÍTULO",
	"Libro", "LIBRO",
	"Parte", "PARTE",
}

var terminators = []string{".", "!", "?", "\n"}

// LegalDelimiters returns the default delimiter list in priority order:
// ordinal clause labels, structural headers, then sentence terminators.
func LegalDelimiters() []Delimiter {
	delims := make([]Delimiter, 0, len(ordinalLabels)+len(structuralHeaders)+len(terminators))
	for _, l := range ordinalLabels {
		delims = append(delims, Delimiter{Text: l, Boundary: Before})
	}
	for _, h := range structuralHeaders {
		delims = append(delims, Delimiter{Text: h, Boundary: Before})
	}
	for _, t := range terminators {
		delims = append(delims, Delimiter{Text: t, Boundary: After})
	}
	return delims
}

// SentenceDelimiters returns only the plain sentence terminators.
func SentenceDelimiters() []Delimiter {
	delims := make([]Delimiter, 0, len(terminators))
	for _, t := range terminators {
		delims = append(delims, Delimiter{Text: t, Boundary: After})
	}
	return delims
}
