package ingestion

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/poiesic/juris/core"
)

var (
	// "Artículo 27", "Art. 27 Bis", "art 1-A"
	articlePattern = regexp.MustCompile(`(?i:\bart(?:[íi]culo\s+|\.\s*|\s+))(\d+(?:-[A-Z])?)(?:\s+((?i:bis|ter|qu[áa]ter))\b)?`)

	// "Fracción IV", "fracc. XII". Numerals are upper case only.
	sectionPattern = regexp.MustCompile(`(?i:\bfracc(?:i[óo]n(?:es)?|\.)\s*)([IVXLC]+)\b`)

	paragraphPattern = regexp.MustCompile(`(?i)\bp[áa]rrafo\s+(\d+|primero|segundo|tercero|cuarto|quinto|sexto|s[ée]ptimo|octavo|noveno|d[ée]cimo)\b`)

	suffixCaser = cases.Title(language.Spanish)
)

// ExtractReference returns the first article cited in text. The fracción
// and párrafo are taken from the text between that article and the next
// one, so they are never attributed to a later article.
func ExtractReference(text string) core.ArticleReference {
	loc := articlePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return core.ArticleReference{}
	}

	ref := core.ArticleReference{Article: text[loc[2]:loc[3]]}
	if loc[4] >= 0 {
		ref.Article += " " + suffixCaser.String(text[loc[4]:loc[5]])
	}

	rest := text[loc[1]:]
	if next := articlePattern.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	if m := sectionPattern.FindStringSubmatch(rest); m != nil {
		ref.Section = m[1]
	}
	if m := paragraphPattern.FindStringSubmatch(rest); m != nil {
		ref.Paragraph = strings.ToLower(m[1])
	}
	return ref
}
