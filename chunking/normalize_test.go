package chunking

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only symbols", "*** ### @@@", ""},
		{"tabs collapse", "Hola\t\tmundo", "Hola mundo"},
		{"newline runs collapse", "Línea uno\n\n\nLínea dos", "Línea uno\nLínea dos"},
		{"spaces around newline", "  a \n  b  ", "a\nb"},
		{"crlf", "uno\r\ndos", "uno\ndos"},
		{"currency symbols removed", "Precio: $100 €", "Precio: 100"},
		{"section sign and dash", "§ 5 — párrafo", "5 párrafo"},
		{"permitted punctuation kept", `"Cita" (art. 3) [nota] {x}; sí! ¿no? a-b: c, d'e`, `"Cita" (art. 3) [nota] {x}; sí! no? a-b: c, d'e`},
		{"decomposed accent composed", "Cla\u0301usula", "Cl\u00e1usula"},
		{"non breaking space", "Artículo\u00a05", "Artículo 5"},
		{"underscore and digits", "campo_1 2024", "campo_1 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Properties(t *testing.T) {
	inputs := []string{
		"PRIMERA.– Objeto del contrato…\n\n\tSEGUNDA.— Precio • 1.000 €",
		"   Texto con espacios　raros  ",
		"Línea\n \n \nOtra línea\n\n",
		"emoji 😀 y símbolos ©®™ en medio",
		"tabla | col1 | col2 |\n|---|---|",
		"«comillas» y “tipográficas” ‘simples’",
	}

	for _, input := range inputs {
		out := Normalize(input)

		assert.NotContains(t, out, "  ", "double space in %q", out)
		assert.NotContains(t, out, "\n\n", "double newline in %q", out)
		assert.Equal(t, strings.TrimSpace(out), out, "untrimmed output %q", out)
		for _, r := range out {
			ok := unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r) ||
				r == '_' || r == ' ' || r == '\n' || strings.ContainsRune(permittedPunctuation, r)
			assert.True(t, ok, "rune %q not permitted in %q", r, out)
		}

		assert.Equal(t, out, Normalize(out), "normalize is not idempotent for %q", input)
	}
}
