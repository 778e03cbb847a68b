package chunking

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// gpt2Encoding is the byte-pair encoding used by GPT-2.
const gpt2Encoding = "r50k_base"

// Tokenizer measures text length in tokens. Only counts are used; token
// identities never leave the chunker.
type Tokenizer interface {
	CountTokens(text string) int
}

// TokenizerFunc adapts a plain function to Tokenizer.
type TokenizerFunc func(text string) int

// CountTokens calls f(text).
func (f TokenizerFunc) CountTokens(text string) int {
	return f(text)
}

// WordTokenizer counts whitespace separated words. It needs no vocabulary
// download and is used offline and in tests.
var WordTokenizer Tokenizer = TokenizerFunc(func(text string) int {
	return len(strings.Fields(text))
})

// BPETokenizer counts GPT-2 byte-pair tokens.
type BPETokenizer struct {
	enc *tiktoken.Tiktoken
}

var _ Tokenizer = (*BPETokenizer)(nil)

// NewBPETokenizer loads the GPT-2 encoding. The vocabulary is fetched and
// cached by tiktoken-go on first use (see TIKTOKEN_CACHE_DIR).
func NewBPETokenizer() (*BPETokenizer, error) {
	enc, err := tiktoken.GetEncoding(gpt2Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", gpt2Encoding, err)
	}
	return &BPETokenizer{enc: enc}, nil
}

// CountTokens returns the number of GPT-2 tokens in text.
func (t *BPETokenizer) CountTokens(text string) int {
	return len(t.enc.EncodeOrdinary(text))
}
