package chunking

import (
	"slices"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize                = 512
	DefaultChunkOverlap             = 50
	DefaultMinSentencesPerChunk     = 1
	DefaultMinCharactersPerSentence = 10
)

// Chunk is a span of the source text. StartIndex and EndIndex are character
// (rune) offsets into the text passed to Chunker.Chunk, end exclusive.
type Chunk struct {
	Text          string
	StartIndex    int
	EndIndex      int
	TokenCount    int
	SentenceCount int
}

// Chunker splits text into sentence-bounded chunks that fit a token budget,
// overlapping consecutive chunks by whole trailing sentences.
// A Chunker is safe for concurrent use if its Tokenizer is.
type Chunker struct {
	tokenizer      Tokenizer
	chunkSize      int
	overlap        int
	minSentences   int
	minChars       int
	delimiters     []Delimiter
	delimsByPrefix map[rune][]compiledDelimiter
}

type compiledDelimiter struct {
	runes    []rune
	boundary Boundary
	wordLike bool // ends in a letter, so must not be followed by one
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the token budget per chunk. Default is 512.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		c.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets how many tokens of trailing sentences are repeated
// at the start of the next chunk. Default is 50.
func WithChunkOverlap(tokens int) Option {
	return func(c *Chunker) error {
		c.overlap = tokens
		return nil
	}
}

// WithMinSentencesPerChunk sets the minimum sentences per chunk, honoured even
// when it exceeds the budget. Default is 1.
func WithMinSentencesPerChunk(n int) Option {
	return func(c *Chunker) error {
		c.minSentences = n
		return nil
	}
}

// WithMinCharactersPerSentence sets the length below which a candidate
// sentence is merged into the following one. Default is 10.
func WithMinCharactersPerSentence(n int) Option {
	return func(c *Chunker) error {
		if n < 0 {
			n = 0
		}
		c.minChars = n
		return nil
	}
}

// WithDelimiters replaces the delimiter list. Earlier entries take priority
// when several match at the same position. Default is LegalDelimiters().
func WithDelimiters(delims []Delimiter) Option {
	return func(c *Chunker) error {
		if len(delims) == 0 {
			return ErrNoDelimiters
		}
		for _, d := range delims {
			if d.Text == "" {
				return ErrNoDelimiters
			}
		}
		c.delimiters = delims
		return nil
	}
}

// New creates a Chunker counting tokens with tokenizer.
func New(tokenizer Tokenizer, opts ...Option) (*Chunker, error) {
	if tokenizer == nil {
		return nil, ErrTokenizerRequired
	}

	c := &Chunker{
		tokenizer:    tokenizer,
		chunkSize:    DefaultChunkSize,
		overlap:      DefaultChunkOverlap,
		minSentences: DefaultMinSentencesPerChunk,
		minChars:     DefaultMinCharactersPerSentence,
		delimiters:   LegalDelimiters(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if c.overlap < 0 || c.overlap >= c.chunkSize {
		return nil, ErrInvalidOverlap
	}
	if c.minSentences < 1 {
		return nil, ErrInvalidMinSentences
	}

	c.delimsByPrefix = make(map[rune][]compiledDelimiter)
	for _, d := range c.delimiters {
		runes := []rune(d.Text)
		c.delimsByPrefix[runes[0]] = append(c.delimsByPrefix[runes[0]], compiledDelimiter{
			runes:    runes,
			boundary: d.Boundary,
			wordLike: unicode.IsLetter(runes[len(runes)-1]),
		})
	}

	return c, nil
}

// ChunkSize returns the configured token budget.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

type sentence struct {
	start, end int // rune offsets
	tokens     int
}

// Chunk segments text. Blank input yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	sentences := c.sentences(runes)
	n := len(sentences)

	var chunks []Chunk
	pos, prevEnd := 0, 0
	for pos < n {
		end, sum := pos, 0
		for end < n {
			t := sentences[end].tokens
			if end-pos >= c.minSentences && end >= prevEnd+1 && sum+t > c.chunkSize {
				break
			}
			sum += t
			end++
		}

		chunkText := string(runes[sentences[pos].start:sentences[end-1].end])
		tokens := c.tokenizer.CountTokens(chunkText)
		for tokens > c.chunkSize && end-pos > c.minSentences && end-1 > prevEnd {
			end--
			chunkText = string(runes[sentences[pos].start:sentences[end-1].end])
			tokens = c.tokenizer.CountTokens(chunkText)
		}

		if strings.TrimSpace(chunkText) != "" {
			chunks = append(chunks, Chunk{
				Text:          chunkText,
				StartIndex:    sentences[pos].start,
				EndIndex:      sentences[end-1].end,
				TokenCount:    tokens,
				SentenceCount: end - pos,
			})
		}

		if end >= n {
			break
		}
		pos, prevEnd = c.overlapStart(sentences, pos, end), end
	}

	return chunks
}

// overlapStart returns where the chunk following sentences[pos:end] begins.
// Trailing sentences are re-included while their tokens fit the overlap and
// still leave room for the next new sentence. The chunk's first sentence is
// never repeated, so every chunk starts after its predecessor.
func (c *Chunker) overlapStart(sentences []sentence, pos, end int) int {
	next := end
	if c.overlap == 0 {
		return next
	}
	room := c.chunkSize - sentences[end].tokens
	acc := 0
	for j := end - 1; j > pos; j-- {
		t := sentences[j].tokens
		if acc+t > c.overlap || acc+t > room {
			break
		}
		acc += t
		next = j
	}
	return next
}

// sentences splits runes at delimiter boundaries and merges candidates shorter
// than minChars into the following candidate. The sentences cover runes
// contiguously, so their concatenation is the input.
func (c *Chunker) sentences(runes []rune) []sentence {
	var out []sentence
	cur := sentence{start: -1}

	emit := func(start, end int) {
		if start == end {
			return
		}
		if cur.start < 0 {
			cur.start = start
		}
		cur.end = end
		if cur.end-cur.start >= c.minChars {
			out = append(out, cur)
			cur = sentence{start: -1}
		}
	}

	segStart := 0
	for i := 0; i < len(runes); {
		d, ok := c.match(runes, i)
		if !ok {
			i++
			continue
		}
		switch d.boundary {
		case Before:
			emit(segStart, i)
			segStart = i
			i += len(d.runes)
		default:
			i += len(d.runes)
			emit(segStart, i)
			segStart = i
		}
	}
	emit(segStart, len(runes))
	if cur.start >= 0 {
		out = append(out, cur)
	}

	for i := range out {
		out[i].tokens = c.tokenizer.CountTokens(string(runes[out[i].start:out[i].end]))
	}
	return out
}

// match returns the highest priority delimiter occurring at runes[i:].
// Word-like markers must start and end on word boundaries.
func (c *Chunker) match(runes []rune, i int) (compiledDelimiter, bool) {
	for _, d := range c.delimsByPrefix[runes[i]] {
		end := i + len(d.runes)
		if end > len(runes) || !slices.Equal(runes[i:end], d.runes) {
			continue
		}
		if d.boundary == Before {
			if i > 0 && isWordRune(runes[i-1]) {
				continue
			}
			if d.wordLike && end < len(runes) && unicode.IsLetter(runes[end]) {
				continue
			}
		}
		return d, true
	}
	return compiledDelimiter{}, false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
