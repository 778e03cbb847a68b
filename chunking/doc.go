// Package chunking prepares legal text for embedding.
//
// Normalize strips characters that carry no linguistic content and collapses
// whitespace. A Chunker then segments the normalized text into sentence
// bounded chunks that fit a token budget, with consecutive chunks sharing a
// few trailing sentences.
//
// Sentence boundaries come from an ordered delimiter list. Besides the usual
// terminators, LegalDelimiters recognises Spanish clause labels (PRIMERA.,
// SEGUNDO., ...) and structural headers (Artículo, Capítulo, Sección, Título,
// Libro, Parte), which always open a new sentence:
//
//	tok, err := chunking.NewBPETokenizer()
//	if err != nil {
//	    return err
//	}
//	c, err := chunking.New(tok, chunking.WithChunkSize(512), chunking.WithChunkOverlap(50))
//	if err != nil {
//	    return err
//	}
//	for _, ch := range c.Chunk(chunking.Normalize(raw)) {
//	    fmt.Println(ch.StartIndex, ch.EndIndex, ch.TokenCount)
//	}
package chunking
