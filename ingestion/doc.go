// Package ingestion turns legal documents into stored, embedded chunks.
//
// For each file the Pipeline reads the text, normalizes it, writes a
// document and its single section, chunks the text and then, one chunk at a
// time, writes the chunk, obtains an embedding through the retry controller
// and stores it linked to the chunk. Failures are reported per document and
// per chunk in DocumentResult rather than aborting the run: a failed document
// or section write skips the document, while a failed chunk, embedding or
// link only affects that chunk. Chunks left without an embedding keep a null
// vector id and can be repaired by the reconcile package.
package ingestion
