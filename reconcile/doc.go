// Package reconcile repairs the state an interrupted or partially failed
// ingestion leaves behind.
//
// A Run has two phases. The first finds embeddings whose chunk was never
// back-linked and sets the chunk's vector id without calling the embedding
// service. The second embeds every chunk that still has a null vector id,
// through the same retry controller the ingestion pipeline uses. Both phases
// page through the store in id order.
package reconcile
