// Package sqlite implements storage.Store on a local SQLite database using
// the pure Go modernc.org/sqlite driver.
//
// Schema migrations are embedded and applied by NewStore. Embedding vectors
// are stored as little-endian float32 blobs (storage.MarshalVector).
// CreateEmbedding inserts the embedding and back-links the chunk in a
// single transaction.
package sqlite
