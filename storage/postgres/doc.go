// Package postgres implements storage.Store on PostgreSQL using GORM and
// the pgvector extension. Embeddings live in a vector(768) column so the
// table can back similarity search directly.
//
//	store, err := postgres.NewStore(ctx, "postgres://localhost/juris?sslmode=disable")
package postgres
