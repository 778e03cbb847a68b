// Package supabase implements storage.Store against a Supabase project's
// REST API (PostgREST) using postgrest-go.
//
//	store, err := supabase.NewStore(os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_ANON_KEY"))
//
// Writes are individual HTTP requests. An embedding whose chunk back-link
// failed stays in the embeddings table and is picked up by
// ListOrphanEmbeddings.
package supabase
