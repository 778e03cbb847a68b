// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for juris.
//
// The Store interface decouples the ingestion pipeline from the database
// holding documents, sections, chunks and embeddings.
//
// # Constructor Return Type Pattern
//
// Public constructors in the backend packages return the storage.Store
// interface:
//
//	store, err := sqlite.NewStore("juris.db")   // local file
//	store, err := postgres.NewStore(ctx, dsn)   // Postgres with pgvector
//	store, err := supabase.NewStore(url, key)   // Supabase REST API
//
// # Backends
//
//   - storage/sqlite: modernc.org/sqlite, vectors stored as float32 blobs
//   - storage/postgres: gorm with a pgvector vector(768) column
//   - storage/supabase: PostgREST over HTTP
//
// The sqlite and postgres backends write an embedding and its chunk
// back-link in one transaction. The supabase backend issues two requests
// and reports a failed second write with ErrLinkFailed; the reconcile
// package repairs such orphans.
//
// # Thread Safety
//
// All implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
