// Package retry bounds and paces calls to an embedding service.
//
// Controller.GetEmbedding retries failed ai.Embedder calls according to the
// ai.ErrorKind of each failure:
//
//   - rate limited: wait (attempt+1) * RateLimitStep, 2s then 4s by default
//   - transient: wait TransientDelay (1s)
//   - fatal: return immediately
//
// An optional golang.org/x/time/rate limiter caps the request rate when
// several goroutines share one embedding quota. WithBackoff is the general
// exponential backoff helper used for store writes.
package retry
