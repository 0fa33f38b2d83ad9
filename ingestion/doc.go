// Package ingestion turns source texts into searchable passages.
//
// The Pipeline type manages the ingestion workflow:
//   - Splitting each source into overlapping passages
//   - Adding the passages to storage
//   - Generating embeddings asynchronously on a worker pool
//
// Call Wait to block until every submitted embedding batch has finished.
// Errors during async processing are logged and reported by Wait.
package ingestion
