// Package reembed recomputes the embeddings of stored documents,
// typically after switching embedding models.
//
// Documents are paged in ID order and embedded in batches with retry and
// exponential backoff. Vectors are normalized before storage. Progress is
// checkpointed so an interrupted run can resume where it stopped.
package reembed
