// Package embedding turns text into vectors through an ai.Embedder.
//
// Client adds what the raw provider lacks: EmbedBatch fans out on a bounded
// ants pool and writes each vector into its input slot, transient failures
// are retried with exponential backoff, and every vector is checked against
// the declared dimensionality. A Cache (see storage/badger) and a rate
// limit are optional.
package embedding
