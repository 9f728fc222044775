// Package reembed recomputes the vectors of stored chunks and artifacts,
// for example after the embedding model behind a deployment changes.
//
// Items are read in id order in batches, embedded through the embedding
// client and written back. Progress is reported to a writer and the run
// returns a per-item summary.
package reembed
