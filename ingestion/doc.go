// Package ingestion imports Sources and their Units into a store.
//
// A Pipeline checks which Sources and Units already exist with one query
// per batch and per Source, inserts the new Sources, and hands every new
// Unit to a worker pool where it is chunked, embedded and written together
// with its chunks in one transaction:
//
//	Pending → Chunked → Embedded → Persisted
//
// A Unit that fails at any step is reported as Failed and its siblings
// continue. Re-running an import on unchanged input stores nothing and makes
// no embedding calls.
//
// Cancelling the context stops new units from starting; they are reported
// as Failed with the context's error.
package ingestion
