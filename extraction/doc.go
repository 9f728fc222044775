// Package extraction derives structured artifacts, such as learnings, from
// archived sources and from other artifacts.
//
// For each request the Orchestrator renders the entity as one context
// string (title, structured fields, then ordered units), asks the language
// model for candidates, embeds each candidate's title, summary and tags,
// and stores the resulting artifacts in one transaction.
//
// Extraction is idempotent per entity: once artifacts exist they are
// returned as-is unless the request asks to overwrite them.
package extraction
