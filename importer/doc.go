// Package importer reads normalized exports into core.Source values.
//
// The JSONL format holds one source per line:
//
//	{"id": "c-1", "kind": "conversation", "title": "Tuning sqlite",
//	 "created_at": "2025-01-02T03:04:05Z", "metadata": {"platform": "chat"},
//	 "units": [{"sender": "human", "content": "How do I enable WAL?"},
//	           {"sender": "assistant", "content": "Set journal_mode."}]}
//
// Units without a position take their array index; units without an id get
// one derived from the source id, position and content.
package importer
