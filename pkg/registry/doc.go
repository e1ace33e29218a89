// Package registry stores versioned workflow definitions and enforces their
// lifecycle.
//
// Every definition version is one of draft, published or archived:
//
//	draft ──Publish──▶ published ──Archive──▶ archived
//	  └────────────Archive──────────────────────▲
//
// Only drafts can be edited (UpdateDraft). Publishing validates the draft and
// archives whichever version of the same workflow was published before, so at
// most one version is published at a time. A published definition is never
// edited in place; NewVersion copies the latest version into a new draft.
//
// Storage is pluggable through the Store interface. MemoryStore suits tests
// and single-process use; SQLiteStore persists to a SQLite file using the
// pure-Go modernc driver.
package registry
