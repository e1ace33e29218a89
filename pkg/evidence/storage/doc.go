// Package storage provides evidence storage backends.
//
//   - MemoryStorage keeps records in a map and is meant for tests and
//     short-lived processes.
//   - SQLiteStorage persists records with github.com/mattn/go-sqlite3 in WAL
//     mode. The schema version is tracked in a schema_version table.
//
// Both backends are safe for concurrent use.
package storage
