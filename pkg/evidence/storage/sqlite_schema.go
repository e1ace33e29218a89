package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the evidence tables. created_at holds Unix nanoseconds so
// range filters compare numerically; list columns hold JSON arrays.
const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    execution_id TEXT NOT NULL,

    workflow_id TEXT NOT NULL DEFAULT '',
    workflow_version INTEGER NOT NULL DEFAULT 0,
    mode TEXT NOT NULL,

    decision TEXT NOT NULL,
    score REAL,
    flags TEXT,
    executed_rules TEXT,
    errors TEXT,
    warnings TEXT,

    duration_ms REAL NOT NULL,
    created_at INTEGER NOT NULL,
    input_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_workflow ON decisions(workflow_id, workflow_version);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_execution_id ON decisions(execution_id);
`

// InsertSchemaVersion records the schema version on first initialization.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
