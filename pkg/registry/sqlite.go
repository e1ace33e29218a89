package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/model"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflow_versions (
	id TEXT NOT NULL,
	version INTEGER NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	document TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_workflow_versions_status ON workflow_versions(id, status);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// Path is the database file path. ":memory:" keeps the database in memory.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore is a Store backed by a SQLite file. Definitions are stored as
// their JSON document encoding.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt   *sql.Stmt
	getStmt    *sql.Stmt
	latestStmt *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) a SQLite store at path.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{Path: path}, logger)
}

// NewSQLiteStoreWithConfig opens a SQLite store with custom configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports a single writer; one connection also keeps an
	// in-memory database alive for the store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		logger: logger.With("component", "registry.sqlite"),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	s.logger.Info("registry store opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT(version) DO NOTHING`,
		sqliteSchemaVersion, time.Now().Unix()); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version); err != nil {
		return err
	}
	if version != sqliteSchemaVersion {
		return fmt.Errorf("expected schema version %d, got %d", sqliteSchemaVersion, version)
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO workflow_versions (id, version, name, status, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, version) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			document = excluded.document,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`SELECT document FROM workflow_versions WHERE id = ? AND version = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.latestStmt, err = s.db.Prepare(`SELECT document FROM workflow_versions WHERE id = ? ORDER BY version DESC LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare latest statement: %w", err)
	}
	return nil
}

// Save inserts or replaces one version.
func (s *SQLiteStore) Save(ctx context.Context, def *model.WorkflowDefinition) error {
	if err := checkSavable(def); err != nil {
		return err
	}
	doc, err := codec.EncodeWorkflow(def, codec.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if _, err := s.saveStmt.ExecContext(ctx, def.ID, def.Version, def.Name, string(def.Status), string(doc), now, now); err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

// Get returns one version.
func (s *SQLiteStore) Get(ctx context.Context, id string, version int) (*model.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(s.getStmt.QueryRowContext(ctx, id, version), fmt.Sprintf("%s v%d", id, version))
}

// Latest returns the highest version of id.
func (s *SQLiteStore) Latest(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(s.latestStmt.QueryRowContext(ctx, id), id)
}

func (s *SQLiteStore) load(row *sql.Row, what string) (*model.WorkflowDefinition, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, what)
		}
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}
	def, err := codec.DecodeWorkflow([]byte(doc), codec.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored definition %s: %w", what, err)
	}
	return def, nil
}

// List returns version summaries ordered by id then version.
func (s *SQLiteStore) List(ctx context.Context, id string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, version, status, updated_at FROM workflow_versions`
	var args []any
	if id != "" {
		query += ` WHERE id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY id, version`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			status  string
			updated int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Version, &status, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Status = model.Status(status)
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.saveStmt, s.getStmt, s.latestStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})
	return closeErr
}
