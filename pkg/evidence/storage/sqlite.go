package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"mercator-hq/arbiter/pkg/evidence"
)

var _ evidence.Storage = (*SQLiteStorage)(nil)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables write-ahead logging so readers do not block the writer.
	// Default: true
	WALMode bool

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const recordColumns = `id, execution_id, workflow_id, workflow_version, mode,
	decision, score, flags, executed_rules, errors, warnings,
	duration_ms, created_at, input_hash`

// SQLiteStorage implements evidence.Storage on SQLite.
type SQLiteStorage struct {
	db        *sql.DB
	config    *SQLiteConfig
	insert    *sql.Stmt
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteStorage opens (creating if needed) the database at config.Path.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	db, err := sql.Open("sqlite3", dsn(config))
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite evidence storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

func dsn(config *SQLiteConfig) string {
	params := []string{fmt.Sprintf("_busy_timeout=%d", config.BusyTimeout.Milliseconds())}
	if config.WALMode {
		params = append(params, "_journal_mode=WAL")
	}
	return "file:" + config.Path + "?" + strings.Join(params, "&")
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.insert, err = s.db.Prepare(`INSERT INTO decisions (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return evidence.NewStorageError("sqlite", "prepare", err)
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store persists an evidence record.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.Record) error {
	var score any
	if record.Score != nil {
		score = *record.Score
	}

	_, err := s.insert.ExecContext(ctx,
		record.ID, record.ExecutionID, record.WorkflowID, record.WorkflowVersion, string(record.Mode),
		record.Decision, score,
		encodeList(record.Flags), encodeList(record.ExecutedRules),
		encodeList(record.Errors), encodeList(record.Warnings),
		record.DurationMs, record.CreatedAt.UnixNano(), record.InputHash,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			err = fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID)
		}
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves the records matching the filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	if query == nil {
		query = &evidence.Query{}
	}
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT " + recordColumns + " FROM decisions" + where

	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY created_at %s, id %s", order, order)

	// SQLite needs a LIMIT to accept an OFFSET; -1 means unbounded.
	limit := -1
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += " LIMIT ? OFFSET ?"
	args = append(args, limit, query.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*evidence.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of records matching the filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	if query == nil {
		query = &evidence.Query{}
	}
	where, args := buildWhereClause(query)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions"+where, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteBefore removes records created before cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return evidence.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the prepared statement and the database handle.
func (s *SQLiteStorage) Close() error {
	s.closeOnce.Do(func() {
		if s.insert != nil {
			s.insert.Close()
		}
		if s.config.WALMode {
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				s.logger.Warn("failed to checkpoint WAL", "error", err)
			}
		}
		if err := s.db.Close(); err != nil {
			s.closeErr = evidence.NewStorageError("sqlite", "close", err)
			return
		}
		s.logger.Info("SQLite evidence storage closed")
	})
	return s.closeErr
}

// buildWhereClause returns " WHERE ..." (or "") and its arguments.
func buildWhereClause(query *evidence.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.WorkflowID != "" {
		conditions = append(conditions, "workflow_id = ?")
		args = append(args, query.WorkflowID)
	}
	if query.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, query.Decision)
	}
	if query.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, string(query.Mode))
	}
	if query.StartTime != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, query.EndTime.UnixNano())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*evidence.Record, error) {
	var record evidence.Record
	var mode string
	var score sql.NullFloat64
	var flags, executedRules, errs, warnings sql.NullString
	var createdAt int64

	err := rows.Scan(
		&record.ID, &record.ExecutionID, &record.WorkflowID, &record.WorkflowVersion, &mode,
		&record.Decision, &score, &flags, &executedRules, &errs, &warnings,
		&record.DurationMs, &createdAt, &record.InputHash,
	)
	if err != nil {
		return nil, err
	}

	record.Mode = evidence.Mode(mode)
	if score.Valid {
		v := score.Float64
		record.Score = &v
	}
	record.CreatedAt = time.Unix(0, createdAt).UTC()

	for _, col := range []struct {
		raw  sql.NullString
		dest *[]string
	}{
		{flags, &record.Flags},
		{executedRules, &record.ExecutedRules},
		{errs, &record.Errors},
		{warnings, &record.Warnings},
	} {
		if err := decodeList(col.raw, col.dest); err != nil {
			return nil, err
		}
	}

	return &record, nil
}

func encodeList(items []string) any {
	if len(items) == 0 {
		return nil
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(raw sql.NullString, dest *[]string) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dest)
}
