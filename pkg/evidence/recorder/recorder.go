package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/model"
)

var (
	// ErrInvalidConfig is returned when the recorder configuration is invalid.
	ErrInvalidConfig = errors.New("invalid recorder config")

	// ErrBufferFull is returned when a record was dropped because the write
	// buffer had no room.
	ErrBufferFull = errors.New("evidence buffer full")

	// ErrClosed is returned by Record after Close.
	ErrClosed = errors.New("evidence recorder closed")
)

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled turns recording on. A disabled recorder accepts and discards
	// every entry.
	Enabled bool

	// BufferSize is the capacity of the async write channel.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("%w: buffer size must be at least 1, got %d", ErrInvalidConfig, c.BufferSize)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write timeout must be positive, got %s", ErrInvalidConfig, c.WriteTimeout)
	}
	return nil
}

// WithEnabled sets whether recording is enabled.
func (c *Config) WithEnabled(enabled bool) *Config {
	c.Enabled = enabled
	return c
}

// WithBufferSize sets the async buffer capacity.
func (c *Config) WithBufferSize(size int) *Config {
	c.BufferSize = size
	return c
}

// WithWriteTimeout sets the per-write timeout.
func (c *Config) WithWriteTimeout(timeout time.Duration) *Config {
	c.WriteTimeout = timeout
	return c
}

// Entry is one evaluation to be recorded.
type Entry struct {
	// ExecutionID correlates the record with request logs. A UUID is
	// generated when empty.
	ExecutionID string

	// Workflow is the executed definition, or nil for a rule-set evaluation.
	Workflow *model.WorkflowDefinition

	// RuleSetID optionally names the rule set in rules mode.
	RuleSetID string

	Input  model.ApplicantData
	Result *model.DecisionResult
}

// Recorder writes evidence records asynchronously.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	recordChan chan *evidence.Record
	wg         sync.WaitGroup
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	written atomic.Int64
}

// New creates a recorder writing to storage and starts its worker.
func New(storage evidence.Storage, config *Config, logger *slog.Logger) (*Recorder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, fmt.Errorf("%w: storage is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.Record, config.BufferSize),
		logger:     logger.With("component", "evidence.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("evidence recorder initialized",
		"enabled", config.Enabled,
		"buffer_size", config.BufferSize,
		"write_timeout", config.WriteTimeout,
	)

	return r, nil
}

// Record builds an evidence record for the entry and enqueues it. It never
// blocks: when the buffer is full the record is dropped with a warning and
// ErrBufferFull is returned. The returned id is the record id.
func (r *Recorder) Record(ctx context.Context, entry Entry) (string, error) {
	if !r.config.Enabled {
		return "", nil
	}
	if entry.Result == nil {
		return "", evidence.NewRecorderError(entry.ExecutionID, errors.New("decision result is nil"))
	}

	record, err := BuildRecord(entry)
	if err != nil {
		return "", evidence.NewRecorderError(entry.ExecutionID, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return "", evidence.NewRecorderError(record.ExecutionID, ErrClosed)
	}

	select {
	case r.recordChan <- record:
		r.logger.DebugContext(ctx, "evidence record enqueued",
			"record_id", record.ID,
			"execution_id", record.ExecutionID,
		)
		return record.ID, nil
	default:
		r.dropped.Add(1)
		r.logger.WarnContext(ctx, "evidence buffer full, dropping record",
			"record_id", record.ID,
			"execution_id", record.ExecutionID,
			"decision", record.Decision,
			"buffer_size", r.config.BufferSize,
		)
		return "", evidence.NewRecorderError(record.ExecutionID, ErrBufferFull)
	}
}

// Dropped returns how many records were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns how many records reached storage.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Close stops accepting records, drains the buffer, and waits for the
// pending writes. It does not close the storage.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pending := len(r.recordChan)
	close(r.recordChan)
	r.mu.Unlock()

	r.logger.Info("shutting down evidence recorder", "pending_count", pending)
	r.wg.Wait()
	r.logger.Info("evidence recorder shut down complete",
		"written", r.written.Load(),
		"dropped", r.dropped.Load(),
	)
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for record := range r.recordChan {
		r.writeRecord(record)
	}
}

func (r *Recorder) writeRecord(record *evidence.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", record.ID,
			"execution_id", record.ExecutionID,
			"error", err,
		)
		return
	}
	r.written.Add(1)

	duration := time.Since(start)
	r.logger.Debug("evidence recorded",
		"record_id", record.ID,
		"execution_id", record.ExecutionID,
		"decision", record.Decision,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}

// BuildRecord converts an entry into an evidence record without storing it.
func BuildRecord(entry Entry) (*evidence.Record, error) {
	if entry.Result == nil {
		return nil, errors.New("decision result is nil")
	}

	hash, err := HashInput(entry.Input)
	if err != nil {
		return nil, err
	}

	result := entry.Result
	record := &evidence.Record{
		ID:            uuid.New().String(),
		ExecutionID:   entry.ExecutionID,
		Mode:          evidence.ModeRules,
		WorkflowID:    entry.RuleSetID,
		Decision:      string(result.Decision),
		Flags:         slices.Clone(result.Flags),
		ExecutedRules: slices.Clone(result.ExecutedRules),
		Errors:        slices.Clone(result.Errors),
		Warnings:      slices.Clone(result.Warnings),
		DurationMs:    result.ExecutionTimeMs,
		CreatedAt:     time.Now().UTC(),
		InputHash:     hash,
	}
	if record.ExecutionID == "" {
		record.ExecutionID = uuid.New().String()
	}
	if score, ok := result.ScoreValue(); ok {
		record.Score = &score
	}
	if entry.Workflow != nil {
		record.Mode = evidence.ModeWorkflow
		record.WorkflowID = entry.Workflow.ID
		record.WorkflowVersion = entry.Workflow.Version
	}
	return record, nil
}
