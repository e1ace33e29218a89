package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/export"
)

// ErrInvalidConfig is returned when the retention configuration is invalid.
var ErrInvalidConfig = errors.New("invalid retention config")

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep evidence.
	// 0 keeps evidence forever.
	RetentionDays int

	// PruneSchedule is a standard five-field cron expression.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables scheduling.
	PruneSchedule string

	// ArchiveBeforeDelete writes the records about to be deleted to a JSON
	// file under ArchivePath first.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory for archive files.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RetentionDays < 0 {
		return fmt.Errorf("%w: retention days must be >= 0, got %d", ErrInvalidConfig, c.RetentionDays)
	}
	if c.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
			return fmt.Errorf("%w: invalid cron schedule %q: %v", ErrInvalidConfig, c.PruneSchedule, err)
		}
	}
	if c.ArchiveBeforeDelete && c.ArchivePath == "" {
		return fmt.Errorf("%w: archive path is required when archiving", ErrInvalidConfig)
	}
	return nil
}

// Pruner enforces the retention window on an evidence store.
type Pruner struct {
	storage evidence.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage evidence.Storage, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "evidence.retention"),
		now:     time.Now,
	}
}

// Cutoff returns the instant before which records are deleted.
func (p *Pruner) Cutoff() time.Time {
	return p.now().UTC().AddDate(0, 0, -p.config.RetentionDays)
}

// Prune deletes records older than the retention window and returns how
// many were deleted. With RetentionDays 0 it does nothing.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays == 0 {
		p.logger.Debug("retention disabled, nothing to prune")
		return 0, nil
	}

	cutoff := p.Cutoff()
	p.logger.Debug("pruning evidence",
		"cutoff_time", cutoff,
		"retention_days", p.config.RetentionDays,
	)

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, cutoff); err != nil {
			return 0, evidence.NewRetentionError(p.config.RetentionDays, err)
		}
	}

	deleted, err := p.storage.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, evidence.NewRetentionError(p.config.RetentionDays, err)
	}

	if deleted > 0 {
		p.logger.Info("evidence pruning completed",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}

// archive exports the records older than cutoff to a JSON file.
func (p *Pruner) archive(ctx context.Context, cutoff time.Time) error {
	end := cutoff.Add(-time.Nanosecond)
	records, err := p.storage.Query(ctx, &evidence.Query{EndTime: &end, SortOrder: "asc"})
	if err != nil {
		return fmt.Errorf("failed to query records for archiving: %w", err)
	}
	if len(records) == 0 {
		p.logger.Debug("no records to archive")
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	archiveFile := filepath.Join(p.config.ArchivePath,
		fmt.Sprintf("evidence-%s.json", p.now().UTC().Format("2006-01-02-150405")))
	f, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to export records to archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}

	p.logger.Info("evidence archived",
		"archive_file", archiveFile,
		"record_count", len(records),
	)
	return nil
}
