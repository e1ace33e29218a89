package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"mercator-hq/arbiter/pkg/evidence"
)

var _ evidence.Storage = (*MemoryStorage)(nil)

// MemoryStorage implements evidence.Storage with an in-memory map.
type MemoryStorage struct {
	records map[string]*evidence.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*evidence.Record),
	}
}

// Store persists a copy of the record.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.Record) error {
	if err := ctx.Err(); err != nil {
		return evidence.NewStorageError("memory", "store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return evidence.NewStorageError("memory", "store", evidence.ErrDuplicateRecord)
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Query returns copies of the matching records ordered by CreatedAt.
func (s *MemoryStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, evidence.NewStorageError("memory", "query", err)
	}
	if query == nil {
		query = &evidence.Query{}
	}

	s.mu.RLock()
	results := make([]*evidence.Record, 0, len(s.records))
	for _, record := range s.records {
		if matchesQuery(record, query) {
			results = append(results, cloneRecord(record))
		}
	}
	s.mu.RUnlock()

	desc := query.SortOrder != "asc"
	slices.SortFunc(results, func(a, b *evidence.Record) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})

	start := min(query.Offset, len(results))
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, evidence.NewStorageError("memory", "count", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			count++
		}
	}
	return count, nil
}

// DeleteBefore removes records created before cutoff.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, evidence.NewStorageError("memory", "delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if record.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for in-memory storage.
func (s *MemoryStorage) Close() error {
	return nil
}

func matchesQuery(record *evidence.Record, query *evidence.Query) bool {
	if query == nil {
		return true
	}
	if query.WorkflowID != "" && record.WorkflowID != query.WorkflowID {
		return false
	}
	if query.Decision != "" && record.Decision != query.Decision {
		return false
	}
	if query.Mode != "" && record.Mode != query.Mode {
		return false
	}
	if query.StartTime != nil && record.CreatedAt.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.CreatedAt.After(*query.EndTime) {
		return false
	}
	return true
}

func cloneRecord(r *evidence.Record) *evidence.Record {
	c := *r
	if r.Score != nil {
		score := *r.Score
		c.Score = &score
	}
	c.Flags = slices.Clone(r.Flags)
	c.ExecutedRules = slices.Clone(r.ExecutedRules)
	c.Errors = slices.Clone(r.Errors)
	c.Warnings = slices.Clone(r.Warnings)
	return &c
}
