package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/model"
)

type memoryEntry struct {
	def     *model.WorkflowDefinition
	updated time.Time
}

// MemoryStore is an in-memory Store. Definitions are normalized on the way
// in, as the SQLite store does by round-tripping them, and deep-copied on the
// way out.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]map[int]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string]map[int]memoryEntry)}
}

// Save stores a normalized copy of def.
func (m *MemoryStore) Save(ctx context.Context, def *model.WorkflowDefinition) error {
	if err := checkSavable(def); err != nil {
		return err
	}
	normalized, err := codec.Normalize(def)
	if err != nil {
		return fmt.Errorf("failed to normalize definition %s v%d: %w", def.ID, def.Version, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byVersion, ok := m.versions[def.ID]
	if !ok {
		byVersion = make(map[int]memoryEntry)
		m.versions[def.ID] = byVersion
	}
	byVersion[def.Version] = memoryEntry{def: normalized, updated: time.Now().UTC()}
	return nil
}

// Get returns a copy of one version.
func (m *MemoryStore) Get(ctx context.Context, id string, version int) (*model.WorkflowDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.versions[id][version]
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, id, version)
	}
	return entry.def.Clone(), nil
}

// Latest returns a copy of the highest version of id.
func (m *MemoryStore) Latest(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *model.WorkflowDefinition
	for v, entry := range m.versions[id] {
		if latest == nil || v > latest.Version {
			latest = entry.def
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return latest.Clone(), nil
}

// List returns version summaries ordered by id then version.
func (m *MemoryStore) List(ctx context.Context, id string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := []Entry{}
	for wid, byVersion := range m.versions {
		if id != "" && wid != id {
			continue
		}
		for _, e := range byVersion {
			entries = append(entries, entryOf(e.def, e.updated))
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ID != entries[j].ID {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Version < entries[j].Version
	})
}

func checkSavable(def *model.WorkflowDefinition) error {
	if def == nil {
		return fmt.Errorf("definition cannot be nil")
	}
	if def.ID == "" {
		return fmt.Errorf("definition id cannot be empty")
	}
	if def.Version < 1 {
		return fmt.Errorf("definition version must be at least 1, got %d", def.Version)
	}
	return nil
}
