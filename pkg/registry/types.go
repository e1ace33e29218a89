package registry

import (
	"context"
	"errors"
	"time"

	"mercator-hq/arbiter/pkg/model"
)

var (
	// ErrNotFound is returned when a definition or version does not exist.
	ErrNotFound = errors.New("workflow definition not found")

	// ErrExists is returned by Create for an id that is already taken.
	ErrExists = errors.New("workflow definition already exists")
)

// Store persists workflow definition versions. Implementations must be safe
// for concurrent use and must not retain or hand out the caller's pointers.
type Store interface {
	// Save inserts or replaces the version identified by def.ID and def.Version.
	Save(ctx context.Context, def *model.WorkflowDefinition) error

	// Get returns one version, or ErrNotFound.
	Get(ctx context.Context, id string, version int) (*model.WorkflowDefinition, error)

	// Latest returns the highest version of id, or ErrNotFound.
	Latest(ctx context.Context, id string) (*model.WorkflowDefinition, error)

	// List returns every version of id, or of every workflow when id is
	// empty, ordered by id then version.
	List(ctx context.Context, id string) ([]Entry, error)

	// Close releases any resources held by the store.
	Close() error
}

// Entry summarizes one stored version.
type Entry struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Version   int          `json:"version"`
	Status    model.Status `json:"status"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func entryOf(def *model.WorkflowDefinition, updated time.Time) Entry {
	return Entry{
		ID:        def.ID,
		Name:      def.Name,
		Version:   def.Version,
		Status:    def.Status,
		UpdatedAt: updated,
	}
}
