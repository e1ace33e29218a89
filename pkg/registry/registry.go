package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/validator"
)

// ErrInvalidDefinition is wrapped by the TransitionError returned when a
// draft that fails validation is published.
var ErrInvalidDefinition = errors.New("definition failed validation")

// Registry applies lifecycle rules on top of a Store.
type Registry struct {
	store     Store
	validator *validator.Validator
	logger    *slog.Logger

	// mu serializes read-modify-write lifecycle operations.
	mu sync.Mutex
}

// New creates a registry over store. A nil logger falls back to
// slog.Default().
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     store,
		validator: validator.New(logger),
		logger:    logger,
	}
}

// Store returns the underlying store.
func (r *Registry) Store() Store {
	return r.store
}

// Create stores def as version 1 of a new workflow in draft status. An empty
// id is replaced by a generated one. The stored copy is returned.
func (r *Registry) Create(ctx context.Context, def *model.WorkflowDefinition) (*model.WorkflowDefinition, error) {
	if def == nil {
		return nil, fmt.Errorf("definition cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	draft := def.Clone()
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if _, err := r.store.Latest(ctx, draft.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, draft.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	draft.Version = 1
	draft.Status = model.StatusDraft
	if err := r.store.Save(ctx, draft); err != nil {
		return nil, err
	}

	r.logger.Info("workflow created", "workflow_id", draft.ID, "name", draft.Name)
	return draft, nil
}

// UpdateDraft replaces the content of an existing draft version.
func (r *Registry) UpdateDraft(ctx context.Context, def *model.WorkflowDefinition) (*model.WorkflowDefinition, error) {
	if def == nil {
		return nil, fmt.Errorf("definition cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.Get(ctx, def.ID, def.Version)
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusDraft {
		return nil, &TransitionError{
			ID: def.ID, Version: def.Version, From: current.Status, To: model.StatusDraft,
			Reason: "only drafts can be edited; create a new version instead",
		}
	}

	updated := def.Clone()
	updated.Status = model.StatusDraft
	if err := r.store.Save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Publish validates a draft and makes it the published version of its
// workflow, archiving the version published before it.
func (r *Registry) Publish(ctx context.Context, id string, version int) (*model.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, err := r.store.Get(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if def.Status != model.StatusDraft {
		return nil, &TransitionError{
			ID: id, Version: version, From: def.Status, To: model.StatusPublished,
			Reason: "only drafts can be published",
		}
	}

	if result := r.validator.ValidateWorkflow(def); !result.IsValid {
		return nil, &TransitionError{
			ID: id, Version: version, From: def.Status, To: model.StatusPublished,
			Reason: strings.Join(result.Errors, "; "),
			Err:    ErrInvalidDefinition,
		}
	}

	entries, err := r.store.List(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Status != model.StatusPublished || e.Version == version {
			continue
		}
		previous, err := r.store.Get(ctx, id, e.Version)
		if err != nil {
			return nil, err
		}
		previous.Status = model.StatusArchived
		if err := r.store.Save(ctx, previous); err != nil {
			return nil, err
		}
		r.logger.Info("workflow version archived", "workflow_id", id, "version", e.Version)
	}

	def.Status = model.StatusPublished
	if err := r.store.Save(ctx, def); err != nil {
		return nil, err
	}

	r.logger.Info("workflow published", "workflow_id", id, "version", version)
	return def, nil
}

// Archive retires a draft or published version.
func (r *Registry) Archive(ctx context.Context, id string, version int) (*model.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, err := r.store.Get(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if def.Status == model.StatusArchived {
		return nil, &TransitionError{
			ID: id, Version: version, From: def.Status, To: model.StatusArchived,
			Reason: "version is already archived",
		}
	}

	def.Status = model.StatusArchived
	if err := r.store.Save(ctx, def); err != nil {
		return nil, err
	}
	r.logger.Info("workflow version archived", "workflow_id", id, "version", version)
	return def, nil
}

// NewVersion copies the latest version of id into a new draft.
func (r *Registry) NewVersion(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest, err := r.store.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	next := latest.NewVersion()
	if err := r.store.Save(ctx, next); err != nil {
		return nil, err
	}

	r.logger.Info("workflow version created", "workflow_id", id, "version", next.Version)
	return next, nil
}

// Get returns one version.
func (r *Registry) Get(ctx context.Context, id string, version int) (*model.WorkflowDefinition, error) {
	return r.store.Get(ctx, id, version)
}

// Published returns the published version of id, the only one a production
// evaluation may run.
func (r *Registry) Published(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	entries, err := r.store.List(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Status == model.StatusPublished {
			return r.store.Get(ctx, id, entries[i].Version)
		}
	}
	return nil, fmt.Errorf("%w: no published version of %s", ErrNotFound, id)
}

// List returns version summaries for id, or for every workflow when id is
// empty.
func (r *Registry) List(ctx context.Context, id string) ([]Entry, error) {
	return r.store.List(ctx, id)
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}
