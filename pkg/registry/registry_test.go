package registry

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/arbiter/pkg/model"
)

func TestRegistry_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg := New(store, nil)

			created, err := reg.Create(ctx, sampleDefinition("loan"))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if created.Version != 1 || created.Status != model.StatusDraft {
				t.Errorf("created = v%d %s", created.Version, created.Status)
			}
			if _, err := reg.Create(ctx, sampleDefinition("loan")); !errors.Is(err, ErrExists) {
				t.Errorf("duplicate Create() error = %v, want ErrExists", err)
			}

			if _, err := reg.Published(ctx, "loan"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Published() before publish error = %v", err)
			}

			// Drafts are editable.
			created.Description = "edited"
			if _, err := reg.UpdateDraft(ctx, created); err != nil {
				t.Fatalf("UpdateDraft() error = %v", err)
			}

			v1, err := reg.Publish(ctx, "loan", 1)
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if v1.Status != model.StatusPublished || v1.Description != "edited" {
				t.Errorf("published = %+v", v1)
			}

			// Published versions are frozen.
			var terr *TransitionError
			if _, err := reg.UpdateDraft(ctx, v1); !errors.As(err, &terr) || terr.From != model.StatusPublished {
				t.Errorf("UpdateDraft(published) error = %v", err)
			}
			if _, err := reg.Publish(ctx, "loan", 1); !errors.As(err, &terr) {
				t.Errorf("re-Publish error = %v", err)
			}

			v2, err := reg.NewVersion(ctx, "loan")
			if err != nil {
				t.Fatalf("NewVersion() error = %v", err)
			}
			if v2.Version != 2 || v2.Status != model.StatusDraft {
				t.Errorf("new version = v%d %s", v2.Version, v2.Status)
			}

			// Production still sees v1 until v2 is published.
			if live, _ := reg.Published(ctx, "loan"); live.Version != 1 {
				t.Errorf("Published() = v%d, want v1", live.Version)
			}

			if _, err := reg.Publish(ctx, "loan", 2); err != nil {
				t.Fatalf("Publish(v2) error = %v", err)
			}
			old, _ := reg.Get(ctx, "loan", 1)
			if old.Status != model.StatusArchived {
				t.Errorf("v1 status = %s, want archived", old.Status)
			}
			if live, _ := reg.Published(ctx, "loan"); live.Version != 2 {
				t.Errorf("Published() = v%d, want v2", live.Version)
			}

			if _, err := reg.Archive(ctx, "loan", 2); err != nil {
				t.Fatalf("Archive() error = %v", err)
			}
			if _, err := reg.Archive(ctx, "loan", 2); !errors.As(err, &terr) {
				t.Errorf("double Archive() error = %v", err)
			}
			if _, err := reg.Published(ctx, "loan"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Published() after archive error = %v", err)
			}

			entries, _ := reg.List(ctx, "loan")
			if len(entries) != 2 {
				t.Errorf("List() = %+v", entries)
			}
		})
	}
}

func TestRegistry_PublishRejectsInvalidDraft(t *testing.T) {
	ctx := context.Background()
	reg := New(NewMemoryStore(), nil)

	broken := sampleDefinition("broken")
	broken.Connections = broken.Connections[:2] // drop the false branch

	if _, err := reg.Create(ctx, broken); err != nil {
		t.Fatal(err)
	}
	_, err := reg.Publish(ctx, "broken", 1)
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("Publish() error = %v, want ErrInvalidDefinition", err)
	}
	var terr *TransitionError
	if !errors.As(err, &terr) || terr.Reason == "" {
		t.Errorf("error should be a TransitionError listing validation errors: %v", err)
	}

	draft, _ := reg.Get(ctx, "broken", 1)
	if draft.Status != model.StatusDraft {
		t.Errorf("status = %s, want draft", draft.Status)
	}
}

func TestRegistry_CreateGeneratesID(t *testing.T) {
	reg := New(NewMemoryStore(), nil)
	def := sampleDefinition("")
	def.Version = 7
	def.Status = model.StatusPublished

	created, err := reg.Create(context.Background(), def)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Version != 1 || created.Status != model.StatusDraft {
		t.Errorf("created = %s v%d %s", created.ID, created.Version, created.Status)
	}
	if def.ID != "" || def.Version != 7 {
		t.Error("Create mutated its argument")
	}
}
