package recorder

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/storage"
	"mercator-hq/arbiter/pkg/model"
)

func sampleEntry() Entry {
	score := 720.0
	return Entry{
		ExecutionID: "req-42",
		Workflow:    &model.WorkflowDefinition{ID: "personal-loan", Version: 3},
		Input: model.ApplicantData{
			"creditScore":   720.0,
			"annualIncome":  85000.0,
			"applicant":     map[string]any{"name": "Ada", "age": 36.0},
			"existingLoans": []any{"auto"},
		},
		Result: &model.DecisionResult{
			Decision:        model.DecisionApprove,
			Score:           &score,
			Flags:           []string{"prime"},
			ExecutedRules:   []string{"credit-floor"},
			Warnings:        []string{"field not found: employment.years"},
			ExecutionTimeMs: 0.8,
		},
	}
}

// blockingStorage blocks every Store until release is closed.
type blockingStorage struct {
	*storage.MemoryStorage
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (s *blockingStorage) Store(ctx context.Context, r *evidence.Record) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.MemoryStorage.Store(ctx, r)
}

func TestBuildRecord(t *testing.T) {
	entry := sampleEntry()
	rec, err := BuildRecord(entry)
	if err != nil {
		t.Fatalf("BuildRecord() error = %v", err)
	}

	if rec.ID == "" || rec.ID == rec.ExecutionID {
		t.Errorf("ID = %q, want a fresh uuid", rec.ID)
	}
	if rec.ExecutionID != "req-42" {
		t.Errorf("ExecutionID = %q", rec.ExecutionID)
	}
	if rec.Mode != evidence.ModeWorkflow || rec.WorkflowID != "personal-loan" || rec.WorkflowVersion != 3 {
		t.Errorf("workflow fields = %q %q %d", rec.Mode, rec.WorkflowID, rec.WorkflowVersion)
	}
	if rec.Decision != "approve" || rec.Score == nil || *rec.Score != 720 {
		t.Errorf("decision = %q score = %v", rec.Decision, rec.Score)
	}
	if !slices.Equal(rec.Flags, []string{"prime"}) || !slices.Equal(rec.ExecutedRules, []string{"credit-floor"}) {
		t.Errorf("Flags = %v ExecutedRules = %v", rec.Flags, rec.ExecutedRules)
	}
	if rec.DurationMs != 0.8 {
		t.Errorf("DurationMs = %v", rec.DurationMs)
	}
	want, _ := HashInput(entry.Input)
	if rec.InputHash != want || len(rec.InputHash) != 64 {
		t.Errorf("InputHash = %q, want %q", rec.InputHash, want)
	}

	// The record must not alias the result.
	entry.Result.Flags[0] = "mutated"
	if rec.Flags[0] != "prime" {
		t.Error("record aliases result flags")
	}
}

func TestBuildRecord_RulesMode(t *testing.T) {
	entry := sampleEntry()
	entry.Workflow = nil
	entry.RuleSetID = "standalone"
	entry.ExecutionID = ""
	entry.Result.Score = nil

	rec, err := BuildRecord(entry)
	if err != nil {
		t.Fatalf("BuildRecord() error = %v", err)
	}
	if rec.Mode != evidence.ModeRules || rec.WorkflowID != "standalone" || rec.WorkflowVersion != 0 {
		t.Errorf("mode fields = %q %q %d", rec.Mode, rec.WorkflowID, rec.WorkflowVersion)
	}
	if rec.ExecutionID == "" {
		t.Error("ExecutionID was not generated")
	}
	if rec.Score != nil {
		t.Errorf("Score = %v, want nil", *rec.Score)
	}
}

func TestHashInput(t *testing.T) {
	a := model.ApplicantData{"b": 2.0, "a": map[string]any{"y": true, "x": "z"}}
	b := model.ApplicantData{"a": map[string]any{"x": "z", "y": true}, "b": 2.0}
	c := model.ApplicantData{"a": map[string]any{"x": "z", "y": false}, "b": 2.0}

	ha, err := HashInput(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := HashInput(b)
	hc, _ := HashInput(c)

	if ha != hb {
		t.Errorf("equal records hashed differently: %s vs %s", ha, hb)
	}
	if ha == hc {
		t.Error("different records hashed equally")
	}

	empty, _ := HashInput(nil)
	if empty != HashContent([]byte("{}")) {
		t.Errorf("HashInput(nil) = %s, want hash of {}", empty)
	}
	if HashContent(nil) != "" {
		t.Error("HashContent(nil) should be empty")
	}
}

func TestRecorder_RecordAndClose(t *testing.T) {
	store := storage.NewMemoryStorage()
	r, err := New(store, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := r.Record(ctx, sampleEntry()); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	count, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 25 {
		t.Errorf("stored %d records after Close, want 25", count)
	}
	if r.Written() != 25 || r.Dropped() != 0 {
		t.Errorf("Written = %d Dropped = %d", r.Written(), r.Dropped())
	}

	_, err = r.Record(ctx, sampleEntry())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close error = %v, want ErrClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	store := &blockingStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		release:       make(chan struct{}),
		started:       make(chan struct{}),
	}
	r, err := New(store, DefaultConfig().WithBufferSize(2), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := r.Record(ctx, sampleEntry()); err != nil {
		t.Fatal(err)
	}
	// Wait until the worker holds the first record so the buffer is empty.
	select {
	case <-store.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never started writing")
	}

	for i := 0; i < 2; i++ {
		if _, err := r.Record(ctx, sampleEntry()); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	start := time.Now()
	_, err = r.Record(ctx, sampleEntry())
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("Record on full buffer error = %v, want ErrBufferFull", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Record blocked on a full buffer")
	}
	var recErr *evidence.RecorderError
	if !errors.As(err, &recErr) || recErr.ExecutionID != "req-42" {
		t.Errorf("error = %#v, want RecorderError for req-42", err)
	}

	close(store.release)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Written() != 3 || r.Dropped() != 1 {
		t.Errorf("Written = %d Dropped = %d, want 3 and 1", r.Written(), r.Dropped())
	}
}

func TestRecorder_Disabled(t *testing.T) {
	store := storage.NewMemoryStorage()
	r, err := New(store, DefaultConfig().WithEnabled(false), nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := r.Record(context.Background(), sampleEntry())
	if err != nil || id != "" {
		t.Errorf("Record() = %q, %v; want no-op", id, err)
	}
	r.Close()
	if n, _ := store.Count(context.Background(), nil); n != 0 {
		t.Errorf("disabled recorder stored %d records", n)
	}
}

func TestRecorder_NilResult(t *testing.T) {
	r, err := New(storage.NewMemoryStorage(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Record(context.Background(), Entry{ExecutionID: "x"}); err == nil {
		t.Error("Record(nil result) should fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero buffer", DefaultConfig().WithBufferSize(0), true},
		{"zero timeout", DefaultConfig().WithWriteTimeout(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}

	if _, err := New(nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(nil storage) error = %v", err)
	}
}
