package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/model"
)

func workflowYAML(id string) string {
	return `
id: ` + id + `
name: ` + id + `
version: 1
status: published
nodes:
  - id: start
    type: start
  - id: approve
    type: action
    data:
      action:
        type: approve
  - id: end
    type: end
connections:
  - {id: e1, source: start, target: approve}
  - {id: e2, source: approve, target: end}
`
}

const workflowJSON = `{
  "id": "auto-loan",
  "name": "Auto loan",
  "version": 2,
  "nodes": [
    {"id": "start", "type": "start"},
    {"id": "end", "type": "end"}
  ],
  "connections": [{"id": "e1", "source": "start", "target": "end"}]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "personal.yaml"), workflowYAML("personal-loan"))
	writeFile(t, filepath.Join(dir, "nested", "auto.json"), workflowJSON)
	writeFile(t, filepath.Join(dir, "nested", "broken.yml"), "id: [unterminated")
	writeFile(t, filepath.Join(dir, "zz-dup.yaml"), workflowYAML("personal-loan"))
	writeFile(t, filepath.Join(dir, "noid.yaml"), "name: anonymous\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# not a definition")
	writeFile(t, filepath.Join(dir, ".hidden", "secret.yaml"), workflowYAML("hidden"))

	result, err := NewFileSource(dir, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(result.Workflows) != 2 {
		t.Fatalf("loaded %d workflows, want 2: %v", len(result.Workflows), result.Workflows)
	}
	auto, ok := result.Workflows["auto-loan"]
	if !ok || auto.Version != 2 || auto.Status != model.StatusDraft {
		t.Errorf("auto-loan = %+v", auto)
	}
	if result.Files["personal-loan"] != filepath.Join(dir, "personal.yaml") {
		t.Errorf("personal-loan file = %q", result.Files["personal-loan"])
	}
	if _, ok := result.Workflows["hidden"]; ok {
		t.Error("hidden directory was loaded")
	}

	if len(result.Errors) != 3 {
		t.Fatalf("got %d file errors, want 3: %v", len(result.Errors), result.Errors)
	}
	wantPaths := []string{
		filepath.Join(dir, "nested", "broken.yml"),
		filepath.Join(dir, "noid.yaml"),
		filepath.Join(dir, "zz-dup.yaml"),
	}
	for i, fe := range result.Errors {
		if fe.Path != wantPaths[i] {
			t.Errorf("error %d path = %q, want %q", i, fe.Path, wantPaths[i])
		}
	}
	var decodeErr *codec.DecodeError
	if !errors.As(result.Errors[0], &decodeErr) {
		t.Errorf("broken file error = %v, want DecodeError", result.Errors[0])
	}
}

func TestFileSource_SingleFileAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.yaml")
	writeFile(t, path, workflowYAML("one"))

	result, err := NewFileSource(path, nil).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.Workflows["one"]; !ok || len(result.Workflows) != 1 {
		t.Errorf("Workflows = %v", result.Workflows)
	}

	if _, err := NewFileSource(filepath.Join(t.TempDir(), "missing"), nil).Load(context.Background()); err == nil {
		t.Error("Load(missing) should fail")
	}
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yaml"), workflowYAML("b-flow"))
	writeFile(t, filepath.Join(dir, "a.yaml"), workflowYAML("a-flow"))

	c := NewCatalog()
	if c.Len() != 0 || c.Revision() != 0 {
		t.Fatal("new catalog is not empty")
	}

	src := NewFileSource(dir, nil)
	if _, err := c.Reload(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	list := c.List()
	if len(list) != 2 || list[0].ID != "a-flow" || list[1].ID != "b-flow" {
		t.Errorf("List() = %v", list)
	}
	if _, ok := c.Get("a-flow"); !ok {
		t.Error("Get(a-flow) missing")
	}

	os.Remove(filepath.Join(dir, "a.yaml"))
	if _, err := c.Reload(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("a-flow"); ok || c.Len() != 1 || c.Revision() != 2 {
		t.Errorf("after reload: len=%d revision=%d", c.Len(), c.Revision())
	}

	os.RemoveAll(dir)
	if _, err := c.Reload(context.Background(), src); err == nil {
		t.Error("Reload of a removed directory should fail")
	}
	if c.Len() != 1 {
		t.Error("failed reload changed the catalog")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), workflowYAML("a-flow"))

	cfg := DefaultWatcherConfig(dir)
	cfg.DebounceInterval = 50 * time.Millisecond
	w, err := NewWatcher(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	catalog := NewCatalog()
	src := NewFileSource(dir, nil)
	reloaded := make(chan struct{}, 10)
	var reloads atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() error {
			reloads.Add(1)
			_, err := catalog.Reload(ctx, src)
			reloaded <- struct{}{}
			return err
		})
	}()

	time.Sleep(100 * time.Millisecond)

	// A burst of writes collapses into a single reload.
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(dir, "b.yaml"), workflowYAML("b-flow"))
	}
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload not called after file change")
	}
	if _, ok := catalog.Get("b-flow"); !ok {
		t.Error("catalog missing b-flow after reload")
	}

	time.Sleep(200 * time.Millisecond)
	if n := reloads.Load(); n != 1 {
		t.Errorf("reloads = %d, want 1", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	if err := w.Watch(context.Background(), func() error { return nil }); !errors.Is(err, ErrWatcherRunning) {
		t.Errorf("second Watch() error = %v, want ErrWatcherRunning", err)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(150 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls after Stop = %d, want 1", calls.Load())
	}
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	if _, err := NewWatcher(&WatcherConfig{}, nil); err == nil {
		t.Error("NewWatcher without path should fail")
	}
}
