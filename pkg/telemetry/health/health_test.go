package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"mercator-hq/arbiter/pkg/config"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadiness(t *testing.T) {
	workflows := 0
	c := New(time.Second)
	c.Register("catalog", CatalogCheck(func() int { return workflows }, 1))
	c.Register("evidence", PingCheck(pinger{}))

	status := c.Readiness(context.Background())
	if status.Ready() {
		t.Fatal("empty catalog reported ready")
	}
	if status.Checks["catalog"].Status != StatusUnhealthy || status.Checks["evidence"].Status != StatusOK {
		t.Errorf("checks = %+v", status.Checks)
	}

	workflows = 3
	if status := c.Readiness(context.Background()); !status.Ready() || status.Status != StatusReady {
		t.Errorf("status = %+v, want ready", status)
	}

	if !slices.Equal(c.Names(), []string{"catalog", "evidence"}) {
		t.Errorf("Names() = %v", c.Names())
	}
}

func TestReadiness_TimeoutAndPanic(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	c.Register("broken", func(context.Context) error { panic("nil storage") })

	status := c.Readiness(context.Background())
	if status.Checks["slow"].Message != ErrCheckTimeout.Error() {
		t.Errorf("slow = %+v", status.Checks["slow"])
	}
	if status.Checks["broken"].Status != StatusUnhealthy {
		t.Errorf("broken = %+v", status.Checks["broken"])
	}
}

func TestMount(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry.Health
	c := New(time.Second)
	c.Register("registry", PingCheck(pinger{err: errors.New("database is locked")}))

	mux := http.NewServeMux()
	c.Mount(mux, &cfg, NewVersionInfo("1.2.0", "abc123", "2026-01-01"))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodHead, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.0" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Checks["registry"].Message != "database is locked" {
		t.Errorf("registry check = %+v", status.Checks["registry"])
	}
}
