package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hfi/pii-anonymizer/internal/mapping"
	"github.com/hfi/pii-anonymizer/internal/storage"
)

// stubStats is a StatsProvider returning canned values.
type stubStats struct {
	stats storage.Stats
	err   error
}

func (s *stubStats) Stats(context.Context) (storage.Stats, error) {
	return s.stats, s.err
}

func TestServer_HealthHandler(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	// Without any health checkers the service reports healthy.
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Status != "healthy" {
		t.Errorf("status = %q, want 'healthy'", status.Status)
	}
}

func TestServer_HealthHandler_WithCheckers(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	srv.RegisterHealthCheck("store", func() (bool, string) {
		return true, "connected"
	})
	srv.RegisterHealthCheck("cache", func() (bool, string) {
		return true, "connected"
	})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Checks["store"] != "ok" {
		t.Errorf("store check = %q, want 'ok'", status.Checks["store"])
	}
	if status.Checks["cache"] != "ok" {
		t.Errorf("cache check = %q, want 'ok'", status.Checks["cache"])
	}
}

func TestServer_HealthHandler_Unhealthy(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	srv.RegisterHealthCheck("store", func() (bool, string) {
		return false, "connection refused"
	})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Status != "unhealthy" {
		t.Errorf("status = %q, want 'unhealthy'", status.Status)
	}
	if status.Checks["store"] != "connection refused" {
		t.Errorf("store check = %q, want 'connection refused'", status.Checks["store"])
	}
}

func TestServer_ReadyHandler(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	req := httptest.NewRequest("GET", "/ready", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ready" {
		t.Errorf("body = %q, want 'ready'", rec.Body.String())
	}
}

func TestServer_ReadyHandler_NotReady(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	srv.RegisterHealthCheck("store", func() (bool, string) {
		return false, "down"
	})

	req := httptest.NewRequest("GET", "/ready", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_LiveHandler(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	req := httptest.NewRequest("GET", "/live", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "alive" {
		t.Errorf("body = %q, want 'alive'", rec.Body.String())
	}
}

func TestServer_MetricsHandler(t *testing.T) {
	srv := New(DefaultConfig(), nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_StatsHandler(t *testing.T) {
	now := time.Now()
	provider := &stubStats{
		stats: storage.Stats{
			Total: 3,
			CountByType: map[mapping.FieldType]int{
				mapping.FieldName: 2,
				mapping.FieldSSN:  1,
			},
			Oldest: now.Add(-time.Hour),
			Newest: now,
		},
	}
	srv := New(DefaultConfig(), provider)

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got storage.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if got.Total != 3 {
		t.Errorf("stats total = %d, want 3", got.Total)
	}
	if got.CountByType[mapping.FieldName] != 2 {
		t.Errorf("name count = %d, want 2", got.CountByType[mapping.FieldName])
	}
}

func TestServer_StatsHandler_Error(t *testing.T) {
	srv := New(DefaultConfig(), &stubStats{err: errors.New("store down")})

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stats status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := New(cfg, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}

	if err := <-errCh; err != http.ErrServerClosed {
		t.Errorf("Start() returned %v, want http.ErrServerClosed", err)
	}
}
