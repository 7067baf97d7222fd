package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

func serveHealth(t *testing.T, handler http.HandlerFunc, path string) (int, HealthStatus) {
	t.Helper()

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", path, nil))

	var st HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, st
}

func TestRegisterAndUpdateComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("postgres", true, "pool up")
	if comp := healthChecker.components["postgres"]; !comp.Healthy || comp.Message != "pool up" {
		t.Errorf("unexpected registered state: %+v", comp)
	}

	UpdateComponent("postgres", false, "pool exhausted")
	comp := healthChecker.components["postgres"]
	if comp.Healthy {
		t.Error("component should be unhealthy after update")
	}
	if comp.Message != "pool exhausted" {
		t.Errorf("expected message 'pool exhausted', got %q", comp.Message)
	}
}

func TestGetHealth(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		resetHealthChecker()
		SetVersion("1.0.0")
		RegisterComponent("postgres", true, "")
		RegisterComponent("neo4j", true, "")

		health := GetHealth()
		if health.Status != "healthy" {
			t.Errorf("expected status 'healthy', got %q", health.Status)
		}
		if len(health.Components) != 2 {
			t.Errorf("expected 2 components, got %d", len(health.Components))
		}
		if health.Version != "1.0.0" {
			t.Errorf("expected version '1.0.0', got %q", health.Version)
		}
	})

	t.Run("one unhealthy", func(t *testing.T) {
		resetHealthChecker()
		RegisterComponent("postgres", true, "")
		RegisterComponent("neo4j", false, "not connected")

		health := GetHealth()
		if health.Status != "unhealthy" {
			t.Errorf("expected status 'unhealthy', got %q", health.Status)
		}
		if got := health.Components["neo4j"]; got != "unhealthy: not connected" {
			t.Errorf("unexpected neo4j status: %q", got)
		}
	})
}

func TestGetReadiness(t *testing.T) {
	cases := map[string]struct {
		register   func()
		wantStatus string
	}{
		"all critical ready": {
			register: func() {
				RegisterComponent("postgres", true, "")
				RegisterComponent("neo4j", true, "")
			},
			wantStatus: "ready",
		},
		"critical component missing": {
			register: func() {
				RegisterComponent("postgres", true, "")
			},
			wantStatus: "not_ready",
		},
		"critical component unhealthy": {
			register: func() {
				RegisterComponent("postgres", true, "")
				RegisterComponent("neo4j", false, "connectivity check failed")
			},
			wantStatus: "not_ready",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resetHealthChecker()
			tc.register()

			readiness := GetReadiness()
			if readiness.Status != tc.wantStatus {
				t.Errorf("expected status %q, got %q", tc.wantStatus, readiness.Status)
			}
			if tc.wantStatus == "not_ready" && readiness.Message == "" {
				t.Error("expected message explaining why not ready")
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker()
	SetVersion("test")
	RegisterComponent("postgres", true, "")

	code, health := serveHealth(t, HealthHandler(), "/healthz")
	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("expected version 'test', got %q", health.Version)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("postgres", false, "pool exhausted")

	code, health := serveHealth(t, HealthHandler(), "/healthz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if health.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %q", health.Status)
	}
}

func TestReadyHandlerNotReady(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("postgres", true, "")

	code, readiness := serveHealth(t, ReadyHandler(), "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if readiness.Status != "not_ready" {
		t.Errorf("expected not_ready status, got %q", readiness.Status)
	}
}
