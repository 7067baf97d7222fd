package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Components that must be up before the service may accept traffic.
var criticalComponents = []string{"postgres", "neo4j"}

// HealthStatus is the JSON body served on /healthz and /readyz.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	StartTime  time.Time         `json:"-"`
}

// ComponentHealth is the last reported state of one backing component.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker aggregates per-component reports into liveness and
// readiness verdicts.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
}

var healthChecker = &HealthChecker{
	components: make(map[string]ComponentHealth),
	startTime:  time.Now(),
}

func (h *HealthChecker) set(name string, healthy bool, message string) {
	h.mu.Lock()
	h.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
	h.mu.Unlock()
}

func (h *HealthChecker) health() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Components: make(map[string]string, len(h.components)),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		StartTime:  h.startTime,
	}

	for name, comp := range h.components {
		if comp.Healthy {
			out.Components[name] = "healthy"
			continue
		}
		out.Status = "unhealthy"
		out.Components[name] = "unhealthy: " + comp.Message
	}

	return out
}

func (h *HealthChecker) readiness() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := HealthStatus{
		Status:     "ready",
		Timestamp:  time.Now(),
		Components: make(map[string]string, len(criticalComponents)),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		StartTime:  h.startTime,
	}

	for _, name := range criticalComponents {
		comp, registered := h.components[name]
		switch {
		case !registered:
			out.Status = "not_ready"
			out.Message = "waiting for " + name + " initialization"
			out.Components[name] = "not registered"
		case !comp.Healthy:
			out.Status = "not_ready"
			out.Message = "waiting for " + name
			out.Components[name] = "not ready: " + comp.Message
		default:
			out.Components[name] = "ready"
		}
	}

	return out
}

// SetVersion records the build version reported in health responses.
func SetVersion(version string) {
	healthChecker.mu.Lock()
	healthChecker.version = version
	healthChecker.mu.Unlock()
}

// RegisterComponent records the initial state of a backing component.
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.set(name, healthy, message)
}

// UpdateComponent overwrites the recorded state of a component.
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.set(name, healthy, message)
}

// GetHealth reports liveness across every registered component.
func GetHealth() HealthStatus {
	return healthChecker.health()
}

// GetReadiness reports whether all critical components are connected.
// A critical component that has not registered yet counts as not ready.
func GetReadiness() HealthStatus {
	return healthChecker.readiness()
}

// HealthHandler serves GetHealth as JSON, 503 when any component is down.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, GetHealth(), "healthy")
	}
}

// ReadyHandler serves GetReadiness as JSON, 503 until every critical
// component has reported healthy.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, GetReadiness(), "ready")
	}
}

func writeStatus(w http.ResponseWriter, st HealthStatus, okStatus string) {
	w.Header().Set("Content-Type", "application/json")
	code := http.StatusOK
	if st.Status != okStatus {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(st)
}
