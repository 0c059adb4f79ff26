package service

import (
	"sync"
	"time"
)

// ComponentHealth is the health snapshot of a single component.
type ComponentHealth struct {
	// Status is the current health state.
	Status ComponentStatus `json:"status"`

	// Error contains the error message if Status is "failed".
	Error string `json:"error,omitempty"`

	// LastChecked is when the health was last evaluated.
	LastChecked time.Time `json:"last_checked"`

	// LastSuccess is when the component last ran healthy.
	LastSuccess time.Time `json:"last_success,omitempty"`
}

// IsHealthy returns true if the component health indicates healthy operation.
func (h ComponentHealth) IsHealthy() bool {
	return h.Status.IsHealthy()
}

// HealthStatus is the aggregate health of the service.
type HealthStatus struct {
	// Status is the overall health: "healthy" or "degraded".
	Status string `json:"status"`

	// Ready indicates whether the service can make progress on analyses.
	// False when any supervised component is currently failed.
	Ready bool `json:"ready"`

	// Uptime is how long the service has been running.
	Uptime time.Duration `json:"uptime"`

	// Components contains per-component health.
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// HealthManager aggregates health status from supervised components.
// It is safe for concurrent use and satisfies the HTTP server's
// Readiness interface.
type HealthManager struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
}

// NewHealthManager creates a new HealthManager instance.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

// UpdateComponent updates the health status for a named component.
func (m *HealthManager) UpdateComponent(name string, health ComponentHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = health
}

// RemoveComponent removes a component from health tracking.
func (m *HealthManager) RemoveComponent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.components, name)
}

// Status returns the aggregate health status of all components.
func (m *HealthManager) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := HealthStatus{
		Status:     "healthy",
		Ready:      true,
		Uptime:     time.Since(m.startTime),
		Components: make(map[string]ComponentHealth, len(m.components)),
	}

	for name, health := range m.components {
		status.Components[name] = health
		if health.Status == StatusFailed {
			status.Status = "degraded"
			status.Ready = false
		}
	}

	return status
}

// Ready reports whether no supervised component is currently failed.
// A failed bus consumer or watchdog means queued analyses cannot make
// progress, so the service asks to be taken out of rotation.
func (m *HealthManager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, health := range m.components {
		if health.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Components returns a name to status summary for the readiness probe.
func (m *HealthManager) Components() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.components))
	for name, health := range m.components {
		out[name] = string(health.Status)
	}
	return out
}
