// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the daemon.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	applog "github.com/bacco007/webepg/internal/log"
)

// Status is the outcome of a check or of the whole probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the result of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the body of both probes.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs registered checkers.
type Manager struct {
	version  string
	checkers []Checker
	now      func() time.Time
}

// NewManager returns a manager without checkers.
func NewManager(version string) *Manager {
	return &Manager{version: version, now: time.Now}
}

// Register adds checkers.
func (m *Manager) Register(checkers ...Checker) {
	m.checkers = append(m.checkers, checkers...)
}

// Live reports that the process is serving. Component checks are only run
// when verbose is set and never make the probe fail.
func (m *Manager) Live(ctx context.Context, verbose bool) Response {
	resp := Response{Status: StatusHealthy, Ready: true, Version: m.version, Timestamp: m.now()}
	if verbose {
		resp.Status, resp.Checks = m.run(ctx)
	}
	return resp
}

// Ready runs every checker. Any unhealthy component makes the daemon not
// ready; degraded components are reported but keep it ready.
func (m *Manager) Ready(ctx context.Context) Response {
	status, checks := m.run(ctx)
	return Response{
		Status:    status,
		Ready:     status != StatusUnhealthy,
		Version:   m.version,
		Timestamp: m.now(),
		Checks:    checks,
	}
}

func (m *Manager) run(ctx context.Context) (Status, map[string]CheckResult) {
	if len(m.checkers) == 0 {
		return StatusHealthy, nil
	}
	overall := StatusHealthy
	checks := make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		res := c.Check(ctx)
		checks[c.Name()] = res
		switch {
		case res.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case res.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall, checks
}

// ServeLive handles the liveness probe. It always answers 200.
func (m *Manager) ServeLive(w http.ResponseWriter, r *http.Request) {
	resp := m.Live(r.Context(), r.URL.Query().Get("verbose") == "true")
	m.write(w, r, http.StatusOK, resp)
}

// ServeReady handles the readiness probe: 200 when ready, 503 otherwise.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, code, resp)
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := applog.WithComponentFromContext(r.Context(), "health")
		logger.Error().Err(err).
			Str(applog.FieldEvent, "health.encode_error").
			Msg("failed to encode probe response")
	}
}
