// Package health runs periodic liveness and readiness checks and exposes
// them three ways: Kubernetes-style /livez and /readyz probes, and a full
// report of every check with its status and details for the staff-facing
// store health view.
//
// Checks use consecutive failure/success thresholds so a single flaky
// probe does not flap the service in and out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Kind distinguishes liveness checks (is the process functioning) from
// readiness checks (may it receive traffic). Diagnostic checks appear in
// the report endpoint only and never fail a probe: degraded collaborators
// the service tolerates belong here, not in readiness.
type Kind string

const (
	Liveness   Kind = "liveness"
	Readiness  Kind = "readiness"
	Diagnostic Kind = "diagnostic"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is one row of the store health report.
type CheckResult struct {
	Check   string `json:"check"`
	Kind    Kind   `json:"kind"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// check holds configuration and runtime state for a single probe.
// run() executes on exactly one goroutine, so the consecutive counters
// need no synchronization; healthy and lastErr are read from HTTP
// handlers and use atomics.
type check struct {
	name    string
	kind    Kind
	timeout time.Duration
	fn      CheckFunc

	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= c.successThreshold {
		c.healthy.Store(true)
	}
}

func (c *check) result() CheckResult {
	r := CheckResult{Check: c.name, Kind: c.kind, Status: statusOK}
	if !c.healthy.Load() {
		r.Status = statusFailed
		if p := c.lastErr.Load(); p != nil && *p != nil {
			r.Details = (*p).Error()
		}
	}
	return r
}

// Health owns the check registry. The service starts not-ready; call
// SetReady(true) once initialization finishes and SetReady(false) when
// draining.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New creates an empty Health registry.
func New() *Health {
	return &Health{}
}

// Add registers a check of the given kind. Checks start healthy and flip
// after three consecutive failures; one success flips them back.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, fn CheckFunc) {
	c := &check{
		name:             name,
		kind:             kind,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: 3,
		successThreshold: 1,
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start launches one goroutine per registered check, each firing at the
// given interval until Stop or context cancellation. The first run
// happens immediately.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, len(h.checks))
	copy(checks, h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}(c)
	}
}

// Stop cancels all check goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness bit.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service was marked ready and every
// readiness check currently passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, r := range h.Report() {
		if r.Kind == Readiness && r.Status != statusOK {
			return false
		}
	}
	return true
}

// Report returns the current status of every registered check, sorted by
// name for stable output. This backs the staff-facing store diagnostics
// table.
func (h *Health) Report() []CheckResult {
	h.mu.RLock()
	checks := make([]*check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	out := make([]CheckResult, len(checks))
	for i, c := range checks {
		out[i] = c.result()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Check < out[j].Check })
	return out
}

// LiveEndpoint serves /livez: 200 while all liveness checks pass.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.writeProbe(w, Liveness, true)
}

// ReadyEndpoint serves /readyz: 200 while the service is marked ready and
// all readiness checks pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.writeProbe(w, Readiness, h.ready.Load())
}

// ReportEndpoint serves the full check report as JSON, always with 200:
// the report itself carries per-check status.
func (h *Health) ReportEndpoint(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Checks []CheckResult `json:"checks"`
	}{Checks: h.Report()})
}

func (h *Health) writeProbe(w http.ResponseWriter, kind Kind, ready bool) {
	failures := make(map[string]string)
	for _, r := range h.Report() {
		if r.Kind == kind && r.Status != statusOK {
			details := r.Details
			if details == "" {
				details = "check is unhealthy"
			}
			failures[r.Check] = details
		}
	}
	if !ready {
		failures["_readiness"] = "service is not ready"
	}

	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	body := struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: statusOK}

	if len(failures) > 0 {
		status = http.StatusServiceUnavailable
		body.Status = "unhealthy"
		body.Checks = failures
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
