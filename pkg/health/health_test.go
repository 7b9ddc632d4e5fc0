package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func decodeProbe(t *testing.T, w *httptest.ResponseRecorder) probeBody {
	t.Helper()
	var body probeBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// driveToFailure runs a check past the failure threshold.
func driveToFailure(c *check) {
	ctx := context.Background()
	for range 3 {
		c.run(ctx)
	}
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.Add(Liveness, "check1", time.Second, passingCheck())
	h.Add(Liveness, "check2", time.Second, passingCheck())

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeProbe(t, w).Status)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.Add(Liveness, "db", time.Second, failingCheck("connection refused"))

	// Checks start healthy; three consecutive failures flip them.
	driveToFailure(h.checks[0])

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeProbe(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks["db"], "connection refused")
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.Add(Liveness, "db", time.Second, failingCheck("transient"))

	h.checks[0].run(context.Background())
	h.checks[0].run(context.Background())

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code, "two failures must not flip a threshold-3 check")
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	h := New()

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyEndpoint_ReadyAndPassing(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", time.Second, passingCheck())
	h.SetReady(true)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyEndpoint_DrainingFlipsReady(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.SetReady(false)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyEndpoint_LivenessFailureDoesNotAffectReadiness(t *testing.T) {
	h := New()
	h.Add(Liveness, "goroutines", time.Second, failingCheck("leak"))
	h.Add(Readiness, "postgres", time.Second, passingCheck())
	h.SetReady(true)

	driveToFailure(h.checks[0])

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDiagnosticCheckNeverFailsProbes(t *testing.T) {
	h := New()
	h.Add(Diagnostic, "exchange-rate", time.Second, failingCheck("stale"))
	h.SetReady(true)

	driveToFailure(h.checks[0])

	for _, probe := range []http.HandlerFunc{h.LiveEndpoint, h.ReadyEndpoint} {
		w := httptest.NewRecorder()
		probe(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// But the report shows the failure.
	report := h.Report()
	require.Len(t, report, 1)
	assert.Equal(t, statusFailed, report[0].Status)
	assert.Equal(t, Diagnostic, report[0].Kind)
}

func TestIsReady(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", time.Second, failingCheck("down"))

	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady(), "checks start healthy")

	driveToFailure(h.checks[0])
	assert.False(t, h.IsReady(), "failed readiness check flips IsReady")
}

func TestCheckRecovery(t *testing.T) {
	h := New()

	var mu sync.Mutex
	shouldFail := true
	h.Add(Readiness, "flaky", time.Second, func(_ context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if shouldFail {
			return errors.New("down")
		}
		return nil
	})

	c := h.checks[0]
	driveToFailure(c)
	assert.False(t, c.healthy.Load())

	// A single success recovers the check.
	mu.Lock()
	shouldFail = false
	mu.Unlock()
	c.run(context.Background())
	assert.True(t, c.healthy.Load())
}

func TestReport_SortedByName(t *testing.T) {
	h := New()
	h.Add(Readiness, "zeta", time.Second, passingCheck())
	h.Add(Liveness, "alpha", time.Second, passingCheck())

	report := h.Report()
	require.Len(t, report, 2)
	assert.Equal(t, "alpha", report[0].Check)
	assert.Equal(t, "zeta", report[1].Check)
}

func TestReportEndpoint(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", time.Second, passingCheck())

	w := httptest.NewRecorder()
	h.ReportEndpoint(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Checks []CheckResult `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Checks, 1)
	assert.Equal(t, "postgres", body.Checks[0].Check)
	assert.Equal(t, "ok", body.Checks[0].Status)
}

func TestStartAndStop(t *testing.T) {
	h := New()

	var mu sync.Mutex
	runs := 0
	h.Add(Liveness, "counter", time.Second, func(_ context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	mu.Lock()
	after := runs
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.LessOrEqual(t, runs, after+1, "checks must stop firing after Stop")
	mu.Unlock()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}

func TestStalenessCheck(t *testing.T) {
	// Never refreshed: passes, readiness gating covers the initial load.
	never := StalenessCheck(time.Minute, func() (time.Time, bool) { return time.Time{}, false })
	assert.NoError(t, never(context.Background()))

	fresh := StalenessCheck(time.Minute, func() (time.Time, bool) { return time.Now(), true })
	assert.NoError(t, fresh(context.Background()))

	stale := StalenessCheck(time.Minute, func() (time.Time, bool) { return time.Now().Add(-time.Hour), true })
	assert.Error(t, stale(context.Background()))
}
