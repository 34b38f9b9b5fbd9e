package run

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func authAs(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func newTestApp(records RecordService, queue RetryQueue) (*fiber.App, *Manager) {
	mgr := NewManager(DefaultConfig(), records, queue, nil, nil, nil)
	app := fiber.New()
	RegisterRoutes(app.Group("/runs"), mgr, authAs("user-1"))
	return app, mgr
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func startRun(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := postJSON(t, app, "/runs/", StartRequest{StartOptions: StartOptions{HasLocationPermission: true}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status %d", resp.StatusCode)
	}
	var out struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	return out.RunID
}

func TestStartHandlerRejectsMissingPermission(t *testing.T) {
	app, _ := newTestApp(newFakeRecords(), newFakeQueue())
	resp := postJSON(t, app, "/runs/", StartRequest{})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestStartHandlerCreatesRun(t *testing.T) {
	app, _ := newTestApp(newFakeRecords(), newFakeQueue())
	runID := startRun(t, app)
	if runID == "" {
		t.Fatalf("empty run id")
	}

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/state", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("state: %v status %d", err, resp.StatusCode)
	}
	var out struct {
		State State `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if out.State != StateRunning {
		t.Fatalf("expected running, got %s", out.State)
	}
}

func TestSampleIngestionRoundTrip(t *testing.T) {
	app, _ := newTestApp(newFakeRecords(), newFakeQueue())
	runID := startRun(t, app)

	fixes := straightLine(3, 0.00005, 2000)
	for i, fix := range fixes {
		resp := postJSON(t, app, "/runs/"+runID+"/samples", fix)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("sample %d status %d", i, resp.StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/stats", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: %v status %d", err, resp.StatusCode)
	}
	var out struct {
		DistanceM float64 `json:"distance_m"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if out.DistanceM < 10 || out.DistanceM > 12.5 {
		t.Fatalf("unexpected distance: %v", out.DistanceM)
	}
}

func TestPauseResumeEndTransitions(t *testing.T) {
	app, _ := newTestApp(newFakeRecords(), newFakeQueue())
	runID := startRun(t, app)

	resp := postJSON(t, app, "/runs/"+runID+"/pause", fiber.Map{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause status %d", resp.StatusCode)
	}

	// a paused run rejects fixes
	resp = postJSON(t, app, "/runs/"+runID+"/samples", straightLine(1, 0, 0)[0])
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while paused, got %d", resp.StatusCode)
	}

	resp = postJSON(t, app, "/runs/"+runID+"/resume", fiber.Map{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume status %d", resp.StatusCode)
	}

	resp = postJSON(t, app, "/runs/"+runID+"/end", fiber.Map{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status %d", resp.StatusCode)
	}
	var rec FinalRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Submitted {
		t.Fatalf("zero-distance run must skip submission")
	}

	// ending twice is a conflict
	resp = postJSON(t, app, "/runs/"+runID+"/end", fiber.Map{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on double end, got %d", resp.StatusCode)
	}
}

func TestResetHandlerFreesSlot(t *testing.T) {
	app, mgr := newTestApp(newFakeRecords(), newFakeQueue())
	runID := startRun(t, app)

	resp := postJSON(t, app, "/runs/"+runID+"/reset", fiber.Map{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status %d", resp.StatusCode)
	}
	if _, err := mgr.Lifecycle(runID); err == nil {
		t.Fatalf("reset must drop the run")
	}
}

func TestUnknownRunIs404(t *testing.T) {
	app, _ := newTestApp(newFakeRecords(), newFakeQueue())

	for _, path := range []string{
		"/runs/nope/pause",
		"/runs/nope/resume",
		"/runs/nope/end",
		"/runs/nope/reset",
		"/runs/nope/steps",
	} {
		resp := postJSON(t, app, path, fiber.Map{})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/runs/nope/stats", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stats: expected 404, got %d", resp.StatusCode)
	}
}

func TestSensorReadingEndpoints(t *testing.T) {
	app, mgr := newTestApp(newFakeRecords(), newFakeQueue())

	resp := postJSON(t, app, "/runs/", StartRequest{
		StartOptions: StartOptions{HasLocationPermission: true},
		Devices:      DeviceFlags{Watch: true, Wearable: true},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status %d", resp.StatusCode)
	}
	var out struct {
		RunID string `json:"run_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	runID := out.RunID

	resp = postJSON(t, app, "/runs/"+runID+"/sensors/watch/readings",
		fiber.Map{"metric": "heart_rate", "value": 151})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("reading status %d", resp.StatusCode)
	}

	resp = postJSON(t, app, "/runs/"+runID+"/sensors/watch/readings",
		fiber.Map{"metric": "blood_type", "value": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown metric: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, app, "/runs/"+runID+"/sensors/wearable/calories", fiber.Map{"calories": 88.5})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("calories status %d", resp.StatusCode)
	}

	resp = postJSON(t, app, "/runs/"+runID+"/steps", fiber.Map{"total_steps": 420, "cadence_spm": 172})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("steps status %d", resp.StatusCode)
	}

	lc, err := mgr.Lifecycle(runID)
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	fixes := straightLine(2, 0.00005, 2000)
	_, _ = lc.Ingest(fixes[0])
	_, _ = lc.Ingest(fixes[1])

	st := lc.Stats()
	if st.HeartRateBpm == nil || *st.HeartRateBpm != 151 {
		t.Fatalf("pushed heart rate lost: %+v", st)
	}
	if st.Calories == nil || *st.Calories != 88.5 {
		t.Fatalf("pushed calories lost: %+v", st)
	}
}

func TestAppStateHandler(t *testing.T) {
	app, _ := newTestApp(newFakeRecords(), newFakeQueue())
	runID := startRun(t, app)

	resp := postJSON(t, app, "/runs/"+runID+"/appstate", fiber.Map{"foreground": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("appstate status %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "false") {
		t.Fatalf("unexpected body: %s", raw)
	}
}
