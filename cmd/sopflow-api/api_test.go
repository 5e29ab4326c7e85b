package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sopflow/sopflow/pkg/config"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence/file"
	"github.com/sopflow/sopflow/pkg/tags"
	"github.com/sopflow/sopflow/pkg/testutil"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := file.NewPersistence(t.TempDir())

	api := NewAPI(logger, p, nil, tags.NewMockOracle(), config.DefaultSettings())

	return api.App()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type sessionViewBody struct {
	Session *models.Session   `json:"session"`
	Status  map[string]string `json:"status"`
}

func createProcess(t *testing.T, app *fiber.App, name string, diagram []byte) int64 {
	t.Helper()

	resp := doJSON(t, app, fiber.MethodPost, "/api/processes", map[string]string{
		"name":        name,
		"xml_content": string(diagram),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created models.Process

	decode(t, resp, &created)
	require.NotZero(t, created.ID)

	return created.ID
}

func TestAPI_ProcessCRUD(t *testing.T) {
	app := newTestApp(t)
	diagram := testutil.LinearDiagram("Step-A")

	id := createProcess(t, app, "Boiler Startup", diagram)

	resp := doJSON(t, app, fiber.MethodGet, "/api/processes", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summaries []models.ProcessSummary

	decode(t, resp, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Boiler Startup", summaries[0].Name)
	assert.Equal(t, models.SessionStatusNone, summaries[0].SessionStatus)

	resp = doJSON(t, app, fiber.MethodPut, "/api/processes/"+itoa(id), map[string]string{
		"name":        "Boiler Startup v2",
		"xml_content": string(diagram),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodDelete, "/api/processes/"+itoa(id), nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/api/processes/"+itoa(id), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateProcess_RejectsBadDiagram(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/processes", map[string]string{
		"name":        "Broken",
		"xml_content": "<definitions><unterminated",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/processes", map[string]string{
		"name":        "",
		"xml_content": string(testutil.LinearDiagram("Step-A")),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SessionLifecycle(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Run Me", testutil.LinearDiagram("Step-A"))
	base := "/api/processes/" + itoa(id) + "/session"

	resp := doJSON(t, app, fiber.MethodPost, base+"/open", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view sessionViewBody

	decode(t, resp, &view)
	require.NotNil(t, view.Session)
	assert.Empty(t, view.Session.Log)

	resp = doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "start"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	decode(t, resp, &view)
	assert.Equal(t, "completed", view.Status["Start"], "start events complete in one shot")

	resp = doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "Step-A"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	decode(t, resp, &view)
	assert.Equal(t, "Step-A", view.Session.CurrentTaskID)
	assert.Equal(t, "running", view.Status["Step-A"])

	resp = doJSON(t, app, fiber.MethodPost, base+"/complete", map[string]string{
		"element_id": "Step-A",
		"note":       "all clear",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, base+"/complete", map[string]string{"element_id": "end"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	decode(t, resp, &view)
	assert.True(t, view.Session.IsFinished)
	assert.Len(t, view.Session.Log, 4, "reaching the final end appends nothing extra")
}

func TestAPI_FinishSession(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Cut Short", testutil.LinearDiagram("Step-A"))
	base := "/api/processes/" + itoa(id) + "/session"

	resp := doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "start"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, base+"/finish", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view sessionViewBody

	decode(t, resp, &view)
	assert.True(t, view.Session.IsFinished)

	last := view.Session.Log[len(view.Session.Log)-1]
	assert.Equal(t, models.SourceSystem, last.Source)
	assert.Equal(t, "流程結束", last.Message)

	resp = doJSON(t, app, fiber.MethodPost, base+"/finish", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAPI_GateViolationIsConflict(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Strict", testutil.LinearDiagram("Step-A", "Step-B"))
	base := "/api/processes/" + itoa(id) + "/session"

	resp := doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "start"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "Step-B"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAPI_Gates(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Gated", testutil.LinearDiagram("Step-A", "Step-B"))

	resp := doJSON(t, app, fiber.MethodGet, "/api/processes/"+itoa(id)+"/session/gates", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var gates map[string]bool

	decode(t, resp, &gates)
	assert.True(t, gates["start"])
	assert.True(t, gates["Step-A"])
	assert.False(t, gates["Step-B"])
}

func TestAPI_ExportAndReview(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Exported", testutil.LinearDiagram("Step-A"))
	base := "/api/processes/" + itoa(id) + "/session"

	resp := doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "start"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, base+"/export", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "Exported_")

	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(string(exported), "\xEF\xBB\xBF"))

	resp = doJSON(t, app, fiber.MethodPost, base+"/review", map[string]string{"content": string(exported)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var review struct {
		Entries  []models.LogEntry `json:"entries"`
		Status   map[string]string `json:"status"`
		Warnings []string          `json:"warnings"`
	}

	decode(t, resp, &review)
	require.Len(t, review.Entries, 1)
	assert.Empty(t, review.Warnings)
}

func TestAPI_EditNote(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Noted", testutil.LinearDiagram("Step-A"))
	base := "/api/processes/" + itoa(id) + "/session"

	resp := doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "start"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPatch, base+"/note", map[string]any{
		"log_index": 0,
		"note":      "added afterwards",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view sessionViewBody

	decode(t, resp, &view)
	assert.Equal(t, "added afterwards", view.Session.Log[0].Note)

	resp = doJSON(t, app, fiber.MethodPatch, base+"/note", map[string]any{
		"log_index": 7,
		"note":      "nope",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AbortAndRestart(t *testing.T) {
	app := newTestApp(t)
	id := createProcess(t, app, "Abortable", testutil.LinearDiagram("Step-A"))
	base := "/api/processes/" + itoa(id) + "/session"

	resp := doJSON(t, app, fiber.MethodPost, base+"/start", map[string]string{"element_id": "start"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, base+"/abort", map[string]string{"reason": "drill over"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view sessionViewBody

	decode(t, resp, &view)
	assert.True(t, view.Session.IsFinished)

	resp = doJSON(t, app, fiber.MethodPost, base+"/restart", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	decode(t, resp, &view)
	assert.False(t, view.Session.IsFinished)
	assert.Empty(t, view.Session.Log)
}

func TestAPI_Heartbeat(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/heartbeat", map[string]any{
		"process_id": 1,
		"viewer_id":  "viewer-a",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var hb struct {
		OnlineCount int `json:"online_count"`
	}

	decode(t, resp, &hb)
	assert.Equal(t, 1, hb.OnlineCount)

	resp = doJSON(t, app, fiber.MethodPost, "/api/heartbeat", map[string]any{"process_id": 1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "viewer id is required")
}

func TestAPI_TagsAndOracle(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodGet, "/api/tags/values?tag=TI-101%3BPI-102", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var readings []models.TagReading

	decode(t, resp, &readings)
	require.Len(t, readings, 2)
	assert.Equal(t, tags.SourceMock, readings[0].Source)

	resp = doJSON(t, app, fiber.MethodGet, "/api/tags/values", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/api/oracle/status", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status struct {
		Status string `json:"status"`
	}

	decode(t, resp, &status)
	assert.Equal(t, tags.StatusNotConfigured, status.Status)
}

func TestAPI_UnknownProcessIs404(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodGet, "/api/processes/99", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/processes/99/session/open", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
