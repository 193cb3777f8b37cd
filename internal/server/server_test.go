package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/3leaps/jobmon/pkg/jobmon"
)

type sleepParams struct {
	Millis  int    `json:"millis"`
	Message string `json:"message"`
	Fail    bool   `json:"fail"`
}

func newTestServer(t *testing.T) (*Server, *jobmon.Registry[string]) {
	t.Helper()

	registry := jobmon.NewRegistry[string]()
	defs := NewDefinitions()
	Register(defs, NewDefinition("sleep", func(mon *jobmon.Monitor, p sleepParams) any {
		if p.Millis > 0 {
			time.Sleep(time.Duration(p.Millis) * time.Millisecond)
		}
		if p.Fail {
			return jobmon.ReturnStatus{Success: false, Message: p.Message}
		}
		if p.Message != "" {
			return p.Message
		}
		return nil
	}))

	return New(registry, defs, Config{Version: "test"}), registry
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) jobView {
	t.Helper()
	var v jobView
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode job view: %v", err)
	}
	return v
}

func TestStartAndGetJob(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/jobs/start/sleep?key=build-1",
		strings.NewReader(`{"millis":50,"message":"built"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if view.Key != "build-1" {
		t.Fatalf("expected key build-1, got %q", view.Key)
	}
	if !view.Running {
		t.Fatalf("expected job to be running right after start")
	}
	if view.Message != "Starting job" {
		t.Fatalf("expected initial status, got %q", view.Message)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/build-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStartGeneratesKeyWhenAbsent(t *testing.T) {
	srv, registry := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/start/sleep", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	view := decodeView(t, rec)
	if view.Key == "" {
		t.Fatalf("expected a generated key")
	}
	if _, ok := registry.Get(view.Key); !ok {
		t.Fatalf("generated key %q not tracked", view.Key)
	}
}

func TestStartConflictWhileRunning(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	body := `{"millis":150}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/jobs/start/sleep?key=dup", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first start: expected 202, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/jobs/start/sleep?key=dup", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start: expected 409, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if resp.Error.Code != "ALREADY_EXISTS" {
		t.Fatalf("expected ALREADY_EXISTS, got %q", resp.Error.Code)
	}
}

func TestStartUnknownKind(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/start/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStartBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/jobs/start/sleep", strings.NewReader(`{not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWaitReturnsOutcome(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/jobs/start/sleep?key=ok", strings.NewReader(`{"millis":30,"message":"finished fine"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/ok/wait", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("wait: expected 200, got %d", rec.Code)
	}
	view := decodeView(t, rec)
	if view.Running {
		t.Fatalf("expected job to be finished after wait")
	}
	if view.Succeeded == nil || !*view.Succeeded {
		t.Fatalf("expected success, got %+v", view.Succeeded)
	}
	if view.Message != "finished fine" {
		t.Fatalf("expected final message, got %q", view.Message)
	}
	if view.FinishedAt == nil {
		t.Fatalf("expected finished_at to be set")
	}
}

func TestWaitReportsFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/jobs/start/sleep?key=bad", strings.NewReader(`{"fail":true,"message":"went sideways"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/bad/wait", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("wait: expected 200, got %d", rec.Code)
	}
	view := decodeView(t, rec)
	if view.Succeeded == nil || *view.Succeeded {
		t.Fatalf("expected failure outcome")
	}
	if view.Message != "went sideways" {
		t.Fatalf("expected failure reason, got %q", view.Message)
	}
}

func TestListWithGlob(t *testing.T) {
	srv, registry := newTestServer(t)
	router := srv.Router()

	for _, key := range []string{"index-a", "index-b", "transfer-c"} {
		if _, err := registry.Start(key, func(_ *jobmon.Monitor) any { return nil }); err != nil {
			t.Fatalf("start %s: %v", key, err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/?match=index-*", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Jobs  []jobView `json:"jobs"`
		Count int       `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 matching jobs, got %d", resp.Count)
	}
	for _, v := range resp.Jobs {
		if !strings.HasPrefix(v.Key, "index-") {
			t.Fatalf("unexpected key in filtered list: %q", v.Key)
		}
	}
}

func TestCleanupEndpoint(t *testing.T) {
	srv, registry := newTestServer(t)
	router := srv.Router()

	job, err := registry.Start("old", func(_ *jobmon.Monitor) any { return nil })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := job.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode cleanup response: %v", err)
	}
	if resp["removed"] != 1 {
		t.Fatalf("expected 1 removed, got %d", resp["removed"])
	}
	if _, ok := registry.Get("old"); ok {
		t.Fatalf("expected job to be gone after cleanup")
	}
}

func TestCleanupRejectsBadDuration(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/?max_age=potato", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", resp.Status)
	}
	if resp.Version != "test" {
		t.Fatalf("expected version test, got %q", resp.Version)
	}
}

func TestStartRateLimit(t *testing.T) {
	registry := jobmon.NewRegistry[string]()
	defs := NewDefinitions()
	Register(defs, NewDefinition("noop", func(_ *jobmon.Monitor, _ struct{}) any {
		return nil
	}))
	srv := New(registry, defs, Config{StartRatePerSecond: 1})
	router := srv.Router()

	limited := false
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/start/noop", nil))
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected at least one rate-limited start")
	}
}
