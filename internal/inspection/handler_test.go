package inspection

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestHandler(t *testing.T) (*Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	return NewHandler(svc, testLogger(t)), svc
}

func doRequest(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
	return out
}

func mustCreate(t *testing.T, h *Handler, body string) string {
	t.Helper()
	w := doRequest(h, http.MethodPost, basePath, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (body=%s)", w.Code, w.Body.String())
	}
	return decodeMap(t, w)["id"].(string)
}

func TestHandlerCreate(t *testing.T) {
	h, _ := newTestHandler(t)

	body := fmt.Sprintf(`{"vehicle_plate": "  abc-1234 ", "inspection_date": %q, "status": "scheduled", "notes": "Regular inspection"}`, dateStr(7))
	w := doRequest(h, http.MethodPost, basePath, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body=%s)", w.Code, w.Body.String())
	}

	got := decodeMap(t, w)
	if got["vehicle_plate"] != "ABC-1234" {
		t.Fatalf("expected normalized plate in response, got %v", got["vehicle_plate"])
	}
	if got["inspection_date"] != dateStr(7) {
		t.Fatalf("expected date %s, got %v", dateStr(7), got["inspection_date"])
	}
	if got["status"] != "scheduled" {
		t.Fatalf("expected status scheduled, got %v", got["status"])
	}
	if got["id"] == "" || got["id"] == nil {
		t.Fatalf("expected id assigned")
	}
	// created_at / updated_at 为 RFC3339
	if _, err := time.Parse(time.RFC3339, got["created_at"].(string)); err != nil {
		t.Fatalf("created_at not RFC3339: %v", got["created_at"])
	}
}

func TestHandlerCreateValidationError(t *testing.T) {
	h, _ := newTestHandler(t)

	body := fmt.Sprintf(`{"vehicle_plate": "XYZ-1", "inspection_date": %q, "status": "scheduled"}`, dateStr(-1))
	w := doRequest(h, http.MethodPost, basePath, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	got := decodeMap(t, w)
	msgs, ok := got["inspection_date"].([]interface{})
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected per-field error list for inspection_date, got %v", got)
	}
}

func TestHandlerCreateMissingRequiredField(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(h, http.MethodPost, basePath, fmt.Sprintf(`{"inspection_date": %q}`, dateStr(1)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if _, ok := decodeMap(t, w)["vehicle_plate"]; !ok {
		t.Fatalf("expected vehicle_plate required error")
	}
}

func TestHandlerCreateInvalidBody(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(h, http.MethodPost, basePath, `{"vehicle_plate": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlerGetNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(h, http.MethodGet, basePath+"/no-such-id", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if decodeMap(t, w)["detail"] != "Not found." {
		t.Fatalf("expected detail body, got %s", w.Body.String())
	}
}

func TestHandlerPutRequiresAllFields(t *testing.T) {
	h, _ := newTestHandler(t)
	id := mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "PUT-1", "inspection_date": %q}`, dateStr(3)))

	w := doRequest(h, http.MethodPut, basePath+"/"+id, `{"status": "passed"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial PUT, got %d", w.Code)
	}

	body := fmt.Sprintf(`{"vehicle_plate": "PUT-1", "inspection_date": %q, "status": "passed"}`, dateStr(3))
	w = doRequest(h, http.MethodPut, basePath+"/"+id, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	if decodeMap(t, w)["status"] != "passed" {
		t.Fatalf("expected status passed after PUT")
	}
}

func TestHandlerPatchAndHistory(t *testing.T) {
	h, _ := newTestHandler(t)
	id := mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "PAT-1", "inspection_date": %q}`, dateStr(2)))

	w := doRequest(h, http.MethodPatch, basePath+"/"+id, `{"status": "failed", "notes": "Failed brake inspection"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	got := decodeMap(t, w)
	if got["status"] != "failed" || got["notes"] != "Failed brake inspection" {
		t.Fatalf("unexpected patch result: %v", got)
	}

	w = doRequest(h, http.MethodGet, basePath+"/"+id+"/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	entries := decodeList(t, w)
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0]["old_status"] != "scheduled" || entries[0]["new_status"] != "failed" {
		t.Fatalf("unexpected history entry: %v", entries[0])
	}
}

func TestHandlerDelete(t *testing.T) {
	h, _ := newTestHandler(t)
	id := mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "DEL-1", "inspection_date": %q}`, dateStr(1)))

	w := doRequest(h, http.MethodDelete, basePath+"/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doRequest(h, http.MethodGet, basePath+"/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}

	w = doRequest(h, http.MethodDelete, basePath+"/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestHandlerReschedule(t *testing.T) {
	h, _ := newTestHandler(t)
	id := mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "RSC-1", "inspection_date": %q, "status": "failed"}`, dateStr(-3)))

	w := doRequest(h, http.MethodPost, basePath+"/"+id+"/reschedule",
		fmt.Sprintf(`{"inspection_date": %q, "notes": "retry"}`, dateStr(14)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}
	got := decodeMap(t, w)
	if got["status"] != "scheduled" || got["inspection_date"] != dateStr(14) {
		t.Fatalf("unexpected reschedule result: %v", got)
	}
}

func TestHandlerRescheduleNotReschedulable(t *testing.T) {
	h, _ := newTestHandler(t)
	id := mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "RSC-2", "inspection_date": %q}`, dateStr(2)))

	w := doRequest(h, http.MethodPost, basePath+"/"+id+"/reschedule",
		fmt.Sprintf(`{"inspection_date": %q}`, dateStr(14)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	got := decodeMap(t, w)
	if got["current_status"] != "scheduled" {
		t.Fatalf("expected current_status in body, got %v", got)
	}
	if got["error"] == nil {
		t.Fatalf("expected error message in body")
	}
}

func TestHandlerRescheduleDateNotInFuture(t *testing.T) {
	h, _ := newTestHandler(t)
	id := mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "RSC-3", "inspection_date": %q, "status": "failed"}`, dateStr(-3)))

	w := doRequest(h, http.MethodPost, basePath+"/"+id+"/reschedule",
		fmt.Sprintf(`{"inspection_date": %q}`, dateStr(-5)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	got := decodeMap(t, w)
	if got["today"] != dateStr(0) {
		t.Fatalf("expected today=%s in body, got %v", dateStr(0), got)
	}
}

func TestHandlerListWithFilter(t *testing.T) {
	h, _ := newTestHandler(t)
	mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "LST-1", "inspection_date": %q}`, dateStr(1)))
	mustCreate(t, h, fmt.Sprintf(`{"vehicle_plate": "LST-2", "inspection_date": %q, "status": "passed"}`, dateStr(-4)))

	w := doRequest(h, http.MethodGet, basePath, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeList(t, w); len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	w = doRequest(h, http.MethodGet, basePath+"?status=passed", "")
	got := decodeList(t, w)
	if len(got) != 1 || got[0]["vehicle_plate"] != "LST-2" {
		t.Fatalf("expected only LST-2, got %v", got)
	}

	w = doRequest(h, http.MethodGet, basePath+"?status=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status filter, got %d", w.Code)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(h, http.MethodPatch, basePath, `{}`)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
