package inspection

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NovaFleet/inspection-service/internal/common/logger"
)

const basePath = "/api/inspections"

// Handler 车检记录 REST Handler，薄封装：解析请求 -> Service -> 序列化响应。
type Handler struct {
	svc *Service
	log logger.Logger
}

func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// ServeHTTP 实现 http.Handler，按 method + path 分发：
//
//	GET    /api/inspections                   列表（可按 vehicle_plate / status 过滤）
//	POST   /api/inspections                   创建
//	GET    /api/inspections/{id}              详情
//	PUT    /api/inspections/{id}              全量更新
//	PATCH  /api/inspections/{id}              部分更新
//	DELETE /api/inspections/{id}              删除（级联删除历史）
//	POST   /api/inspections/{id}/reschedule   改期
//	GET    /api/inspections/{id}/history      状态变更历史
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	if path == basePath {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		}
		return
	}

	if !strings.HasPrefix(path, basePath+"/") {
		writeJSON(w, http.StatusNotFound, notFoundBody())
		return
	}

	rest := strings.TrimPrefix(path, basePath+"/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id, true)
		case http.MethodPatch:
			h.update(w, r, id, false)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		}
	case len(parts) == 2 && parts[1] == "reschedule" && r.Method == http.MethodPost:
		h.reschedule(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "history" && r.Method == http.MethodGet:
		h.history(w, r, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, notFoundBody())
	}
}

// inspectionRequest 创建/更新共用的请求体。指针字段用来区分“未提供”和“空值”。
type inspectionRequest struct {
	VehiclePlate   *string `json:"vehicle_plate"`
	InspectionDate *string `json:"inspection_date"`
	Status         *string `json:"status"`
	Notes          *string `json:"notes"`
}

type rescheduleRequest struct {
	InspectionDate *string `json:"inspection_date"`
	Notes          *string `json:"notes"`
}

// inspectionResponse 响应体：日期 YYYY-MM-DD，时间戳 RFC3339（UTC）。
type inspectionResponse struct {
	ID             string    `json:"id"`
	VehiclePlate   string    `json:"vehicle_plate"`
	InspectionDate string    `json:"inspection_date"`
	Status         string    `json:"status"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type historyResponse struct {
	ID           string    `json:"id"`
	InspectionID string    `json:"inspection_id"`
	OldStatus    string    `json:"old_status"`
	NewStatus    string    `json:"new_status"`
	ChangedAt    time.Time `json:"changed_at"`
	Notes        *string   `json:"notes"`
}

func toResponse(rec *Inspection) inspectionResponse {
	return inspectionResponse{
		ID:             rec.ID,
		VehiclePlate:   rec.VehiclePlate,
		InspectionDate: rec.InspectionDate.Format(time.DateOnly),
		Status:         string(rec.Status),
		Notes:          rec.Notes,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
	}
}

func toHistoryResponse(e *InspectionHistory) historyResponse {
	return historyResponse{
		ID:           e.ID,
		InspectionID: e.InspectionID,
		OldStatus:    string(e.OldStatus),
		NewStatus:    string(e.NewStatus),
		ChangedAt:    e.ChangedAt.UTC(),
		Notes:        e.Notes,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := Filter{
		VehiclePlate: strings.TrimSpace(q.Get("vehicle_plate")),
		Offset:       parseInt(q.Get("offset"), 0),
		Limit:        parseInt(q.Get("limit"), 0),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		f.Status = status
	}

	recs, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]inspectionResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toResponse(&recs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w, req) {
		return
	}

	in := CreateInput{
		VehiclePlate:   *req.VehiclePlate,
		InspectionDate: *req.InspectionDate,
		Notes:          req.Notes,
	}
	if req.Status != nil {
		in.Status = *req.Status
	}

	rec, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rec))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// update 处理 PUT（full=true，必填字段缺失即 400）和 PATCH（只更新提供的字段）。
func (h *Handler) update(w http.ResponseWriter, r *http.Request, id string, full bool) {
	var req inspectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if full && !requireFields(w, req) {
		return
	}

	rec, err := h.svc.Update(r.Context(), id, UpdateInput{
		VehiclePlate:   req.VehiclePlate,
		InspectionDate: req.InspectionDate,
		Status:         req.Status,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request, id string) {
	var req rescheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InspectionDate == nil {
		writeJSON(w, http.StatusBadRequest, fieldErrors("inspection_date", "This field is required."))
		return
	}

	rec, err := h.svc.Reschedule(r.Context(), id, RescheduleInput{
		InspectionDate: *req.InspectionDate,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, id string) {
	entries, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toHistoryResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError 把领域错误映射到 HTTP 响应：
// - ValidationError      -> 400，按字段返回消息列表
// - ErrNotFound          -> 404
// - NotReschedulableError-> 400，附 current_status
// - DateNotInFutureError -> 400，附 today
// 其余一律 500，细节只进日志不出响应。
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	var nre *NotReschedulableError
	var dnf *DateNotInFutureError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, fieldErrors(ve.Field, ve.Message))
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, notFoundBody())
	case errors.As(err, &nre):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":          "Only passed or failed inspections can be rescheduled.",
			"current_status": string(nre.CurrentStatus),
		})
	case errors.As(err, &dnf):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "New inspection date must be in the future.",
			"today": dnf.Today.Format(time.DateOnly),
		})
	default:
		h.log.WithField("error", err.Error()).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

// requireFields POST/PUT 的必填检查：vehicle_plate 和 inspection_date。
// status 有默认值、notes 可选，不在必填之列。
func requireFields(w http.ResponseWriter, req inspectionRequest) bool {
	if req.VehiclePlate == nil {
		writeJSON(w, http.StatusBadRequest, fieldErrors("vehicle_plate", "This field is required."))
		return false
	}
	if req.InspectionDate == nil {
		writeJSON(w, http.StatusBadRequest, fieldErrors("inspection_date", "This field is required."))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func fieldErrors(field, message string) map[string][]string {
	return map[string][]string{field: {message}}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func notFoundBody() map[string]string {
	return map[string]string{"detail": "Not found."}
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
