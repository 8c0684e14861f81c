package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pesio-ai/be-hse-inspections/internal/auth"
	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/service"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	targets  *service.TargetService
	workflow *service.WorkflowService
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(targets *service.TargetService, wf *service.WorkflowService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{targets: targets, workflow: wf, log: log}
}

// ── DTOs ──────────────────────────────────────────────────────────────────────

type reportTargetRequest struct {
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

type targetResponse struct {
	ID          string                          `json:"id"`
	Kind        string                          `json:"kind"`
	Title       string                          `json:"title"`
	Description *string                         `json:"description,omitempty"`
	Location    *string                         `json:"location,omitempty"`
	ReportedBy  string                          `json:"reportedBy"`
	CreatedAt   time.Time                       `json:"createdAt"`
	UpdatedAt   time.Time                       `json:"updatedAt"`
	History     []workflow.ApprovalHistoryEntry `json:"history,omitempty"`
}

type timelineResponse struct {
	TargetID           string                   `json:"targetId"`
	CurrentStage       string                   `json:"currentStage"`
	CurrentStageNumber int                      `json:"currentStageNumber,omitempty"`
	Completed          bool                     `json:"completed"`
	CanVerify          bool                     `json:"canVerify"`
	Entries            []workflow.TimelineEntry `json:"entries"`
}

type auditEntryResponse struct {
	ID          string                 `json:"id"`
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performedBy"`
	Stage       *int                   `json:"stage,omitempty"`
	StageName   *string                `json:"stageName,omitempty"`
	PerformedAt time.Time              `json:"performedAt"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type pendingItemResponse struct {
	Target       targetResponse `json:"target"`
	CurrentStage string         `json:"currentStage"`
}

func toTargetResponse(t *repository.Target) targetResponse {
	return targetResponse{
		ID:          t.ID,
		Kind:        t.Kind,
		Title:       t.Title,
		Description: t.Description,
		Location:    t.Location,
		ReportedBy:  t.ReportedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		History:     t.History,
	}
}

func toTimelineResponse(tt *service.TargetTimeline) timelineResponse {
	return timelineResponse{
		TargetID:           tt.Target.ID,
		CurrentStage:       tt.Timeline.CurrentStage,
		CurrentStageNumber: tt.Timeline.CurrentStageNumber,
		Completed:          tt.Timeline.Completed,
		CanVerify:          tt.Timeline.CanVerify,
		Entries:            tt.Timeline.Entries,
	}
}

// ── Targets ───────────────────────────────────────────────────────────────────

// ReportTarget handles POST /api/v1/targets
func (h *HTTPHandler) ReportTarget(w http.ResponseWriter, r *http.Request) {
	var req reportTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "request body must be valid JSON"))
		return
	}

	target, err := h.targets.ReportTarget(r.Context(), &service.ReportTargetRequest{
		Kind:        req.Kind,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		ReportedBy:  actorFrom(r).UserID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTargetResponse(target))
}

// ListTargets handles GET /api/v1/targets
func (h *HTTPHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	var kind *string
	if k := r.URL.Query().Get("kind"); k != "" {
		kind = &k
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	targets, total, err := h.targets.ListTargets(r.Context(), kind, page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]targetResponse, 0, len(targets))
	for _, t := range targets {
		items = append(items, toTargetResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets":  items,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetTarget handles GET /api/v1/targets/{id}
func (h *HTTPHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	target, err := h.targets.GetTarget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTargetResponse(target))
}

// ── Workflow ──────────────────────────────────────────────────────────────────

// GetTimeline handles GET /api/v1/targets/{id}/timeline
func (h *HTTPHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.workflow.GetTimeline(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

// Verify handles POST /api/v1/targets/{id}/verify
func (h *HTTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var decision workflow.Decision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "request body must be valid JSON"))
		return
	}

	tl, err := h.workflow.Verify(r.Context(), chi.URLParam(r, "id"), actorFrom(r), decision)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

// StartStage handles POST /api/v1/targets/{id}/start
func (h *HTTPHandler) StartStage(w http.ResponseWriter, r *http.Request) {
	tl, err := h.workflow.StartStage(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

// GetAuditTrail handles GET /api/v1/targets/{id}/audit
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.workflow.GetAuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]auditEntryResponse, 0, len(trail))
	for _, e := range trail {
		items = append(items, auditEntryResponse{
			ID:          e.ID,
			Action:      e.Action,
			PerformedBy: e.PerformedBy,
			Stage:       e.Stage,
			StageName:   e.StageName,
			PerformedAt: e.PerformedAt,
			Metadata:    e.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": items})
}

// PendingForRole handles GET /api/v1/pending. The role defaults to the
// caller's own.
func (h *HTTPHandler) PendingForRole(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = actorFrom(r).Role
	}
	pending, err := h.workflow.PendingForRole(r.Context(), role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]pendingItemResponse, 0, len(pending))
	for _, p := range pending {
		items = append(items, pendingItemResponse{Target: toTargetResponse(p.Target), CurrentStage: p.CurrentStage})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"role": role, "items": items})
}

// ListStages handles GET /api/v1/stages
func (h *HTTPHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	reg := h.workflow.Registry()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stages":           reg.Stages(),
		"roles":            reg.Roles(),
		"decisionStatuses": workflow.DecisionStatuses(),
	})
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func actorFrom(r *http.Request) service.Actor {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return service.Actor{}
	}
	return service.Actor{UserID: p.UserID, UserName: p.UserName, Role: p.Role}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	body := map[string]interface{}{
		"error": err.Error(),
		"code":  string(code),
	}
	if fields := errors.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
