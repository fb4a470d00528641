// Package rest exposes the moderation core over HTTP/JSON: classification,
// reports, and investigations.
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/monosonet/modcore/internal/moderation/classifier"
	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/types"
	"github.com/monosonet/modcore/internal/pkg/validate"
)

// Handler serves the moderation HTTP surface.
type Handler struct {
	classifier *classifier.ProductionClassifier
	reports    *reports.Manager
}

// NewHandler builds a Handler over the classification and report cores.
func NewHandler(c *classifier.ProductionClassifier, r *reports.Manager) *Handler {
	return &Handler{classifier: c, reports: r}
}

// SetupRoutes registers every moderation endpoint on router.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/moderation/classify", h.Classify).Methods(http.MethodPost)
	router.HandleFunc("/moderation/classify/batch", h.ClassifyBatch).Methods(http.MethodPost)

	router.HandleFunc("/reports", h.CreateReport).Methods(http.MethodPost)
	router.HandleFunc("/reports/metrics", h.GetReportMetrics).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}", h.GetReport).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}/status", h.UpdateReportStatus).Methods(http.MethodPatch)
	router.HandleFunc("/reports/{id}/assign", h.AssignSpecialist).Methods(http.MethodPost)

	router.HandleFunc("/investigations", h.StartInvestigation).Methods(http.MethodPost)
	router.HandleFunc("/investigations/{id}/findings", h.AddInvestigationFinding).Methods(http.MethodPost)
	router.HandleFunc("/investigations/{id}/notes", h.AddInvestigationNote).Methods(http.MethodPost)
	router.HandleFunc("/investigations/{id}/complete", h.CompleteInvestigation).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
}

// Classify handles POST /api/v1/moderation/classify.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req types.ClassificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondTypedError(w, err)
		return
	}

	result, err := h.classifier.Classify(r.Context(), req)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ClassifyBatch handles POST /api/v1/moderation/classify/batch.
func (h *Handler) ClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []types.ClassificationRequest `json:"requests" validate:"required,max=1000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, item := range req.Requests {
		if err := validate.Struct(item); err != nil {
			respondTypedError(w, err)
			return
		}
	}

	results, err := h.classifier.ClassifyBatch(r.Context(), req.Requests)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// createReportPayload is the wire shape for POST /api/v1/reports.
type createReportPayload struct {
	ReporterID  string            `json:"reporter_id" validate:"required"`
	TargetID    string            `json:"target_id" validate:"required"`
	ContentID   string            `json:"content_id,omitempty"`
	ReportType  types.ReportType  `json:"report_type" validate:"required"`
	Reason      string            `json:"reason" validate:"required"`
	Description string            `json:"description,omitempty"`
	Evidence    []types.Evidence  `json:"evidence,omitempty"`
}

// CreateReport handles POST /api/v1/reports.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var payload createReportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(payload); err != nil {
		respondTypedError(w, err)
		return
	}

	report, err := h.reports.CreateReport(r.Context(), reports.CreateReportRequest{
		ReporterID:  payload.ReporterID,
		TargetID:    payload.TargetID,
		ContentID:   payload.ContentID,
		ReportType:  payload.ReportType,
		Reason:      payload.Reason,
		Description: payload.Description,
		Evidence:    payload.Evidence,
	})
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, report)
}

// GetReport handles GET /api/v1/reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.reports.GetReport(r.Context(), id)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// UpdateReportStatus handles PATCH /api/v1/reports/{id}/status.
func (h *Handler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status types.ReportStatus `json:"status" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		respondTypedError(w, err)
		return
	}

	report, err := h.reports.UpdateReportStatus(r.Context(), id, body.Status)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// AssignSpecialist handles POST /api/v1/reports/{id}/assign.
func (h *Handler) AssignSpecialist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		SpecialistID string `json:"specialist_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		respondTypedError(w, err)
		return
	}

	report, err := h.reports.AssignSpecialist(r.Context(), id, body.SpecialistID)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// StartInvestigation handles POST /api/v1/investigations.
func (h *Handler) StartInvestigation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReportID       uuid.UUID `json:"report_id" validate:"required"`
		InvestigatorID string    `json:"investigator_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		respondTypedError(w, err)
		return
	}

	investigation, err := h.reports.StartInvestigation(r.Context(), body.ReportID, body.InvestigatorID)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, investigation)
}

// AddInvestigationFinding handles POST /api/v1/investigations/{id}/findings.
func (h *Handler) AddInvestigationFinding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Finding string `json:"finding" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		respondTypedError(w, err)
		return
	}

	investigation, err := h.reports.AddInvestigationFinding(r.Context(), id, body.Finding)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, investigation)
}

// AddInvestigationNote handles POST /api/v1/investigations/{id}/notes.
func (h *Handler) AddInvestigationNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Note string `json:"note" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		respondTypedError(w, err)
		return
	}

	investigation, err := h.reports.AddInvestigationNote(r.Context(), id, body.Note)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, investigation)
}

// CompleteInvestigation handles POST /api/v1/investigations/{id}/complete.
func (h *Handler) CompleteInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		FinalStatus types.InvestigationStatus `json:"final_status" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		respondTypedError(w, err)
		return
	}

	investigation, err := h.reports.CompleteInvestigation(r.Context(), id, body.FinalStatus)
	if err != nil {
		respondTypedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, investigation)
}

// GetReportMetrics handles GET /api/v1/reports/metrics, optionally scoped
// by ?since=<RFC3339>&until=<RFC3339>.
func (h *Handler) GetReportMetrics(w http.ResponseWriter, r *http.Request) {
	var tr *types.TimeRange
	sinceStr := r.URL.Query().Get("since")
	untilStr := r.URL.Query().Get("until")
	if sinceStr != "" && untilStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since")
			return
		}
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid until")
			return
		}
		tr = &types.TimeRange{Since: since, Until: until}
	}

	metrics := h.reports.GetReportMetrics(r.Context(), tr)
	respondJSON(w, http.StatusOK, metrics)
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	raw := mux.Vars(r)[key]
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+key)
		return uuid.UUID{}, false
	}
	return id, true
}

// respondTypedError maps a types.Error's Kind to an HTTP status and a
// structured error body; any other error is treated as internal.
func respondTypedError(w http.ResponseWriter, err error) {
	kind := types.KindOf(err)
	status, code := httpStatusForKind(kind)
	respondErrorWithCode(w, status, code, err.Error(), "")
}

func httpStatusForKind(kind types.Kind) (int, string) {
	switch kind {
	case types.KindRequestInvalid:
		return http.StatusBadRequest, ErrCodeValidationFailed
	case types.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case types.KindRateLimited:
		return http.StatusTooManyRequests, ErrCodeRateLimitExceeded
	case types.KindConflict:
		return http.StatusConflict, ErrCodeInvalidRequest
	case types.KindClassifierUnavailable, types.KindModelUnavailable, types.KindStoreUnavailable:
		return http.StatusServiceUnavailable, ErrCodeCircuitBreaker
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}
