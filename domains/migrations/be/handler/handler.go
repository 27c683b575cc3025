package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/engine"
	"github.com/zenGate-Global/palmyra-fleet-migrator/domains/migrations/be/service"
	registry "github.com/zenGate-Global/palmyra-fleet-migrator/domains/registry/be/service"
	"github.com/zenGate-Global/palmyra-fleet-migrator/platform/go/logging"
)

const (
	problemTypeValidation  = "https://palmyra.pro/problems/validation-error"
	problemTypeNotFound    = "https://palmyra.pro/problems/not-found"
	problemTypeRegistry    = "https://palmyra.pro/problems/registry-unavailable"
	problemTypeUnreachable = "https://palmyra.pro/problems/tenant-unreachable"
	problemTypeInternal    = "https://palmyra.pro/problems/internal-error"
)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status"`
}

// Handler exposes the orchestrator to the admin API. Partial failures inside
// a fleet run are a 200 with counts; only enumeration-level failures map to
// error statuses.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("migrations service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the migration endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/migrations/report", h.report)
	r.Post("/migrations/apply", h.applyAll)
	r.Post("/tenants/{tenantID}/migrations/apply", h.applyOne)
	r.Get("/tenants/{tenantID}/migrations/history", h.history)
	return r
}

// report implements GET /migrations/report
func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.InspectAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// applyAll implements POST /migrations/apply
func (h *Handler) applyAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ApplyAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// applyOne implements POST /tenants/{tenantID}/migrations/apply
func (h *Handler) applyOne(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	report, err := h.svc.ApplyOne(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// history implements GET /tenants/{tenantID}/migrations/history
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	history, err := h.svc.History(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "tenantID")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid tenant id",
			Detail: "tenant id must be a UUID",
			Status: http.StatusBadRequest,
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromRequest(r, h.logger)

	switch {
	case errors.Is(err, registry.ErrNotFound):
		h.writeProblem(w, problem{
			Type:   problemTypeNotFound,
			Title:  "Tenant not found",
			Detail: err.Error(),
			Status: http.StatusNotFound,
		})
	case errors.Is(err, registry.ErrRegistryUnavailable):
		logger.Error("tenant registry unavailable", zap.Error(err))
		h.writeProblem(w, problem{
			Type:   problemTypeRegistry,
			Title:  "Tenant registry unavailable",
			Detail: err.Error(),
			Status: http.StatusServiceUnavailable,
		})
	case errors.Is(err, engine.ErrConnectionUnreachable):
		h.writeProblem(w, problem{
			Type:   problemTypeUnreachable,
			Title:  "Tenant database unreachable",
			Detail: err.Error(),
			Status: http.StatusBadGateway,
		})
	default:
		logger.Error("migration operation failed", zap.Error(err))
		h.writeProblem(w, problem{
			Type:   problemTypeInternal,
			Title:  "Internal error",
			Status: http.StatusInternalServerError,
		})
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		h.logger.Error("encode problem response", zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}
