package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"complyflow/internal/state/models"
	"complyflow/pkg/domainerrors"
	"complyflow/pkg/platform/httputil"
)

// Service defines the state operations the handler needs.
type Service interface {
	Calculate(ctx context.Context, entityID string, trigger models.Trigger) (*models.EntityComplianceState, error)
	Get(ctx context.Context, entityID string) (*models.EntityComplianceState, error)
	History(ctx context.Context, entityID string, from, to time.Time, limit int) ([]models.HistoryRecord, error)
	Logs(ctx context.Context, entityID string, limit int) ([]models.CalculationLog, error)
}

// Handler exposes the compute-and-fetch surface of the engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts state endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/entities/{entityID}/state/calculate", h.HandleCalculate)
	r.Get("/entities/{entityID}/state", h.HandleGet)
	r.Get("/entities/{entityID}/state/history", h.HandleHistory)
	r.Get("/entities/{entityID}/state/logs", h.HandleLogs)
}

type calculateRequest struct {
	TriggeredBy models.Trigger `json:"triggeredBy,omitempty"`
}

func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID := chi.URLParam(r, "entityID")

	trigger := models.TriggerManual
	if r.ContentLength > 0 {
		req, err := httputil.Decode[calculateRequest](r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if req.TriggeredBy != "" {
			trigger = req.TriggeredBy
		}
	}

	st, err := h.service.Calculate(ctx, entityID, trigger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recs, err := h.service.History(r.Context(), chi.URLParam(r, "entityID"), from, to, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": recs})
}

func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.Logs(r.Context(), chi.URLParam(r, "entityID"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domainerrors.Newf(domainerrors.CodeBadRequest, "invalid %s timestamp: %s", name, raw)
	}
	return t, nil
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domainerrors.New(domainerrors.CodeBadRequest, "limit must be a positive integer")
	}
	return n, nil
}
