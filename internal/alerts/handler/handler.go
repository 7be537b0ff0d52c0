package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"complyflow/internal/alerts/models"
	"complyflow/pkg/platform/httputil"
)

// Service defines the alert operations the handler needs.
type Service interface {
	List(ctx context.Context, entityID string, severity models.Severity, status models.Status) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, actor string) (*models.Alert, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts alert endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/entities/{entityID}/alerts", h.HandleList)
	r.Post("/alerts/{alertID}/acknowledge", h.HandleAcknowledge)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts, err := h.service.List(r.Context(),
		chi.URLParam(r, "entityID"),
		models.Severity(q.Get("severity")),
		models.Status(q.Get("status")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
}

func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[acknowledgeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	alert, err := h.service.Acknowledge(r.Context(), chi.URLParam(r, "alertID"), req.AcknowledgedBy)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}
