package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"complyflow/internal/catalog/models"
	"complyflow/internal/platform/middleware"
	"complyflow/pkg/platform/httputil"
)

// Service defines the catalog operations the handler needs.
type Service interface {
	Create(ctx context.Context, rule *models.ComplianceRule) (*models.ComplianceRule, error)
	Update(ctx context.Context, rule *models.ComplianceRule) (*models.ComplianceRule, error)
	Deactivate(ctx context.Context, ruleID string) error
	Get(ctx context.Context, ruleID string) (*models.ComplianceRule, error)
	List(ctx context.Context) ([]*models.ComplianceRule, error)
}

// Handler exposes rule catalog administration. All routes here are mounted
// behind the admin guard.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts catalog endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/rules", h.HandleList)
	r.Post("/rules", h.HandleCreate)
	r.Get("/rules/{ruleID}", h.HandleGet)
	r.Put("/rules/{ruleID}", h.HandleUpdate)
	r.Delete("/rules/{ruleID}", h.HandleDeactivate)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rule, err := httputil.Decode[models.ComplianceRule](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	created, err := h.service.Create(ctx, rule)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rule created via api",
		"request_id", middleware.GetRequestID(ctx),
		"rule_id", created.RuleID,
		"actor", middleware.GetActor(ctx))
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rule, err := httputil.Decode[models.ComplianceRule](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rule.RuleID = chi.URLParam(r, "ruleID")
	updated, err := h.service.Update(ctx, rule)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rule updated via api",
		"request_id", middleware.GetRequestID(ctx),
		"rule_id", updated.RuleID,
		"version", updated.Version,
		"actor", middleware.GetActor(ctx))
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "ruleID")
	if err := h.service.Deactivate(ctx, ruleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rule deactivated via api",
		"request_id", middleware.GetRequestID(ctx),
		"rule_id", ruleID,
		"actor", middleware.GetActor(ctx))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.Get(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}
