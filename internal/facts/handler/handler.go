package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"complyflow/internal/facts/models"
	"complyflow/pkg/platform/httputil"
)

// Service defines the fact intake operations the handler needs.
type Service interface {
	UpsertProfile(ctx context.Context, p *models.EntityProfile) error
	GetProfile(ctx context.Context, entityID string) (*models.EntityProfile, error)
	UpsertService(ctx context.Context, svc *models.ServiceStatus) error
	UpsertDocument(ctx context.Context, doc *models.DocumentStatus) error
	AddFiling(ctx context.Context, f *models.FilingRecord) error
}

// Handler exposes entity fact intake. Fact writes feed the next calculation;
// they never trigger one directly.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts fact intake endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/entities/{entityID}/profile", h.HandleUpsertProfile)
	r.Get("/entities/{entityID}/profile", h.HandleGetProfile)
	r.Put("/entities/{entityID}/services", h.HandleUpsertService)
	r.Put("/entities/{entityID}/documents", h.HandleUpsertDocument)
	r.Post("/entities/{entityID}/filings", h.HandleAddFiling)
}

func (h *Handler) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	p, err := httputil.Decode[models.EntityProfile](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p.EntityID = chi.URLParam(r, "entityID")
	if err := h.service.UpsertProfile(r.Context(), p); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleUpsertService(w http.ResponseWriter, r *http.Request) {
	svc, err := httputil.Decode[models.ServiceStatus](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	svc.EntityID = chi.URLParam(r, "entityID")
	if err := h.service.UpsertService(r.Context(), svc); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, svc)
}

func (h *Handler) HandleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := httputil.Decode[models.DocumentStatus](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc.EntityID = chi.URLParam(r, "entityID")
	if err := h.service.UpsertDocument(r.Context(), doc); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) HandleAddFiling(w http.ResponseWriter, r *http.Request) {
	f, err := httputil.Decode[models.FilingRecord](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f.EntityID = chi.URLParam(r, "entityID")
	if err := h.service.AddFiling(r.Context(), f); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, f)
}
