package incident

import (
	"encoding/json"
	"net/http"

	"github.com/agrilog/warroom/internal/domain"
	"github.com/agrilog/warroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotFound, Status: http.StatusNotFound, Message: "incident not found"},
	{Error: ErrValidation, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the incident module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incident handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident routes. Route strings are part of the
// dashboard contract and must not change. The limiter applies only to the
// ingest path.
func (h *Handler) RegisterRoutes(r chi.Router, ingestLimiter func(http.Handler) http.Handler) {
	r.Get("/incidents", h.ListIncidents)
	r.With(ingestLimiter).Post("/incidents", h.CreateIncident)
	r.Patch("/incidents/{id}/resolve", h.ResolveIncident)
}

// CreateIncidentRequest represents the body of POST /incidents.
type CreateIncidentRequest struct {
	Type        string         `json:"type" validate:"required"`
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description"`
	Location    []float64      `json:"location" validate:"required,len=2"`
	Region      string         `json:"region" validate:"required"`
	Severity    *int           `json:"severity" validate:"omitempty,gte=0,lte=100"`
	Metadata    map[string]any `json:"metadata"`
}

// ListIncidents handles GET /incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.service.ListActive(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

// CreateIncident handles POST /incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := CreateInput{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Location:    &domain.Location{Lat: req.Location[0], Lon: req.Location[1]},
		Region:      req.Region,
		Severity:    req.Severity,
		Metadata:    req.Metadata,
	}

	inc, err := h.service.Create(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{"incident": inc})
}

// ResolveIncident handles PATCH /incidents/{id}/resolve.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inc, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"id":     inc.ID,
		"status": inc.Status,
	})
}
