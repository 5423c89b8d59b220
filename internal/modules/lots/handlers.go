package lots

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Handler handles lot HTTP requests. All routes are farm-scoped.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new lot handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "lots").Logger(),
	}
}

// RegisterRoutes registers lot routes on a farm-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/lots", h.HandleListLots)
	r.Get("/lots/summary", h.HandleSummaries)
	r.Get("/lot/{lotNumber}", h.HandleLotReport)
}

// HandleListLots returns the distinct lot numbers used on the farm.
func (h *Handler) HandleListLots(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}

	lots, err := h.service.Lots(farmID)
	if err != nil {
		h.log.Error().Err(err).Int64("farm_id", farmID).Msg("Failed to list lots")
		h.writeError(w, http.StatusInternalServerError, "Failed to list lots")
		return
	}
	if lots == nil {
		lots = []string{}
	}
	h.writeJSON(w, http.StatusOK, lots)
}

// HandleLotReport returns the animals of one lot, filtered by status.
// Defaults to active animals only.
func (h *Handler) HandleLotReport(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	lot := chi.URLParam(r, "lotNumber")

	filter, err := ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid status parameter. Use 'active', 'sold', 'dead' or 'all'.")
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	report, err := h.service.LotReport(farmID, lot, filter, asOf)
	if err != nil {
		h.log.Error().Err(err).Str("lot", lot).Msg("Failed to build lot report")
		h.writeError(w, http.StatusInternalServerError, "Failed to build lot report")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleSummaries returns per-lot aggregate summaries for the farm.
func (h *Handler) HandleSummaries(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	summaries, err := h.service.Summaries(farmID, asOf)
	if err != nil {
		h.log.Error().Err(err).Int64("farm_id", farmID).Msg("Failed to summarize lots")
		h.writeError(w, http.StatusInternalServerError, "Failed to summarize lots")
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) farmID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "farmID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid farm id")
		return 0, false
	}
	return id, true
}

func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (temporal.Date, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return temporal.Today(), true
	}
	d, err := temporal.ParseDate(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid as_of date. Use YYYY-MM-DD.")
		return temporal.Date{}, false
	}
	return d, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
