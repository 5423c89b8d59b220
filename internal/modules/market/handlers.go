package market

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Handler handles market price HTTP requests.
type Handler struct {
	store *Store
	log   zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(store *Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers market routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/prices", h.HandlePrices)
		r.Get("/prices/closest", h.HandleClosest)
		r.Get("/trend", h.HandleTrend)
		r.Post("/reload", h.HandleReload)
	})
}

// HandlePrices returns the loaded price series, optionally bounded by
// start_date and end_date.
func (h *Handler) HandlePrices(w http.ResponseWriter, r *http.Request) {
	var start, end *temporal.Date
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		d, err := temporal.ParseDate(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
			return
		}
		start = &d
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		d, err := temporal.ParseDate(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
			return
		}
		end = &d
	}

	points := h.store.Range(start, end)
	if points == nil {
		points = []PricePoint{}
	}
	h.writeJSON(w, http.StatusOK, points)
}

// HandleClosest returns the price point nearest to the given date.
func (h *Handler) HandleClosest(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "A date parameter is required")
		return
	}
	target, err := temporal.ParseDate(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
		return
	}

	point, err := h.store.Closest(target)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			h.writeError(w, http.StatusNotFound, "No market price data is loaded")
			return
		}
		h.log.Error().Err(err).Msg("Price lookup failed")
		h.writeError(w, http.StatusInternalServerError, "Price lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, point)
}

// HandleTrend returns moving averages and direction for a price series.
// Accepts optional series (sale|purchase) and period parameters.
func (h *Handler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	period := 0
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p <= 0 {
			h.writeError(w, http.StatusBadRequest, "Period must be a positive integer")
			return
		}
		period = p
	}

	report, err := h.store.Trend(r.URL.Query().Get("series"), period)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Unknown price series. Use 'sale' or 'purchase'.")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleReload re-reads the price file on demand.
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Load(); err != nil {
		h.log.Error().Err(err).Msg("Price reload failed")
		h.writeError(w, http.StatusInternalServerError, "Failed to reload market prices")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":   h.store.Len(),
		"loaded_at": h.store.LoadedAt(),
	})
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
