package farms

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles farm HTTP requests.
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new farm handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "farms").Logger(),
	}
}

// RegisterRoutes registers the farm collection routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/farms", h.HandleList)
	r.Post("/farms", h.HandleCreate)
}

// RegisterFarmRoutes registers the single-farm routes on a farm-scoped
// router mounted under /farm/{farmID}.
func (h *Handler) RegisterFarmRoutes(r chi.Router) {
	r.Get("/", h.HandleGet)
	r.Put("/", h.HandleRename)
	r.Delete("/", h.HandleDelete)
}

// HandleList returns all farms ordered by name.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	farms, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list farms")
		h.writeError(w, http.StatusInternalServerError, "Failed to list farms")
		return
	}
	if farms == nil {
		farms = []Farm{}
	}
	h.writeJSON(w, http.StatusOK, farms)
}

type farmRequest struct {
	Name string `json:"name"`
}

// HandleCreate creates a new farm.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req farmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Farm name is required")
		return
	}

	farm := &Farm{Name: req.Name}
	if err := h.repo.Create(farm); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "A farm with this name already exists")
			return
		}
		h.log.Error().Err(err).Msg("Failed to create farm")
		h.writeError(w, http.StatusInternalServerError, "Failed to create farm")
		return
	}
	h.writeJSON(w, http.StatusCreated, farm)
}

// HandleGet returns one farm.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.farmID(w, r)
	if !ok {
		return
	}

	farm, err := h.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Farm not found")
			return
		}
		h.log.Error().Err(err).Int64("farm_id", id).Msg("Failed to get farm")
		h.writeError(w, http.StatusInternalServerError, "Failed to get farm")
		return
	}
	h.writeJSON(w, http.StatusOK, farm)
}

// HandleRename updates a farm's name.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.farmID(w, r)
	if !ok {
		return
	}

	var req farmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Farm name is required")
		return
	}

	if err := h.repo.Rename(id, req.Name); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeError(w, http.StatusNotFound, "Farm not found")
		case errors.Is(err, ErrDuplicateName):
			h.writeError(w, http.StatusConflict, "A farm with this name already exists")
		default:
			h.log.Error().Err(err).Int64("farm_id", id).Msg("Failed to rename farm")
			h.writeError(w, http.StatusInternalServerError, "Failed to rename farm")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, Farm{ID: id, Name: req.Name})
}

// HandleDelete removes a farm and everything that belongs to it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.farmID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Farm not found")
			return
		}
		h.log.Error().Err(err).Int64("farm_id", id).Msg("Failed to delete farm")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete farm")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) farmID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "farmID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid farm id")
		return 0, false
	}
	return id, true
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
