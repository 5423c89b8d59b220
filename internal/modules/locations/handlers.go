package locations

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Handler handles location HTTP requests. All routes are farm-scoped.
type Handler struct {
	repo    *Repository
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new location handler
func NewHandler(repo *Repository, service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "locations").Logger(),
	}
}

// RegisterRoutes registers location routes on a farm-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/locations", h.HandleOverview)
	r.Post("/locations", h.HandleCreate)

	r.Get("/location/{locationID}", h.HandleGet)
	r.Put("/location/{locationID}", h.HandleUpdate)
	r.Delete("/location/{locationID}", h.HandleDelete)
	r.Get("/location/{locationID}/summary", h.HandleSummary)

	r.Get("/location/{locationID}/sublocations", h.HandleListSublocations)
	r.Post("/location/{locationID}/sublocations", h.HandleCreateSublocation)
	r.Put("/sublocation/{sublocationID}", h.HandleUpdateSublocation)
	r.Delete("/sublocation/{sublocationID}", h.HandleDeleteSublocation)

	r.Post("/location/{locationID}/bulk_assign_sublocation", h.HandleBulkAssign)
}

type locationRequest struct {
	Name         string   `json:"name"`
	AreaHectares *float64 `json:"area_hectares"`
	GrassType    *string  `json:"grass_type"`
	LocationType *string  `json:"location_type"`
	GeoJSONData  *string  `json:"geo_json_data"`
}

// HandleCreate creates a new location on the farm.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Location name is required")
		return
	}
	if req.AreaHectares != nil && *req.AreaHectares <= 0 {
		h.writeError(w, http.StatusBadRequest, "Area must be positive")
		return
	}

	loc := &Location{
		FarmID:       farmID,
		Name:         req.Name,
		AreaHectares: req.AreaHectares,
		GrassType:    req.GrassType,
		LocationType: req.LocationType,
		GeoJSONData:  req.GeoJSONData,
	}
	if err := h.repo.Create(loc); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "A location with this name already exists on this farm")
			return
		}
		h.log.Error().Err(err).Msg("Failed to create location")
		h.writeError(w, http.StatusInternalServerError, "Failed to create location")
		return
	}
	h.writeJSON(w, http.StatusCreated, loc)
}

// HandleOverview lists all locations with occupancy KPIs.
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	overviews, err := h.service.Overview(farmID, asOf)
	if err != nil {
		h.log.Error().Err(err).Int64("farm_id", farmID).Msg("Failed to build location overview")
		h.writeError(w, http.StatusInternalServerError, "Failed to list locations")
		return
	}
	h.writeJSON(w, http.StatusOK, overviews)
}

// HandleGet returns one location without occupancy data.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}

	loc, err := h.repo.GetByID(farmID, locationID)
	if err != nil {
		h.repoError(w, err, locationID, "Failed to get location")
		return
	}
	h.writeJSON(w, http.StatusOK, loc)
}

// HandleUpdate rewrites a location's editable fields.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Location name is required")
		return
	}

	loc := &Location{
		ID:           locationID,
		FarmID:       farmID,
		Name:         req.Name,
		AreaHectares: req.AreaHectares,
		GrassType:    req.GrassType,
		LocationType: req.LocationType,
		GeoJSONData:  req.GeoJSONData,
	}
	if err := h.repo.Update(loc); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "A location with this name already exists on this farm")
			return
		}
		h.repoError(w, err, locationID, "Failed to update location")
		return
	}
	h.writeJSON(w, http.StatusOK, loc)
}

// HandleDelete removes a location and its sublocations.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(farmID, locationID); err != nil {
		h.repoError(w, err, locationID, "Failed to delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary returns the location detail view: occupancy KPIs plus the
// occupying animals with their individual snapshots.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Summary(farmID, locationID, asOf)
	if err != nil {
		h.repoError(w, err, locationID, "Failed to build location summary")
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

type sublocationRequest struct {
	Name         string   `json:"name"`
	AreaHectares *float64 `json:"area_hectares"`
	GeoJSONData  *string  `json:"geo_json_data"`
}

// HandleCreateSublocation creates a new sublocation under a location.
func (h *Handler) HandleCreateSublocation(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}
	if _, err := h.repo.GetByID(farmID, locationID); err != nil {
		h.repoError(w, err, locationID, "Failed to get location")
		return
	}

	var req sublocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Sublocation name is required")
		return
	}

	sub := &Sublocation{
		FarmID:           farmID,
		ParentLocationID: locationID,
		Name:             req.Name,
		AreaHectares:     req.AreaHectares,
		GeoJSONData:      req.GeoJSONData,
	}
	if err := h.repo.CreateSublocation(sub); err != nil {
		h.log.Error().Err(err).Msg("Failed to create sublocation")
		h.writeError(w, http.StatusInternalServerError, "Failed to create sublocation")
		return
	}
	h.writeJSON(w, http.StatusCreated, sub)
}

// HandleListSublocations lists the sublocations under one location.
func (h *Handler) HandleListSublocations(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}
	if _, err := h.repo.GetByID(farmID, locationID); err != nil {
		h.repoError(w, err, locationID, "Failed to get location")
		return
	}

	subs, err := h.repo.ListSublocations(locationID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sublocations")
		h.writeError(w, http.StatusInternalServerError, "Failed to list sublocations")
		return
	}
	if subs == nil {
		subs = []Sublocation{}
	}
	h.writeJSON(w, http.StatusOK, subs)
}

// HandleUpdateSublocation rewrites a sublocation's editable fields.
func (h *Handler) HandleUpdateSublocation(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	sublocationID, ok := h.pathID(w, r, "sublocationID", "Invalid sublocation id")
	if !ok {
		return
	}

	existing, err := h.repo.GetSublocationByID(farmID, sublocationID)
	if err != nil {
		h.repoError(w, err, sublocationID, "Failed to get sublocation")
		return
	}

	var req sublocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Sublocation name is required")
		return
	}

	existing.Name = req.Name
	existing.AreaHectares = req.AreaHectares
	existing.GeoJSONData = req.GeoJSONData
	if err := h.repo.UpdateSublocation(existing); err != nil {
		h.repoError(w, err, sublocationID, "Failed to update sublocation")
		return
	}
	h.writeJSON(w, http.StatusOK, existing)
}

// HandleDeleteSublocation removes a sublocation.
func (h *Handler) HandleDeleteSublocation(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	sublocationID, ok := h.pathID(w, r, "sublocationID", "Invalid sublocation id")
	if !ok {
		return
	}

	if err := h.repo.DeleteSublocation(farmID, sublocationID); err != nil {
		h.repoError(w, err, sublocationID, "Failed to delete sublocation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkAssignRequest struct {
	SublocationID *int64        `json:"sublocation_id"`
	AnimalIDs     []int64       `json:"animal_ids"`
	Date          temporal.Date `json:"date"`
}

// HandleBulkAssign moves a batch of animals into a location/sublocation.
func (h *Handler) HandleBulkAssign(w http.ResponseWriter, r *http.Request) {
	farmID, locationID, ok := h.farmLocation(w, r)
	if !ok {
		return
	}

	var req bulkAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.AnimalIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "At least one animal id is required")
		return
	}
	if req.Date.IsZero() {
		h.writeError(w, http.StatusBadRequest, "A date is required")
		return
	}

	err := h.service.BulkAssign(farmID, locationID, req.SublocationID, req.AnimalIDs, req.Date)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeError(w, http.StatusNotFound, "Location or sublocation not found on this farm")
		case errors.Is(err, herd.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "One or more animals not found on this farm")
		default:
			h.log.Error().Err(err).Int64("location_id", locationID).Msg("Bulk assignment failed")
			h.writeError(w, http.StatusInternalServerError, "Failed to assign animals")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"animals_moved": len(req.AnimalIDs)})
}

func (h *Handler) farmID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return h.pathID(w, r, "farmID", "Invalid farm id")
}

func (h *Handler) farmLocation(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return 0, 0, false
	}
	locationID, ok := h.pathID(w, r, "locationID", "Invalid location id")
	if !ok {
		return 0, 0, false
	}
	return farmID, locationID, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, message)
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

func (h *Handler) repoError(w http.ResponseWriter, err error, id int64, message string) {
	if errors.Is(err, ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Location not found on this farm")
		return
	}
	h.log.Error().Err(err).Int64("id", id).Msg(message)
	h.writeError(w, http.StatusInternalServerError, message)
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
