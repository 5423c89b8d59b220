package herd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/pkg/temporal"
)

// Handler handles herd HTTP requests. All routes are farm-scoped; the
// router mounts them under /farm/{farmID}.
type Handler struct {
	service *Service
	animals *AnimalRepository
	events  *EventRepository
	log     zerolog.Logger
}

// NewHandler creates a new herd handler
func NewHandler(service *Service, animals *AnimalRepository, events *EventRepository, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		animals: animals,
		events:  events,
		log:     log.With().Str("handler", "herd").Logger(),
	}
}

// RegisterRoutes registers herd routes on a farm-scoped router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/purchases", h.HandleCreateAnimal)
	r.Get("/purchases", h.HandleListAnimals)
	r.Get("/animal/search", h.HandleSearchAnimals)
	r.Get("/animal/{animalID}", h.HandleMasterRecord)
	r.Delete("/animal/{animalID}", h.HandleDeleteAnimal)

	r.Post("/animal/{animalID}/weightings", h.HandleAddWeighting)
	r.Get("/weightings", h.HandleListWeightings)

	r.Post("/animal/{animalID}/location-changes", h.HandleAddLocationChange)
	r.Get("/location_log", h.HandleListLocationChanges)

	r.Post("/animal/{animalID}/diets", h.HandleAddDietLog)
	r.Get("/diets", h.HandleListDietLogs)

	r.Post("/animal/{animalID}/sanitary", h.HandleAddSanitaryProtocol)
	r.Get("/sanitary", h.HandleListSanitaryProtocols)

	r.Post("/animal/{animalID}/sale", h.HandleRecordSale)
	r.Get("/sales", h.HandleSalesReport)

	r.Post("/animal/{animalID}/death", h.HandleRecordDeath)
	r.Get("/deaths", h.HandleListDeaths)

	r.Get("/stock/active_summary", h.HandleActiveStockSummary)
}

type createAnimalRequest struct {
	EarTag         string        `json:"ear_tag"`
	Lot            string        `json:"lot"`
	EntryDate      temporal.Date `json:"entry_date"`
	EntryWeightKg  float64       `json:"entry_weight_kg"`
	EntryAgeMonths float64       `json:"entry_age_months"`
	Sex            string        `json:"sex"`
	Race           *string       `json:"race"`
	PurchasePrice  *float64      `json:"purchase_price"`
}

// HandleCreateAnimal registers a new animal entry (purchase) record.
func (h *Handler) HandleCreateAnimal(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}

	var req createAnimalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.EarTag == "" || req.Lot == "" {
		h.writeError(w, http.StatusBadRequest, "ear_tag and lot are required")
		return
	}
	if req.Sex != "M" && req.Sex != "F" {
		h.writeError(w, http.StatusBadRequest, "sex must be 'M' or 'F'")
		return
	}
	if req.EntryDate.IsZero() {
		h.writeError(w, http.StatusBadRequest, "entry_date is required")
		return
	}
	if req.EntryWeightKg <= 0 {
		h.writeError(w, http.StatusBadRequest, "entry_weight_kg must be positive")
		return
	}
	if req.EntryAgeMonths < 0 {
		h.writeError(w, http.StatusBadRequest, "entry_age_months must not be negative")
		return
	}

	animal := &Animal{
		FarmID:         farmID,
		EarTag:         req.EarTag,
		Lot:            req.Lot,
		EntryDate:      req.EntryDate,
		EntryWeightKg:  req.EntryWeightKg,
		EntryAgeMonths: req.EntryAgeMonths,
		Sex:            req.Sex,
		Race:           req.Race,
		PurchasePrice:  req.PurchasePrice,
	}
	if err := h.animals.Create(animal); err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, animal)
}

// HandleListAnimals lists every animal ever purchased on the farm.
func (h *Handler) HandleListAnimals(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}

	animals, err := h.animals.ListByFarm(farmID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if animals == nil {
		animals = []Animal{}
	}
	h.writeJSON(w, http.StatusOK, animals)
}

// HandleSearchAnimals finds animals by ear tag fragment.
func (h *Handler) HandleSearchAnimals(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}

	earTag := r.URL.Query().Get("ear_tag")
	if earTag == "" {
		h.writeError(w, http.StatusBadRequest, "ear_tag query parameter is required")
		return
	}

	animals, err := h.animals.Search(farmID, earTag)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if animals == nil {
		animals = []Animal{}
	}
	h.writeJSON(w, http.StatusOK, animals)
}

// HandleMasterRecord returns the complete dossier of one animal. Accepts an
// optional as_of date parameter for historical views.
func (h *Handler) HandleMasterRecord(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	animalID, ok := h.animalID(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	record, err := h.service.MasterRecord(farmID, animalID, asOf)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Animal not found on this farm")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// HandleDeleteAnimal removes an animal and all its events.
func (h *Handler) HandleDeleteAnimal(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	animalID, ok := h.animalID(w, r)
	if !ok {
		return
	}

	// Scope check before delete
	if _, err := h.service.GetAnimal(farmID, animalID); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Animal not found on this farm")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.animals.Delete(animalID); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type addWeightingRequest struct {
	Date     temporal.Date `json:"date"`
	WeightKg float64       `json:"weight_kg"`
}

// HandleAddWeighting records a weight measurement.
func (h *Handler) HandleAddWeighting(w http.ResponseWriter, r *http.Request) {
	farmID, animal, ok := h.farmAnimal(w, r)
	if !ok {
		return
	}

	var req addWeightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date.IsZero() {
		h.writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if req.WeightKg <= 0 {
		h.writeError(w, http.StatusBadRequest, "weight_kg must be positive")
		return
	}
	if req.Date.Before(animal.EntryDate) {
		h.writeError(w, http.StatusBadRequest, "weighting date cannot precede the entry date")
		return
	}

	weighting := &Weighting{AnimalID: animal.ID, FarmID: farmID, Date: req.Date, WeightKg: req.WeightKg}
	if err := h.events.AddWeighting(weighting); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, weighting)
}

// HandleListWeightings lists weightings for the farm, optionally filtered by
// start_date and end_date.
func (h *Handler) HandleListWeightings(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	weightings, err := h.events.ListWeightingsByFarm(farmID, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if weightings == nil {
		weightings = []Weighting{}
	}
	h.writeJSON(w, http.StatusOK, weightings)
}

type addLocationChangeRequest struct {
	Date          temporal.Date `json:"date"`
	LocationID    int64         `json:"location_id"`
	SublocationID *int64        `json:"sublocation_id"`
	WeightKg      *float64      `json:"weight_kg"`
}

// HandleAddLocationChange records a move to a location.
func (h *Handler) HandleAddLocationChange(w http.ResponseWriter, r *http.Request) {
	farmID, animal, ok := h.farmAnimal(w, r)
	if !ok {
		return
	}

	var req addLocationChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date.IsZero() || req.LocationID == 0 {
		h.writeError(w, http.StatusBadRequest, "date and location_id are required")
		return
	}
	if req.WeightKg != nil && *req.WeightKg <= 0 {
		h.writeError(w, http.StatusBadRequest, "weight_kg must be positive when provided")
		return
	}

	change := &LocationChange{
		AnimalID:      animal.ID,
		FarmID:        farmID,
		LocationID:    req.LocationID,
		SublocationID: req.SublocationID,
		Date:          req.Date,
		WeightKg:      req.WeightKg,
	}
	if err := h.events.AddLocationChange(change); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, change)
}

// HandleListLocationChanges lists moves for the farm.
func (h *Handler) HandleListLocationChanges(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	changes, err := h.events.ListLocationChangesByFarm(farmID, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if changes == nil {
		changes = []LocationChange{}
	}
	h.writeJSON(w, http.StatusOK, changes)
}

type addDietLogRequest struct {
	Date           temporal.Date `json:"date"`
	DietType       string        `json:"diet_type"`
	DailyIntakePct *float64      `json:"daily_intake_percentage"`
	WeightKg       *float64      `json:"weight_kg"`
}

// HandleAddDietLog records a diet change.
func (h *Handler) HandleAddDietLog(w http.ResponseWriter, r *http.Request) {
	farmID, animal, ok := h.farmAnimal(w, r)
	if !ok {
		return
	}

	var req addDietLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date.IsZero() || req.DietType == "" {
		h.writeError(w, http.StatusBadRequest, "date and diet_type are required")
		return
	}

	dietLog := &DietLog{
		AnimalID:       animal.ID,
		FarmID:         farmID,
		Date:           req.Date,
		DietType:       req.DietType,
		DailyIntakePct: req.DailyIntakePct,
		WeightKg:       req.WeightKg,
	}
	if err := h.events.AddDietLog(dietLog); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, dietLog)
}

// HandleListDietLogs lists diet changes for the farm.
func (h *Handler) HandleListDietLogs(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	logs, err := h.events.ListDietLogsByFarm(farmID, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []DietLog{}
	}
	h.writeJSON(w, http.StatusOK, logs)
}

type addSanitaryProtocolRequest struct {
	Date          temporal.Date `json:"date"`
	ProtocolType  string        `json:"protocol_type"`
	ProductName   *string       `json:"product_name"`
	Dosage        *string       `json:"dosage"`
	InvoiceNumber *string       `json:"invoice_number"`
}

// HandleAddSanitaryProtocol records a health treatment.
func (h *Handler) HandleAddSanitaryProtocol(w http.ResponseWriter, r *http.Request) {
	farmID, animal, ok := h.farmAnimal(w, r)
	if !ok {
		return
	}

	var req addSanitaryProtocolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date.IsZero() || req.ProtocolType == "" {
		h.writeError(w, http.StatusBadRequest, "date and protocol_type are required")
		return
	}

	protocol := &SanitaryProtocol{
		AnimalID:      animal.ID,
		FarmID:        farmID,
		Date:          req.Date,
		ProtocolType:  req.ProtocolType,
		ProductName:   req.ProductName,
		Dosage:        req.Dosage,
		InvoiceNumber: req.InvoiceNumber,
	}
	if err := h.events.AddSanitaryProtocol(protocol); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, protocol)
}

// HandleListSanitaryProtocols lists treatments for the farm.
func (h *Handler) HandleListSanitaryProtocols(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	protocols, err := h.events.ListSanitaryProtocolsByFarm(farmID, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if protocols == nil {
		protocols = []SanitaryProtocol{}
	}
	h.writeJSON(w, http.StatusOK, protocols)
}

type recordSaleRequest struct {
	Date         temporal.Date `json:"date"`
	SalePrice    float64       `json:"sale_price"`
	ExitWeightKg *float64      `json:"exit_weight_kg"`
}

// HandleRecordSale marks an animal as sold. The optional exit weight is
// recorded as a weighting on the sale date so it closes the weight timeline.
func (h *Handler) HandleRecordSale(w http.ResponseWriter, r *http.Request) {
	farmID, animal, ok := h.farmAnimal(w, r)
	if !ok {
		return
	}

	var req recordSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date.IsZero() {
		h.writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if req.SalePrice < 0 {
		h.writeError(w, http.StatusBadRequest, "sale_price must not be negative")
		return
	}
	if req.Date.Before(animal.EntryDate) {
		h.writeError(w, http.StatusBadRequest, "sale date cannot precede the entry date")
		return
	}

	sale := &Sale{
		AnimalID:     animal.ID,
		FarmID:       farmID,
		Date:         req.Date,
		SalePrice:    req.SalePrice,
		ExitWeightKg: req.ExitWeightKg,
	}
	if err := h.events.RecordSale(sale); err != nil {
		if errors.Is(err, ErrAlreadyExited) {
			h.writeError(w, http.StatusConflict, "Animal already has an exit record")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.ExitWeightKg != nil {
		weighting := &Weighting{AnimalID: animal.ID, FarmID: farmID, Date: req.Date, WeightKg: *req.ExitWeightKg}
		if err := h.events.AddWeighting(weighting); err != nil {
			h.log.Error().Err(err).Int64("animal_id", animal.ID).Msg("Failed to record exit weighting")
		}
	}

	h.writeJSON(w, http.StatusCreated, sale)
}

// HandleSalesReport returns the rich sales listing, optionally filtered by
// start_date and end_date.
func (h *Handler) HandleSalesReport(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	report, err := h.service.SalesReport(farmID, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

type recordDeathRequest struct {
	Date  temporal.Date `json:"date"`
	Cause *string       `json:"cause"`
}

// HandleRecordDeath marks an animal as dead.
func (h *Handler) HandleRecordDeath(w http.ResponseWriter, r *http.Request) {
	farmID, animal, ok := h.farmAnimal(w, r)
	if !ok {
		return
	}

	var req recordDeathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date.IsZero() {
		h.writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if req.Date.Before(animal.EntryDate) {
		h.writeError(w, http.StatusBadRequest, "death date cannot precede the entry date")
		return
	}

	death := &Death{AnimalID: animal.ID, FarmID: farmID, Date: req.Date, Cause: req.Cause}
	if err := h.events.RecordDeath(death); err != nil {
		if errors.Is(err, ErrAlreadyExited) {
			h.writeError(w, http.StatusConflict, "Animal already has an exit record")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, death)
}

// HandleListDeaths lists deaths for the farm.
func (h *Handler) HandleListDeaths(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	deaths, err := h.events.ListDeathsByFarm(farmID, start, end)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if deaths == nil {
		deaths = []Death{}
	}
	h.writeJSON(w, http.StatusOK, deaths)
}

// HandleActiveStockSummary returns every active animal with metrics plus
// herd-level aggregates, as of an optional date.
func (h *Handler) HandleActiveStockSummary(w http.ResponseWriter, r *http.Request) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	summary, err := h.service.ActiveStockSummary(farmID, asOf)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary.Animals == nil {
		summary.Animals = []AnimalWithKPIs{}
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// ---------------------------------------------------------------------------
// Helpers

func (h *Handler) farmID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "farmID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid farm id")
		return 0, false
	}
	return id, true
}

func (h *Handler) animalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "animalID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid animal id")
		return 0, false
	}
	return id, true
}

// farmAnimal resolves the farm and animal URL parameters and verifies the
// animal belongs to the farm.
func (h *Handler) farmAnimal(w http.ResponseWriter, r *http.Request) (int64, *Animal, bool) {
	farmID, ok := h.farmID(w, r)
	if !ok {
		return 0, nil, false
	}
	animalID, ok := h.animalID(w, r)
	if !ok {
		return 0, nil, false
	}

	animal, err := h.service.GetAnimal(farmID, animalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Animal not found on this farm")
			return 0, nil, false
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return 0, nil, false
	}
	return farmID, animal, true
}

// asOf parses the optional as_of query parameter, defaulting to today.
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

// dateRange parses the optional start_date and end_date query parameters.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (*temporal.Date, *temporal.Date, bool) {
	var start, end *temporal.Date
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		d, err := temporal.ParseDate(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
			return nil, nil, false
		}
		start = &d
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		d, err := temporal.ParseDate(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
			return nil, nil, false
		}
		end = &d
	}
	return start, end, true
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
