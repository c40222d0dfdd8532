package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/rental"
	"github.com/ukydev/vitarenta/internal/storage"
	"github.com/ukydev/vitarenta/internal/telemetry"
	"github.com/ukydev/vitarenta/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize       = 20
	defaultTelemetryLimit = 100
)

// ImageUploader stores vehicle pictures. *storage.ImageStore implements it,
// including as a nil pointer when storage is disabled.
type ImageUploader interface {
	UploadVehicleImage(ctx context.Context, vehiculeID string, r io.Reader) (string, error)
}

// VehicleHandler serves the vehicle catalogue and fleet management.
type VehicleHandler struct {
	vehicles     db.VehicleCollection
	reservations db.ReservationCollection
	users        db.UserCollection
	rental       *rental.Service
	analytics    *analytics.Service
	images       ImageUploader
	telemetry    *telemetry.Pipeline
}

// NewVehicleHandler creates a VehicleHandler.
func NewVehicleHandler(
	vehicles db.VehicleCollection,
	reservations db.ReservationCollection,
	users db.UserCollection,
	rentals *rental.Service,
	stats *analytics.Service,
	images ImageUploader,
	pipeline *telemetry.Pipeline,
) *VehicleHandler {
	return &VehicleHandler{
		vehicles:     vehicles,
		reservations: reservations,
		users:        users,
		rental:       rentals,
		analytics:    stats,
		images:       images,
		telemetry:    pipeline,
	}
}

// List returns a page of vehicles matching the query filters. disponible_du
// and disponible_au drop vehicles held by an active reservation in that range.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := h.listFilter(r)
	if err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			respondValidation(w, verr)
			return
		}
		respondStoreError(w, r, err, "vehicle")
		return
	}

	vehicles, total, err := h.vehicles.FindVehicles(r.Context(), filter)
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicule{}
	}
	respondJSON(w, http.StatusOK, models.VehicleList{
		Count:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Results:  vehicles,
	})
}

func (h *VehicleHandler) listFilter(r *http.Request) (db.VehicleFilter, error) {
	q := r.URL.Query()
	filter := db.VehicleFilter{
		Carburant:    models.Carburant(q.Get("carburant")),
		Transmission: models.Transmission(q.Get("transmission")),
		Marque:       q.Get("marque"),
		Statut:       models.VehicleStatus(q.Get("statut")),
		AgenceID:     q.Get("agence_id"),
	}

	var err error
	if filter.PrixMin, err = queryFloat(r, "prix_min"); err != nil {
		return filter, err
	}
	if filter.PrixMax, err = queryFloat(r, "prix_max"); err != nil {
		return filter, err
	}
	if filter.PlacesMin, err = queryInt(r, "places_min", 0); err != nil {
		return filter, err
	}
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		return filter, err
	}
	if filter.PageSize, err = queryInt(r, "page_size", defaultPageSize); err != nil {
		return filter, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > db.MaxPageSize {
		filter.PageSize = db.MaxPageSize
	}

	from, err := queryTime(r, "disponible_du")
	if err != nil {
		return filter, err
	}
	to, err := queryTime(r, "disponible_au")
	if err != nil {
		return filter, err
	}
	if from == nil && to == nil {
		return filter, nil
	}
	if from == nil || to == nil {
		return filter, validation.NewFieldError("disponible_au", "disponible_du and disponible_au must be given together")
	}
	if !to.After(*from) {
		return filter, validation.NewFieldError("disponible_au", "disponible_au must be after disponible_du")
	}
	busy, err := h.reservations.BusyVehicleIDs(r.Context(), *from, *to)
	if err != nil {
		return filter, err
	}
	filter.ExcludeIDs = busy
	return filter, nil
}

// Get returns one vehicle.
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.vehicles.FindVehicleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// Create adds a vehicle. Agence users always create in their own agency.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	var v models.Vehicule
	if !decodeJSON(w, r, &v) {
		return
	}
	if actor.Role != models.RoleAdmin {
		if actor.AgenceID == "" {
			respondError(w, http.StatusForbidden, "Account is not linked to an agency")
			return
		}
		v.AgenceID = actor.AgenceID
	}
	v.ID = primitive.NilObjectID
	v.ImageURL = ""
	v.Position = nil

	if err := h.vehicles.InsertVehicle(r.Context(), &v); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Immatriculation already exists")
			return
		}
		respondStoreError(w, r, err, "vehicle")
		return
	}
	log.WithFields(log.Fields{
		"vehicule_id":     v.ID.Hex(),
		"immatriculation": v.Immatriculation,
		"agence_id":       v.AgenceID,
	}).Info("Vehicle created")
	respondJSON(w, http.StatusCreated, v)
}

// managed loads the vehicle in the URL and checks the caller manages it.
func (h *VehicleHandler) managed(w http.ResponseWriter, r *http.Request) (*models.Claims, *models.Vehicule, bool) {
	actor, ok := claims(w, r)
	if !ok {
		return nil, nil, false
	}
	v, err := h.vehicles.FindVehicleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return nil, nil, false
	}
	if !sameAgency(actor, v.AgenceID) {
		respondError(w, http.StatusForbidden, "Vehicle belongs to another agency")
		return nil, nil, false
	}
	return actor, v, true
}

func (h *VehicleHandler) save(w http.ResponseWriter, r *http.Request, v *models.Vehicule) {
	if err := h.vehicles.UpdateVehicle(r.Context(), v); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Immatriculation already exists")
			return
		}
		respondStoreError(w, r, err, "vehicle")
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// Update replaces a vehicle's editable fields.
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, existing, ok := h.managed(w, r)
	if !ok {
		return
	}
	v := *existing
	if !decodeJSON(w, r, &v) {
		return
	}
	v.ID = existing.ID
	v.DateCreation = existing.DateCreation
	v.ImageURL = existing.ImageURL
	v.Position = existing.Position
	if v.Statut == "" {
		v.Statut = existing.Statut
	}
	if actor.Role != models.RoleAdmin {
		v.AgenceID = existing.AgenceID
	}
	h.save(w, r, &v)
}

// Patch applies a partial update.
func (h *VehicleHandler) Patch(w http.ResponseWriter, r *http.Request) {
	actor, v, ok := h.managed(w, r)
	if !ok {
		return
	}
	var patch models.VehiculePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.AgenceID != nil && actor.Role != models.RoleAdmin && *patch.AgenceID != v.AgenceID {
		respondError(w, http.StatusForbidden, "Cannot move a vehicle to another agency")
		return
	}
	patch.Apply(v)
	h.save(w, r, v)
}

// Delete removes a vehicle without active reservations.
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, v, ok := h.managed(w, r)
	if !ok {
		return
	}
	id := v.ID.Hex()
	active, err := h.reservations.HasActiveReservations(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err, "reservation")
		return
	}
	if active {
		respondError(w, http.StatusConflict, "Vehicle has active reservations")
		return
	}
	if err := h.vehicles.DeleteVehicle(r.Context(), id); err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	log.WithField("vehicule_id", id).Info("Vehicle deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Availability reports whether the vehicle is free between date_debut and
// date_fin.
func (h *VehicleHandler) Availability(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "date_debut")
	if err != nil {
		respondQueryError(w, err)
		return
	}
	end, err := queryTime(r, "date_fin")
	if err != nil {
		respondQueryError(w, err)
		return
	}
	if start == nil || end == nil {
		respondError(w, http.StatusBadRequest, "date_debut and date_fin are required")
		return
	}

	availability, err := h.rental.Availability(r.Context(), chi.URLParam(r, "id"), *start, *end)
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	if availability.Conflicts == nil {
		availability.Conflicts = []models.Reservation{}
	}
	respondJSON(w, http.StatusOK, availability)
}

// UploadImage stores the multipart "image" file and records its URL.
func (h *VehicleHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	_, v, ok := h.managed(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+maxBodySize)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		respondValidation(w, validation.NewFieldError("image", "image file is required"))
		return
	}
	defer file.Close()

	id := v.ID.Hex()
	url, err := h.images.UploadVehicleImage(r.Context(), id, file)
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			respondError(w, http.StatusServiceUnavailable, "Image storage is not configured")
			return
		}
		respondStoreError(w, r, err, "vehicle")
		return
	}
	if err := h.vehicles.SetVehicleImage(r.Context(), id, url); err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	v.ImageURL = url
	respondJSON(w, http.StatusOK, v)
}

// Recommendations ranks available vehicles for the caller's preferences.
func (h *VehicleHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", analytics.DefaultRecommendations)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	user, err := h.users.FindUserByID(r.Context(), actor.UserID)
	if err != nil {
		respondStoreError(w, r, err, "user")
		return
	}
	recs, err := h.analytics.Recommend(r.Context(), user, limit)
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	if recs == nil {
		recs = []analytics.Recommendation{}
	}
	respondJSON(w, http.StatusOK, recs)
}

// Telemetry returns the latest samples of a managed vehicle.
func (h *VehicleHandler) Telemetry(w http.ResponseWriter, r *http.Request) {
	_, v, ok := h.managed(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultTelemetryLimit)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	samples, err := h.telemetry.Recent(r.Context(), v.ID.Hex(), limit)
	if err != nil {
		respondStoreError(w, r, err, "telemetry")
		return
	}
	if samples == nil {
		samples = []models.Telemetry{}
	}
	respondJSON(w, http.StatusOK, samples)
}
