package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AgencyHandler serves the agency endpoints.
type AgencyHandler struct {
	agencies  db.AgencyCollection
	vehicles  db.VehicleCollection
	analytics *analytics.Service
	now       func() time.Time
}

// NewAgencyHandler creates an AgencyHandler.
func NewAgencyHandler(agencies db.AgencyCollection, vehicles db.VehicleCollection, stats *analytics.Service) *AgencyHandler {
	return &AgencyHandler{agencies: agencies, vehicles: vehicles, analytics: stats, now: time.Now}
}

// List returns agencies filtered by ville and active.
func (h *AgencyHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		respondQueryError(w, err)
		return
	}
	agencies, err := h.agencies.FindAgencies(r.Context(), db.AgencyFilter{
		Ville:  r.URL.Query().Get("ville"),
		Active: active,
	})
	if err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	if agencies == nil {
		agencies = []models.Agence{}
	}
	respondJSON(w, http.StatusOK, agencies)
}

// Get returns one agency.
func (h *AgencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	agence, err := h.agencies.FindAgencyByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	respondJSON(w, http.StatusOK, agence)
}

// Create adds an agency.
func (h *AgencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	agence := models.Agence{Active: true}
	if !decodeJSON(w, r, &agence) {
		return
	}
	now := h.now().UTC()
	agence.ID = primitive.NilObjectID
	agence.DateCreation = now
	agence.UpdatedAt = now

	if err := h.agencies.InsertAgency(r.Context(), &agence); err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	log.WithFields(log.Fields{"agence_id": agence.ID.Hex(), "nom": agence.Nom}).Info("Agency created")
	respondJSON(w, http.StatusCreated, agence)
}

// Update replaces an agency. Agence users may only update their own.
func (h *AgencyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !sameAgency(actor, id) {
		respondError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	existing, err := h.agencies.FindAgencyByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	agence := *existing
	if !decodeJSON(w, r, &agence) {
		return
	}
	agence.ID = existing.ID
	agence.DateCreation = existing.DateCreation
	agence.UpdatedAt = h.now().UTC()

	if err := h.agencies.UpdateAgency(r.Context(), &agence); err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	respondJSON(w, http.StatusOK, agence)
}

// Delete removes an agency that no vehicle references any more.
func (h *AgencyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.agencies.FindAgencyByID(r.Context(), id); err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	_, count, err := h.vehicles.FindVehicles(r.Context(), db.VehicleFilter{AgenceID: id, Page: 1, PageSize: 1})
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	if count > 0 {
		respondError(w, http.StatusConflict, "Agency still has vehicles")
		return
	}
	if err := h.agencies.DeleteAgency(r.Context(), id); err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	log.WithField("agence_id", id).Info("Agency deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns fleet and booking counts of one agency.
func (h *AgencyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !sameAgency(actor, id) {
		respondError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}
	if _, err := h.agencies.FindAgencyByID(r.Context(), id); err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	stats, err := h.analytics.AgencyStats(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err, "agency")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
