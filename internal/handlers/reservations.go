package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/rental"
)

// ReservationHandler serves bookings.
type ReservationHandler struct {
	rental       *rental.Service
	reservations db.ReservationCollection
}

// NewReservationHandler creates a ReservationHandler.
func NewReservationHandler(rentals *rental.Service, reservations db.ReservationCollection) *ReservationHandler {
	return &ReservationHandler{rental: rentals, reservations: reservations}
}

// Create books a vehicle for the caller. The total is computed server side.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	var req models.ReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.rental.Create(r.Context(), actor.UserID, &req)
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// Quote prices a reservation request without booking.
func (h *ReservationHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	_, quote, err := h.rental.Quote(r.Context(), &req)
	if err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// List returns the reservations visible to the caller: clients see their
// own, agence users their agency's, admins everything.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	filter := db.ReservationFilter{
		VehiculeID: r.URL.Query().Get("vehicule_id"),
		Statut:     models.ReservationStatus(r.URL.Query().Get("statut")),
	}
	switch actor.Role {
	case models.RoleAdmin:
		filter.UserID = r.URL.Query().Get("user_id")
		filter.AgenceID = r.URL.Query().Get("agence_id")
	case models.RoleAgence:
		if actor.AgenceID == "" {
			respondError(w, http.StatusForbidden, "Account is not linked to an agency")
			return
		}
		filter.AgenceID = actor.AgenceID
	default:
		filter.UserID = actor.UserID
	}

	reservations, err := h.reservations.FindReservations(r.Context(), filter)
	if err != nil {
		respondStoreError(w, r, err, "reservation")
		return
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	respondJSON(w, http.StatusOK, reservations)
}

// Get returns one reservation the caller may see.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	res, err := h.reservations.FindReservationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "reservation")
		return
	}
	if !rental.CanView(actor, res) {
		// do not reveal that the id exists
		respondError(w, http.StatusNotFound, "reservation not found")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// UpdateStatus moves a reservation through its lifecycle.
func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	var req models.StatusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.rental.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), req.Statut)
	if err != nil {
		respondStoreError(w, r, err, "reservation")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Cancel is UpdateStatus to annulee.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	res, err := h.rental.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "reservation")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Delete removes a reservation record.
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.reservations.DeleteReservation(r.Context(), id); err != nil {
		respondStoreError(w, r, err, "reservation")
		return
	}
	log.WithField("reservation_id", id).Info("Reservation deleted")
	w.WriteHeader(http.StatusNoContent)
}
