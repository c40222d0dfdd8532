package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationEnAttente ReservationStatus = "en_attente"
	ReservationConfirmee ReservationStatus = "confirmee"
	ReservationTerminee  ReservationStatus = "terminee"
	ReservationAnnulee   ReservationStatus = "annulee"
)

// Blocking reports whether a reservation in this state holds its vehicle.
func (s ReservationStatus) Blocking() bool {
	return s == ReservationEnAttente || s == ReservationConfirmee
}

// Terminal reports whether no further transition is allowed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationTerminee || s == ReservationAnnulee
}

// BlockingStatuses lists the states that make a vehicle unavailable.
var BlockingStatuses = []ReservationStatus{ReservationEnAttente, ReservationConfirmee}

// Assurance is the insurance level attached to a reservation.
type Assurance string

const (
	AssuranceBasique  Assurance = "basique"
	AssuranceStandard Assurance = "standard"
	AssurancePremium  Assurance = "premium"
)

// Reservation represents a vehicle booking.
type Reservation struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID                   string             `bson:"user_id" json:"user_id"`
	VehiculeID               string             `bson:"vehicule_id" json:"vehicule_id"`
	AgenceID                 string             `bson:"agence_id" json:"agence_id"`
	DateDebut                time.Time          `bson:"date_debut" json:"date_debut"`
	DateFin                  time.Time          `bson:"date_fin" json:"date_fin"`
	NombreJours              int                `bson:"nombre_jours" json:"nombre_jours"`
	MontantTotal             float64            `bson:"montant_total" json:"montant_total"`
	Statut                   ReservationStatus  `bson:"statut" json:"statut"`
	Assurance                Assurance          `bson:"assurance" json:"assurance"`
	ConducteurSupplementaire bool               `bson:"conducteur_supplementaire" json:"conducteur_supplementaire"`
	GPS                      bool               `bson:"gps" json:"gps"`
	SiegeEnfant              bool               `bson:"siege_enfant" json:"siege_enfant"`
	Commentaires             string             `bson:"commentaires" json:"commentaires"`
	DateCreation             time.Time          `bson:"date_creation" json:"date_creation"`
	UpdatedAt                time.Time          `bson:"updated_at" json:"updated_at"`
}

// Overlaps reports whether the reservation's period intersects [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.DateDebut.Before(end) && start.Before(r.DateFin)
}

// ReservationRequest is the body of a reservation or quote request.
// Any client-supplied total is ignored; the server computes it.
type ReservationRequest struct {
	VehiculeID               string    `json:"vehicule_id" validate:"required,objectid"`
	DateDebut                time.Time `json:"date_debut" validate:"required"`
	DateFin                  time.Time `json:"date_fin" validate:"required"`
	Assurance                Assurance `json:"assurance" validate:"omitempty,oneof=basique standard premium"`
	ConducteurSupplementaire bool      `json:"conducteur_supplementaire"`
	GPS                      bool      `json:"gps"`
	SiegeEnfant              bool      `json:"siege_enfant"`
	Commentaires             string    `json:"commentaires" validate:"max=1000"`
}

// StatusUpdateRequest changes a reservation's status.
type StatusUpdateRequest struct {
	Statut ReservationStatus `json:"statut" validate:"required,oneof=en_attente confirmee terminee annulee"`
}

// PriceBreakdown details how a reservation total was computed.
type PriceBreakdown struct {
	Location     float64 `json:"location"`
	Assurance    float64 `json:"assurance"`
	Options      float64 `json:"options"`
	Remise       float64 `json:"remise"`
	MontantTotal float64 `json:"montant_total"`
}

// Quote is the priced result of a reservation request.
type Quote struct {
	NombreJours  int            `json:"nombre_jours"`
	MontantTotal float64        `json:"montant_total"`
	Breakdown    PriceBreakdown `json:"breakdown"`
}

// Availability answers whether a vehicle is free for a period.
type Availability struct {
	Available bool          `json:"available"`
	Conflicts []Reservation `json:"conflicts"`
}
