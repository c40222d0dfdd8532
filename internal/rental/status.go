package rental

import "github.com/ukydev/vitarenta/internal/models"

var transitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.ReservationEnAttente: {models.ReservationConfirmee, models.ReservationAnnulee},
	models.ReservationConfirmee: {models.ReservationTerminee, models.ReservationAnnulee},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to models.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VehicleStatusAfter returns the vehicle status implied by a reservation
// transition, and false when the vehicle is unaffected.
func VehicleStatusAfter(from, to models.ReservationStatus) (models.VehicleStatus, bool) {
	switch {
	case to == models.ReservationConfirmee:
		return models.VehicleLoue, true
	case from == models.ReservationConfirmee && (to == models.ReservationTerminee || to == models.ReservationAnnulee):
		return models.VehicleDisponible, true
	}
	return "", false
}
