// Package rental implements the reservation rules: pricing, period checks,
// the per-vehicle booking lock and the status lifecycle.
package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/metrics"
	"github.com/ukydev/vitarenta/internal/models"
)

var (
	ErrOverlap            = errors.New("vehicle is already reserved for this period")
	ErrVehicleUnavailable = errors.New("vehicle is not available for rental")
	ErrVehicleBusy        = errors.New("vehicle is being reserved by another request, retry shortly")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotAllowed         = errors.New("operation not allowed for this user")
	ErrAlreadyStarted     = errors.New("reservation has already started")
)

// Service creates and moves reservations through their lifecycle.
type Service struct {
	vehicles     db.VehicleCollection
	reservations db.ReservationCollection
	locks        db.LockCollection
	pricing      Pricing
	lockTTL      time.Duration
	now          func() time.Time
}

// NewService wires the rental rules to the stores.
func NewService(cfg config.RentalConfig, vehicles db.VehicleCollection, reservations db.ReservationCollection, locks db.LockCollection) *Service {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		vehicles:     vehicles,
		reservations: reservations,
		locks:        locks,
		pricing:      NewPricing(cfg),
		lockTTL:      ttl,
		now:          time.Now,
	}
}

// Quote prices a request without persisting anything.
func (s *Service) Quote(ctx context.Context, req *models.ReservationRequest) (*models.Vehicule, models.Quote, error) {
	v, err := s.bookableVehicle(ctx, req.VehiculeID)
	if err != nil {
		return nil, models.Quote{}, err
	}
	q, err := s.pricing.Quote(v, req, s.now())
	if err != nil {
		return nil, models.Quote{}, err
	}
	return v, q, nil
}

func (s *Service) bookableVehicle(ctx context.Context, id string) (*models.Vehicule, error) {
	v, err := s.vehicles.FindVehicleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.Statut.Bookable() {
		return nil, ErrVehicleUnavailable
	}
	return v, nil
}

// Create books a vehicle for userID. The overlap check and the insert run
// under the vehicle's advisory lock.
func (s *Service) Create(ctx context.Context, userID string, req *models.ReservationRequest) (*models.Reservation, error) {
	v, q, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	key := "vehicle:" + v.ID.Hex()
	owner := uuid.NewString()
	if err := s.locks.Acquire(ctx, key, owner, s.lockTTL); err != nil {
		if errors.Is(err, db.ErrLocked) {
			metrics.ReservationConflicts.WithLabelValues("locked").Inc()
			return nil, ErrVehicleBusy
		}
		return nil, fmt.Errorf("acquire reservation lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, key, owner); err != nil {
			log.WithError(err).WithField("lock", key).Warn("Failed to release reservation lock")
		}
	}()

	conflicts, err := s.reservations.FindOverlapping(ctx, v.ID.Hex(), req.DateDebut, req.DateFin)
	if err != nil {
		return nil, fmt.Errorf("check overlapping reservations: %w", err)
	}
	if len(conflicts) > 0 {
		metrics.ReservationConflicts.WithLabelValues("overlap").Inc()
		return nil, ErrOverlap
	}

	assurance := req.Assurance
	if assurance == "" {
		assurance = models.AssuranceBasique
	}
	r := &models.Reservation{
		UserID:                   userID,
		VehiculeID:               v.ID.Hex(),
		AgenceID:                 v.AgenceID,
		DateDebut:                req.DateDebut.UTC(),
		DateFin:                  req.DateFin.UTC(),
		NombreJours:              q.NombreJours,
		MontantTotal:             q.MontantTotal,
		Statut:                   models.ReservationEnAttente,
		Assurance:                assurance,
		ConducteurSupplementaire: req.ConducteurSupplementaire,
		GPS:                      req.GPS,
		SiegeEnfant:              req.SiegeEnfant,
		Commentaires:             req.Commentaires,
	}
	if err := s.reservations.InsertReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	metrics.ReservationsCreated.WithLabelValues(string(r.Statut)).Inc()
	log.WithFields(log.Fields{
		"reservation_id": r.ID.Hex(),
		"vehicule_id":    r.VehiculeID,
		"user_id":        userID,
		"jours":          r.NombreJours,
		"montant":        r.MontantTotal,
	}).Info("Reservation created")
	return r, nil
}

// Availability lists the active reservations of a vehicle that overlap the period.
func (s *Service) Availability(ctx context.Context, vehiculeID string, start, end time.Time) (models.Availability, error) {
	if !end.After(start) {
		return models.Availability{}, ErrInvalidPeriod
	}
	v, err := s.vehicles.FindVehicleByID(ctx, vehiculeID)
	if err != nil {
		return models.Availability{}, err
	}
	conflicts, err := s.reservations.FindOverlapping(ctx, vehiculeID, start, end)
	if err != nil {
		return models.Availability{}, err
	}
	return models.Availability{
		Available: v.Statut.Bookable() && len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

// CanView reports whether actor may read r.
func CanView(actor *models.Claims, r *models.Reservation) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleAgence:
		return actor.AgenceID != "" && actor.AgenceID == r.AgenceID
	default:
		return actor.UserID == r.UserID
	}
}

// UpdateStatus moves reservation id to status to on behalf of actor and keeps
// the vehicle status in step. Clients may only cancel their own reservation
// before it starts.
func (s *Service) UpdateStatus(ctx context.Context, actor *models.Claims, id string, to models.ReservationStatus) (*models.Reservation, error) {
	r, err := s.reservations.FindReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, r) {
		return nil, ErrNotAllowed
	}
	if !actor.Role.IsStaff() {
		if to != models.ReservationAnnulee {
			return nil, ErrNotAllowed
		}
		if !s.now().Before(r.DateDebut) {
			return nil, ErrAlreadyStarted
		}
	}
	if !CanTransition(r.Statut, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Statut, to)
	}

	from := r.Statut
	if err := s.reservations.UpdateReservationStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, fmt.Errorf("%w: reservation changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}
	r.Statut = to
	r.UpdatedAt = s.now().UTC()

	if status, ok := VehicleStatusAfter(from, to); ok {
		if err := s.vehicles.SetVehicleStatus(ctx, r.VehiculeID, status); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"reservation_id": id,
				"vehicule_id":    r.VehiculeID,
				"statut":         status,
			}).Error("Failed to sync vehicle status")
		}
	}

	log.WithFields(log.Fields{
		"reservation_id": id,
		"from":           from,
		"to":             to,
		"actor":          actor.UserID,
	}).Info("Reservation status changed")
	return r, nil
}

// Cancel is UpdateStatus to annulee.
func (s *Service) Cancel(ctx context.Context, actor *models.Claims, id string) (*models.Reservation, error) {
	return s.UpdateStatus(ctx, actor, id, models.ReservationAnnulee)
}
