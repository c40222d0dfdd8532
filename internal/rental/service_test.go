package rental

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/db/dbmock"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	svc          *Service
	vehicles     *dbmock.VehicleCollection
	reservations *dbmock.ReservationCollection
	locks        *dbmock.LockCollection
	now          time.Time
	vehicle      *models.Vehicule
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		vehicles:     new(dbmock.VehicleCollection),
		reservations: new(dbmock.ReservationCollection),
		locks:        new(dbmock.LockCollection),
		now:          time.Date(2030, 4, 1, 9, 0, 0, 0, time.UTC),
		vehicle: &models.Vehicule{
			ID:          primitive.NewObjectID(),
			PrixParJour: 50,
			Statut:      models.VehicleDisponible,
			AgenceID:    "64b7f0c2a1b2c3d4e5f60718",
		},
	}
	f.svc = NewService(config.Defaults().Rental, f.vehicles, f.reservations, f.locks)
	f.svc.now = func() time.Time { return f.now }
	t.Cleanup(func() {
		f.vehicles.AssertExpectations(t)
		f.reservations.AssertExpectations(t)
		f.locks.AssertExpectations(t)
	})
	return f
}

func (f *fixture) request(days int) *models.ReservationRequest {
	start := f.now.Add(24 * time.Hour)
	return &models.ReservationRequest{
		VehiculeID: f.vehicle.ID.Hex(),
		DateDebut:  start,
		DateFin:    start.Add(time.Duration(days) * 24 * time.Hour),
		Assurance:  models.AssuranceStandard,
	}
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	req := f.request(3)
	key := "vehicle:" + f.vehicle.ID.Hex()

	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
	f.locks.On("Acquire", mock.Anything, key, mock.AnythingOfType("string"), 30*time.Second).Return(nil)
	f.locks.On("Release", mock.Anything, key, mock.AnythingOfType("string")).Return(nil)
	f.reservations.On("FindOverlapping", mock.Anything, f.vehicle.ID.Hex(), req.DateDebut, req.DateFin).Return([]models.Reservation{}, nil)
	f.reservations.On("InsertReservation", mock.Anything, mock.MatchedBy(func(r *models.Reservation) bool {
		return r.UserID == "user-1" && r.AgenceID == f.vehicle.AgenceID && r.Statut == models.ReservationEnAttente
	})).Return(nil)

	r, err := f.svc.Create(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, 3, r.NombreJours)
	assert.InDelta(t, 3*50+3*15, r.MontantTotal, 1e-9)
	assert.Equal(t, models.AssuranceStandard, r.Assurance)

	// the same owner token is used to acquire and release
	acquireOwner := f.locks.Calls[0].Arguments.String(2)
	releaseOwner := f.locks.Calls[1].Arguments.String(2)
	assert.Equal(t, acquireOwner, releaseOwner)
}

func TestService_Create_Overlap(t *testing.T) {
	f := newFixture(t)
	req := f.request(2)

	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
	f.locks.On("Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.locks.On("Release", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.reservations.On("FindOverlapping", mock.Anything, f.vehicle.ID.Hex(), req.DateDebut, req.DateFin).
		Return([]models.Reservation{{Statut: models.ReservationConfirmee}}, nil)

	_, err := f.svc.Create(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, ErrOverlap)
	f.reservations.AssertNotCalled(t, "InsertReservation", mock.Anything, mock.Anything)
}

func TestService_Create_Locked(t *testing.T) {
	f := newFixture(t)

	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
	f.locks.On("Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(db.ErrLocked)

	_, err := f.svc.Create(context.Background(), "user-1", f.request(2))
	assert.ErrorIs(t, err, ErrVehicleBusy)
	f.locks.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Create_VehicleUnavailable(t *testing.T) {
	f := newFixture(t)
	f.vehicle.Statut = models.VehicleMaintenance
	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)

	_, err := f.svc.Create(context.Background(), "user-1", f.request(2))
	assert.ErrorIs(t, err, ErrVehicleUnavailable)
}

func TestService_Create_VehicleNotFound(t *testing.T) {
	f := newFixture(t)
	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(nil, db.ErrNotFound)

	_, err := f.svc.Create(context.Background(), "user-1", f.request(2))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestService_Create_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)

	req := f.request(2)
	req.DateDebut, req.DateFin = req.DateFin, req.DateDebut
	_, err := f.svc.Create(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	f.locks.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Availability(t *testing.T) {
	f := newFixture(t)
	start, end := f.now.Add(24*time.Hour), f.now.Add(72*time.Hour)
	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
	f.reservations.On("FindOverlapping", mock.Anything, f.vehicle.ID.Hex(), start, end).Return([]models.Reservation{}, nil)

	a, err := f.svc.Availability(context.Background(), f.vehicle.ID.Hex(), start, end)
	require.NoError(t, err)
	assert.True(t, a.Available)

	_, err = f.svc.Availability(context.Background(), f.vehicle.ID.Hex(), end, start)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func (f *fixture) reservation(status models.ReservationStatus) *models.Reservation {
	return &models.Reservation{
		ID:         primitive.NewObjectID(),
		UserID:     "client-1",
		VehiculeID: f.vehicle.ID.Hex(),
		AgenceID:   f.vehicle.AgenceID,
		DateDebut:  f.now.Add(48 * time.Hour),
		DateFin:    f.now.Add(96 * time.Hour),
		Statut:     status,
	}
}

func TestService_UpdateStatus_ConfirmRentsVehicle(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(models.ReservationEnAttente)
	staff := &models.Claims{UserID: "staff", Role: models.RoleAgence, AgenceID: f.vehicle.AgenceID}

	f.reservations.On("FindReservationByID", mock.Anything, r.ID.Hex()).Return(r, nil)
	f.reservations.On("UpdateReservationStatus", mock.Anything, r.ID.Hex(), models.ReservationEnAttente, models.ReservationConfirmee).Return(nil)
	f.vehicles.On("SetVehicleStatus", mock.Anything, f.vehicle.ID.Hex(), models.VehicleLoue).Return(nil)

	updated, err := f.svc.UpdateStatus(context.Background(), staff, r.ID.Hex(), models.ReservationConfirmee)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmee, updated.Statut)
}

func TestService_UpdateStatus_CompleteFreesVehicle(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(models.ReservationConfirmee)
	admin := &models.Claims{UserID: "admin", Role: models.RoleAdmin}

	f.reservations.On("FindReservationByID", mock.Anything, r.ID.Hex()).Return(r, nil)
	f.reservations.On("UpdateReservationStatus", mock.Anything, r.ID.Hex(), models.ReservationConfirmee, models.ReservationTerminee).Return(nil)
	f.vehicles.On("SetVehicleStatus", mock.Anything, f.vehicle.ID.Hex(), models.VehicleDisponible).Return(nil)

	_, err := f.svc.UpdateStatus(context.Background(), admin, r.ID.Hex(), models.ReservationTerminee)
	require.NoError(t, err)
}

func TestService_UpdateStatus_Rules(t *testing.T) {
	tests := []struct {
		name    string
		actor   *models.Claims
		status  models.ReservationStatus
		to      models.ReservationStatus
		started bool
		wantErr error
	}{
		{"terminal is immutable", &models.Claims{Role: models.RoleAdmin}, models.ReservationAnnulee, models.ReservationConfirmee, false, ErrInvalidTransition},
		{"client cannot confirm", &models.Claims{UserID: "client-1", Role: models.RoleClient}, models.ReservationEnAttente, models.ReservationConfirmee, false, ErrNotAllowed},
		{"client cannot touch others", &models.Claims{UserID: "client-2", Role: models.RoleClient}, models.ReservationEnAttente, models.ReservationAnnulee, false, ErrNotAllowed},
		{"client cannot cancel started", &models.Claims{UserID: "client-1", Role: models.RoleClient}, models.ReservationConfirmee, models.ReservationAnnulee, true, ErrAlreadyStarted},
		{"other agency", &models.Claims{Role: models.RoleAgence, AgenceID: "other"}, models.ReservationEnAttente, models.ReservationConfirmee, false, ErrNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.reservation(tt.status)
			if tt.started {
				r.DateDebut = f.now.Add(-time.Hour)
			}
			f.reservations.On("FindReservationByID", mock.Anything, r.ID.Hex()).Return(r, nil)

			_, err := f.svc.UpdateStatus(context.Background(), tt.actor, r.ID.Hex(), tt.to)
			assert.ErrorIs(t, err, tt.wantErr)
			f.reservations.AssertNotCalled(t, "UpdateReservationStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Cancel_ByOwner(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(models.ReservationEnAttente)
	owner := &models.Claims{UserID: "client-1", Role: models.RoleClient}

	f.reservations.On("FindReservationByID", mock.Anything, r.ID.Hex()).Return(r, nil)
	f.reservations.On("UpdateReservationStatus", mock.Anything, r.ID.Hex(), models.ReservationEnAttente, models.ReservationAnnulee).Return(nil)

	updated, err := f.svc.Cancel(context.Background(), owner, r.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ReservationAnnulee, updated.Statut)
	f.vehicles.AssertNotCalled(t, "SetVehicleStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_UpdateStatus_ConcurrentChange(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(models.ReservationEnAttente)

	f.reservations.On("FindReservationByID", mock.Anything, r.ID.Hex()).Return(r, nil)
	f.reservations.On("UpdateReservationStatus", mock.Anything, r.ID.Hex(), models.ReservationEnAttente, models.ReservationConfirmee).Return(db.ErrConflict)

	_, err := f.svc.UpdateStatus(context.Background(), &models.Claims{Role: models.RoleAdmin}, r.ID.Hex(), models.ReservationConfirmee)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_UpdateStatus_VehicleSyncFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(models.ReservationEnAttente)

	f.reservations.On("FindReservationByID", mock.Anything, r.ID.Hex()).Return(r, nil)
	f.reservations.On("UpdateReservationStatus", mock.Anything, r.ID.Hex(), models.ReservationEnAttente, models.ReservationConfirmee).Return(nil)
	f.vehicles.On("SetVehicleStatus", mock.Anything, f.vehicle.ID.Hex(), models.VehicleLoue).Return(errors.New("boom"))

	_, err := f.svc.UpdateStatus(context.Background(), &models.Claims{Role: models.RoleAdmin}, r.ID.Hex(), models.ReservationConfirmee)
	assert.NoError(t, err)
}

func TestCanView(t *testing.T) {
	r := &models.Reservation{UserID: "u1", AgenceID: "a1"}
	assert.True(t, CanView(&models.Claims{Role: models.RoleAdmin}, r))
	assert.True(t, CanView(&models.Claims{Role: models.RoleAgence, AgenceID: "a1"}, r))
	assert.False(t, CanView(&models.Claims{Role: models.RoleAgence}, r))
	assert.True(t, CanView(&models.Claims{Role: models.RoleClient, UserID: "u1"}, r))
	assert.False(t, CanView(&models.Claims{Role: models.RoleClient, UserID: "u2"}, r))
}
