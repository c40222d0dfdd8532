// Package dbmock provides testify mocks of the db store interfaces.
package dbmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
)

var (
	_ db.UserCollection          = (*UserCollection)(nil)
	_ db.AgencyCollection        = (*AgencyCollection)(nil)
	_ db.VehicleCollection       = (*VehicleCollection)(nil)
	_ db.ReservationCollection   = (*ReservationCollection)(nil)
	_ db.LockCollection          = (*LockCollection)(nil)
	_ db.ChallengeCollection     = (*ChallengeCollection)(nil)
	_ db.ParticipationCollection = (*ParticipationCollection)(nil)
	_ db.ProgressCollection      = (*ProgressCollection)(nil)
	_ db.RewardCollection        = (*RewardCollection)(nil)
	_ db.TelemetryCollection     = (*TelemetryCollection)(nil)
)

// UserCollection is a mock implementation of db.UserCollection
type UserCollection struct {
	mock.Mock
}

func (m *UserCollection) InsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserCollection) FindUsers(ctx context.Context, filter db.UserFilter) ([]models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *UserCollection) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserCollection) AddEcoScore(ctx context.Context, id string, points int) error {
	args := m.Called(ctx, id, points)
	return args.Error(0)
}

func (m *UserCollection) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Role]int64), args.Error(1)
}

// AgencyCollection is a mock implementation of db.AgencyCollection
type AgencyCollection struct {
	mock.Mock
}

func (m *AgencyCollection) InsertAgency(ctx context.Context, agence *models.Agence) error {
	args := m.Called(ctx, agence)
	return args.Error(0)
}

func (m *AgencyCollection) FindAgencyByID(ctx context.Context, id string) (*models.Agence, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agence), args.Error(1)
}

func (m *AgencyCollection) FindAgencies(ctx context.Context, filter db.AgencyFilter) ([]models.Agence, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Agence), args.Error(1)
}

func (m *AgencyCollection) UpdateAgency(ctx context.Context, agence *models.Agence) error {
	args := m.Called(ctx, agence)
	return args.Error(0)
}

func (m *AgencyCollection) DeleteAgency(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// VehicleCollection is a mock implementation of db.VehicleCollection
type VehicleCollection struct {
	mock.Mock
}

func (m *VehicleCollection) InsertVehicle(ctx context.Context, vehicle *models.Vehicule) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *VehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicule), args.Error(1)
}

func (m *VehicleCollection) FindVehicles(ctx context.Context, filter db.VehicleFilter) ([]models.Vehicule, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Vehicule), args.Get(1).(int64), args.Error(2)
}

func (m *VehicleCollection) UpdateVehicle(ctx context.Context, vehicle *models.Vehicule) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *VehicleCollection) SetVehicleStatus(ctx context.Context, id string, status models.VehicleStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *VehicleCollection) SetVehiclePosition(ctx context.Context, id string, pos models.Location) error {
	args := m.Called(ctx, id, pos)
	return args.Error(0)
}

func (m *VehicleCollection) SetVehicleImage(ctx context.Context, id, url string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}

func (m *VehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *VehicleCollection) CountVehiclesByStatus(ctx context.Context, agenceID string) (map[models.VehicleStatus]int64, error) {
	args := m.Called(ctx, agenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.VehicleStatus]int64), args.Error(1)
}

// ReservationCollection is a mock implementation of db.ReservationCollection
type ReservationCollection struct {
	mock.Mock
}

func (m *ReservationCollection) InsertReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *ReservationCollection) FindReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *ReservationCollection) FindReservations(ctx context.Context, filter db.ReservationFilter) ([]models.Reservation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *ReservationCollection) FindOverlapping(ctx context.Context, vehiculeID string, start, end time.Time) ([]models.Reservation, error) {
	args := m.Called(ctx, vehiculeID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *ReservationCollection) BusyVehicleIDs(ctx context.Context, start, end time.Time) ([]string, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *ReservationCollection) UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *ReservationCollection) DeleteReservation(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ReservationCollection) HasActiveReservations(ctx context.Context, vehiculeID string) (bool, error) {
	args := m.Called(ctx, vehiculeID)
	return args.Bool(0), args.Error(1)
}

func (m *ReservationCollection) CountReservationsByStatus(ctx context.Context, agenceID string) (map[models.ReservationStatus]int64, error) {
	args := m.Called(ctx, agenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.ReservationStatus]int64), args.Error(1)
}

func (m *ReservationCollection) Revenue(ctx context.Context, agenceID string) (float64, error) {
	args := m.Called(ctx, agenceID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *ReservationCollection) DailyCounts(ctx context.Context, agenceID string, since time.Time) (map[string]int64, error) {
	args := m.Called(ctx, agenceID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *ReservationCollection) CountByVehicle(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// LockCollection is a mock implementation of db.LockCollection
type LockCollection struct {
	mock.Mock
}

func (m *LockCollection) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	args := m.Called(ctx, key, owner, ttl)
	return args.Error(0)
}

func (m *LockCollection) Release(ctx context.Context, key, owner string) error {
	args := m.Called(ctx, key, owner)
	return args.Error(0)
}

// ChallengeCollection is a mock implementation of db.ChallengeCollection
type ChallengeCollection struct {
	mock.Mock
}

func (m *ChallengeCollection) InsertChallenge(ctx context.Context, c *models.EcoChallenge) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ChallengeCollection) FindChallengeByID(ctx context.Context, id string) (*models.EcoChallenge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EcoChallenge), args.Error(1)
}

func (m *ChallengeCollection) FindChallenges(ctx context.Context, filter db.ChallengeFilter) ([]models.EcoChallenge, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EcoChallenge), args.Error(1)
}

func (m *ChallengeCollection) UpdateChallenge(ctx context.Context, c *models.EcoChallenge) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ChallengeCollection) DeleteChallenge(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ChallengeCollection) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// ParticipationCollection is a mock implementation of db.ParticipationCollection
type ParticipationCollection struct {
	mock.Mock
}

func (m *ParticipationCollection) InsertParticipation(ctx context.Context, p *models.UserEcoChallenge) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ParticipationCollection) FindParticipationByID(ctx context.Context, id string) (*models.UserEcoChallenge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEcoChallenge), args.Error(1)
}

func (m *ParticipationCollection) FindParticipations(ctx context.Context, filter db.ParticipationFilter) ([]models.UserEcoChallenge, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserEcoChallenge), args.Error(1)
}

func (m *ParticipationCollection) CountParticipants(ctx context.Context, challengeID string) (int64, error) {
	args := m.Called(ctx, challengeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ParticipationCollection) IncrementProgress(ctx context.Context, id string, value, target float64) (*models.UserEcoChallenge, error) {
	args := m.Called(ctx, id, value, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEcoChallenge), args.Error(1)
}

func (m *ParticipationCollection) SetParticipationStatus(ctx context.Context, id string, from, to models.ParticipationStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *ParticipationCollection) MarkRewardClaimed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ParticipationCollection) UnmarkRewardClaimed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ParticipationCollection) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ParticipationCollection) ParticipationAnalytics(ctx context.Context) ([]models.ChallengeAnalytics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChallengeAnalytics), args.Error(1)
}

// ProgressCollection is a mock implementation of db.ProgressCollection
type ProgressCollection struct {
	mock.Mock
}

func (m *ProgressCollection) InsertProgress(ctx context.Context, p *models.EcoChallengeProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProgressCollection) FindProgress(ctx context.Context, userChallengeID string) ([]models.EcoChallengeProgress, error) {
	args := m.Called(ctx, userChallengeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EcoChallengeProgress), args.Error(1)
}

// RewardCollection is a mock implementation of db.RewardCollection
type RewardCollection struct {
	mock.Mock
}

func (m *RewardCollection) EnsureReward(ctx context.Context, r *models.EcoChallengeReward) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}

func (m *RewardCollection) MarkClaimed(ctx context.Context, userChallengeID string) error {
	args := m.Called(ctx, userChallengeID)
	return args.Error(0)
}

func (m *RewardCollection) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeaderboardEntry), args.Error(1)
}

// TelemetryCollection is a mock implementation of db.TelemetryCollection
type TelemetryCollection struct {
	mock.Mock
}

func (m *TelemetryCollection) InsertTelemetry(ctx context.Context, telemetry *models.Telemetry) error {
	args := m.Called(ctx, telemetry)
	return args.Error(0)
}

func (m *TelemetryCollection) FindTelemetry(ctx context.Context, vehiculeID string, limit int) ([]models.Telemetry, error) {
	args := m.Called(ctx, vehiculeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Telemetry), args.Error(1)
}
