package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names.
const (
	UsersCollection            = "users"
	AgenciesCollection         = "agences"
	VehiclesCollection         = "vehicules"
	ReservationsCollection     = "reservations"
	LocksCollection            = "reservation_locks"
	ChallengesCollection       = "eco_challenges"
	ParticipationsCollection   = "user_eco_challenges"
	ProgressEntriesCollection  = "eco_challenge_progress"
	RewardsCollection          = "eco_challenge_rewards"
	TelemetrySamplesCollection = "telemetry"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrDuplicate     = errors.New("duplicate key")
	ErrInvalidID     = errors.New("invalid id")
	ErrLocked        = errors.New("resource is locked")
	ErrConflict      = errors.New("document was modified concurrently")
	ErrNilCollection = errors.New("mongo collection is nil")
)

// CollectionSource resolves a collection by name. The Manager implements it
// so stores follow reconnects; DatabaseSource pins a fixed database.
type CollectionSource interface {
	Collection(name string) *mongo.Collection
}

// DatabaseSource serves collections from a fixed database handle.
type DatabaseSource struct {
	DB *mongo.Database
}

// Collection returns the named collection, or nil when DB is nil.
func (s DatabaseSource) Collection(name string) *mongo.Collection {
	if s.DB == nil {
		return nil
	}
	return s.DB.Collection(name)
}

func resolve(src CollectionSource, name string) (*mongo.Collection, error) {
	if src == nil {
		return nil, ErrNilCollection
	}
	coll := src.Collection(name)
	if coll == nil {
		return nil, ErrNilCollection
	}
	return coll, nil
}

// ObjectID parses a hex id, wrapping failures in ErrInvalidID.
func ObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// mapErr converts driver errors into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
	AddEcoScore(ctx context.Context, id string, points int) error
	CountUsersByRole(ctx context.Context) (map[models.Role]int64, error)
}

// UserFilter narrows FindUsers. Zero values match everything.
type UserFilter struct {
	Role     models.Role
	Active   *bool
	AgenceID string
}

// AgencyCollection defines the interface for agency operations.
type AgencyCollection interface {
	InsertAgency(ctx context.Context, agence *models.Agence) error
	FindAgencyByID(ctx context.Context, id string) (*models.Agence, error)
	FindAgencies(ctx context.Context, filter AgencyFilter) ([]models.Agence, error)
	UpdateAgency(ctx context.Context, agence *models.Agence) error
	DeleteAgency(ctx context.Context, id string) error
}

// AgencyFilter narrows FindAgencies.
type AgencyFilter struct {
	Ville  string
	Active *bool
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle *models.Vehicule) error
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicule, error)
	FindVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicule, int64, error)
	UpdateVehicle(ctx context.Context, vehicle *models.Vehicule) error
	SetVehicleStatus(ctx context.Context, id string, status models.VehicleStatus) error
	SetVehiclePosition(ctx context.Context, id string, pos models.Location) error
	SetVehicleImage(ctx context.Context, id, url string) error
	DeleteVehicle(ctx context.Context, id string) error
	CountVehiclesByStatus(ctx context.Context, agenceID string) (map[models.VehicleStatus]int64, error)
}

// VehicleFilter narrows FindVehicles. PageSize 0 returns every match.
type VehicleFilter struct {
	Carburant    models.Carburant
	Transmission models.Transmission
	Marque       string
	Statut       models.VehicleStatus
	AgenceID     string
	PrixMin      *float64
	PrixMax      *float64
	PlacesMin    int
	ExcludeIDs   []string
	Page         int
	PageSize     int
}

// ReservationCollection defines the interface for reservation operations.
type ReservationCollection interface {
	InsertReservation(ctx context.Context, r *models.Reservation) error
	FindReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	FindReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error)
	FindOverlapping(ctx context.Context, vehiculeID string, start, end time.Time) ([]models.Reservation, error)
	BusyVehicleIDs(ctx context.Context, start, end time.Time) ([]string, error)
	UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) error
	DeleteReservation(ctx context.Context, id string) error
	HasActiveReservations(ctx context.Context, vehiculeID string) (bool, error)
	CountReservationsByStatus(ctx context.Context, agenceID string) (map[models.ReservationStatus]int64, error)
	Revenue(ctx context.Context, agenceID string) (float64, error)
	DailyCounts(ctx context.Context, agenceID string, since time.Time) (map[string]int64, error)
	CountByVehicle(ctx context.Context) (map[string]int64, error)
}

// ReservationFilter narrows FindReservations.
type ReservationFilter struct {
	UserID     string
	AgenceID   string
	VehiculeID string
	Statut     models.ReservationStatus
}

// LockCollection provides advisory locks with an expiry.
type LockCollection interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) error
	Release(ctx context.Context, key, owner string) error
}

// ChallengeCollection defines the interface for eco-challenge definitions.
type ChallengeCollection interface {
	InsertChallenge(ctx context.Context, c *models.EcoChallenge) error
	FindChallengeByID(ctx context.Context, id string) (*models.EcoChallenge, error)
	FindChallenges(ctx context.Context, filter ChallengeFilter) ([]models.EcoChallenge, error)
	UpdateChallenge(ctx context.Context, c *models.EcoChallenge) error
	DeleteChallenge(ctx context.Context, id string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// ChallengeFilter narrows FindChallenges. OpenAt keeps only active challenges
// whose validity window contains the given time.
type ChallengeFilter struct {
	Type       models.ChallengeType
	Difficulty models.Difficulty
	Featured   *bool
	OpenAt     *time.Time
}

// ParticipationCollection defines the interface for user participations.
type ParticipationCollection interface {
	InsertParticipation(ctx context.Context, p *models.UserEcoChallenge) error
	FindParticipationByID(ctx context.Context, id string) (*models.UserEcoChallenge, error)
	FindParticipations(ctx context.Context, filter ParticipationFilter) ([]models.UserEcoChallenge, error)
	CountParticipants(ctx context.Context, challengeID string) (int64, error)
	IncrementProgress(ctx context.Context, id string, value, target float64) (*models.UserEcoChallenge, error)
	SetParticipationStatus(ctx context.Context, id string, from, to models.ParticipationStatus) error
	MarkRewardClaimed(ctx context.Context, id string) error
	UnmarkRewardClaimed(ctx context.Context, id string) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	ParticipationAnalytics(ctx context.Context) ([]models.ChallengeAnalytics, error)
}

// ParticipationFilter narrows FindParticipations.
type ParticipationFilter struct {
	UserID      string
	ChallengeID string
	Statuses    []models.ParticipationStatus
}

// ProgressCollection stores individual progress entries.
type ProgressCollection interface {
	InsertProgress(ctx context.Context, p *models.EcoChallengeProgress) error
	FindProgress(ctx context.Context, userChallengeID string) ([]models.EcoChallengeProgress, error)
}

// RewardCollection stores rewards, at most one per participation.
type RewardCollection interface {
	EnsureReward(ctx context.Context, r *models.EcoChallengeReward) (bool, error)
	MarkClaimed(ctx context.Context, userChallengeID string) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// TelemetryCollection defines the interface for telemetry data operations.
type TelemetryCollection interface {
	InsertTelemetry(ctx context.Context, telemetry *models.Telemetry) error
	FindTelemetry(ctx context.Context, vehiculeID string, limit int) ([]models.Telemetry, error)
}
