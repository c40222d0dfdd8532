// Package analytics computes reporting figures: the reservation demand
// forecast, vehicle recommendations and the admin dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
)

// Defaults and bounds for query parameters.
const (
	DefaultHorizon         = 7
	MaxHorizon             = 90
	DefaultHistory         = 90
	MaxHistory             = 365
	DefaultRecommendations = 10
	MaxRecommendations     = 50
)

// Dashboard aggregates platform-wide totals.
type Dashboard struct {
	Users        map[models.Role]int64              `json:"users"`
	Vehicles     map[models.VehicleStatus]int64     `json:"vehicles"`
	Reservations map[models.ReservationStatus]int64 `json:"reservations"`
	Revenue      float64                            `json:"revenue"`
}

// AgencyStats aggregates one agency's fleet and bookings.
type AgencyStats struct {
	AgenceID     string                             `json:"agence_id"`
	Vehicles     map[models.VehicleStatus]int64     `json:"vehicles"`
	Reservations map[models.ReservationStatus]int64 `json:"reservations"`
	Revenue      float64                            `json:"revenue"`
}

// Service reads the stores to build reports.
type Service struct {
	users        db.UserCollection
	vehicles     db.VehicleCollection
	reservations db.ReservationCollection
	now          func() time.Time
}

// NewService returns an analytics Service.
func NewService(users db.UserCollection, vehicles db.VehicleCollection, reservations db.ReservationCollection) *Service {
	return &Service{users: users, vehicles: vehicles, reservations: reservations, now: time.Now}
}

func clamp(v, def, hi int) int {
	if v <= 0 {
		return def
	}
	if v > hi {
		return hi
	}
	return v
}

// Forecast predicts daily reservation counts for the next horizon days from
// the last history days. An empty agenceID covers every agency.
func (s *Service) Forecast(ctx context.Context, agenceID string, horizon, history int) (*DemandForecast, error) {
	horizon = clamp(horizon, DefaultHorizon, MaxHorizon)
	history = clamp(history, DefaultHistory, MaxHistory)

	today := truncateDay(s.now())
	since := today.AddDate(0, 0, -(history - 1))
	counts, err := s.reservations.DailyCounts(ctx, agenceID, since)
	if err != nil {
		return nil, fmt.Errorf("daily reservation counts: %w", err)
	}

	days := fillDays(counts, today, history)
	series := make([]float64, len(days))
	for i, d := range days {
		series[i] = float64(d.Count)
	}

	values := Holt(series, horizon, Alpha, Beta)
	forecast := make([]ForecastPoint, len(values))
	for i, v := range values {
		forecast[i] = ForecastPoint{Date: today.AddDate(0, 0, i+1).Format(dayLayout), Value: v}
	}

	log.WithFields(log.Fields{
		"agence_id": agenceID,
		"history":   history,
		"horizon":   horizon,
	}).Debug("Computed demand forecast")
	return &DemandForecast{AgenceID: agenceID, History: days, Forecast: forecast}, nil
}

// Recommend ranks the available vehicles for user.
func (s *Service) Recommend(ctx context.Context, user *models.User, limit int) ([]Recommendation, error) {
	limit = clamp(limit, DefaultRecommendations, MaxRecommendations)

	vehicles, _, err := s.vehicles.FindVehicles(ctx, db.VehicleFilter{Statut: models.VehicleDisponible})
	if err != nil {
		return nil, fmt.Errorf("find available vehicles: %w", err)
	}
	counts, err := s.reservations.CountByVehicle(ctx)
	if err != nil {
		return nil, fmt.Errorf("count reservations by vehicle: %w", err)
	}
	return Rank(user, vehicles, counts, limit), nil
}

// Dashboard collects platform-wide totals.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	users, err := s.users.CountUsersByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	stats, err := s.AgencyStats(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Users:        users,
		Vehicles:     stats.Vehicles,
		Reservations: stats.Reservations,
		Revenue:      stats.Revenue,
	}, nil
}

// AgencyStats counts vehicles and reservations by status and sums the
// revenue of confirmed and completed reservations. An empty agenceID covers
// every agency.
func (s *Service) AgencyStats(ctx context.Context, agenceID string) (*AgencyStats, error) {
	vehicles, err := s.vehicles.CountVehiclesByStatus(ctx, agenceID)
	if err != nil {
		return nil, fmt.Errorf("count vehicles: %w", err)
	}
	reservations, err := s.reservations.CountReservationsByStatus(ctx, agenceID)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	revenue, err := s.reservations.Revenue(ctx, agenceID)
	if err != nil {
		return nil, fmt.Errorf("revenue: %w", err)
	}
	return &AgencyStats{
		AgenceID:     agenceID,
		Vehicles:     vehicles,
		Reservations: reservations,
		Revenue:      revenue,
	}, nil
}
