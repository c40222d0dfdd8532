package ecochallenge

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
)

// BaselineCO2PerKm is the reference emission rate, in g/km, that CO2
// savings are measured against.
const BaselineCO2PerKm = 120.0

// DrivingCredit converts km driven in v into progress for challenge c.
// Zero means the challenge does not track this kind of driving.
//
//   - electric_usage (km): distance driven in an electric vehicle
//   - co2_reduction (kg_co2): emissions avoided against BaselineCO2PerKm
func DrivingCredit(c *models.EcoChallenge, v *models.Vehicule, km float64) float64 {
	if km <= 0 {
		return 0
	}
	switch {
	case c.Type == models.ChallengeElectricUsage && c.Unit == "km":
		if v.Carburant == models.CarburantElectrique {
			return km
		}
	case c.Type == models.ChallengeCO2Reduction && c.Unit == "kg_co2":
		if saved := BaselineCO2PerKm - v.EmissionsCO2; saved > 0 {
			return km * saved / 1000
		}
	}
	return 0
}

// RecordDriving credits km driven by userID in v to the user's active
// participations that track it, as telemetry progress entries. It returns
// the number of participations credited.
func (s *Service) RecordDriving(ctx context.Context, userID string, v *models.Vehicule, km float64) (int, error) {
	if km <= 0 {
		return 0, nil
	}
	active, err := s.participations.FindParticipations(ctx, db.ParticipationFilter{
		UserID:   userID,
		Statuses: []models.ParticipationStatus{models.ParticipationActive},
	})
	if err != nil {
		return 0, fmt.Errorf("find participations: %w", err)
	}

	credited := 0
	var errs []error
	for i := range active {
		p := &active[i]
		c, err := s.challenges.FindChallengeByID(ctx, p.ChallengeID)
		if err != nil {
			errs = append(errs, fmt.Errorf("find challenge %s: %w", p.ChallengeID, err))
			continue
		}
		value := DrivingCredit(c, v, km)
		if value <= 0 {
			continue
		}
		if err := s.ensureActive(ctx, p); err != nil {
			continue
		}
		if _, err := s.record(ctx, p, c, value, "", models.ProgressTelemetry); err != nil {
			if errors.Is(err, ErrNotActive) {
				continue
			}
			errs = append(errs, fmt.Errorf("record progress %s: %w", p.ID.Hex(), err))
			continue
		}
		credited++
	}

	if credited > 0 {
		log.WithFields(log.Fields{
			"user_id":     userID,
			"vehicule_id": v.ID.Hex(),
			"km":          km,
			"credited":    credited,
		}).Debug("Telemetry progress recorded")
	}
	return credited, errors.Join(errs...)
}
