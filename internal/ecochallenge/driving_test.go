package ecochallenge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDrivingCredit(t *testing.T) {
	electric := &models.Vehicule{Carburant: models.CarburantElectrique}
	hybrid := &models.Vehicule{Carburant: models.CarburantHybride, EmissionsCO2: 90}
	diesel := &models.Vehicule{Carburant: models.CarburantDiesel, EmissionsCO2: 140}

	evKm := &models.EcoChallenge{Type: models.ChallengeElectricUsage, Unit: "km"}
	co2 := &models.EcoChallenge{Type: models.ChallengeCO2Reduction, Unit: "kg_co2"}
	ecoDriving := &models.EcoChallenge{Type: models.ChallengeEcoDriving, Unit: "percent"}

	tests := []struct {
		name string
		c    *models.EcoChallenge
		v    *models.Vehicule
		km   float64
		want float64
	}{
		{"electric km", evKm, electric, 12.5, 12.5},
		{"hybrid does not count as electric", evKm, hybrid, 10, 0},
		{"co2 saved by electric", co2, electric, 10, 1.2},
		{"co2 saved by hybrid", co2, hybrid, 10, 0.3},
		{"no saving above baseline", co2, diesel, 10, 0},
		{"untracked challenge", ecoDriving, electric, 10, 0},
		{"no distance", evKm, electric, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DrivingCredit(tt.c, tt.v, tt.km), 1e-9)
		})
	}
}

func TestService_RecordDriving(t *testing.T) {
	f := newFixture(t)
	v := &models.Vehicule{ID: primitive.NewObjectID(), Carburant: models.CarburantElectrique}

	tracked := f.participation(models.ParticipationActive)
	untracked := f.participation(models.ParticipationActive)
	untrackedChallenge := &models.EcoChallenge{ID: primitive.NewObjectID(), Type: models.ChallengeFuelEfficiency, Unit: "l_100km", TargetValue: 5}
	untracked.ChallengeID = untrackedChallenge.ID.Hex()

	after := *tracked
	after.Progress = 8

	f.participations.On("FindParticipations", mock.Anything, db.ParticipationFilter{
		UserID:   "user-1",
		Statuses: []models.ParticipationStatus{models.ParticipationActive},
	}).Return([]models.UserEcoChallenge{*tracked, *untracked}, nil)
	f.challenges.On("FindChallengeByID", mock.Anything, f.challenge.ID.Hex()).Return(f.challenge, nil)
	f.challenges.On("FindChallengeByID", mock.Anything, untrackedChallenge.ID.Hex()).Return(untrackedChallenge, nil)
	f.participations.On("IncrementProgress", mock.Anything, tracked.ID.Hex(), 8.0, 100.0).Return(&after, nil)
	f.progress.On("InsertProgress", mock.Anything, mock.MatchedBy(func(e *models.EcoChallengeProgress) bool {
		return e.UserChallengeID == tracked.ID.Hex() && e.EntryType == models.ProgressTelemetry && e.Value == 8
	})).Return(nil)

	n, err := f.svc.RecordDriving(context.Background(), "user-1", v, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.participations.AssertNotCalled(t, "IncrementProgress", mock.Anything, untracked.ID.Hex(), mock.Anything, mock.Anything)
}

func TestService_RecordDriving_CompletesChallenge(t *testing.T) {
	f := newFixture(t)
	v := &models.Vehicule{ID: primitive.NewObjectID(), Carburant: models.CarburantElectrique}
	p := f.participation(models.ParticipationActive)
	p.Progress = 95
	id := p.ID.Hex()
	after := *p
	after.Progress = 101

	f.participations.On("FindParticipations", mock.Anything, mock.Anything).Return([]models.UserEcoChallenge{*p}, nil)
	f.challenges.On("FindChallengeByID", mock.Anything, f.challenge.ID.Hex()).Return(f.challenge, nil)
	f.participations.On("IncrementProgress", mock.Anything, id, 6.0, 100.0).Return(&after, nil)
	f.progress.On("InsertProgress", mock.Anything, mock.Anything).Return(nil)
	f.participations.On("SetParticipationStatus", mock.Anything, id, models.ParticipationActive, models.ParticipationCompleted).Return(nil)
	f.rewards.On("EnsureReward", mock.Anything, mock.Anything).Return(true, nil)

	n, err := f.svc.RecordDriving(context.Background(), "user-1", v, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_RecordDriving_SkipsOverdue(t *testing.T) {
	f := newFixture(t)
	v := &models.Vehicule{ID: primitive.NewObjectID(), Carburant: models.CarburantElectrique}
	p := f.participation(models.ParticipationActive)
	p.Deadline = f.now.Add(-time.Hour)

	f.participations.On("FindParticipations", mock.Anything, mock.Anything).Return([]models.UserEcoChallenge{*p}, nil)
	f.challenges.On("FindChallengeByID", mock.Anything, f.challenge.ID.Hex()).Return(f.challenge, nil)
	f.participations.On("SetParticipationStatus", mock.Anything, p.ID.Hex(), models.ParticipationActive, models.ParticipationExpired).Return(nil)

	n, err := f.svc.RecordDriving(context.Background(), "user-1", v, 6)
	require.NoError(t, err)
	assert.Zero(t, n)
	f.participations.AssertNotCalled(t, "IncrementProgress", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RecordDriving_NoDistance(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.RecordDriving(context.Background(), "user-1", &models.Vehicule{}, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	f.participations.AssertNotCalled(t, "FindParticipations", mock.Anything, mock.Anything)
}
