// Package telemetry ingests vehicle telemetry from HTTP and MQTT, stores it,
// tracks vehicle positions and fans samples out to live websocket clients.
package telemetry

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/metrics"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Broadcaster receives every stored sample together with the owning agency.
type Broadcaster interface {
	Broadcast(agenceID string, sample *models.Telemetry)
}

// DrivingRecorder credits distance driven by a renter.
type DrivingRecorder interface {
	RecordDriving(ctx context.Context, userID string, v *models.Vehicule, km float64) (int, error)
}

// MaxDrivingStepKm bounds the distance credited between two samples. Larger
// jumps are treated as a relocated box rather than driving.
const MaxDrivingStepKm = 50.0

// Pipeline validates, stores and publishes telemetry samples.
type Pipeline struct {
	vehicles     db.VehicleCollection
	samples      db.TelemetryCollection
	hub          Broadcaster
	reservations db.ReservationCollection
	driving      DrivingRecorder
	now          func() time.Time
}

// NewPipeline returns a Pipeline. hub may be nil.
func NewPipeline(vehicles db.VehicleCollection, samples db.TelemetryCollection, hub Broadcaster) *Pipeline {
	return &Pipeline{vehicles: vehicles, samples: samples, hub: hub, now: time.Now}
}

// TrackDriving makes Ingest credit the distance between a vehicle's last
// known position and each new sample to the renter holding a confirmed
// reservation at the sample's time.
func (p *Pipeline) TrackDriving(reservations db.ReservationCollection, recorder DrivingRecorder) {
	p.reservations = reservations
	p.driving = recorder
}

// Validate checks a sample and fills its timestamp when missing.
func (p *Pipeline) Validate(t *models.Telemetry) error {
	if verr := validation.ValidateStruct(t); verr != nil {
		return verr
	}
	if !t.Location.Valid() {
		return validation.NewFieldError("location", "lat must be within [-90, 90] and lon within [-180, 180]")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = p.now().UTC()
	}
	return nil
}

// Ingest stores one sample received from source under a new id. The
// vehicle must exist.
// Position updates and broadcasts are best effort once the sample is stored.
func (p *Pipeline) Ingest(ctx context.Context, t *models.Telemetry, source string) error {
	if err := p.Validate(t); err != nil {
		metrics.TelemetryRejected.WithLabelValues(source).Inc()
		return err
	}
	v, err := p.vehicles.FindVehicleByID(ctx, t.VehiculeID)
	if err != nil {
		metrics.TelemetryRejected.WithLabelValues(source).Inc()
		return fmt.Errorf("find vehicle %s: %w", t.VehiculeID, err)
	}

	t.ID = primitive.NilObjectID
	t.Source = source
	if err := p.samples.InsertTelemetry(ctx, t); err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	metrics.TelemetryIngested.WithLabelValues(source).Inc()

	if err := p.vehicles.SetVehiclePosition(ctx, t.VehiculeID, t.Location); err != nil {
		log.WithError(err).WithField("vehicule_id", t.VehiculeID).Warn("Failed to update vehicle position")
	}
	if p.driving != nil && v.Position != nil {
		p.creditDriving(ctx, v, v.Position.DistanceKm(t.Location), t.Timestamp)
	}
	if p.hub != nil {
		p.hub.Broadcast(v.AgenceID, t)
	}
	return nil
}

func (p *Pipeline) creditDriving(ctx context.Context, v *models.Vehicule, km float64, at time.Time) {
	if km <= 0 || km > MaxDrivingStepKm {
		return
	}
	logger := log.WithField("vehicule_id", v.ID.Hex())
	current, err := p.reservations.FindOverlapping(ctx, v.ID.Hex(), at, at.Add(time.Second))
	if err != nil {
		logger.WithError(err).Warn("Failed to find renter for telemetry")
		return
	}
	for _, r := range current {
		if r.Statut != models.ReservationConfirmee {
			continue
		}
		if _, err := p.driving.RecordDriving(ctx, r.UserID, v, km); err != nil {
			logger.WithError(err).WithField("user_id", r.UserID).Warn("Failed to record driving progress")
		}
		return
	}
}

// Recent returns the latest samples of a vehicle, newest first.
func (p *Pipeline) Recent(ctx context.Context, vehiculeID string, limit int) ([]models.Telemetry, error) {
	return p.samples.FindTelemetry(ctx, vehiculeID, limit)
}
