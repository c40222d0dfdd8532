package main

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/models"
)

// French cities the fleet drives between.
var cities = []models.Location{
	{Lat: 48.8566, Lon: 2.3522},  // Paris
	{Lat: 45.7640, Lon: 4.8357},  // Lyon
	{Lat: 43.2965, Lon: 5.3698},  // Marseille
	{Lat: 43.6047, Lon: 1.4442},  // Toulouse
	{Lat: 43.7102, Lon: 7.2620},  // Nice
	{Lat: 47.2184, Lon: -1.5536}, // Nantes
	{Lat: 44.8378, Lon: -0.5792}, // Bordeaux
	{Lat: 50.6292, Lon: 3.0573},  // Lille
	{Lat: 48.5734, Lon: 7.7521},  // Strasbourg
	{Lat: 43.6108, Lon: 3.8767},  // Montpellier
	{Lat: 48.1173, Lon: -1.6778}, // Rennes
	{Lat: 45.1885, Lon: 5.7245},  // Grenoble
}

type catalogueEntry struct {
	marque, modele string
	carburant      models.Carburant
	prix           float64
	co2            float64
}

var catalogue = []catalogueEntry{
	{"Renault", "Zoe", models.CarburantElectrique, 45, 0},
	{"Tesla", "Model 3", models.CarburantElectrique, 95, 0},
	{"Peugeot", "e-208", models.CarburantElectrique, 50, 0},
	{"Toyota", "Yaris Hybrid", models.CarburantHybride, 42, 92},
	{"Toyota", "C-HR", models.CarburantHybride, 60, 110},
	{"Peugeot", "308", models.CarburantDiesel, 48, 118},
	{"Renault", "Clio", models.CarburantEssence, 35, 125},
	{"Citroen", "C3", models.CarburantEssence, 33, 121},
}

func jitterLocation(base models.Location, meters float64) models.Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func randomLocation() models.Location {
	return jitterLocation(cities[rand.Intn(len(cities))], 500)
}

// newSimVehicle picks a catalogue model with a unique plate.
func newSimVehicle(agenceID string) *models.Vehicule {
	e := catalogue[rand.Intn(len(catalogue))]
	transmission := models.TransmissionManuelle
	if e.carburant == models.CarburantElectrique || e.carburant == models.CarburantHybride {
		transmission = models.TransmissionAutomatique
	}
	return &models.Vehicule{
		Marque:          e.marque,
		Modele:          e.modele,
		Carburant:       e.carburant,
		Transmission:    transmission,
		NombrePlaces:    5,
		Annee:           2020 + rand.Intn(5),
		Kilometrage:     float64(5000 + rand.Intn(60000)),
		Immatriculation: "SIM-" + strings.ToUpper(uuid.NewString()[:8]),
		EmissionsCO2:    e.co2,
		PrixParJour:     e.prix,
		Statut:          models.VehicleDisponible,
		AgenceID:        agenceID,
		Description:     "Simulated vehicle",
	}
}

type vehicleRoute struct {
	Points    []models.Location
	SegIndex  int
	SegOffset float64 // km along the current segment
}

type vehicleState struct {
	VehicleID  string
	Carburant  models.Carburant
	Position   models.Location
	SpeedKmh   float64
	FuelPct    float64
	BatteryPct float64
	Route      *vehicleRoute
}

func newVehicleState(id string, carburant models.Carburant, start models.Location) *vehicleState {
	return &vehicleState{
		VehicleID:  id,
		Carburant:  carburant,
		Position:   start,
		SpeedKmh:   30 + rand.Float64()*30,
		FuelPct:    50 + rand.Float64()*50,
		BatteryPct: 50 + rand.Float64()*50,
	}
}

func (s *vehicleState) electric() bool { return s.Carburant == models.CarburantElectrique }

func lerp(a, b models.Location, t float64) models.Location {
	return models.Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lon: a.Lon + (b.Lon-a.Lon)*t}
}

// router is the part of routeClient the movement code needs.
type router interface {
	Route(ctx context.Context, start, end models.Location) ([]models.Location, error)
}

// planRoute heads for another city, or loops around the current position
// when no route can be fetched.
func planRoute(ctx context.Context, s *vehicleState, routes router) {
	start := s.Position
	end := jitterLocation(start, 2000)
	for i := 0; i < 10; i++ {
		cand := cities[rand.Intn(len(cities))]
		if start.DistanceKm(cand) > 50 {
			end = jitterLocation(cand, 500)
			break
		}
	}
	pts, err := routes.Route(ctx, start, end)
	if err != nil {
		log.WithError(err).WithField("vehicule_id", s.VehicleID).Debug("Route unavailable, using local loop")
		s.Route = &vehicleRoute{Points: []models.Location{start, jitterLocation(start, 2000)}}
		return
	}
	s.Route = &vehicleRoute{Points: pts}
}

func stepAlongRoute(ctx context.Context, s *vehicleState, routes router, tick time.Duration) {
	if s.Route == nil || len(s.Route.Points) < 2 {
		planRoute(ctx, s, routes)
	}
	remKm := s.SpeedKmh * tick.Hours()
	for remKm > 0 && s.Route.SegIndex < len(s.Route.Points)-1 {
		a := s.Route.Points[s.Route.SegIndex]
		b := s.Route.Points[s.Route.SegIndex+1]
		segLen := a.DistanceKm(b)
		left := segLen - s.Route.SegOffset
		if remKm >= left {
			s.Position = b
			s.Route.SegIndex++
			s.Route.SegOffset = 0
			remKm -= left
			continue
		}
		t := math.Min(math.Max((s.Route.SegOffset+remKm)/segLen, 0), 1)
		s.Position = lerp(a, b, t)
		s.Route.SegOffset += remKm
		remKm = 0
	}
	if s.Route.SegIndex >= len(s.Route.Points)-1 {
		planRoute(ctx, s, routes)
	}
}

// advance moves the vehicle by one tick and burns energy.
func advance(ctx context.Context, s *vehicleState, routes router, tick time.Duration) {
	s.SpeedKmh = math.Min(math.Max(s.SpeedKmh+(rand.Float64()*2-1)*1.5, 15), 90)
	stepAlongRoute(ctx, s, routes, tick)

	km := s.SpeedKmh * tick.Hours()
	if s.electric() {
		s.BatteryPct -= km * 0.8
		if s.BatteryPct < 5 {
			s.BatteryPct = 100
		}
		return
	}
	s.FuelPct -= km * 0.4
	if s.FuelPct < 5 {
		s.FuelPct = 100
	}
}

func telemetryFromState(s *vehicleState, now time.Time) *models.Telemetry {
	t := &models.Telemetry{
		VehiculeID: s.VehicleID,
		Timestamp:  now.UTC(),
		Location:   s.Position,
		Speed:      math.Round(s.SpeedKmh*10) / 10,
	}
	switch s.Carburant {
	case models.CarburantElectrique:
		battery := s.BatteryPct
		t.BatteryLevel = &battery
	case models.CarburantHybride:
		fuel, battery := s.FuelPct, s.BatteryPct
		t.FuelLevel, t.BatteryLevel = &fuel, &battery
		t.Emissions = 60 + 0.15*s.SpeedKmh
	default:
		fuel := s.FuelPct
		t.FuelLevel = &fuel
		t.Emissions = 120 + 0.3*s.SpeedKmh
	}
	return t
}

func simulateVehicle(ctx context.Context, s *vehicleState, routes router, pub publisher, interval time.Duration) {
	if s.Route == nil {
		planRoute(ctx, s, routes)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			advance(ctx, s, routes, interval)
			if err := pub.Publish(ctx, telemetryFromState(s, now)); err != nil && ctx.Err() == nil {
				log.WithError(err).WithField("vehicule_id", s.VehicleID).Error("Failed to publish telemetry")
				continue
			}
			log.WithField("vehicule_id", s.VehicleID).Debug("Sent telemetry")
		}
	}
}
