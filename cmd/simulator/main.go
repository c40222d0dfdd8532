// Command simulator drives a fake VitaRenta fleet: it registers vehicles
// through the API and publishes their telemetry over MQTT or HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// settings holds the simulator configuration read from the environment.
type settings struct {
	APIURL     string
	Token      string
	Email      string
	Password   string
	AgenceID   string
	FleetSize  int
	Interval   time.Duration
	Broker     string
	Topic      string
	OSRMURL    string
	OSRMPerSec float64
}

func loadSettings(getenv func(string) string) settings {
	s := settings{
		APIURL:     "http://localhost:8080/api",
		Token:      getenv("SIM_AUTH_TOKEN"),
		Email:      getenv("SIM_EMAIL"),
		Password:   getenv("SIM_PASSWORD"),
		AgenceID:   getenv("SIM_AGENCE_ID"),
		FleetSize:  10,
		Interval:   2 * time.Second,
		Broker:     getenv("MQTT_BROKER"),
		Topic:      "vitarenta/telemetry",
		OSRMURL:    "https://router.project-osrm.org",
		OSRMPerSec: 1,
	}
	if v := getenv("API_BASE_URL"); v != "" {
		s.APIURL = v
	}
	if v := getenv("FLEET_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.FleetSize = n
		}
	}
	if v := getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			s.Interval = time.Duration(n) * time.Second
		}
	}
	if v := getenv("MQTT_TOPIC_PREFIX"); v != "" {
		s.Topic = v
	}
	if v := getenv("OSRM_URL"); v != "" {
		s.OSRMURL = v
	}
	if v := getenv("OSRM_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			s.OSRMPerSec = f
		}
	}
	return s
}

// createFleet registers up to size vehicles and returns their initial state.
func createFleet(ctx context.Context, api *apiClient, s settings) []*vehicleState {
	states := make([]*vehicleState, 0, s.FleetSize)
	for i := 0; i < s.FleetSize; i++ {
		v := newSimVehicle(s.AgenceID)
		id, err := api.CreateVehicle(ctx, v)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		log.WithFields(log.Fields{
			"vehicule_id": id,
			"marque":      v.Marque,
			"modele":      v.Modele,
			"carburant":   v.Carburant,
		}).Info("Created vehicle")
		states = append(states, newVehicleState(id, v.Carburant, randomLocation()))
	}
	return states
}

func run(ctx context.Context, s settings) error {
	api := newAPIClient(s.APIURL, s.Token)
	if api.token == "" {
		if s.Email == "" {
			return errors.New("set SIM_AUTH_TOKEN or SIM_EMAIL and SIM_PASSWORD")
		}
		if err := api.Login(ctx, s.Email, s.Password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	var pub publisher = &httpPublisher{api: api}
	if s.Broker != "" {
		mp, err := newMQTTPublisher(s.Broker, s.Topic)
		if err != nil {
			return err
		}
		pub = mp
	}
	defer pub.Close()

	log.WithFields(log.Fields{
		"fleet_size": s.FleetSize,
		"api_url":    s.APIURL,
		"interval":   s.Interval,
		"transport":  pub.String(),
	}).Info("Starting fleet simulation")

	states := createFleet(ctx, api, s)
	log.WithField("created_vehicles", len(states)).Info("Vehicle creation completed")
	if len(states) == 0 {
		return errors.New("no vehicles created, check the token role and API reachability")
	}

	routes := newRouteClient(s.OSRMURL, s.OSRMPerSec)
	var wg sync.WaitGroup
	for _, st := range states {
		wg.Add(1)
		go func(st *vehicleState) {
			defer wg.Done()
			simulateVehicle(ctx, st, routes, pub, s.Interval)
		}(st)
	}
	log.Info("Telemetry simulation started")
	wg.Wait()
	return nil
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loadSettings(os.Getenv)); err != nil {
		log.WithError(err).Fatal("Simulator stopped")
	}
	log.Info("Simulator stopped")
}
