package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := loadSettings(env(nil))
		assert.Equal(t, "http://localhost:8080/api", s.APIURL)
		assert.Equal(t, 10, s.FleetSize)
		assert.Equal(t, 2*time.Second, s.Interval)
		assert.Empty(t, s.Broker)
		assert.Equal(t, "vitarenta/telemetry", s.Topic)
	})

	t.Run("overrides", func(t *testing.T) {
		s := loadSettings(env(map[string]string{
			"API_BASE_URL":     "http://api:8080/api",
			"FLEET_SIZE":       "3",
			"SIM_TICK_SECONDS": "5",
			"MQTT_BROKER":      "tcp://mosquitto:1883",
			"SIM_AUTH_TOKEN":   "tok",
			"OSRM_RPS":         "0.5",
		}))
		assert.Equal(t, "http://api:8080/api", s.APIURL)
		assert.Equal(t, 3, s.FleetSize)
		assert.Equal(t, 5*time.Second, s.Interval)
		assert.Equal(t, "tcp://mosquitto:1883", s.Broker)
		assert.Equal(t, "tok", s.Token)
		assert.InDelta(t, 0.5, s.OSRMPerSec, 1e-9)
	})

	t.Run("invalid values keep defaults", func(t *testing.T) {
		s := loadSettings(env(map[string]string{"FLEET_SIZE": "many", "SIM_TICK_SECONDS": "0"}))
		assert.Equal(t, 10, s.FleetSize)
		assert.Equal(t, 2*time.Second, s.Interval)
	})
}

// fakeAPI serves the few endpoints the simulator calls.
type fakeAPI struct {
	vehicleStatus int
	vehicles      atomic.Int32
	samples       atomic.Int32
	lastAuth      atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.LoginResponse{Token: "issued-token"})
	})
	mux.HandleFunc("/api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		if f.vehicleStatus != 0 {
			w.WriteHeader(f.vehicleStatus)
			return
		}
		var v models.Vehicule
		require.NoError(t, json.NewDecoder(r.Body).Decode(&v))
		f.vehicles.Add(1)
		v.ID = primitive.NewObjectID()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(v)
	})
	mux.HandleFunc("/api/telemetry", func(w http.ResponseWriter, r *http.Request) {
		var s models.Telemetry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&s))
		f.samples.Add(1)
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func TestAPIClient_LoginAndCreateVehicle(t *testing.T) {
	f := &fakeAPI{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	api := newAPIClient(srv.URL+"/api/", "")

	require.NoError(t, api.Login(context.Background(), "ops@vitarenta.fr", "secret"))
	id, err := api.CreateVehicle(context.Background(), newSimVehicle(""))

	require.NoError(t, err)
	assert.Len(t, id, 24)
	assert.Equal(t, "Bearer issued-token", f.lastAuth.Load())
}

func TestAPIClient_Errors(t *testing.T) {
	f := &fakeAPI{vehicleStatus: http.StatusForbidden}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	api := newAPIClient(srv.URL+"/api", "tok")

	err := api.Login(context.Background(), "ops@vitarenta.fr", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = api.CreateVehicle(context.Background(), newSimVehicle(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func osrmServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouteClient_Route(t *testing.T) {
	var hits atomic.Int32
	srv := osrmServer(t, http.StatusOK,
		`{"routes":[{"geometry":{"coordinates":[[2.35,48.85],[2.36,48.86],[4.83,45.76]]}}]}`, &hits)
	rc := newRouteClient(srv.URL, 1000)

	pts, err := rc.Route(context.Background(), cities[0], cities[1])

	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, models.Location{Lat: 48.85, Lon: 2.35}, pts[0])
	assert.Equal(t, int32(1), hits.Load())
}

func TestRouteClient_NoRouteDoesNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := osrmServer(t, http.StatusOK, `{"routes":[]}`, &hits)
	rc := newRouteClient(srv.URL, 1000)

	for i := 0; i < 5; i++ {
		_, err := rc.Route(context.Background(), cities[0], cities[1])
		assert.ErrorIs(t, err, errNoRoute)
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestRouteClient_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := osrmServer(t, http.StatusBadGateway, "", &hits)
	rc := newRouteClient(srv.URL, 1000)

	for i := 0; i < 3; i++ {
		_, err := rc.Route(context.Background(), cities[0], cities[1])
		require.Error(t, err)
	}
	_, err := rc.Route(context.Background(), cities[0], cities[1])

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load())
}

type stubRouter struct {
	points []models.Location
	err    error
	calls  int
}

func (r *stubRouter) Route(ctx context.Context, start, end models.Location) ([]models.Location, error) {
	r.calls++
	return r.points, r.err
}

func TestPlanRoute_FallsBackToLocalLoop(t *testing.T) {
	s := newVehicleState("v1", models.CarburantDiesel, cities[0])
	routes := &stubRouter{err: errors.New("circuit breaker is open")}

	planRoute(context.Background(), s, routes)

	require.NotNil(t, s.Route)
	require.Len(t, s.Route.Points, 2)
	assert.Equal(t, cities[0], s.Route.Points[0])
	assert.Less(t, cities[0].DistanceKm(s.Route.Points[1]), 3.0)
}

func TestStepAlongRoute(t *testing.T) {
	a := models.Location{Lat: 48.0, Lon: 2.0}
	b := models.Location{Lat: 48.1, Lon: 2.0}
	s := newVehicleState("v1", models.CarburantElectrique, a)
	s.SpeedKmh = 60
	s.Route = &vehicleRoute{Points: []models.Location{a, b}}
	routes := &stubRouter{points: []models.Location{b, a}}

	stepAlongRoute(context.Background(), s, routes, time.Minute)

	assert.InDelta(t, 1.0, a.DistanceKm(s.Position), 0.01)
	assert.Equal(t, 0, routes.calls)

	// about 11 km left on the segment, two hours overshoot it
	stepAlongRoute(context.Background(), s, routes, 2*time.Hour)
	assert.Equal(t, b, s.Position)
	assert.Equal(t, 1, routes.calls)
	assert.Equal(t, []models.Location{b, a}, s.Route.Points)
}

func TestAdvance_BurnsEnergy(t *testing.T) {
	ev := newVehicleState("v1", models.CarburantElectrique, cities[0])
	ev.BatteryPct = 80
	ev.Route = &vehicleRoute{Points: []models.Location{cities[0], cities[1]}}
	advance(context.Background(), ev, &stubRouter{}, time.Minute)
	assert.Less(t, ev.BatteryPct, 80.0)

	ice := newVehicleState("v2", models.CarburantEssence, cities[0])
	ice.FuelPct = 6
	ice.Route = &vehicleRoute{Points: []models.Location{cities[0], cities[1]}}
	advance(context.Background(), ice, &stubRouter{}, time.Hour)
	assert.Equal(t, 100.0, ice.FuelPct)
}

func TestTelemetryFromState(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	t.Run("electric", func(t *testing.T) {
		s := newVehicleState("v1", models.CarburantElectrique, cities[1])
		got := telemetryFromState(s, now)
		assert.Equal(t, "v1", got.VehiculeID)
		assert.Equal(t, now, got.Timestamp)
		assert.Nil(t, got.FuelLevel)
		require.NotNil(t, got.BatteryLevel)
		assert.Zero(t, got.Emissions)
	})

	t.Run("diesel", func(t *testing.T) {
		s := newVehicleState("v2", models.CarburantDiesel, cities[1])
		got := telemetryFromState(s, now)
		require.NotNil(t, got.FuelLevel)
		assert.Nil(t, got.BatteryLevel)
		assert.GreaterOrEqual(t, got.Emissions, 120.0)
	})

	t.Run("hybrid", func(t *testing.T) {
		s := newVehicleState("v3", models.CarburantHybride, cities[1])
		got := telemetryFromState(s, now)
		assert.NotNil(t, got.FuelLevel)
		assert.NotNil(t, got.BatteryLevel)
		assert.Greater(t, got.Emissions, 0.0)
	})
}

func TestNewSimVehicle(t *testing.T) {
	agenceID := primitive.NewObjectID().Hex()
	v := newSimVehicle(agenceID)

	assert.True(t, strings.HasPrefix(v.Immatriculation, "SIM-"))
	assert.Equal(t, agenceID, v.AgenceID)
	assert.Greater(t, v.PrixParJour, 0.0)
	assert.NotEqual(t, v.Immatriculation, newSimVehicle(agenceID).Immatriculation)
	if v.Carburant == models.CarburantElectrique {
		assert.Equal(t, models.TransmissionAutomatique, v.Transmission)
	}
}

func TestMQTTPublisher_Topic(t *testing.T) {
	p := &mqttPublisher{prefix: "vitarenta/telemetry"}
	assert.Equal(t, "vitarenta/telemetry/abc", p.topic("abc"))
	assert.Equal(t, "mqtt", p.String())
}

func TestRun_RequiresCredentials(t *testing.T) {
	err := run(context.Background(), loadSettings(env(nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIM_AUTH_TOKEN")
}

func TestRun_NoVehicles(t *testing.T) {
	f := &fakeAPI{vehicleStatus: http.StatusForbidden}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	s := loadSettings(env(map[string]string{"API_BASE_URL": srv.URL + "/api", "SIM_AUTH_TOKEN": "tok", "FLEET_SIZE": "2"}))
	err := run(context.Background(), s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no vehicles created")
}

func TestRun_PublishesOverHTTP(t *testing.T) {
	f := &fakeAPI{}
	api := httptest.NewServer(f.handler(t))
	defer api.Close()
	var hits atomic.Int32
	osrm := osrmServer(t, http.StatusOK, `{"routes":[]}`, &hits)

	s := loadSettings(env(map[string]string{
		"API_BASE_URL": api.URL + "/api",
		"SIM_EMAIL":    "ops@vitarenta.fr",
		"SIM_PASSWORD": "secret",
		"FLEET_SIZE":   "2",
		"OSRM_URL":     osrm.URL,
		"OSRM_RPS":     "1000",
	}))
	s.Interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, s) }()

	require.Eventually(t, func() bool { return f.samples.Load() >= 4 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("simulation did not stop")
	}
	assert.Equal(t, int32(2), f.vehicles.Load())
	assert.Equal(t, "Bearer issued-token", f.lastAuth.Load())
}
