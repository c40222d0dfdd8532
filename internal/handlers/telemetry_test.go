package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/db/dbmock"
	"github.com/ukydev/vitarenta/internal/middleware"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/telemetry"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type telemetryFixture struct {
	handler  *TelemetryHandler
	vehicles *dbmock.VehicleCollection
	samples  *dbmock.TelemetryCollection
	hub      *telemetry.Hub
	vehicle  *models.Vehicule
	staff    *models.Claims
}

func newTelemetryFixture(t *testing.T) *telemetryFixture {
	t.Helper()
	agenceID := primitive.NewObjectID().Hex()
	f := &telemetryFixture{
		vehicles: new(dbmock.VehicleCollection),
		samples:  new(dbmock.TelemetryCollection),
		hub:      telemetry.NewHub(),
		vehicle:  &models.Vehicule{ID: primitive.NewObjectID(), AgenceID: agenceID},
		staff:    &models.Claims{UserID: "staff-1", Role: models.RoleAgence, AgenceID: agenceID},
	}
	pipeline := telemetry.NewPipeline(f.vehicles, f.samples, f.hub)
	f.handler = NewTelemetryHandler(pipeline, f.vehicles, f.hub, []string{"https://app.vitarenta.fr"})
	t.Cleanup(func() {
		f.vehicles.AssertExpectations(t)
		f.samples.AssertExpectations(t)
	})
	return f
}

func (f *telemetryFixture) sample() map[string]interface{} {
	return map[string]interface{}{
		"vehicule_id": f.vehicle.ID.Hex(),
		"location":    map[string]float64{"lat": 45.764, "lon": 4.8357},
		"speed":       62.5,
		"emissions":   0,
	}
}

func TestTelemetryHandler_Ingest(t *testing.T) {
	f := newTelemetryFixture(t)
	id := f.vehicle.ID.Hex()
	f.vehicles.On("FindVehicleByID", mock.Anything, id).Return(f.vehicle, nil)
	f.samples.On("InsertTelemetry", mock.Anything, mock.MatchedBy(func(s *models.Telemetry) bool {
		return s.Source == models.TelemetrySourceHTTP && !s.Timestamp.IsZero()
	})).Return(nil)
	f.vehicles.On("SetVehiclePosition", mock.Anything, id, models.Location{Lat: 45.764, Lon: 4.8357}).Return(nil)

	w := httptest.NewRecorder()
	f.handler.Ingest(w, as(jsonRequest(t, http.MethodPost, "/api/telemetry", f.sample()), f.staff))

	assert.Equal(t, http.StatusCreated, w.Code)
	var got models.Telemetry
	decodeResponse(t, w, &got)
	assert.Equal(t, models.TelemetrySourceHTTP, got.Source)
}

func TestTelemetryHandler_IngestIgnoresClientID(t *testing.T) {
	f := newTelemetryFixture(t)
	id := f.vehicle.ID.Hex()
	clientID := primitive.NewObjectID()
	stored := primitive.NewObjectID()
	f.vehicles.On("FindVehicleByID", mock.Anything, id).Return(f.vehicle, nil)
	f.samples.On("InsertTelemetry", mock.Anything, mock.MatchedBy(func(s *models.Telemetry) bool {
		return s.ID.IsZero()
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Telemetry).ID = stored
	}).Return(nil).Twice()
	f.vehicles.On("SetVehiclePosition", mock.Anything, id, mock.Anything).Return(nil)

	body := f.sample()
	body["id"] = clientID.Hex()
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		f.handler.Ingest(w, as(jsonRequest(t, http.MethodPost, "/api/telemetry", body), f.staff))

		require.Equal(t, http.StatusCreated, w.Code)
		var got models.Telemetry
		decodeResponse(t, w, &got)
		assert.Equal(t, stored, got.ID)
	}
}

func TestTelemetryHandler_IngestOtherAgency(t *testing.T) {
	f := newTelemetryFixture(t)
	f.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
	other := &models.Claims{UserID: "staff-2", Role: models.RoleAgence, AgenceID: primitive.NewObjectID().Hex()}

	w := httptest.NewRecorder()
	f.handler.Ingest(w, as(jsonRequest(t, http.MethodPost, "/api/telemetry", f.sample()), other))

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.samples.AssertNotCalled(t, "InsertTelemetry", mock.Anything, mock.Anything)
}

func TestTelemetryHandler_IngestInvalidLocation(t *testing.T) {
	f := newTelemetryFixture(t)
	body := f.sample()
	body["location"] = map[string]float64{"lat": 123, "lon": 4.8}

	w := httptest.NewRecorder()
	f.handler.Ingest(w, as(jsonRequest(t, http.MethodPost, "/api/telemetry", body), adminClaims))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp errorResponse
	decodeResponse(t, w, &resp)
	assert.Contains(t, resp.Fields, "location")
}

func TestTelemetryHandler_LiveFeedRefusals(t *testing.T) {
	t.Run("agence without agency", func(t *testing.T) {
		f := newTelemetryFixture(t)
		w := httptest.NewRecorder()
		f.handler.LiveFeed(w, as(httptest.NewRequest(http.MethodGet, "/ws/telemetry", nil),
			&models.Claims{UserID: "x", Role: models.RoleAgence}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no hub", func(t *testing.T) {
		handler := NewTelemetryHandler(nil, nil, nil, nil)
		w := httptest.NewRecorder()
		handler.LiveFeed(w, as(httptest.NewRequest(http.MethodGet, "/ws/telemetry", nil), adminClaims))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func serveFeed(t *testing.T, f *telemetryFixture, actor *models.Claims) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.hub.Serve(ctx)
		close(done)
	}()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.handler.LiveFeed(w, r.WithContext(middleware.WithUser(r.Context(), actor)))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/telemetry"
}

func TestTelemetryHandler_LiveFeed(t *testing.T) {
	f := newTelemetryFixture(t)
	url := serveFeed(t, f, f.staff)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.hub.Broadcast(primitive.NewObjectID().Hex(), &models.Telemetry{VehiculeID: "elsewhere"})
	f.hub.Broadcast(f.staff.AgenceID, &models.Telemetry{VehiculeID: f.vehicle.ID.Hex(), Speed: 42})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string           `json:"type"`
		Data models.Telemetry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, telemetry.MessageTypeTelemetry, msg.Type)
	assert.Equal(t, f.vehicle.ID.Hex(), msg.Data.VehiculeID)
}

func TestTelemetryHandler_LiveFeedOrigin(t *testing.T) {
	f := newTelemetryFixture(t)
	url := serveFeed(t, f, adminClaims)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.vitarenta.fr")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
