package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/db/dbmock"
	"github.com/ukydev/vitarenta/internal/models"
)

func TestAnalyticsHandler_DemandForecast(t *testing.T) {
	t.Run("agence gets own agency", func(t *testing.T) {
		reservations := new(dbmock.ReservationCollection)
		handler := NewAnalyticsHandler(analytics.NewService(new(dbmock.UserCollection), new(dbmock.VehicleCollection), reservations))
		staff := &models.Claims{UserID: "s1", Role: models.RoleAgence, AgenceID: "a1"}
		reservations.On("DailyCounts", mock.Anything, "a1", mock.Anything).Return(map[string]int64{}, nil)

		w := httptest.NewRecorder()
		handler.DemandForecast(w, as(httptest.NewRequest(http.MethodGet, "/api/analytics/demand-forecast?horizon=3&history=14", nil), staff))

		require.Equal(t, http.StatusOK, w.Code)
		var got analytics.DemandForecast
		decodeResponse(t, w, &got)
		assert.Equal(t, "a1", got.AgenceID)
		assert.Len(t, got.Forecast, 3)
		assert.Len(t, got.History, 14)
		reservations.AssertExpectations(t)
	})

	t.Run("agence asking for another agency", func(t *testing.T) {
		handler := NewAnalyticsHandler(analytics.NewService(nil, nil, nil))
		staff := &models.Claims{UserID: "s1", Role: models.RoleAgence, AgenceID: "a1"}

		w := httptest.NewRecorder()
		handler.DemandForecast(w, as(httptest.NewRequest(http.MethodGet, "/api/analytics/demand-forecast?agence_id=a2", nil), staff))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad horizon", func(t *testing.T) {
		handler := NewAnalyticsHandler(analytics.NewService(nil, nil, nil))

		w := httptest.NewRecorder()
		handler.DemandForecast(w, as(httptest.NewRequest(http.MethodGet, "/?horizon=week", nil), adminClaims))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAnalyticsHandler_Dashboard(t *testing.T) {
	users := new(dbmock.UserCollection)
	vehicles := new(dbmock.VehicleCollection)
	reservations := new(dbmock.ReservationCollection)
	handler := NewAnalyticsHandler(analytics.NewService(users, vehicles, reservations))

	users.On("CountUsersByRole", mock.Anything).Return(map[models.Role]int64{models.RoleClient: 12, models.RoleAdmin: 1}, nil)
	vehicles.On("CountVehiclesByStatus", mock.Anything, "").Return(map[models.VehicleStatus]int64{models.VehicleDisponible: 8}, nil)
	reservations.On("CountReservationsByStatus", mock.Anything, "").Return(map[models.ReservationStatus]int64{models.ReservationTerminee: 5}, nil)
	reservations.On("Revenue", mock.Anything, "").Return(1250.0, nil)

	w := httptest.NewRecorder()
	handler.Dashboard(w, as(httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard", nil), adminClaims))

	require.Equal(t, http.StatusOK, w.Code)
	var got analytics.Dashboard
	decodeResponse(t, w, &got)
	assert.Equal(t, int64(12), got.Users[models.RoleClient])
	assert.InDelta(t, 1250.0, got.Revenue, 1e-9)
}

func TestAnalyticsHandler_DashboardStoreFailure(t *testing.T) {
	users := new(dbmock.UserCollection)
	handler := NewAnalyticsHandler(analytics.NewService(users, nil, nil))
	users.On("CountUsersByRole", mock.Anything).Return(nil, errors.New("socket closed"))

	w := httptest.NewRecorder()
	handler.Dashboard(w, as(httptest.NewRequest(http.MethodGet, "/", nil), adminClaims))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", errorMessage(t, w))
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(stubPinger{}, 0).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got HealthResponse
		decodeResponse(t, w, &got)
		assert.Equal(t, "ok", got.Status)
		assert.Equal(t, "up", got.Database)
	})

	t.Run("database down", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(stubPinger{err: errors.New("no reachable servers")}, 0).
			Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var got HealthResponse
		decodeResponse(t, w, &got)
		assert.Equal(t, "degraded", got.Status)
		assert.Equal(t, "down", got.Database)
	})
}
