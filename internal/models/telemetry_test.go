package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetry_OptionalLevelsOmitted(t *testing.T) {
	tele := Telemetry{
		VehiculeID: "64b7f0c2a1b2c3d4e5f60718",
		Timestamp:  time.Now(),
		Emissions:  10.0,
	}
	data, err := json.Marshal(tele)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "fuel_level")
	assert.NotContains(t, string(data), "battery_level")

	level := 55.5
	tele.BatteryLevel = &level
	data, err = json.Marshal(tele)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"battery_level":55.5`)
}

func TestLocation_Valid(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want bool
	}{
		{"paris", Location{Lat: 48.8566, Lon: 2.3522}, true},
		{"poles", Location{Lat: -90, Lon: 180}, true},
		{"lat too high", Location{Lat: 90.1, Lon: 0}, false},
		{"lon too low", Location{Lat: 0, Lon: -180.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.Valid())
		})
	}
}
