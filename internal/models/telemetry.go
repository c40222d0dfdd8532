package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Telemetry sources.
const (
	TelemetrySourceHTTP = "http"
	TelemetrySourceMQTT = "mqtt"
)

// Telemetry is one sample reported by a vehicle's IoT box.
type Telemetry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehiculeID   string             `bson:"vehicule_id" json:"vehicule_id" validate:"required,objectid"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
	Location     Location           `bson:"location" json:"location"`
	Speed        float64            `bson:"speed" json:"speed" validate:"gte=0,lte=400"`
	FuelLevel    *float64           `bson:"fuel_level,omitempty" json:"fuel_level,omitempty" validate:"omitempty,gte=0,lte=100"`
	BatteryLevel *float64           `bson:"battery_level,omitempty" json:"battery_level,omitempty" validate:"omitempty,gte=0,lte=100"`
	Emissions    float64            `bson:"emissions" json:"emissions" validate:"gte=0"`
	Source       string             `bson:"source" json:"source"`
}
