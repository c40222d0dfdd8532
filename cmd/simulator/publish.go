package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ukydev/vitarenta/internal/models"
)

// publisher delivers telemetry samples to the platform.
type publisher interface {
	Publish(ctx context.Context, t *models.Telemetry) error
	Close()
	String() string
}

// httpPublisher posts samples to POST /telemetry.
type httpPublisher struct {
	api *apiClient
}

func (p *httpPublisher) Publish(ctx context.Context, t *models.Telemetry) error {
	return p.api.PostTelemetry(ctx, t)
}

func (p *httpPublisher) Close()         {}
func (p *httpPublisher) String() string { return "http" }

// mqttPublisher publishes samples on <prefix>/<vehicule_id>.
type mqttPublisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

func newMQTTPublisher(broker, prefix string) (*mqttPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("vitarenta-sim-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return &mqttPublisher{client: client, prefix: strings.TrimRight(prefix, "/"), timeout: 5 * time.Second}, nil
}

func (p *mqttPublisher) topic(vehiculeID string) string {
	return p.prefix + "/" + vehiculeID
}

func (p *mqttPublisher) Publish(ctx context.Context, t *models.Telemetry) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	token := p.client.Publish(p.topic(t.VehiculeID), 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt publish to %s: timeout", p.topic(t.VehiculeID))
	}
}

func (p *mqttPublisher) Close()         { p.client.Disconnect(250) }
func (p *mqttPublisher) String() string { return "mqtt" }
