package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/models"
)

// Ingester is the part of Pipeline the MQTT subscriber needs.
type Ingester interface {
	Ingest(ctx context.Context, t *models.Telemetry, source string) error
}

// Subscriber consumes telemetry published on vitarenta/telemetry/<vehicule_id>.
type Subscriber struct {
	cfg       config.MQTTConfig
	pipeline  Ingester
	newClient func(*mqtt.ClientOptions) mqtt.Client
	timeout   time.Duration
}

// NewSubscriber returns a Subscriber for the configured broker.
func NewSubscriber(cfg config.MQTTConfig, pipeline Ingester) *Subscriber {
	return &Subscriber{
		cfg:       cfg,
		pipeline:  pipeline,
		newClient: mqtt.NewClient,
		timeout:   10 * time.Second,
	}
}

func (s *Subscriber) String() string { return "mqtt-subscriber" }

// Serve connects, subscribes and blocks until ctx is done. A connection
// failure returns an error so the supervisor restarts the service.
func (s *Subscriber) Serve(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(s.timeout).
		SetOrderMatters(false)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username).SetPassword(s.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})
	// resubscribe after every reconnect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.cfg.Topic, byte(s.cfg.QoS), func(_ mqtt.Client, m mqtt.Message) {
			s.HandleMessage(ctx, m.Topic(), m.Payload())
		})
		if token.WaitTimeout(s.timeout) && token.Error() != nil {
			log.WithError(token.Error()).WithField("topic", s.cfg.Topic).Error("MQTT subscribe failed")
			return
		}
		log.WithField("topic", s.cfg.Topic).Info("Subscribed to telemetry topic")
	})

	client := s.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt connect to %s: timeout", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", s.cfg.Broker, err)
	}

	<-ctx.Done()
	client.Disconnect(250)
	log.Info("MQTT subscriber stopped")
	return ctx.Err()
}

// HandleMessage ingests one MQTT payload. The vehicle id in the topic wins
// over the one in the payload.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) {
	var t models.Telemetry
	if err := json.Unmarshal(payload, &t); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("Invalid telemetry payload")
		return
	}
	if id := vehicleIDFromTopic(topic); id != "" {
		t.VehiculeID = id
	}
	if err := s.pipeline.Ingest(ctx, &t, models.TelemetrySourceMQTT); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"topic":       topic,
			"vehicule_id": t.VehiculeID,
		}).Warn("Rejected telemetry sample")
	}
}

func vehicleIDFromTopic(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 || i == len(topic)-1 {
		return ""
	}
	id := topic[i+1:]
	if id == "+" || id == "#" {
		return ""
	}
	return id
}
