package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/telemetry"
)

// TelemetryHandler accepts samples over HTTP and serves the live feed.
type TelemetryHandler struct {
	pipeline       *telemetry.Pipeline
	vehicles       db.VehicleCollection
	hub            *telemetry.Hub
	allowedOrigins []string
}

// NewTelemetryHandler creates a TelemetryHandler. allowedOrigins limits
// browser websocket origins; "*" allows any.
func NewTelemetryHandler(pipeline *telemetry.Pipeline, vehicles db.VehicleCollection, hub *telemetry.Hub, allowedOrigins []string) *TelemetryHandler {
	return &TelemetryHandler{
		pipeline:       pipeline,
		vehicles:       vehicles,
		hub:            hub,
		allowedOrigins: allowedOrigins,
	}
}

// Ingest stores one sample. Agence users may only report their own vehicles.
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	var sample models.Telemetry
	if !decodeJSON(w, r, &sample) {
		return
	}

	if actor.Role != models.RoleAdmin {
		v, err := h.vehicles.FindVehicleByID(r.Context(), sample.VehiculeID)
		if err != nil {
			respondStoreError(w, r, err, "vehicle")
			return
		}
		if !sameAgency(actor, v.AgenceID) {
			respondError(w, http.StatusForbidden, "Vehicle belongs to another agency")
			return
		}
	}

	if err := h.pipeline.Ingest(r.Context(), &sample, models.TelemetrySourceHTTP); err != nil {
		respondStoreError(w, r, err, "vehicle")
		return
	}
	respondJSON(w, http.StatusCreated, sample)
}

func (h *TelemetryHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// non-browser clients authenticate with the token alone
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	log.WithField("origin", origin).Warn("WebSocket connection rejected from unauthorized origin")
	return false
}

// LiveFeed upgrades to a websocket streaming telemetry. Agence users only
// receive samples of their agency's vehicles; admins may narrow with
// ?agence_id.
func (h *TelemetryHandler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "Live feed unavailable")
		return
	}

	agenceID := r.URL.Query().Get("agence_id")
	if actor.Role != models.RoleAdmin {
		if actor.AgenceID == "" {
			respondError(w, http.StatusForbidden, "Account is not linked to an agency")
			return
		}
		agenceID = actor.AgenceID
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	if err := telemetry.NewClient(h.hub, conn, agenceID).Start(); err != nil {
		log.WithError(err).WithField("user_id", actor.UserID).Warn("Telemetry feed unavailable")
		return
	}
	log.WithFields(log.Fields{"user_id": actor.UserID, "agence_id": agenceID}).Info("Telemetry feed client connected")
}
