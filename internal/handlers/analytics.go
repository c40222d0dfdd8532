package handlers

import (
	"net/http"

	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/models"
)

// AnalyticsHandler serves reports.
type AnalyticsHandler struct {
	svc *analytics.Service
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// DemandForecast predicts daily reservations. Agence users always get their
// own agency; admins choose with agence_id or get the whole platform.
func (h *AnalyticsHandler) DemandForecast(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	agenceID := r.URL.Query().Get("agence_id")
	if actor.Role != models.RoleAdmin {
		if actor.AgenceID == "" || (agenceID != "" && agenceID != actor.AgenceID) {
			respondError(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		agenceID = actor.AgenceID
	}

	horizon, err := queryInt(r, "horizon", analytics.DefaultHorizon)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	history, err := queryInt(r, "history", analytics.DefaultHistory)
	if err != nil {
		respondQueryError(w, err)
		return
	}

	forecast, err := h.svc.Forecast(r.Context(), agenceID, horizon, history)
	if err != nil {
		respondStoreError(w, r, err, "forecast")
		return
	}
	respondJSON(w, http.StatusOK, forecast)
}

// Dashboard returns platform-wide totals.
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.svc.Dashboard(r.Context())
	if err != nil {
		respondStoreError(w, r, err, "dashboard")
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}
