package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/ecochallenge"
	"github.com/ukydev/vitarenta/internal/middleware"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EcoChallengeHandler serves eco-challenges and participations.
type EcoChallengeHandler struct {
	svc *ecochallenge.Service
}

// NewEcoChallengeHandler creates an EcoChallengeHandler.
func NewEcoChallengeHandler(svc *ecochallenge.Service) *EcoChallengeHandler {
	return &EcoChallengeHandler{svc: svc}
}

// List returns challenges. Anonymous and non-admin callers see open ones only.
func (h *EcoChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	featured, err := queryBool(r, "featured")
	if err != nil {
		respondQueryError(w, err)
		return
	}
	actor, _ := middleware.GetUserFromContext(r.Context())
	challenges, err := h.svc.List(r.Context(), actor, db.ChallengeFilter{
		Type:       models.ChallengeType(r.URL.Query().Get("type")),
		Difficulty: models.Difficulty(r.URL.Query().Get("difficulty")),
		Featured:   featured,
	})
	if err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	if challenges == nil {
		challenges = []models.EcoChallenge{}
	}
	respondJSON(w, http.StatusOK, challenges)
}

// Get returns one challenge.
func (h *EcoChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUserFromContext(r.Context())
	c, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Create adds a challenge. New challenges are active unless the body says
// otherwise.
func (h *EcoChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	c := models.EcoChallenge{IsActive: true}
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = primitive.NilObjectID
	if err := h.svc.Create(r.Context(), &c); err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	log.WithFields(log.Fields{"challenge_id": c.ID.Hex(), "title": c.Title}).Info("Eco-challenge created")
	respondJSON(w, http.StatusCreated, c)
}

// Update replaces a challenge definition.
func (h *EcoChallengeHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	existing, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	c := *existing
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	if err := h.svc.Update(r.Context(), &c); err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Delete removes a challenge.
func (h *EcoChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Join enrolls the caller in a challenge.
func (h *EcoChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Join(r.Context(), actor.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// Mine lists the caller's participations.
func (h *EcoChallengeHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	participations, err := h.svc.Mine(r.Context(), actor.UserID)
	if err != nil {
		respondStoreError(w, r, err, "participation")
		return
	}
	if participations == nil {
		participations = []models.UserEcoChallenge{}
	}
	respondJSON(w, http.StatusOK, participations)
}

// RecordProgress adds a manual progress entry to a participation.
func (h *EcoChallengeHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	var req models.ProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.RecordProgress(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		respondStoreError(w, r, err, "participation")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Progress lists the entries of a participation.
func (h *EcoChallengeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.ProgressEntries(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "participation")
		return
	}
	if entries == nil {
		entries = []models.EcoChallengeProgress{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// Abandon stops an active participation.
func (h *EcoChallengeHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Abandon(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "participation")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Claim collects the reward of a completed participation.
func (h *EcoChallengeHandler) Claim(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	reward, err := h.svc.Claim(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "participation")
		return
	}
	respondJSON(w, http.StatusOK, reward)
}

// Leaderboard ranks users by reward points.
func (h *EcoChallengeHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", ecochallenge.DefaultLeaderboardSize)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		respondStoreError(w, r, err, "leaderboard")
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// Analytics reports participation per challenge.
func (h *EcoChallengeHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Analytics(r.Context())
	if err != nil {
		respondStoreError(w, r, err, "challenge")
		return
	}
	if stats == nil {
		stats = []models.ChallengeAnalytics{}
	}
	respondJSON(w, http.StatusOK, stats)
}
