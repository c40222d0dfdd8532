package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/validation"
)

// UserHandler serves account administration.
type UserHandler struct {
	users    db.UserCollection
	agencies db.AgencyCollection
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users db.UserCollection, agencies db.AgencyCollection) *UserHandler {
	return &UserHandler{users: users, agencies: agencies}
}

// List returns users, optionally filtered by role and active flag.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		respondQueryError(w, err)
		return
	}
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !models.IsValidRole(role) {
		respondValidation(w, validation.NewFieldError("role", "role must be one of: admin agence client visiteur"))
		return
	}

	users, err := h.users.FindUsers(r.Context(), db.UserFilter{
		Role:     role,
		Active:   active,
		AgenceID: r.URL.Query().Get("agence_id"),
	})
	if err != nil {
		respondStoreError(w, r, err, "user")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// Get returns one user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Update changes a user's role, active flag or agency. An agence account
// must point at an existing agency.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	var req models.UserAdminUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.FindUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, "user")
		return
	}

	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.AgenceID != nil {
		user.AgenceID = *req.AgenceID
	}
	if user.Role != models.RoleAgence {
		user.AgenceID = ""
	}
	if user.Role == models.RoleAgence {
		if user.AgenceID == "" {
			respondValidation(w, validation.NewFieldError("agence_id", "agence_id is required for agence accounts"))
			return
		}
		if _, err := h.agencies.FindAgencyByID(r.Context(), user.AgenceID); err != nil {
			if status, _ := statusFor(err); status == http.StatusNotFound {
				respondValidation(w, validation.NewFieldError("agence_id", "agence_id does not reference an existing agency"))
				return
			}
			respondStoreError(w, r, err, "agency")
			return
		}
	}

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		respondStoreError(w, r, err, "user")
		return
	}

	log.WithFields(log.Fields{
		"user_id":   user.ID.Hex(),
		"role":      user.Role,
		"is_active": user.IsActive,
		"actor":     actor.UserID,
	}).Info("User updated by administrator")
	respondJSON(w, http.StatusOK, user)
}

// Delete removes a user. Administrators cannot delete themselves.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := claims(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if id == actor.UserID {
		respondError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		respondStoreError(w, r, err, "user")
		return
	}
	log.WithFields(log.Fields{"user_id": id, "actor": actor.UserID}).Info("User deleted")
	w.WriteHeader(http.StatusNoContent)
}
