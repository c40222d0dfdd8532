package handlers

import (
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/auth"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	now            func() time.Time
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		now:            time.Now,
	}
}

// tokenResponse is the body of a successful refresh.
type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// Signup registers a client or visiteur account and logs it in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Role == "" {
		req.Role = models.RoleClient
	}
	if !models.CanSelfRegister(req.Role) {
		respondError(w, http.StatusForbidden, "Role cannot be self-assigned")
		return
	}
	if err := h.authService.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		respondError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	now := h.now().UTC()
	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Nom:          req.Nom,
		Prenom:       req.Prenom,
		Telephone:    req.Telephone,
		Role:         req.Role,
		IsActive:     true,
		DateJoined:   now,
		UpdatedAt:    now,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Email already exists")
			return
		}
		respondStoreError(w, r, err, "user")
		return
	}

	token, refresh, err := h.authService.GenerateTokenPair(user)
	if err != nil {
		log.WithError(err).Error("Failed to generate tokens")
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("User registered")
	respondJSON(w, http.StatusCreated, models.LoginResponse{
		Token:        token,
		RefreshToken: refresh,
		User:         *user,
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userCollection.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondStoreError(w, r, err, "user")
		return
	}

	if !user.IsActive {
		respondError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}
	if !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, refresh, err := h.authService.GenerateTokenPair(user)
	if err != nil {
		log.WithError(err).Error("Failed to generate tokens")
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	} else {
		now := h.now().UTC()
		user.LastLogin = &now
	}

	respondJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refresh,
		User:         *user,
	})
}

// Refresh exchanges a refresh token for a new token pair. The user is
// reloaded so role and agency changes apply to the new tokens.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), c.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
			respondError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		respondStoreError(w, r, err, "user")
		return
	}
	if !user.IsActive {
		respondError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	token, refresh, err := h.authService.GenerateTokenPair(user)
	if err != nil {
		log.WithError(err).Error("Failed to generate tokens")
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token, RefreshToken: refresh})
}

func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	c, ok := claims(w, r)
	if !ok {
		return nil, false
	}
	user, err := h.userCollection.FindUserByID(r.Context(), c.UserID)
	if err != nil {
		respondStoreError(w, r, err, "user")
		return nil, false
	}
	return user, true
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile applies the fields a user may change on their own account.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if req.Nom != nil {
		user.Nom = *req.Nom
	}
	if req.Prenom != nil {
		user.Prenom = *req.Prenom
	}
	if req.Telephone != nil {
		user.Telephone = *req.Telephone
	}
	if req.Adresse != nil {
		user.Adresse = *req.Adresse
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.DateNaissance != nil {
		user.DateNaissance = req.DateNaissance
	}
	if req.PreferenceCarburant != nil {
		user.PreferenceCarburant = *req.PreferenceCarburant
	}
	if req.BudgetJournalier != nil {
		user.BudgetJournalier = *req.BudgetJournalier
	}

	if err := h.userCollection.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Email already exists")
			return
		}
		respondStoreError(w, r, err, "user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the password after checking the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if !h.authService.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		respondError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if err := h.authService.ValidatePassword(req.NewPassword); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		respondError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}
	user.PasswordHash = hash
	if err := h.userCollection.UpdateUser(r.Context(), user); err != nil {
		respondStoreError(w, r, err, "user")
		return
	}

	log.WithField("user_id", user.ID.Hex()).Info("Password changed")
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
