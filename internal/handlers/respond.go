// Package handlers implements the HTTP endpoints of the API. Handlers decode
// and validate requests, apply row-level access rules and delegate to the
// domain services.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/ecochallenge"
	"github.com/ukydev/vitarenta/internal/middleware"
	"github.com/ukydev/vitarenta/internal/models"
	"github.com/ukydev/vitarenta/internal/rental"
	"github.com/ukydev/vitarenta/internal/storage"
	"github.com/ukydev/vitarenta/internal/validation"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func respondValidation(w http.ResponseWriter, verr *validation.RequestValidationError) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation failed", Fields: verr.Fields()})
}

// decodeJSON reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondValidation(w, verr)
		return false
	}
	return true
}

// statusFor maps store and domain errors to an HTTP status. ok is false for
// unexpected errors.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, db.ErrInvalidID),
		errors.Is(err, rental.ErrInvalidPeriod),
		errors.Is(err, rental.ErrStartInPast),
		errors.Is(err, rental.ErrTooLong),
		errors.Is(err, ecochallenge.ErrInvalidWindow):
		return http.StatusBadRequest, true
	case errors.Is(err, rental.ErrNotAllowed),
		errors.Is(err, ecochallenge.ErrNotOwner):
		return http.StatusForbidden, true
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, db.ErrDuplicate),
		errors.Is(err, db.ErrLocked),
		errors.Is(err, db.ErrConflict),
		errors.Is(err, rental.ErrOverlap),
		errors.Is(err, rental.ErrVehicleBusy),
		errors.Is(err, rental.ErrVehicleUnavailable),
		errors.Is(err, rental.ErrInvalidTransition),
		errors.Is(err, rental.ErrAlreadyStarted),
		errors.Is(err, ecochallenge.ErrChallengeClosed),
		errors.Is(err, ecochallenge.ErrChallengeFull),
		errors.Is(err, ecochallenge.ErrChallengeBusy),
		errors.Is(err, ecochallenge.ErrAlreadyJoined),
		errors.Is(err, ecochallenge.ErrNotActive),
		errors.Is(err, ecochallenge.ErrDeadlinePassed),
		errors.Is(err, ecochallenge.ErrNotClaimable):
		return http.StatusConflict, true
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, true
	case errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, true
	case errors.Is(err, storage.ErrDisabled),
		errors.Is(err, db.ErrNotConnected),
		errors.Is(err, db.ErrNilCollection):
		return http.StatusServiceUnavailable, false
	}
	return http.StatusInternalServerError, false
}

// respondStoreError answers with the status mapped from err. resource names
// the entity in 404 and 409 messages.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		respondValidation(w, verr)
		return
	}

	status, ok := statusFor(err)
	if !ok {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		if status == http.StatusServiceUnavailable {
			respondError(w, status, "service unavailable")
			return
		}
		respondError(w, status, "Internal server error")
		return
	}

	switch {
	case status == http.StatusNotFound:
		respondError(w, status, resource+" not found")
	case errors.Is(err, db.ErrDuplicate):
		respondError(w, status, resource+" already exists")
	case errors.Is(err, db.ErrInvalidID):
		respondError(w, status, "invalid "+resource+" id")
	default:
		respondError(w, status, err.Error())
	}
}

// claims returns the authenticated caller. Routes that call it sit behind
// Authenticate, so a missing user is answered with 401.
func claims(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {
	c, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return c, true
}

// sameAgency reports whether actor may manage data of agency agenceID.
func sameAgency(actor *models.Claims, agenceID string) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Role == models.RoleAgence && actor.AgenceID != "" && actor.AgenceID == agenceID
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.NewFieldError(name, name+" must be an integer")
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, validation.NewFieldError(name, name+" must be a number")
	}
	return &v, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, validation.NewFieldError(name, name+" must be true or false")
	}
	return &v, nil
}

// queryTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, validation.NewFieldError(name, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

// respondQueryError answers a malformed query parameter.
func respondQueryError(w http.ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		respondValidation(w, verr)
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}
