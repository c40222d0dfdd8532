package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgence   Role = "agence"
	RoleClient   Role = "client"
	RoleVisiteur Role = "visiteur"
)

// User represents a user in the system
type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email               string             `bson:"email" json:"email"`
	PasswordHash        string             `bson:"password_hash" json:"-"`
	Nom                 string             `bson:"nom" json:"nom"`
	Prenom              string             `bson:"prenom" json:"prenom"`
	Telephone           string             `bson:"telephone" json:"telephone"`
	Role                Role               `bson:"role" json:"role"`
	AgenceID            string             `bson:"agence_id,omitempty" json:"agence_id,omitempty"`
	Adresse             string             `bson:"adresse" json:"adresse"`
	DateNaissance       *time.Time         `bson:"date_naissance,omitempty" json:"date_naissance,omitempty"`
	PreferenceCarburant Carburant          `bson:"preference_carburant,omitempty" json:"preference_carburant,omitempty"`
	BudgetJournalier    float64            `bson:"budget_journalier" json:"budget_journalier"`
	EcoScore            int                `bson:"eco_score" json:"eco_score"`
	IsActive            bool               `bson:"is_active" json:"is_active"`
	LastLogin           *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	DateJoined          time.Time          `bson:"date_joined" json:"date_joined"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

// FullName returns "Prenom Nom".
func (u *User) FullName() string {
	switch {
	case u.Prenom == "":
		return u.Nom
	case u.Nom == "":
		return u.Prenom
	}
	return u.Prenom + " " + u.Nom
}

// SignupRequest represents a user registration request
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	Nom       string `json:"nom" validate:"required,max=100"`
	Prenom    string `json:"prenom" validate:"required,max=100"`
	Telephone string `json:"telephone" validate:"omitempty,max=20"`
	Role      Role   `json:"role" validate:"omitempty,oneof=admin agence client visiteur"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// ProfileUpdateRequest lists the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdateRequest struct {
	Nom                 *string    `json:"nom" validate:"omitempty,min=1,max=100"`
	Prenom              *string    `json:"prenom" validate:"omitempty,min=1,max=100"`
	Telephone           *string    `json:"telephone" validate:"omitempty,max=20"`
	Adresse             *string    `json:"adresse" validate:"omitempty,max=255"`
	Email               *string    `json:"email" validate:"omitempty,email,max=254"`
	DateNaissance       *time.Time `json:"date_naissance"`
	PreferenceCarburant *Carburant `json:"preference_carburant" validate:"omitempty,oneof=essence diesel electrique hybride"`
	BudgetJournalier    *float64   `json:"budget_journalier" validate:"omitempty,gte=0"`
}

// ChangePasswordRequest carries the current and the new password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// UserAdminUpdateRequest is used by administrators to manage accounts.
type UserAdminUpdateRequest struct {
	Role     *Role   `json:"role" validate:"omitempty,oneof=admin agence client visiteur"`
	IsActive *bool   `json:"is_active"`
	AgenceID *string `json:"agence_id" validate:"omitempty,objectid"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	AgenceID string `json:"agence_id,omitempty"`
	Type     string `json:"typ"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleAgence, RoleClient, RoleVisiteur:
		return true
	default:
		return false
	}
}

// CanSelfRegister reports whether a role may be chosen at signup.
func CanSelfRegister(role Role) bool {
	return role == RoleClient || role == RoleVisiteur
}

// IsStaff reports whether the role manages fleet data.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAgence
}
