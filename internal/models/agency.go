package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agence represents a rental agency owning a fleet of vehicles.
type Agence struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Nom          string             `bson:"nom" json:"nom" validate:"required,max=100"`
	Adresse      string             `bson:"adresse" json:"adresse" validate:"max=255"`
	Ville        string             `bson:"ville" json:"ville" validate:"required,max=100"`
	CodePostal   string             `bson:"code_postal" json:"code_postal" validate:"max=10"`
	Pays         string             `bson:"pays" json:"pays" validate:"max=100"`
	Telephone    string             `bson:"telephone" json:"telephone" validate:"max=20"`
	Email        string             `bson:"email" json:"email" validate:"omitempty,email"`
	SiteWeb      string             `bson:"site_web" json:"site_web" validate:"omitempty,url"`
	Description  string             `bson:"description" json:"description"`
	Active       bool               `bson:"active" json:"active"`
	DateCreation time.Time          `bson:"date_creation" json:"date_creation"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}
