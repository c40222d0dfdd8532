package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Carburant is the vehicle's energy source.
type Carburant string

const (
	CarburantEssence    Carburant = "essence"
	CarburantDiesel     Carburant = "diesel"
	CarburantElectrique Carburant = "electrique"
	CarburantHybride    Carburant = "hybride"
)

// Transmission is the gearbox type.
type Transmission string

const (
	TransmissionManuelle    Transmission = "manuelle"
	TransmissionAutomatique Transmission = "automatique"
)

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleDisponible  VehicleStatus = "disponible"
	VehicleLoue        VehicleStatus = "loue"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleHorsService VehicleStatus = "hors_service"
)

// Bookable reports whether new reservations may target a vehicle in this state.
func (s VehicleStatus) Bookable() bool {
	return s == VehicleDisponible || s == VehicleLoue
}

// Vehicule represents a rental vehicle.
type Vehicule struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Marque                  string             `bson:"marque" json:"marque" validate:"required,max=50"`
	Modele                  string             `bson:"modele" json:"modele" validate:"required,max=50"`
	Carburant               Carburant          `bson:"carburant" json:"carburant" validate:"required,oneof=essence diesel electrique hybride"`
	Transmission            Transmission       `bson:"transmission" json:"transmission" validate:"required,oneof=manuelle automatique"`
	NombrePlaces            int                `bson:"nombre_places" json:"nombre_places" validate:"required,min=1,max=9"`
	Annee                   int                `bson:"annee" json:"annee" validate:"required,min=1990,maxyear"`
	Kilometrage             float64            `bson:"kilometrage" json:"kilometrage" validate:"gte=0"`
	Couleur                 string             `bson:"couleur" json:"couleur" validate:"max=30"`
	Immatriculation         string             `bson:"immatriculation" json:"immatriculation" validate:"required,max=20"`
	EmissionsCO2            float64            `bson:"emissions_co2" json:"emissions_co2" validate:"gte=0"`
	ConsommationEnergetique float64            `bson:"consommation_energetique" json:"consommation_energetique" validate:"gte=0"`
	PrixParJour             float64            `bson:"prix_par_jour" json:"prix_par_jour" validate:"required,gt=0"`
	Localisation            string             `bson:"localisation" json:"localisation" validate:"max=255"`
	Position                *Location          `bson:"position,omitempty" json:"position,omitempty"`
	Description             string             `bson:"description" json:"description"`
	Statut                  VehicleStatus      `bson:"statut" json:"statut" validate:"omitempty,oneof=disponible loue maintenance hors_service"`
	AgenceID                string             `bson:"agence_id" json:"agence_id" validate:"omitempty,objectid"`
	ImageURL                string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	DateCreation            time.Time          `bson:"date_creation" json:"date_creation"`
	UpdatedAt               time.Time          `bson:"updated_at" json:"updated_at"`
}

// VehiculePatch carries a partial vehicle update. Nil fields are left untouched.
type VehiculePatch struct {
	Marque                  *string        `json:"marque" validate:"omitempty,min=1,max=50"`
	Modele                  *string        `json:"modele" validate:"omitempty,min=1,max=50"`
	Carburant               *Carburant     `json:"carburant" validate:"omitempty,oneof=essence diesel electrique hybride"`
	Transmission            *Transmission  `json:"transmission" validate:"omitempty,oneof=manuelle automatique"`
	NombrePlaces            *int           `json:"nombre_places" validate:"omitempty,min=1,max=9"`
	Annee                   *int           `json:"annee" validate:"omitempty,min=1990,maxyear"`
	Kilometrage             *float64       `json:"kilometrage" validate:"omitempty,gte=0"`
	Couleur                 *string        `json:"couleur" validate:"omitempty,max=30"`
	Immatriculation         *string        `json:"immatriculation" validate:"omitempty,min=1,max=20"`
	EmissionsCO2            *float64       `json:"emissions_co2" validate:"omitempty,gte=0"`
	ConsommationEnergetique *float64       `json:"consommation_energetique" validate:"omitempty,gte=0"`
	PrixParJour             *float64       `json:"prix_par_jour" validate:"omitempty,gt=0"`
	Localisation            *string        `json:"localisation" validate:"omitempty,max=255"`
	Description             *string        `json:"description"`
	Statut                  *VehicleStatus `json:"statut" validate:"omitempty,oneof=disponible loue maintenance hors_service"`
	AgenceID                *string        `json:"agence_id" validate:"omitempty,objectid"`
}

// Apply copies the set fields onto v.
func (p *VehiculePatch) Apply(v *Vehicule) {
	if p.Marque != nil {
		v.Marque = *p.Marque
	}
	if p.Modele != nil {
		v.Modele = *p.Modele
	}
	if p.Carburant != nil {
		v.Carburant = *p.Carburant
	}
	if p.Transmission != nil {
		v.Transmission = *p.Transmission
	}
	if p.NombrePlaces != nil {
		v.NombrePlaces = *p.NombrePlaces
	}
	if p.Annee != nil {
		v.Annee = *p.Annee
	}
	if p.Kilometrage != nil {
		v.Kilometrage = *p.Kilometrage
	}
	if p.Couleur != nil {
		v.Couleur = *p.Couleur
	}
	if p.Immatriculation != nil {
		v.Immatriculation = *p.Immatriculation
	}
	if p.EmissionsCO2 != nil {
		v.EmissionsCO2 = *p.EmissionsCO2
	}
	if p.ConsommationEnergetique != nil {
		v.ConsommationEnergetique = *p.ConsommationEnergetique
	}
	if p.PrixParJour != nil {
		v.PrixParJour = *p.PrixParJour
	}
	if p.Localisation != nil {
		v.Localisation = *p.Localisation
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.Statut != nil {
		v.Statut = *p.Statut
	}
	if p.AgenceID != nil {
		v.AgenceID = *p.AgenceID
	}
}

// VehicleList is a page of vehicles.
type VehicleList struct {
	Count    int64      `json:"count"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Results  []Vehicule `json:"results"`
}
