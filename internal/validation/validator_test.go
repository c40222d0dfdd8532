package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/models"
)

func TestValidateStruct_Signup(t *testing.T) {
	valid := models.SignupRequest{
		Email:    "claire@example.com",
		Password: "motdepasse",
		Nom:      "Martin",
		Prenom:   "Claire",
	}
	assert.Nil(t, ValidateStruct(&valid))

	invalid := valid
	invalid.Email = "not-an-email"
	invalid.Password = "short"
	invalid.Role = "superuser"

	verr := ValidateStruct(&invalid)
	require.NotNil(t, verr)
	fields := verr.Fields()
	assert.Equal(t, "email must be a valid email address", fields["email"])
	assert.Equal(t, "password must be at least 8 characters", fields["password"])
	assert.Contains(t, fields["role"], "must be one of")
	assert.Len(t, verr.Errors(), 3)
}

func TestValidateStruct_ObjectID(t *testing.T) {
	req := models.ReservationRequest{
		VehiculeID: "nope",
		DateDebut:  time.Now(),
		DateFin:    time.Now().Add(24 * time.Hour),
	}
	verr := ValidateStruct(&req)
	require.NotNil(t, verr)
	assert.Equal(t, "vehicule_id must be a valid id", verr.Fields()["vehicule_id"])

	req.VehiculeID = "64b7f0c2a1b2c3d4e5f60718"
	assert.Nil(t, ValidateStruct(&req))
}

func TestValidateStruct_MaxYear(t *testing.T) {
	v := models.Vehicule{
		Marque:          "Renault",
		Modele:          "Clio",
		Carburant:       models.CarburantEssence,
		Transmission:    models.TransmissionManuelle,
		NombrePlaces:    5,
		Annee:           time.Now().Year() + 1,
		Immatriculation: "AB-123-CD",
		PrixParJour:     35,
	}
	assert.Nil(t, ValidateStruct(&v))

	v.Annee = time.Now().Year() + 2
	verr := ValidateStruct(&v)
	require.NotNil(t, verr)
	assert.Equal(t, "annee cannot be later than next year", verr.Fields()["annee"])

	v.Annee = 1989
	verr = ValidateStruct(&v)
	require.NotNil(t, verr)
	assert.Equal(t, "annee must be at least 1990", verr.Fields()["annee"])
}

func TestValidateStruct_PatchPointers(t *testing.T) {
	places := 12
	prix := 0.0
	patch := models.VehiculePatch{NombrePlaces: &places, PrixParJour: &prix}

	verr := ValidateStruct(&patch)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields(), "nombre_places")
	assert.Contains(t, verr.Fields(), "prix_par_jour")

	assert.Nil(t, ValidateStruct(&models.VehiculePatch{}))
}

func TestNewFieldError(t *testing.T) {
	verr := NewFieldError("date_fin", "date_fin must be after date_debut")
	assert.Equal(t, "date_fin must be after date_debut", verr.Error())
	assert.Equal(t, map[string]string{"date_fin": "date_fin must be after date_debut"}, verr.Fields())
}
