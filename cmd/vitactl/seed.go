package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/models"
)

type seedResult struct {
	Agencies   int
	Vehicles   int
	Challenges int
}

type demoAgency struct {
	agence   models.Agence
	vehicles []models.Vehicule
}

func demoFleet() []demoAgency {
	car := func(marque, modele, plate string, carburant models.Carburant, prix, co2 float64) models.Vehicule {
		transmission := models.TransmissionManuelle
		if carburant == models.CarburantElectrique || carburant == models.CarburantHybride {
			transmission = models.TransmissionAutomatique
		}
		return models.Vehicule{
			Marque:          marque,
			Modele:          modele,
			Carburant:       carburant,
			Transmission:    transmission,
			NombrePlaces:    5,
			Annee:           2023,
			Immatriculation: plate,
			EmissionsCO2:    co2,
			PrixParJour:     prix,
			Statut:          models.VehicleDisponible,
		}
	}
	return []demoAgency{
		{
			agence: models.Agence{
				Nom: "VitaRenta Paris Gare de Lyon", Adresse: "20 Boulevard Diderot", Ville: "Paris",
				CodePostal: "75012", Pays: "France", Telephone: "+33 1 40 00 00 01",
				Email: "paris@vitarenta.fr", Active: true,
			},
			vehicles: []models.Vehicule{
				car("Renault", "Zoe", "FR-101-EV", models.CarburantElectrique, 45, 0),
				car("Tesla", "Model 3", "FR-102-EV", models.CarburantElectrique, 95, 0),
				car("Toyota", "Yaris Hybrid", "FR-103-HY", models.CarburantHybride, 42, 92),
				car("Peugeot", "308", "FR-104-DI", models.CarburantDiesel, 48, 118),
			},
		},
		{
			agence: models.Agence{
				Nom: "VitaRenta Lyon Part-Dieu", Adresse: "5 Place Charles Béraudier", Ville: "Lyon",
				CodePostal: "69003", Pays: "France", Telephone: "+33 4 72 00 00 02",
				Email: "lyon@vitarenta.fr", Active: true,
			},
			vehicles: []models.Vehicule{
				car("Peugeot", "e-208", "FR-201-EV", models.CarburantElectrique, 50, 0),
				car("Toyota", "C-HR", "FR-202-HY", models.CarburantHybride, 60, 110),
				car("Renault", "Clio", "FR-203-ES", models.CarburantEssence, 35, 125),
			},
		},
	}
}

func demoChallenges() []models.EcoChallenge {
	return []models.EcoChallenge{
		{
			Title:        "Premiers kilomètres électriques",
			Description:  "Roulez 100 km en véhicule électrique.",
			Type:         models.ChallengeElectricUsage,
			Difficulty:   models.DifficultyBeginner,
			TargetValue:  100,
			Unit:         "km",
			RewardPoints: 50,
			DurationDays: 14,
			Featured:     true,
		},
		{
			Title:        "Conduite souple",
			Description:  "Économisez 20 kg de CO2 par rapport à un véhicule thermique.",
			Type:         models.ChallengeCO2Reduction,
			Difficulty:   models.DifficultyIntermediate,
			TargetValue:  20,
			Unit:         "kg_co2",
			RewardPoints: 120,
			RewardCredit: 10,
			DurationDays: 30,
		},
		{
			Title:           "Marathon zéro émission",
			Description:     "Parcourez 1000 km sans émission en un mois.",
			Type:            models.ChallengeDistanceReduction,
			Difficulty:      models.DifficultyAdvanced,
			TargetValue:     1000,
			Unit:            "km",
			RewardPoints:    400,
			RewardBadge:     "Ambassadeur VitaRenta",
			DurationDays:    30,
			MaxParticipants: 100,
		},
	}
}

// seedDemo inserts the demo data that is not already present. Running it
// twice creates nothing the second time.
func seedDemo(ctx context.Context, agencies db.AgencyCollection, vehicles db.VehicleCollection, challenges db.ChallengeCollection) (seedResult, error) {
	var res seedResult
	now := time.Now().UTC()

	for _, demo := range demoFleet() {
		agence := demo.agence
		existing, err := agencies.FindAgencies(ctx, db.AgencyFilter{Ville: agence.Ville})
		if err != nil {
			return res, fmt.Errorf("find agencies: %w", err)
		}
		found := false
		for _, a := range existing {
			if a.Nom == agence.Nom {
				agence = a
				found = true
				break
			}
		}
		if !found {
			if err := agencies.InsertAgency(ctx, &agence); err != nil {
				return res, fmt.Errorf("insert agency %q: %w", agence.Nom, err)
			}
			res.Agencies++
		}

		for _, v := range demo.vehicles {
			v.AgenceID = agence.ID.Hex()
			err := vehicles.InsertVehicle(ctx, &v)
			if errors.Is(err, db.ErrDuplicate) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("insert vehicle %s: %w", v.Immatriculation, err)
			}
			res.Vehicles++
		}
	}

	existing, err := challenges.FindChallenges(ctx, db.ChallengeFilter{})
	if err != nil {
		return res, fmt.Errorf("find challenges: %w", err)
	}
	titles := make(map[string]bool, len(existing))
	for _, c := range existing {
		titles[c.Title] = true
	}
	for _, c := range demoChallenges() {
		if titles[c.Title] {
			continue
		}
		c.IsActive = true
		c.ValidFrom = now
		if err := challenges.InsertChallenge(ctx, &c); err != nil {
			return res, fmt.Errorf("insert challenge %q: %w", c.Title, err)
		}
		res.Challenges++
	}

	log.WithFields(log.Fields{
		"agencies":   res.Agencies,
		"vehicles":   res.Vehicles,
		"challenges": res.Challenges,
	}).Info("Demo data seeded")
	return res, nil
}
