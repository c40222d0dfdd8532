package analytics

import (
	"math"
	"sort"

	"github.com/ukydev/vitarenta/internal/models"
)

// Scoring weights.
const (
	fuelMatchScore   = 3.0
	budgetScore      = 2.0
	emissionsScore   = 2.0
	popularityScore  = 1.0
	referenceCO2     = 200.0 // g/km at which the emissions bonus reaches zero
	lowEmissionFloor = 1.0
)

// Recommendation is a scored vehicle suggestion.
type Recommendation struct {
	Vehicle models.Vehicule `json:"vehicle"`
	Score   float64         `json:"score"`
	Reasons []string        `json:"reasons"`
}

// Score rates v for user. popularity is the vehicle's reservation count
// divided by the highest count in the fleet, in [0, 1].
func Score(user *models.User, v *models.Vehicule, popularity float64) (float64, []string) {
	var score float64
	reasons := []string{}

	if user.PreferenceCarburant != "" && v.Carburant == user.PreferenceCarburant {
		score += fuelMatchScore
		reasons = append(reasons, "matches fuel preference")
	}

	if budget := user.BudgetJournalier; budget > 0 {
		if v.PrixParJour <= budget {
			score += budgetScore
			reasons = append(reasons, "within daily budget")
		} else {
			score -= math.Min(budgetScore, budgetScore*(v.PrixParJour-budget)/budget)
		}
	}

	var eco float64
	switch {
	case v.Carburant == models.CarburantElectrique:
		eco = emissionsScore
	case v.EmissionsCO2 > 0:
		eco = emissionsScore * math.Max(0, (referenceCO2-v.EmissionsCO2)/referenceCO2)
	}
	if eco >= lowEmissionFloor {
		reasons = append(reasons, "low emissions")
	}
	score += eco

	if popularity > 0 {
		score += popularityScore * math.Min(1, popularity)
		if popularity >= 0.5 {
			reasons = append(reasons, "popular with other renters")
		}
	}
	return math.Round(score*100) / 100, reasons
}

// Rank scores every vehicle and returns the best limit, highest score first.
// Ties go to the cheaper vehicle, then to the lower id.
func Rank(user *models.User, vehicles []models.Vehicule, counts map[string]int64, limit int) []Recommendation {
	var top int64
	for _, n := range counts {
		if n > top {
			top = n
		}
	}

	recs := make([]Recommendation, 0, len(vehicles))
	for _, v := range vehicles {
		var pop float64
		if top > 0 {
			pop = float64(counts[v.ID.Hex()]) / float64(top)
		}
		score, reasons := Score(user, &v, pop)
		recs = append(recs, Recommendation{Vehicle: v, Score: score, Reasons: reasons})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Vehicle.PrixParJour != b.Vehicle.PrixParJour {
			return a.Vehicle.PrixParJour < b.Vehicle.PrixParJour
		}
		return a.Vehicle.ID.Hex() < b.Vehicle.ID.Hex()
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
