package rental

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/models"
)

var (
	ErrInvalidPeriod = errors.New("date_fin must be after date_debut")
	ErrStartInPast   = errors.New("date_debut cannot be in the past")
	ErrTooLong       = errors.New("rental period exceeds the maximum duration")
)

// WeeklyDiscountDays is the rental length from which the weekly discount applies.
const WeeklyDiscountDays = 7

// Days returns the number of billable days in [start, end): every started
// 24 hour block counts as a day.
func Days(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

// ValidatePeriod checks a requested period against now and returns its
// length in days.
func ValidatePeriod(start, end, now time.Time, maxDays int) (int, error) {
	if !end.After(start) {
		return 0, ErrInvalidPeriod
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if start.UTC().Before(today) {
		return 0, ErrStartInPast
	}
	days := Days(start, end)
	if days < 1 {
		days = 1
	}
	if maxDays > 0 && days > maxDays {
		return 0, fmt.Errorf("%w (%d days, max %d)", ErrTooLong, days, maxDays)
	}
	return days, nil
}

// Pricing computes reservation totals from the configured daily rates.
type Pricing struct {
	cfg config.RentalConfig
}

// NewPricing returns a calculator for the given rates.
func NewPricing(cfg config.RentalConfig) Pricing {
	return Pricing{cfg: cfg}
}

// InsuranceDaily returns the per-day price of an insurance level.
func (p Pricing) InsuranceDaily(a models.Assurance) float64 {
	switch a {
	case models.AssuranceStandard:
		return p.cfg.InsuranceStandard
	case models.AssurancePremium:
		return p.cfg.InsurancePremium
	default:
		return 0
	}
}

// OptionsDaily returns the per-day price of the requested extras.
func (p Pricing) OptionsDaily(req *models.ReservationRequest) float64 {
	var total float64
	if req.ConducteurSupplementaire {
		total += p.cfg.AdditionalDriver
	}
	if req.GPS {
		total += p.cfg.GPS
	}
	if req.SiegeEnfant {
		total += p.cfg.ChildSeat
	}
	return total
}

// Price returns the breakdown for days of rental at dailyRate. The total is
// computed unrounded and rounded to cents once; the component amounts are
// rounded for display only.
func (p Pricing) Price(days int, dailyRate float64, req *models.ReservationRequest) models.PriceBreakdown {
	d := float64(days)
	location := d * dailyRate
	assurance := d * p.InsuranceDaily(req.Assurance)
	options := d * p.OptionsDaily(req)
	subtotal := location + assurance + options
	var remise float64
	if days >= WeeklyDiscountDays {
		remise = subtotal * p.cfg.WeeklyDiscount
	}
	return models.PriceBreakdown{
		Location:     round2(location),
		Assurance:    round2(assurance),
		Options:      round2(options),
		Remise:       round2(remise),
		MontantTotal: round2(subtotal - remise),
	}
}

// Quote validates the requested period and prices it for vehicle v.
func (p Pricing) Quote(v *models.Vehicule, req *models.ReservationRequest, now time.Time) (models.Quote, error) {
	days, err := ValidatePeriod(req.DateDebut, req.DateFin, now, p.cfg.MaxDays)
	if err != nil {
		return models.Quote{}, err
	}
	b := p.Price(days, v.PrixParJour, req)
	return models.Quote{
		NombreJours:  days,
		MontantTotal: b.MontantTotal,
		Breakdown:    b,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
