package analytics

import (
	"math"
	"time"
)

// Holt smoothing factors for level and trend.
const (
	Alpha = 0.5
	Beta  = 0.3
)

const dayLayout = "2006-01-02"

// DailyCount is the number of reservations created on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ForecastPoint is the predicted reservation count for one UTC day.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DemandForecast pairs the observed history with the forecast that follows it.
type DemandForecast struct {
	AgenceID string          `json:"agence_id,omitempty"`
	History  []DailyCount    `json:"history"`
	Forecast []ForecastPoint `json:"forecast"`
}

// Holt runs linear exponential smoothing over series and returns horizon
// predictions. Predictions are clamped at zero and rounded to 2 decimals.
func Holt(series []float64, horizon int, alpha, beta float64) []float64 {
	if horizon <= 0 {
		return nil
	}
	out := make([]float64, horizon)
	if len(series) == 0 {
		return out
	}

	level := series[0]
	trend := 0.0
	if len(series) > 1 {
		trend = series[1] - series[0]
	}
	for _, y := range series[1:] {
		prev := level
		level = alpha*y + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
	}

	for h := range out {
		v := level + float64(h+1)*trend
		if v < 0 {
			v = 0
		}
		out[h] = math.Round(v*100) / 100
	}
	return out
}

// fillDays expands sparse per-day counts into days consecutive entries
// ending on the UTC day of end. Missing days count zero.
func fillDays(counts map[string]int64, end time.Time, days int) []DailyCount {
	start := truncateDay(end).AddDate(0, 0, -(days - 1))
	out := make([]DailyCount, days)
	for i := range out {
		d := start.AddDate(0, 0, i).Format(dayLayout)
		out[i] = DailyCount{Date: d, Count: counts[d]}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
