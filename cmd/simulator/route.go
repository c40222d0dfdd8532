package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/ukydev/vitarenta/internal/models"
	"golang.org/x/time/rate"
)

var errNoRoute = errors.New("no route")

// routeClient fetches driving routes from an OSRM server. Calls are throttled
// and go through a circuit breaker so a dead routing service does not stall
// every vehicle.
type routeClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]models.Location]
}

func newRouteClient(baseURL string, perSecond float64) *routeClient {
	return &routeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		cb: gobreaker.NewCircuitBreaker[[]models.Location](gobreaker.Settings{
			Name:        "osrm",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// an unroutable pair is not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errNoRoute)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(log.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Route service circuit breaker changed state")
			},
		}),
	}
}

// Route returns the driving path between start and end.
func (c *routeClient) Route(ctx context.Context, start, end models.Location) ([]models.Location, error) {
	return c.cb.Execute(func() ([]models.Location, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, start, end)
	})
}

func (c *routeClient) fetch(ctx context.Context, start, end models.Location) ([]models.Location, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, start.Lon, start.Lat, end.Lon, end.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var body struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode osrm response: %w", err)
	}
	if len(body.Routes) == 0 || len(body.Routes[0].Geometry.Coordinates) < 2 {
		return nil, errNoRoute
	}
	coords := body.Routes[0].Geometry.Coordinates
	pts := make([]models.Location, 0, len(coords))
	for _, p := range coords {
		if len(p) < 2 {
			continue
		}
		// GeoJSON order is lon, lat
		pts = append(pts, models.Location{Lat: p[1], Lon: p[0]})
	}
	if len(pts) < 2 {
		return nil, errNoRoute
	}
	return pts, nil
}
