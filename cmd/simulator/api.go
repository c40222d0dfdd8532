package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
)

// apiClient talks to the VitaRenta REST API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}, want int) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Login exchanges credentials for an access token and keeps it for later calls.
func (c *apiClient) Login(ctx context.Context, email, password string) error {
	var resp models.LoginResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp, http.StatusOK); err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("login returned no token")
	}
	c.token = resp.Token
	return nil
}

// CreateVehicle registers v and returns its id.
func (c *apiClient) CreateVehicle(ctx context.Context, v *models.Vehicule) (string, error) {
	var created models.Vehicule
	if err := c.do(ctx, http.MethodPost, "/vehicles", v, &created, http.StatusCreated); err != nil {
		return "", err
	}
	if created.ID.IsZero() {
		return "", fmt.Errorf("invalid vehicle id in response")
	}
	return created.ID.Hex(), nil
}

// PostTelemetry sends one sample to POST /telemetry.
func (c *apiClient) PostTelemetry(ctx context.Context, t *models.Telemetry) error {
	return c.do(ctx, http.MethodPost, "/telemetry", t, nil, http.StatusCreated)
}
