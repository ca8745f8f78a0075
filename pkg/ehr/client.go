// Package ehr provides a snapshot provider backed by an EHR gateway, plus a
// circuit-breaker wrapper for use in front of any provider.
package ehr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Config carries the EHR gateway connection settings.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Client fetches patient snapshots from an EHR gateway over HTTP. It
// implements domain.SnapshotProvider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a new EHR gateway client.
func NewClient(config Config, logger *logrus.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

// GetSnapshot fetches the point-in-time snapshot for a patient from the
// gateway.
func (c *Client) GetSnapshot(ctx context.Context, patientID string) (*domain.PatientSnapshot, error) {
	url := fmt.Sprintf("%s/patients/%s/snapshot", c.baseURL, patientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("patient %s: %w", patientID, domain.ErrNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"status":     resp.StatusCode,
		}).Error("EHR gateway returned error status")
		return nil, fmt.Errorf("ehr gateway status %d: %s", resp.StatusCode, string(body))
	}

	var snapshot domain.PatientSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("gateway snapshot for %s: %w", patientID, err)
	}

	return &snapshot, nil
}
