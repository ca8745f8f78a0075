package ehr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func validSnapshot(patientID string) *domain.PatientSnapshot {
	return &domain.PatientSnapshot{
		PatientID: patientID,
		Age:       68,
		Sex:       domain.Male,
		EGFR:      domain.Float(55),
	}
}

func TestClient_GetSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patients/pt-100/snapshot", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(validSnapshot("pt-100"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"}, testLogger())

	s, err := client.GetSnapshot(context.Background(), "pt-100")
	require.NoError(t, err)
	assert.Equal(t, "pt-100", s.PatientID)
	require.NotNil(t, s.EGFR)
	assert.InDelta(t, 55, *s.EGFR, 0.001)
}

func TestClient_GetSnapshotNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())

	_, err := client.GetSnapshot(context.Background(), "pt-404")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_GetSnapshotServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())

	_, err := client.GetSnapshot(context.Background(), "pt-100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestClient_GetSnapshotRejectsInvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No kidney marker at all
		json.NewEncoder(w).Encode(&domain.PatientSnapshot{
			PatientID: "pt-100",
			Age:       68,
			Sex:       domain.Male,
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())

	_, err := client.GetSnapshot(context.Background(), "pt-100")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

type flakyProvider struct {
	err   error
	calls int
}

func (p *flakyProvider) GetSnapshot(_ context.Context, patientID string) (*domain.PatientSnapshot, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return validSnapshot(patientID), nil
}

func breakerConfig() domain.EngineConfig {
	return domain.EngineConfig{
		BreakerMaxRequests: 1,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     time.Minute,
	}
}

func TestResilientProvider_PassesThrough(t *testing.T) {
	inner := &flakyProvider{}
	provider := NewResilientProvider(inner, breakerConfig(), testLogger())

	s, err := provider.GetSnapshot(context.Background(), "pt-100")
	require.NoError(t, err)
	assert.Equal(t, "pt-100", s.PatientID)
	assert.Equal(t, gobreaker.StateClosed, provider.State())
}

func TestResilientProvider_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("gateway down")}
	provider := NewResilientProvider(inner, breakerConfig(), testLogger())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := provider.GetSnapshot(ctx, "pt-100")
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, provider.State())

	callsBefore := inner.calls
	_, err := provider.GetSnapshot(ctx, "pt-100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, callsBefore, inner.calls, "open breaker must not call the gateway")
}

func TestResilientProvider_NotFoundDoesNotTrip(t *testing.T) {
	inner := &flakyProvider{err: domain.ErrNotFound}
	provider := NewResilientProvider(inner, breakerConfig(), testLogger())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := provider.GetSnapshot(ctx, "pt-404")
		require.ErrorIs(t, err, domain.ErrNotFound)
	}

	assert.Equal(t, gobreaker.StateClosed, provider.State())
}
