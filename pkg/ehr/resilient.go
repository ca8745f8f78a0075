package ehr

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// ResilientProvider wraps a snapshot provider with a circuit breaker so a
// failing EHR gateway sheds load fast instead of stalling evaluations.
type ResilientProvider struct {
	inner   domain.SnapshotProvider
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewResilientProvider wraps inner with a circuit breaker tuned by the
// engine config.
func NewResilientProvider(inner domain.SnapshotProvider, cfg domain.EngineConfig, logger *logrus.Logger) *ResilientProvider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EHR",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// A missing patient is a clean answer, not a gateway failure.
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
	})

	return &ResilientProvider{
		inner:   inner,
		breaker: breaker,
		log:     logger,
	}
}

// GetSnapshot fetches a snapshot through the circuit breaker.
func (p *ResilientProvider) GetSnapshot(ctx context.Context, patientID string) (*domain.PatientSnapshot, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.GetSnapshot(ctx, patientID)
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("ehr gateway unavailable (circuit breaker open): %w", err)
		}
		return nil, err
	}

	return result.(*domain.PatientSnapshot), nil
}

// State returns the breaker's current state, for health reporting.
func (p *ResilientProvider) State() gobreaker.State {
	return p.breaker.State()
}

// Counts returns the breaker's rolling counters.
func (p *ResilientProvider) Counts() gobreaker.Counts {
	return p.breaker.Counts()
}
