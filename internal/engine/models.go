package engine

import (
	"fmt"
	"math"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// The risk-score models share one mechanical shape: a baseline value keyed
// to age band and/or sex, followed by a fixed, ordered list of factor
// adjustments, then a cap and a final round to one decimal. Each adjustment
// is an explicit (predicate, effect) entry so the exact cut points and their
// order are auditable and testable in isolation.

// pointRule is one additive adjustment in a points-based model.
type pointRule struct {
	factor string
	detail string
	when   func(s *domain.PatientSnapshot) bool
	points float64
}

// multRule is one multiplicative adjustment in a percentage-based model.
type multRule struct {
	factor string
	detail string
	when   func(s *domain.PatientSnapshot) bool
	mult   float64
}

// applyPointRules evaluates the rules in order, summing the points of every
// matching rule and recording each as a component.
func applyPointRules(s *domain.PatientSnapshot, rules []pointRule) (float64, []domain.RiskComponent) {
	total := 0.0
	components := make([]domain.RiskComponent, 0, len(rules))
	for _, r := range rules {
		if r.when(s) {
			total += r.points
			components = append(components, domain.RiskComponent{
				Factor: r.factor,
				Effect: r.points,
				Kind:   "points",
				Detail: r.detail,
			})
		}
	}
	return total, components
}

// applyMultRules evaluates the rules in order, multiplying the running risk
// by every matching rule's factor and recording each as a component.
func applyMultRules(s *domain.PatientSnapshot, base float64, rules []multRule) (float64, []domain.RiskComponent) {
	risk := base
	components := make([]domain.RiskComponent, 0, len(rules)+1)
	components = append(components, domain.RiskComponent{
		Factor: "baseline",
		Effect: base,
		Kind:   "baseline",
	})
	for _, r := range rules {
		if r.when(s) {
			risk *= r.mult
			components = append(components, domain.RiskComponent{
				Factor: r.factor,
				Effect: r.mult,
				Kind:   "multiplier",
				Detail: r.detail,
			})
		}
	}
	return risk, components
}

// capAndRound clamps a percentage to its model ceiling and rounds to one
// decimal place. Rounding happens after capping.
func capAndRound(pct, ceiling float64) float64 {
	if pct > ceiling {
		pct = ceiling
	}
	return round1(pct)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func requireAge(s *domain.PatientSnapshot, model string) error {
	if s.Age <= 0 {
		return &domain.ValidationError{Field: "age", Message: fmt.Sprintf("%s requires a positive age", model), Value: s.Age}
	}
	return nil
}
