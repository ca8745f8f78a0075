package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

const framinghamCeiling = 80.0

// framinghamBaseline returns the baseline 10-year incident-CKD risk (%) by
// age band; male sex carries a flat additive increment applied before the
// multiplicative factors.
func framinghamBaseline(age int) float64 {
	switch {
	case age < 50:
		return 3.0
	case age < 60:
		return 6.0
	case age < 70:
		return 9.0
	default:
		return 12.0
	}
}

// framinghamRules is the ordered multiplicative adjustment table for the
// Framingham-based 10-year CKD risk estimate.
var framinghamRules = []multRule{
	{factor: "diabetes", detail: "×1.8", mult: 1.8,
		when: func(s *domain.PatientSnapshot) bool { return s.Diabetes }},
	{factor: "hypertension", detail: "×1.5", mult: 1.5,
		when: func(s *domain.PatientSnapshot) bool { return s.Hypertension }},
	{factor: "current smoking", detail: "×1.4", mult: 1.4,
		when: func(s *domain.PatientSnapshot) bool { return s.Smoking == domain.SmokerCurrent }},
	{factor: "obesity", detail: "BMI ≥30 kg/m², ×1.3", mult: 1.3,
		when: func(s *domain.PatientSnapshot) bool { return s.BMI != nil && *s.BMI >= 30 }},
	{factor: "cardiovascular disease", detail: "×1.6", mult: 1.6,
		when: func(s *domain.PatientSnapshot) bool { return s.CardiovascularDz }},
	{factor: "low HDL proxy", detail: "peripheral vascular disease, ×1.2", mult: 1.2,
		when: func(s *domain.PatientSnapshot) bool { return s.PeripheralVascular }},
}

// FraminghamCKD computes the Framingham-derived 10-year risk of incident
// CKD as a percentage. Baseline risk by age band, +2 percentage points for
// male sex, then the ordered multiplier table, capped at 80% and rounded to
// one decimal.
//
// Categories: <10% low, 10–20% moderate, >20% high.
func FraminghamCKD(s *domain.PatientSnapshot) (*domain.Classification, error) {
	if err := requireAge(s, "Framingham-CKD"); err != nil {
		return nil, err
	}

	base := framinghamBaseline(s.Age)
	components := []domain.RiskComponent{
		{Factor: "baseline", Effect: base, Kind: "baseline",
			Detail: fmt.Sprintf("age %d baseline 10-yr risk", s.Age)},
	}

	if s.Sex == domain.Male {
		base += 2.0
		components = append(components, domain.RiskComponent{
			Factor: "male sex", Effect: 2.0, Kind: "points", Detail: "+2 percentage points",
		})
	}

	risk, multComponents := applyMultRules(s, base, framinghamRules)
	// applyMultRules re-emits a baseline component; drop it to keep the
	// breakdown in true application order.
	components = append(components, multComponents[1:]...)

	risk = capAndRound(risk, framinghamCeiling)

	var category domain.RiskCategory
	switch {
	case risk < 10:
		category = domain.RiskLow
	case risk <= 20:
		category = domain.RiskModerate
	default:
		category = domain.RiskHigh
	}

	return &domain.Classification{
		Model:          "Framingham-CKD",
		RiskValue:      risk,
		RiskUnit:       "percent",
		Category:       category,
		Components:     components,
		Interpretation: fmt.Sprintf("Estimated 10-year risk of incident CKD: %.1f%% (%s).", risk, category),
	}, nil
}
