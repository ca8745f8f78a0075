package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

const preventCeiling = 85.0

// preventBaseline returns the baseline 10-year total-CVD risk (%) by age
// band and sex for the AHA PREVENT equations. PREVENT was derived without a
// race term and carries kidney measures as first-class predictors.
// Reference: Khan et al. (2024) Development and validation of the American
// Heart Association PREVENT equations. Circulation. 149(6):430-49.
func preventBaseline(age int, sex domain.Sex) float64 {
	var base float64
	switch {
	case age < 40:
		base = 0.8
	case age < 50:
		base = 1.5
	case age < 60:
		base = 2.5
	case age < 70:
		base = 3.5
	default:
		base = 6.0
	}
	if sex == domain.Male {
		base *= 1.3
	}
	return base
}

// preventRules is the ordered multiplicative adjustment table. The eGFR and
// albuminuria bands make kidney disease a direct CVD risk amplifier.
var preventRules = []multRule{
	{factor: "diabetes", detail: "×1.9", mult: 1.9,
		when: func(s *domain.PatientSnapshot) bool { return s.Diabetes }},
	{factor: "current smoking", detail: "×1.6", mult: 1.6,
		when: func(s *domain.PatientSnapshot) bool { return s.Smoking == domain.SmokerCurrent }},
	{factor: "elevated systolic BP", detail: "SBP 140-159 mmHg, ×1.3", mult: 1.3,
		when: func(s *domain.PatientSnapshot) bool {
			return s.SystolicBP != nil && *s.SystolicBP >= 140 && *s.SystolicBP < 160
		}},
	{factor: "severely elevated systolic BP", detail: "SBP ≥160 mmHg, ×1.6", mult: 1.6,
		when: func(s *domain.PatientSnapshot) bool { return s.SystolicBP != nil && *s.SystolicBP >= 160 }},
	{factor: "reduced eGFR", detail: "eGFR 45-59 mL/min/1.73m², ×1.3", mult: 1.3,
		when: func(s *domain.PatientSnapshot) bool {
			return s.EGFR != nil && *s.EGFR >= 45 && *s.EGFR < 60
		}},
	{factor: "severely reduced eGFR", detail: "eGFR <45 mL/min/1.73m², ×1.7", mult: 1.7,
		when: func(s *domain.PatientSnapshot) bool { return s.EGFR != nil && *s.EGFR < 45 }},
	{factor: "albuminuria", detail: "uACR ≥30 mg/g, ×1.4", mult: 1.4,
		when: func(s *domain.PatientSnapshot) bool { return s.UACR != nil && *s.UACR >= 30 }},
	{factor: "obesity", detail: "BMI ≥30 kg/m², ×1.2", mult: 1.2,
		when: func(s *domain.PatientSnapshot) bool { return s.BMI != nil && *s.BMI >= 30 }},
	{factor: "established cardiovascular disease", detail: "×1.8", mult: 1.8,
		when: func(s *domain.PatientSnapshot) bool { return s.CardiovascularDz }},
}

// AHAPrevent computes the AHA PREVENT 10-year total cardiovascular disease
// risk as a percentage: baseline by age band and sex, the ordered multiplier
// table, cap 85%, round to one decimal.
//
// Categories: <5% low, 5–7.5% moderate, 7.5–20% high, >20% very high,
// matching the borderline/intermediate/high treatment bands used for
// statin and SGLT2i decision support.
func AHAPrevent(s *domain.PatientSnapshot) (*domain.Classification, error) {
	if err := requireAge(s, "AHA-PREVENT"); err != nil {
		return nil, err
	}
	if !s.Sex.IsValid() {
		return nil, &domain.ValidationError{Field: "sex", Message: "AHA-PREVENT requires biological sex", Value: s.Sex}
	}

	risk, components := applyMultRules(s, preventBaseline(s.Age, s.Sex), preventRules)
	risk = capAndRound(risk, preventCeiling)

	var category domain.RiskCategory
	switch {
	case risk < 5:
		category = domain.RiskLow
	case risk < 7.5:
		category = domain.RiskModerate
	case risk < 20:
		category = domain.RiskHigh
	default:
		category = domain.RiskVeryHigh
	}

	return &domain.Classification{
		Model:          "AHA-PREVENT",
		RiskValue:      risk,
		RiskUnit:       "percent",
		Category:       category,
		Components:     components,
		Interpretation: fmt.Sprintf("Estimated 10-year total CVD risk: %.1f%% (%s).", risk, category),
	}, nil
}
