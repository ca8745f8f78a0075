package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

const nelsonCeiling = 80.0

// nelsonBaseline returns the baseline 5-year incident-CKD risk (%) by age
// band for the Nelson/CKD-PC model.
// Reference: Nelson et al. (2019) Development of risk prediction equations
// for incident chronic kidney disease. JAMA. 322(21):2104-14.
func nelsonBaseline(age int) float64 {
	switch {
	case age < 50:
		return 1.5
	case age < 60:
		return 2.5
	case age < 70:
		return 4.0
	default:
		return 6.0
	}
}

// nelsonRules is the ordered multiplicative adjustment table. Albuminuria
// rules are mutually exclusive by construction (A2 vs A3 bands).
var nelsonRules = []multRule{
	{factor: "diabetes", detail: "×2.2", mult: 2.2,
		when: func(s *domain.PatientSnapshot) bool { return s.Diabetes }},
	{factor: "poor glycemic control", detail: "HbA1c >8%, ×1.3", mult: 1.3,
		when: func(s *domain.PatientSnapshot) bool {
			return s.Diabetes && s.HbA1c != nil && *s.HbA1c > 8
		}},
	{factor: "hypertension", detail: "×1.6", mult: 1.6,
		when: func(s *domain.PatientSnapshot) bool { return s.Hypertension }},
	{factor: "elevated systolic BP", detail: "SBP ≥140 mmHg, ×1.2", mult: 1.2,
		when: func(s *domain.PatientSnapshot) bool { return s.SystolicBP != nil && *s.SystolicBP >= 140 }},
	{factor: "cardiovascular disease", detail: "×1.4", mult: 1.4,
		when: func(s *domain.PatientSnapshot) bool { return s.CardiovascularDz }},
	{factor: "heart failure", detail: "×1.5", mult: 1.5,
		when: func(s *domain.PatientSnapshot) bool { return s.HeartFailure }},
	{factor: "current smoking", detail: "×1.3", mult: 1.3,
		when: func(s *domain.PatientSnapshot) bool { return s.Smoking == domain.SmokerCurrent }},
	{factor: "obesity", detail: "BMI ≥30 kg/m², ×1.2", mult: 1.2,
		when: func(s *domain.PatientSnapshot) bool { return s.BMI != nil && *s.BMI >= 30 }},
	{factor: "microalbuminuria", detail: "uACR 30-300 mg/g, ×1.8", mult: 1.8,
		when: func(s *domain.PatientSnapshot) bool {
			return s.UACR != nil && *s.UACR >= 30 && *s.UACR <= 300
		}},
	{factor: "macroalbuminuria", detail: "uACR >300 mg/g, ×2.5", mult: 2.5,
		when: func(s *domain.PatientSnapshot) bool { return s.UACR != nil && *s.UACR > 300 }},
	{factor: "female sex", detail: "×0.9", mult: 0.9,
		when: func(s *domain.PatientSnapshot) bool { return s.Sex == domain.Female }},
}

// NelsonCKDPC computes the Nelson/CKD-PC 5-year incident-CKD risk as a
// percentage: baseline by age band, the ordered multiplier table, cap 80%,
// round to one decimal.
//
// Categories: <5% low, 5–15% moderate, 15–25% high, >25% very high.
func NelsonCKDPC(s *domain.PatientSnapshot) (*domain.Classification, error) {
	if err := requireAge(s, "Nelson/CKD-PC"); err != nil {
		return nil, err
	}

	risk, components := applyMultRules(s, nelsonBaseline(s.Age), nelsonRules)
	risk = capAndRound(risk, nelsonCeiling)

	var category domain.RiskCategory
	switch {
	case risk < 5:
		category = domain.RiskLow
	case risk < 15:
		category = domain.RiskModerate
	case risk < 25:
		category = domain.RiskHigh
	default:
		category = domain.RiskVeryHigh
	}

	return &domain.Classification{
		Model:          "Nelson/CKD-PC",
		RiskValue:      risk,
		RiskUnit:       "percent",
		Category:       category,
		Components:     components,
		Interpretation: fmt.Sprintf("Estimated 5-year risk of incident CKD: %.1f%% (%s).", risk, category),
	}, nil
}
