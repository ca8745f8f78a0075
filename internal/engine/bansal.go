package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// bansalRules is the ordered point table for the Bansal 5-year mortality
// score in older adults with CKD. Age, eGFR, and albuminuria bands are each
// mutually exclusive by construction.
// Reference: Bansal et al. (2015) Development and validation of a model to
// predict 5-year risk of death without ESRD among older adults with CKD.
// Clin J Am Soc Nephrol. 10(3):363-71.
var bansalRules = []pointRule{
	{factor: "age 70-74", detail: "+1", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Age >= 70 && s.Age < 75 }},
	{factor: "age 75-79", detail: "+2", points: 2,
		when: func(s *domain.PatientSnapshot) bool { return s.Age >= 75 && s.Age < 80 }},
	{factor: "age ≥80", detail: "+3", points: 3,
		when: func(s *domain.PatientSnapshot) bool { return s.Age >= 80 }},
	{factor: "male sex", detail: "+1", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Sex == domain.Male }},
	{factor: "current smoking", detail: "+1", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Smoking == domain.SmokerCurrent }},
	{factor: "diabetes", detail: "+1", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Diabetes }},
	{factor: "heart failure", detail: "+2", points: 2,
		when: func(s *domain.PatientSnapshot) bool { return s.HeartFailure }},
	{factor: "cardiovascular disease", detail: "+1", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.CardiovascularDz }},
	{factor: "eGFR 45-59", detail: "+1", points: 1,
		when: func(s *domain.PatientSnapshot) bool {
			return s.EGFR != nil && *s.EGFR >= 45 && *s.EGFR < 60
		}},
	{factor: "eGFR 30-44", detail: "+2", points: 2,
		when: func(s *domain.PatientSnapshot) bool {
			return s.EGFR != nil && *s.EGFR >= 30 && *s.EGFR < 45
		}},
	{factor: "eGFR <30", detail: "+3", points: 3,
		when: func(s *domain.PatientSnapshot) bool { return s.EGFR != nil && *s.EGFR < 30 }},
	{factor: "microalbuminuria", detail: "uACR 30-300 mg/g, +1", points: 1,
		when: func(s *domain.PatientSnapshot) bool {
			return s.UACR != nil && *s.UACR >= 30 && *s.UACR <= 300
		}},
	{factor: "macroalbuminuria", detail: "uACR >300 mg/g, +2", points: 2,
		when: func(s *domain.PatientSnapshot) bool { return s.UACR != nil && *s.UACR > 300 }},
}

// bansalMortalityPct maps a total point count to the observed 5-year
// mortality percentage from the derivation cohort. Points above the top of
// the table saturate at the last entry.
var bansalMortalityPct = []float64{2, 4, 6, 9, 14, 21, 31, 44, 59, 72}

// Bansal computes the Bansal 5-year all-cause mortality risk for older
// adults with CKD: a point count over the ordered factor table, mapped to a
// percentage via the piecewise cohort table.
//
// Categories: <15% low, 15–30% moderate, 30–50% high, >50% very high.
func Bansal(s *domain.PatientSnapshot) (*domain.Classification, error) {
	if err := requireAge(s, "Bansal"); err != nil {
		return nil, err
	}

	points, components := applyPointRules(s, bansalRules)

	idx := int(points)
	if idx >= len(bansalMortalityPct) {
		idx = len(bansalMortalityPct) - 1
	}
	risk := bansalMortalityPct[idx]

	var category domain.RiskCategory
	switch {
	case risk < 15:
		category = domain.RiskLow
	case risk < 30:
		category = domain.RiskModerate
	case risk < 50:
		category = domain.RiskHigh
	default:
		category = domain.RiskVeryHigh
	}

	return &domain.Classification{
		Model:          "Bansal",
		RiskValue:      risk,
		RiskUnit:       "percent",
		Category:       category,
		Components:     components,
		Interpretation: fmt.Sprintf("Bansal score %d points: estimated 5-year mortality %.1f%% (%s).", int(points), risk, category),
	}, nil
}
