package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// SCORED point threshold: a total of 4 or more indicates an approximately
// 20% likelihood of prevalent CKD and warrants confirmatory testing.
const scoredHighThreshold = 4

// scoredRules is the ordered SCORED adjustment table.
// Reference: Bang et al. (2007) SCreening for Occult REnal Disease (SCORED).
// Arch Intern Med. 167(4):374-81.
var scoredRules = []pointRule{
	{factor: "age 50-59", detail: "+2 points", points: 2,
		when: func(s *domain.PatientSnapshot) bool { return s.Age >= 50 && s.Age <= 59 }},
	{factor: "age 60-69", detail: "+3 points", points: 3,
		when: func(s *domain.PatientSnapshot) bool { return s.Age >= 60 && s.Age <= 69 }},
	{factor: "age ≥70", detail: "+4 points", points: 4,
		when: func(s *domain.PatientSnapshot) bool { return s.Age >= 70 }},
	{factor: "female sex", detail: "+1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Sex == domain.Female }},
	{factor: "anemia", detail: "hemoglobin <12 g/dL, +1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Hemoglobin != nil && *s.Hemoglobin < 12 }},
	{factor: "hypertension", detail: "+1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Hypertension }},
	{factor: "diabetes", detail: "+1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.Diabetes }},
	{factor: "cardiovascular disease", detail: "history of MI or stroke, +1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.CardiovascularDz }},
	{factor: "heart failure", detail: "+1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.HeartFailure }},
	{factor: "peripheral vascular disease", detail: "+1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.PeripheralVascular }},
	{factor: "proteinuria", detail: "uACR ≥30 mg/g, +1 point", points: 1,
		when: func(s *domain.PatientSnapshot) bool { return s.UACR != nil && *s.UACR >= 30 }},
}

// SCORED computes the SCreening for Occult REnal Disease point score. It is
// a case-finding instrument: points accumulate over the ordered factor
// table, and a total ≥4 marks the patient high risk for undetected CKD.
func SCORED(s *domain.PatientSnapshot) (*domain.Classification, error) {
	if err := requireAge(s, "SCORED"); err != nil {
		return nil, err
	}

	points, components := applyPointRules(s, scoredRules)

	category := domain.RiskLow
	interpretation := fmt.Sprintf("SCORED total %d points: low likelihood of occult CKD.", int(points))
	if points >= scoredHighThreshold {
		category = domain.RiskHigh
		interpretation = fmt.Sprintf("SCORED total %d points (≥%d): approximately 1 in 5 probability of undetected CKD; confirm with serum creatinine and uACR.",
			int(points), scoredHighThreshold)
	}

	return &domain.Classification{
		Model:          "SCORED",
		RiskValue:      points,
		RiskUnit:       "points",
		Category:       category,
		Components:     components,
		Interpretation: interpretation,
	}, nil
}
