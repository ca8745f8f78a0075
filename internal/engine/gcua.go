package engine

import (
	"fmt"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Geriatric Cardiorenal-Urgency Assessment. Combines the three long-range
// risk estimates (5-year incident renal, 10-year CVD, 5-year mortality) into
// one of nine phenotypes via a strict precedence tree, for older adults who
// do not yet have CKD. The precedence order matters: dominant mortality risk
// overrides everything else, then renal-led branches, then CVD-led branches.

// phenotypeCatalog holds the full presentation and treatment bundle for
// every phenotype leaf. Every tree branch terminates in one of these.
var phenotypeCatalog = map[domain.PhenotypeType]domain.Phenotype{
	domain.PhenotypeSenescent: {
		Type:        domain.PhenotypeSenescent,
		DisplayName: "Senescent",
		Color:       "purple",
		Description: "Mortality risk dominates organ-specific risks. Aggressive preventive escalation is unlikely to change outcomes.",
		Strategy: []string{
			"Goals-of-care conversation before any treatment escalation",
			"Deprescribing review, prioritize symptom control",
			"Avoid tight glycemic or BP targets",
		},
		Treatment: domain.TreatmentBundle{
			BPTarget:            "<150/90 (relaxed)",
			MonitoringFrequency: "Every 6 months",
		},
	},
	domain.PhenotypeAcceleratedAger: {
		Type:        domain.PhenotypeAcceleratedAger,
		DisplayName: "Accelerated Ager",
		Color:       "red",
		Description: "High renal and high cardiovascular risk together. Both organ systems are failing faster than chronological age predicts.",
		Strategy: []string{
			"Start SGLT2 inhibitor unless contraindicated",
			"Start or titrate RAS inhibitor",
			"High-intensity statin",
			"Quarterly renal panel and uACR",
		},
		Treatment: domain.TreatmentBundle{
			SGLT2i:              true,
			RASInhibitor:        true,
			Statin:              true,
			BPTarget:            "<130/80",
			MonitoringFrequency: "Every 3 months",
			HomeMonitoring:      true,
		},
	},
	domain.PhenotypeCardiorenalHigh: {
		Type:        domain.PhenotypeCardiorenalHigh,
		DisplayName: "Cardiorenal High",
		Color:       "orange",
		Description: "High renal risk with intermediate cardiovascular risk. Kidney protection leads the plan, CVD prevention rides along.",
		Strategy: []string{
			"Start SGLT2 inhibitor unless contraindicated",
			"RAS inhibitor if albuminuric or hypertensive",
			"Moderate-intensity statin",
			"Renal panel and uACR every 6 months",
		},
		Treatment: domain.TreatmentBundle{
			SGLT2i:              true,
			RASInhibitor:        true,
			Statin:              true,
			BPTarget:            "<130/80",
			MonitoringFrequency: "Every 6 months",
			HomeMonitoring:      true,
		},
	},
	domain.PhenotypeSilentRenal: {
		Type:        domain.PhenotypeSilentRenal,
		DisplayName: "Silent Renal",
		Color:       "orange",
		Description: "High renal risk without matching cardiovascular signal. Easily missed because the patient looks well.",
		Strategy: []string{
			"Confirm albuminuria with repeat uACR",
			"RAS inhibitor if albuminuric",
			"Avoid nephrotoxins, review NSAID use",
			"Renal panel every 6 months",
		},
		Treatment: domain.TreatmentBundle{
			RASInhibitor:        true,
			BPTarget:            "<130/80",
			MonitoringFrequency: "Every 6 months",
			HomeMonitoring:      true,
		},
	},
	domain.PhenotypeCardiorenalModerate: {
		Type:        domain.PhenotypeCardiorenalModerate,
		DisplayName: "Cardiorenal Moderate",
		Color:       "yellow",
		Description: "Moderate renal risk with at least intermediate cardiovascular risk. Shared risk factors drive both.",
		Strategy: []string{
			"Risk-factor modification: BP, glycemia, lipids",
			"Moderate-intensity statin",
			"Annual renal panel and uACR",
		},
		Treatment: domain.TreatmentBundle{
			Statin:              true,
			BPTarget:            "<130/80",
			MonitoringFrequency: "Every 12 months",
		},
	},
	domain.PhenotypeRenalWatch: {
		Type:        domain.PhenotypeRenalWatch,
		DisplayName: "Renal Watch",
		Color:       "yellow",
		Description: "Moderate renal risk, low cardiovascular risk. Surveillance rather than treatment escalation.",
		Strategy: []string{
			"Annual renal panel and uACR",
			"Lifestyle counselling: weight, sodium, smoking",
		},
		Treatment: domain.TreatmentBundle{
			BPTarget:            "<140/90",
			MonitoringFrequency: "Every 12 months",
		},
	},
	domain.PhenotypeVascularDominant: {
		Type:        domain.PhenotypeVascularDominant,
		DisplayName: "Vascular Dominant",
		Color:       "orange",
		Description: "High cardiovascular risk with low renal risk. Standard CVD prevention pathway applies.",
		Strategy: []string{
			"High-intensity statin",
			"BP control to target",
			"Consider cardiology referral",
		},
		Treatment: domain.TreatmentBundle{
			Statin:              true,
			BPTarget:            "<130/80",
			MonitoringFrequency: "Every 6 months",
		},
	},
	domain.PhenotypeCVIntermediate: {
		Type:        domain.PhenotypeCVIntermediate,
		DisplayName: "CV Intermediate",
		Color:       "yellow",
		Description: "Intermediate cardiovascular risk, low renal risk. Risk-enhancer review decides statin initiation.",
		Strategy: []string{
			"Review risk enhancers, consider coronary calcium score",
			"Moderate-intensity statin if enhancers present",
			"Annual review",
		},
		Treatment: domain.TreatmentBundle{
			BPTarget:            "<140/90",
			MonitoringFrequency: "Every 12 months",
		},
	},
	domain.PhenotypeLowRisk: {
		Type:        domain.PhenotypeLowRisk,
		DisplayName: "Low Risk",
		Color:       "green",
		Description: "Low risk across all three axes. Routine preventive care.",
		Strategy: []string{
			"Routine annual screening",
			"Lifestyle maintenance",
		},
		Treatment: domain.TreatmentBundle{
			BPTarget:            "<140/90",
			MonitoringFrequency: "Every 12 months",
		},
	},
}

// assignPhenotype walks the precedence tree. Thresholds: renal 5% / 15%,
// CVD 7.5% / 20%, mortality 50%. Every input combination lands on exactly
// one leaf.
func assignPhenotype(renalPct, cvdPct, mortalityPct float64) domain.Phenotype {
	var t domain.PhenotypeType
	switch {
	case mortalityPct >= 50:
		t = domain.PhenotypeSenescent
	case renalPct >= 15 && cvdPct >= 20:
		t = domain.PhenotypeAcceleratedAger
	case renalPct >= 15 && cvdPct >= 7.5:
		t = domain.PhenotypeCardiorenalHigh
	case renalPct >= 15:
		t = domain.PhenotypeSilentRenal
	case renalPct >= 5 && cvdPct >= 7.5:
		t = domain.PhenotypeCardiorenalModerate
	case renalPct >= 5:
		t = domain.PhenotypeRenalWatch
	case cvdPct >= 20:
		t = domain.PhenotypeVascularDominant
	case cvdPct >= 7.5:
		t = domain.PhenotypeCVIntermediate
	default:
		t = domain.PhenotypeLowRisk
	}

	phenotype := phenotypeCatalog[t]
	if t == domain.PhenotypeSenescent && (renalPct >= 15 || cvdPct >= 20) {
		phenotype.Treatment.HomeMonitoring = true
	}
	return phenotype
}

// benefitRatio weighs the best-case preventable organ risk against
// competing mortality. The mortality denominator is floored at 5 so the
// ratio stays bounded in younger-biology outliers.
func benefitRatio(renalPct, cvdPct, mortalityPct float64) (float64, string) {
	preventable := renalPct
	if cvdPct/2 > preventable {
		preventable = cvdPct / 2
	}
	competing := mortalityPct - 0.5*preventable
	if competing < 5 {
		competing = 5
	}
	ratio := round1(preventable / competing)

	var band string
	switch {
	case ratio >= 3:
		band = "Strong expected benefit from preventive escalation"
	case ratio >= 1.5:
		band = "Likely benefit, individualize to patient goals"
	case ratio >= 0.75:
		band = "Marginal benefit, competing mortality is substantial"
	default:
		band = "Competing mortality dominates, favor conservative care"
	}
	return ratio, band
}

// GCUA runs the geriatric cardiorenal-urgency assessment. The eligibility
// gate excludes patients under 60 and patients with established CKD (eGFR
// ≤60), both of whom belong to other pathways. Ineligibility is a normal
// result, not an error.
func GCUA(s *domain.PatientSnapshot) (*domain.GCUAResult, error) {
	if err := requireAge(s, "GCUA"); err != nil {
		return nil, err
	}
	if s.Age < 60 {
		return &domain.GCUAResult{
			Eligible: false,
			Reason:   fmt.Sprintf("GCUA applies at age ≥60 (patient is %d).", s.Age),
		}, nil
	}
	if s.EGFR == nil {
		return nil, &domain.InsufficientDataError{Marker: "eGFR", Model: "GCUA"}
	}
	if *s.EGFR <= 60 {
		return &domain.GCUAResult{
			Eligible: false,
			Reason:   fmt.Sprintf("GCUA applies at eGFR >60 (patient is %.1f); use the CKD pathway instead.", *s.EGFR),
		}, nil
	}

	renal, err := NelsonCKDPC(s)
	if err != nil {
		return nil, err
	}
	cvd, err := AHAPrevent(s)
	if err != nil {
		return nil, err
	}
	mortality, err := Bansal(s)
	if err != nil {
		return nil, err
	}

	phenotype := assignPhenotype(renal.RiskValue, cvd.RiskValue, mortality.RiskValue)
	ratio, band := benefitRatio(renal.RiskValue, cvd.RiskValue, mortality.RiskValue)

	return &domain.GCUAResult{
		Eligible:         true,
		Phenotype:        &phenotype,
		RenalRiskPct:     renal.RiskValue,
		CVDRiskPct:       cvd.RiskValue,
		MortalityRiskPct: mortality.RiskValue,
		BenefitRatio:     ratio,
		BenefitBand:      band,
	}, nil
}

// AssignPhenotypeFromRisks exposes the precedence tree for callers that
// already hold the three risk percentages.
func AssignPhenotypeFromRisks(renalPct, cvdPct, mortalityPct float64) domain.Phenotype {
	return assignPhenotype(renalPct, cvdPct, mortalityPct)
}
