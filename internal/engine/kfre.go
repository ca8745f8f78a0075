package engine

import (
	"fmt"
	"math"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Tangri 4-variable KFRE coefficients (North American calibration).
// Reference: Tangri et al. (2011) A predictive model for progression of
// chronic kidney disease to kidney failure. JAMA. 305(15):1553-9.
const (
	kfreAgeCoef     = -0.2201
	kfreAgeCenter   = 7.036
	kfreSexCoef     = 0.2467
	kfreSexCenter   = 0.5642
	kfreEGFRCoef    = -0.5567
	kfreEGFRCenter  = 7.222
	kfreUACRCoef    = 0.4510
	kfreUACRCenter  = 5.137
	kfreBase2Year   = 0.9832
	kfreBase5Year   = 0.9365
	kfreRiskCeiling = 95.0
)

// KFRE computes the 2-year and 5-year risk of kidney failure requiring
// replacement therapy via the Tangri 4-variable equation. The equation is
// only validated in established CKD, so patients with eGFR ≥60 get a
// NotApplicable result rather than an extrapolated number. Missing uACR is
// an InsufficientData error because albuminuria carries most of the
// discrimination.
func KFRE(s *domain.PatientSnapshot) (*domain.KFREResult, error) {
	if err := requireAge(s, "KFRE"); err != nil {
		return nil, err
	}
	if !s.Sex.IsValid() {
		return nil, &domain.ValidationError{Field: "sex", Message: "KFRE requires biological sex", Value: s.Sex}
	}
	if s.EGFR == nil {
		return nil, &domain.InsufficientDataError{Marker: "eGFR", Model: "KFRE"}
	}

	egfr := *s.EGFR
	if egfr >= 60 {
		return &domain.KFREResult{
			Classification: domain.Classification{
				Model:          "KFRE",
				Category:       domain.RiskVeryLow,
				NotApplicable:  true,
				Interpretation: fmt.Sprintf("KFRE is not applicable at eGFR %.1f mL/min/1.73m² (validated for eGFR <60 only).", egfr),
			},
		}, nil
	}
	if s.UACR == nil {
		return nil, &domain.InsufficientDataError{Marker: "uACR", Model: "KFRE"}
	}
	uacr := *s.UACR
	if uacr <= 0 {
		return nil, &domain.ValidationError{Field: "uacr", Message: "KFRE requires a positive uACR", Value: uacr}
	}

	male := 0.0
	if s.Sex == domain.Male {
		male = 1.0
	}

	lp := kfreAgeCoef*(float64(s.Age)/10-kfreAgeCenter) +
		kfreSexCoef*(male-kfreSexCenter) +
		kfreEGFRCoef*(egfr/5-kfreEGFRCenter) +
		kfreUACRCoef*(math.Log(uacr)-kfreUACRCenter)

	hazard := math.Exp(lp)
	risk2 := capAndRound((1-math.Pow(kfreBase2Year, hazard))*100, kfreRiskCeiling)
	risk5 := capAndRound((1-math.Pow(kfreBase5Year, hazard))*100, kfreRiskCeiling)

	components := []domain.RiskComponent{
		{Factor: "age", Effect: float64(s.Age), Kind: "baseline", Detail: "per decade, protective (competing mortality)"},
		{Factor: "sex", Effect: male, Kind: "baseline", Detail: "male carries higher progression risk"},
		{Factor: "eGFR", Effect: egfr, Kind: "baseline", Detail: "per 5 mL/min/1.73m² decrement"},
		{Factor: "uACR", Effect: uacr, Kind: "baseline", Detail: "log-scale, dominant predictor"},
	}

	var category domain.RiskCategory
	switch {
	case risk5 < 5:
		category = domain.RiskLow
	case risk5 < 15:
		category = domain.RiskModerate
	case risk5 < 40:
		category = domain.RiskHigh
	default:
		category = domain.RiskVeryHigh
	}

	return &domain.KFREResult{
		Classification: domain.Classification{
			Model:          "KFRE",
			RiskValue:      risk5,
			RiskUnit:       "percent",
			Category:       category,
			Components:     components,
			Interpretation: fmt.Sprintf("Kidney failure risk: %.1f%% at 2 years, %.1f%% at 5 years (%s).", risk2, risk5, category),
		},
		Risk2YearPct: risk2,
		Risk5YearPct: risk5,
	}, nil
}
