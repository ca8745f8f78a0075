// Package engine implements the deterministic CKD risk stratification models:
// eGFR estimation, KDIGO staging, the independent risk-score models (SCORED,
// Framingham-CKD, Nelson/CKD-PC, AHA PREVENT, Bansal, KFRE), the geriatric
// cardiorenal phenotype assignment, the composite adherence scorer, and the
// orchestration pipeline that sequences them into one report.
//
// Every model is a pure function of PatientSnapshot fields; running the same
// snapshot twice yields identical output. Reference dates are injected as
// explicit parameters so date-sensitive checks are reproducible in tests.
package engine

import (
	"fmt"
	"math"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// CKD-EPI 2021 race-free creatinine equation constants.
// Reference: Inker et al. (2021) New creatinine- and cystatin C-based
// equations to estimate GFR without race. N Engl J Med. 385:1737-49.
const (
	kappaFemale = 0.7
	kappaMale   = 0.9
	alphaFemale = -0.241
	alphaMale   = -0.302
	ageFactor   = 0.9938
	femaleScale = 1.012
	egfrScale   = 142.0

	maxCreatinineMgDL = 20.0
)

// ComputeEGFR derives the estimated glomerular filtration rate
// (mL/min/1.73m²) from serum creatinine (mg/dL), age, and sex using the
// CKD-EPI 2021 equation, rounded to one decimal place.
//
// It fails with an ErrInvalidInput-wrapped error when creatinine is outside
// (0, 20] or age is not positive, and when sex is not a recognized value.
// There are no side effects.
func ComputeEGFR(creatinineMgDL float64, age int, sex domain.Sex) (float64, error) {
	if creatinineMgDL <= 0 || creatinineMgDL > maxCreatinineMgDL {
		return 0, &domain.ValidationError{
			Field:   "creatinine_mgdl",
			Message: fmt.Sprintf("creatinine must be >0 and ≤%g mg/dL", maxCreatinineMgDL),
			Value:   creatinineMgDL,
		}
	}
	if age <= 0 {
		return 0, &domain.ValidationError{Field: "age", Message: "age must be positive", Value: age}
	}
	if !sex.IsValid() {
		return 0, &domain.ValidationError{Field: "sex", Message: "sex must be male or female", Value: string(sex)}
	}

	kappa := kappaMale
	alpha := alphaMale
	if sex == domain.Female {
		kappa = kappaFemale
		alpha = alphaFemale
	}

	ratio := creatinineMgDL / kappa
	egfr := egfrScale *
		math.Pow(math.Min(ratio, 1), alpha) *
		math.Pow(math.Max(ratio, 1), -1.200) *
		math.Pow(ageFactor, float64(age))
	if sex == domain.Female {
		egfr *= femaleScale
	}

	return round1(egfr), nil
}

// ResolveEGFR returns the snapshot's eGFR, deriving it from creatinine when
// no measured eGFR is present. This is the pipeline's ComputeEGFR stage: a
// snapshot with neither marker is a terminal failure for the whole
// evaluation.
func ResolveEGFR(s *domain.PatientSnapshot) (float64, error) {
	if s.EGFR != nil {
		if *s.EGFR <= 0 {
			return 0, &domain.ValidationError{Field: "egfr", Message: "eGFR must be positive", Value: *s.EGFR}
		}
		return round1(*s.EGFR), nil
	}
	if s.CreatinineMgDL != nil {
		return ComputeEGFR(*s.CreatinineMgDL, s.Age, s.Sex)
	}
	return 0, &domain.InsufficientDataError{Marker: "eGFR or creatinine"}
}

// round1 rounds to one decimal place. All percentage and eGFR outputs go
// through this after any capping so results are stable across platforms.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
