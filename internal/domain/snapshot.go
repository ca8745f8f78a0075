package domain

import (
	"errors"
	"fmt"
	"time"
)

// LabResult represents one dated measurement of a single analyte.
type LabResult struct {
	Value float64   `json:"value"`
	Date  time.Time `json:"date"`
}

// RefillRecord represents one pharmacy refill event used for possession-ratio
// calculations.
type RefillRecord struct {
	FillDate   time.Time `json:"fill_date"`
	DaysSupply int       `json:"days_supply"`
}

// PatientSnapshot is the engine's sole input unit: a point-in-time view of one
// patient's demographics, latest labs, comorbidities, lifestyle, and
// medication status as resolved by the persistence collaborator. Optional lab
// values are pointers; nil means never measured, which is distinct from zero.
type PatientSnapshot struct {
	PatientID string `json:"patient_id" validate:"required"`
	MRN       string `json:"mrn,omitempty"`
	Name      string `json:"name,omitempty"`

	// Demographics
	Age int `json:"age" validate:"min=1"`
	Sex Sex `json:"sex" validate:"required"`

	// Latest lab values. Either EGFR or CreatinineMgDL must be present for
	// any classification to proceed.
	EGFR           *float64 `json:"egfr,omitempty"`            // mL/min/1.73m²
	CreatinineMgDL *float64 `json:"creatinine_mgdl,omitempty"` // mg/dL
	UACR           *float64 `json:"uacr,omitempty"`            // mg/g
	HbA1c          *float64 `json:"hba1c,omitempty"`           // %
	SystolicBP     *float64 `json:"systolic_bp,omitempty"`     // mmHg
	DiastolicBP    *float64 `json:"diastolic_bp,omitempty"`    // mmHg
	Potassium      *float64 `json:"potassium,omitempty"`       // mEq/L
	Hemoglobin     *float64 `json:"hemoglobin,omitempty"`      // g/dL
	Phosphorus     *float64 `json:"phosphorus,omitempty"`      // mg/dL

	// Longitudinal markers used by trend-aware checks. EGFRChangePct is the
	// percentage change since the prior measurement (negative = decline).
	EGFRChangePct *float64    `json:"egfr_change_pct,omitempty"`
	UACRHistory   []LabResult `json:"uacr_history,omitempty"`
	EGFRBaseline  *float64    `json:"egfr_baseline,omitempty"`

	// Comorbidity flags
	Diabetes            bool `json:"diabetes"`
	Hypertension        bool `json:"hypertension"`
	CardiovascularDz    bool `json:"cardiovascular_disease"`
	HeartFailure        bool `json:"heart_failure"`
	AtrialFibrillation  bool `json:"atrial_fibrillation"`
	PeripheralVascular  bool `json:"peripheral_vascular_disease"`
	NephrologyReferral  bool `json:"nephrology_referral"`
	OnNephrotoxicMeds   bool `json:"on_nephrotoxic_meds"`
	ActiveMedications   []string `json:"active_medications,omitempty"`

	// Lifestyle
	Smoking SmokingStatus `json:"smoking_status,omitempty"`
	BMI     *float64      `json:"bmi,omitempty"` // kg/m²

	// Medication flags
	OnRASInhibitor bool `json:"on_ras_inhibitor"`
	OnSGLT2i       bool `json:"on_sglt2i"`

	// Adherence signals (optional; missing signals drop out of the composite)
	Refills         []RefillRecord `json:"refills,omitempty"`
	SelfReportScore *float64       `json:"self_report_score,omitempty"` // 0–1
	ReportedBarriers []string      `json:"reported_barriers,omitempty"`

	// Optional geriatric markers
	FrailtyScore *float64 `json:"frailty_score,omitempty"`
	GaitSpeedMS  *float64 `json:"gait_speed_ms,omitempty"`
	NTProBNP     *float64 `json:"nt_probnp,omitempty"`
	Troponin     *float64 `json:"troponin,omitempty"`

	// Screening history: last-performed date per test code; a test absent
	// from the map has never been performed.
	LastScreenings map[string]time.Time `json:"last_screenings,omitempty"`
}

// Validate ensures the snapshot meets the engine's minimum input contract:
// a positive age, a valid sex, and at least one kidney-function marker.
// Absence is a defined error, never a silent default.
func (s *PatientSnapshot) Validate() error {
	if s.PatientID == "" {
		return fmt.Errorf("snapshot validation: %w", errors.New("patient ID is required"))
	}

	if s.Age <= 0 {
		return &ValidationError{Field: "age", Message: "age must be positive", Value: s.Age}
	}

	if !s.Sex.IsValid() {
		return &ValidationError{Field: "sex", Message: "sex must be male or female", Value: string(s.Sex)}
	}

	if s.EGFR == nil && s.CreatinineMgDL == nil {
		return fmt.Errorf("snapshot validation: %w", ErrInsufficientData)
	}

	if s.CreatinineMgDL != nil && (*s.CreatinineMgDL <= 0 || *s.CreatinineMgDL > 20) {
		return &ValidationError{Field: "creatinine_mgdl", Message: "creatinine must be >0 and ≤20 mg/dL", Value: *s.CreatinineMgDL}
	}

	if s.Smoking != "" && !s.Smoking.IsValid() {
		return &ValidationError{Field: "smoking_status", Message: "unknown smoking status", Value: string(s.Smoking)}
	}

	return nil
}

// HasKidneyMarker reports whether at least one of eGFR or creatinine is
// present; without one, the whole pipeline aborts at the eGFR stage.
func (s *PatientSnapshot) HasKidneyMarker() bool {
	return s.EGFR != nil || s.CreatinineMgDL != nil
}

// Comorbidities returns the comorbidity flags that are set, in a fixed
// presentation order for reports.
func (s *PatientSnapshot) Comorbidities() []string {
	out := make([]string, 0, 6)
	if s.Diabetes {
		out = append(out, "Diabetes")
	}
	if s.Hypertension {
		out = append(out, "Hypertension")
	}
	if s.CardiovascularDz {
		out = append(out, "Cardiovascular Disease")
	}
	if s.HeartFailure {
		out = append(out, "Heart Failure")
	}
	if s.AtrialFibrillation {
		out = append(out, "Atrial Fibrillation")
	}
	if s.PeripheralVascular {
		out = append(out, "Peripheral Vascular Disease")
	}
	return out
}

// Float is a convenience constructor for optional lab values.
func Float(v float64) *float64 { return &v }
