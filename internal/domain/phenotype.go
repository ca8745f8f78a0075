package domain

// PhenotypeType tags the clinical phenotype assigned by the geriatric
// cardiorenal assessment. Every eligible input combination maps to exactly
// one phenotype; there is no unclassified state.
type PhenotypeType string

const (
	PhenotypeSenescent          PhenotypeType = "senescent"
	PhenotypeAcceleratedAger    PhenotypeType = "accelerated_ager"
	PhenotypeCardiorenalHigh    PhenotypeType = "cardiorenal_high"
	PhenotypeSilentRenal        PhenotypeType = "silent_renal"
	PhenotypeCardiorenalModerate PhenotypeType = "cardiorenal_moderate"
	PhenotypeRenalWatch         PhenotypeType = "renal_watch"
	PhenotypeVascularDominant   PhenotypeType = "vascular_dominant"
	PhenotypeCVIntermediate     PhenotypeType = "cv_intermediate"
	PhenotypeLowRisk            PhenotypeType = "low_risk"
)

// IsValid reports whether the phenotype type is one of the defined leaves.
func (p PhenotypeType) IsValid() bool {
	switch p {
	case PhenotypeSenescent, PhenotypeAcceleratedAger, PhenotypeCardiorenalHigh,
		PhenotypeSilentRenal, PhenotypeCardiorenalModerate, PhenotypeRenalWatch,
		PhenotypeVascularDominant, PhenotypeCVIntermediate, PhenotypeLowRisk:
		return true
	default:
		return false
	}
}

// String returns the string representation of the phenotype type.
func (p PhenotypeType) String() string {
	return string(p)
}

// TreatmentBundle carries the treatment recommendations attached to a
// phenotype.
type TreatmentBundle struct {
	SGLT2i              bool   `json:"sglt2i"`
	RASInhibitor        bool   `json:"ras_inhibitor"`
	Statin              bool   `json:"statin"`
	BPTarget            string `json:"bp_target"`
	MonitoringFrequency string `json:"monitoring_frequency"`
	HomeMonitoring      bool   `json:"home_monitoring"`
}

// Phenotype is the fully populated result of one decision-tree leaf: a type
// tag, display color, narrative, ordered clinical-strategy steps, and the
// treatment bundle.
type Phenotype struct {
	Type        PhenotypeType   `json:"type"`
	DisplayName string          `json:"display_name"`
	Color       string          `json:"color"`
	Description string          `json:"description"`
	Strategy    []string        `json:"strategy"`
	Treatment   TreatmentBundle `json:"treatment"`
}

// GCUAResult is the output of the geriatric cardiorenal unified assessment.
// When the age/eGFR eligibility gate fails, Eligible is false, Reason
// explains why, and Phenotype is nil; this is a normal outcome, not an
// error.
type GCUAResult struct {
	Eligible bool       `json:"eligible"`
	Reason   string     `json:"reason,omitempty"`
	Phenotype *Phenotype `json:"phenotype,omitempty"`

	RenalRiskPct     float64 `json:"renal_risk_pct"`
	CVDRiskPct       float64 `json:"cvd_risk_pct"`
	MortalityRiskPct float64 `json:"mortality_risk_pct"`

	BenefitRatio float64 `json:"benefit_ratio"`
	BenefitBand  string  `json:"benefit_band"`
}
