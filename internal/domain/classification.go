package domain

// RiskComponent documents one contributing factor inside a scoring model:
// the factor name, the effect it had (points added or multiplier applied),
// and a short note. Components are listed in the exact order the model
// applied them so the arithmetic is auditable.
type RiskComponent struct {
	Factor string  `json:"factor"`
	Effect float64 `json:"effect"`
	Kind   string  `json:"kind"` // "points", "multiplier", or "baseline"
	Detail string  `json:"detail,omitempty"`
}

// Classification is the immutable result of one scoring model run: a numeric
// risk value (percentage or points), a discrete category, the ordered factor
// breakdown, and a free-text interpretation. Classifications are pure
// functions of PatientSnapshot fields.
type Classification struct {
	Model          string          `json:"model"`
	RiskValue      float64         `json:"risk_value"`
	RiskUnit       string          `json:"risk_unit"` // "percent" or "points"
	Category       RiskCategory    `json:"category"`
	Components     []RiskComponent `json:"components"`
	Interpretation string          `json:"interpretation"`

	// NotApplicable is set when the model's domain does not cover the case
	// (e.g. KFRE with eGFR ≥60). The classification is still a valid terminal
	// result, with a degenerate low-risk value and an explanatory
	// interpretation, never an error.
	NotApplicable bool `json:"not_applicable,omitempty"`
}

// KFREResult extends Classification with the two KFRE horizons. The 5-year
// risk drives the category; the 2-year risk supports dialysis planning.
type KFREResult struct {
	Classification
	Risk2YearPct float64 `json:"risk_2yr_pct"`
	Risk5YearPct float64 `json:"risk_5yr_pct"`
}

// KDIGOResult is the combined KDIGO staging output: GFR category,
// albuminuria category, heat-map color, derived CKD stage, and the
// monitoring guidance keyed by risk color.
type KDIGOResult struct {
	GFRCategory         GFRCategory         `json:"gfr_category"`
	AlbuminuriaCategory AlbuminuriaCategory `json:"albuminuria_category"`
	RiskColor           RiskColor           `json:"risk_color"`
	HealthState         string              `json:"health_state"`
	CKDStage            int                 `json:"ckd_stage"` // 0 when no CKD
	HasCKD              bool                `json:"has_ckd"`
	UACRMissing         bool                `json:"uacr_missing"`
	MonitoringFrequency string              `json:"monitoring_frequency"`
	BPTarget            string              `json:"bp_target"`
}
