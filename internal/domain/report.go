package domain

import "time"

// Alert is one clinical alert raised during evaluation. Alerts are
// append-only: pipeline stages may add alerts but never remove or mutate
// earlier ones.
type Alert struct {
	ID       string        `json:"id"`
	Severity AlertSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Action   string        `json:"action"`
	Stage    string        `json:"stage,omitempty"`
}

// ActionItem is one entry in the ordered action plan, next step first.
type ActionItem struct {
	Priority int    `json:"priority"`
	Action   string `json:"action"`
	Rationale string `json:"rationale,omitempty"`
}

// PatientSummary is the headline section of a comprehensive report.
type PatientSummary struct {
	PatientID     string       `json:"patient_id"`
	Age           int          `json:"age"`
	Sex           Sex          `json:"sex"`
	EGFR          float64      `json:"egfr"`
	CKDStage      int          `json:"ckd_stage"`
	HasCKD        bool         `json:"has_ckd"`
	RiskColor     RiskColor    `json:"risk_color"`
	RiskCategory  RiskCategory `json:"risk_category"`
	Comorbidities []string     `json:"comorbidities"`
}

// MedicationFinding is the per-drug output of the medication-safety check.
type MedicationFinding struct {
	Drug     string             `json:"drug"`
	Guidance MedicationGuidance `json:"guidance"`
	Detail   string             `json:"detail"`
}

// ScreeningGap describes one required test that is missing or overdue. A
// missing test (never performed) is always more severe than a late one.
type ScreeningGap struct {
	Test         string    `json:"test"`
	Missing      bool      `json:"missing"`
	LastDone     time.Time `json:"last_done,omitempty"`
	OverdueDays  int       `json:"overdue_days,omitempty"`
	IntervalDays int       `json:"interval_days"`
}

// ClinicalDetails preserves the full intermediate state of an evaluation for
// auditability: every model output the orchestrator consumed.
type ClinicalDetails struct {
	KDIGO              *KDIGOResult        `json:"kdigo,omitempty"`
	KFRE               *KFREResult         `json:"kfre,omitempty"`
	GCUA               *GCUAResult         `json:"gcua,omitempty"`
	Adherence          *AdherenceResult    `json:"adherence,omitempty"`
	MedicationFindings []MedicationFinding `json:"medication_findings,omitempty"`
	ScreeningGaps      []ScreeningGap      `json:"screening_gaps,omitempty"`
	ModelResults       []Classification    `json:"model_results,omitempty"`
}

// ComprehensiveReport is the orchestrator's output for one patient
// evaluation. It is constructed fresh per invocation from a PatientSnapshot
// and never mutated by the engine after Finalize; persistence belongs to the
// external storage collaborator.
type ComprehensiveReport struct {
	ReportID       string          `json:"report_id"`
	GeneratedAt    time.Time       `json:"generated_at"`
	PatientSummary PatientSummary  `json:"patient_summary"`
	CriticalAlerts []Alert         `json:"critical_alerts"`
	ActionPlan     []ActionItem    `json:"action_plan"`
	Details        ClinicalDetails `json:"clinical_details"`
}

// ScanAlert is one alert produced by the population risk scanner, carrying
// the bespoke severity points used for prioritization.
type ScanAlert struct {
	Severity AlertSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Action   string        `json:"action"`
	Points   int           `json:"points"`
}

// ScanAssessment is the per-patient output of a population scan.
type ScanAssessment struct {
	PatientID          string        `json:"patient_id"`
	Name               string        `json:"name,omitempty"`
	MRN                string        `json:"mrn,omitempty"`
	CKDStage           int           `json:"ckd_stage"`
	EGFR               float64       `json:"egfr"`
	Alerts             []ScanAlert   `json:"alerts"`
	SeverityScore      int           `json:"severity_score"`
	Priority           AlertSeverity `json:"priority"`
	RequiresMonitoring bool          `json:"requires_monitoring"`
}

// ScanSummary aggregates a full population scan: flagged patients sorted by
// severity score descending, priority distribution, and alert-code
// frequency.
type ScanSummary struct {
	ScanDate             time.Time              `json:"scan_date"`
	TotalPatients        int                    `json:"total_patients_scanned"`
	HighRiskPatients     int                    `json:"high_risk_patients"`
	HighRiskPercentage   float64                `json:"high_risk_percentage"`
	PriorityDistribution map[AlertSeverity]int  `json:"priority_distribution"`
	AlertFrequency       map[string]int         `json:"alert_frequency"`
	Patients             []ScanAssessment       `json:"patients"`
}
