package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Severity points used to prioritize scan results. A single critical finding
// outweighs two high findings; thresholds below turn the sum into a
// worklist priority.
const (
	pointsCritical = 10
	pointsHigh     = 5
	pointsModerate = 2

	priorityCriticalAt = 20
	priorityHighAt     = 10
	priorityModerateAt = 5
)

// scanContext is the per-patient state the scan rules evaluate against:
// the snapshot plus the already resolved eGFR and CKD stage.
type scanContext struct {
	s     *domain.PatientSnapshot
	egfr  float64
	stage int
}

// scanRule is one population-scan alert rule.
type scanRule struct {
	code     string
	severity domain.AlertSeverity
	points   int
	message  func(c scanContext) string
	action   string
	when     func(c scanContext) bool
}

func declining(c scanContext) bool {
	return c.s.EGFRChangePct != nil && *c.s.EGFRChangePct < 0
}

// scanRules is the full population-scan rule set, ordered critical first.
// Rules within one lab concern (potassium, anemia, proteinuria) are written
// to be mutually exclusive so one reading cannot score twice. The decline
// rules are not: a stage 3+ patient dropping more than 10% is both rapidly
// declining and progressive, and scores for both.
var scanRules = []scanRule{
	// Critical
	{
		code: "RAPID_EGFR_DECLINE", severity: domain.SeverityCritical, points: pointsCritical,
		message: func(c scanContext) string {
			return fmt.Sprintf("eGFR declined %.1f%% since last measurement", *c.s.EGFRChangePct)
		},
		action: "Urgent nephrology review; investigate reversible causes",
		when: func(c scanContext) bool {
			return c.s.EGFRChangePct != nil && *c.s.EGFRChangePct <= -10
		},
	},
	{
		code: "ADVANCED_CKD_NO_NEPHROLOGY", severity: domain.SeverityCritical, points: pointsCritical,
		message: func(c scanContext) string {
			return fmt.Sprintf("CKD stage %d without nephrology involvement", c.stage)
		},
		action: "Refer to nephrology; begin kidney-failure planning",
		when: func(c scanContext) bool {
			return c.stage >= 4 && !c.s.NephrologyReferral
		},
	},
	{
		code: "SEVERE_HYPERKALEMIA", severity: domain.SeverityCritical, points: pointsCritical,
		message: func(c scanContext) string {
			return fmt.Sprintf("Potassium %.1f mEq/L", *c.s.Potassium)
		},
		action: "Same-day repeat potassium; review RAS inhibitor and potassium-sparing agents",
		when: func(c scanContext) bool {
			return c.s.Potassium != nil && *c.s.Potassium > 6.0
		},
	},
	{
		code: "SEVERE_ANEMIA", severity: domain.SeverityCritical, points: pointsCritical,
		message: func(c scanContext) string {
			return fmt.Sprintf("Hemoglobin %.1f g/dL at CKD stage %d", *c.s.Hemoglobin, c.stage)
		},
		action: "Evaluate for iron deficiency and ESA candidacy",
		when: func(c scanContext) bool {
			return c.s.Hemoglobin != nil && *c.s.Hemoglobin < 9.0 && c.stage >= 3
		},
	},
	{
		code: "NEPHROTIC_PROTEINURIA_DECLINING", severity: domain.SeverityCritical, points: pointsCritical,
		message: func(c scanContext) string {
			return fmt.Sprintf("uACR %.0f mg/g with declining eGFR", *c.s.UACR)
		},
		action: "Urgent nephrology referral; quantify proteinuria and consider biopsy workup",
		when: func(c scanContext) bool {
			return c.s.UACR != nil && *c.s.UACR > 300 && declining(c)
		},
	},

	// High
	{
		code: "HEAVY_PROTEINURIA", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return fmt.Sprintf("uACR %.0f mg/g (A3)", *c.s.UACR)
		},
		action: "Maximize RAS blockade; repeat uACR in 3 months",
		when: func(c scanContext) bool {
			return c.s.UACR != nil && *c.s.UACR > 300 && !declining(c)
		},
	},
	{
		code: "UNCONTROLLED_HTN_CKD", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return fmt.Sprintf("BP %.0f/%.0f at CKD stage %d", orZero(c.s.SystolicBP), orZero(c.s.DiastolicBP), c.stage)
		},
		action: "Intensify antihypertensive therapy toward <130/80",
		when: func(c scanContext) bool {
			if c.stage < 3 {
				return false
			}
			return (c.s.SystolicBP != nil && *c.s.SystolicBP >= 140) ||
				(c.s.DiastolicBP != nil && *c.s.DiastolicBP >= 90)
		},
	},
	{
		code: "POOR_GLYCEMIC_CONTROL", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return fmt.Sprintf("HbA1c %.1f%% in diabetic CKD", *c.s.HbA1c)
		},
		action: "Intensify glycemic management; prefer agents with renal benefit",
		when: func(c scanContext) bool {
			return c.s.Diabetes && c.s.HbA1c != nil && *c.s.HbA1c > 7.5
		},
	},
	{
		code: "HYPERPHOSPHATEMIA", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return fmt.Sprintf("Phosphorus %.1f mg/dL at CKD stage %d", *c.s.Phosphorus, c.stage)
		},
		action: "Dietary phosphate counselling; consider binder",
		when: func(c scanContext) bool {
			return c.s.Phosphorus != nil && *c.s.Phosphorus > 4.5 && c.stage >= 4
		},
	},
	{
		code: "NEPHROTOXIC_MEDS_DECLINING", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return "Nephrotoxic medication with declining eGFR"
		},
		action: "Medication reconciliation; stop or substitute nephrotoxins",
		when: func(c scanContext) bool {
			return c.s.OnNephrotoxicMeds && declining(c)
		},
	},
	{
		code: "MODERATE_ANEMIA", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return fmt.Sprintf("Hemoglobin %.1f g/dL at CKD stage %d", *c.s.Hemoglobin, c.stage)
		},
		action: "Check iron studies; recheck hemoglobin in 4-6 weeks",
		when: func(c scanContext) bool {
			return c.s.Hemoglobin != nil && *c.s.Hemoglobin >= 9.0 && *c.s.Hemoglobin < 11.0 && c.stage >= 3
		},
	},
	{
		code: "MODERATE_HYPERKALEMIA", severity: domain.SeverityHigh, points: pointsHigh,
		message: func(c scanContext) string {
			return fmt.Sprintf("Potassium %.1f mEq/L", *c.s.Potassium)
		},
		action: "Repeat potassium within 1 week; dietary counselling",
		when: func(c scanContext) bool {
			return c.s.Potassium != nil && *c.s.Potassium > 5.5 && *c.s.Potassium <= 6.0
		},
	},

	// Moderate
	{
		code: "PROTEINURIA_NO_RAS", severity: domain.SeverityModerate, points: pointsModerate,
		message: func(c scanContext) string {
			return fmt.Sprintf("Albuminuria %.0f mg/g without RAS inhibitor", *c.s.UACR)
		},
		action: "Consider ACEi or ARB initiation",
		when: func(c scanContext) bool {
			return c.s.UACR != nil && *c.s.UACR >= 30 && !c.s.OnRASInhibitor
		},
	},
	{
		code: "DIABETIC_CKD_NO_SGLT2I", severity: domain.SeverityModerate, points: pointsModerate,
		message: func(c scanContext) string {
			return fmt.Sprintf("Diabetic CKD stage %d without SGLT2 inhibitor", c.stage)
		},
		action: "Evaluate for SGLT2 inhibitor initiation",
		when: func(c scanContext) bool {
			return c.s.Diabetes && c.stage >= 2 && !c.s.OnSGLT2i && c.egfr >= 20
		},
	},
	{
		code: "OBESITY_CKD", severity: domain.SeverityModerate, points: pointsModerate,
		message: func(c scanContext) string {
			return fmt.Sprintf("BMI %.1f at CKD stage %d", *c.s.BMI, c.stage)
		},
		action: "Weight management referral",
		when: func(c scanContext) bool {
			return c.s.BMI != nil && *c.s.BMI >= 30 && c.stage >= 2
		},
	},
	{
		code: "SMOKING_CKD", severity: domain.SeverityModerate, points: pointsModerate,
		message: func(c scanContext) string {
			return fmt.Sprintf("Current smoker at CKD stage %d", c.stage)
		},
		action: "Smoking cessation counselling and pharmacotherapy",
		when: func(c scanContext) bool {
			return c.s.Smoking == domain.SmokerCurrent && c.stage >= 2
		},
	},
	{
		code: "PROGRESSIVE_DECLINE", severity: domain.SeverityModerate, points: pointsModerate,
		message: func(c scanContext) string {
			return fmt.Sprintf("eGFR declined %.1f%% since last measurement", *c.s.EGFRChangePct)
		},
		action: "Shorten monitoring interval; review progression drivers",
		when: func(c scanContext) bool {
			return c.stage >= 3 && c.s.EGFRChangePct != nil && *c.s.EGFRChangePct < -5
		},
	},
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// priorityForScore maps a severity-point sum to a worklist priority.
func priorityForScore(score int) domain.AlertSeverity {
	switch {
	case score >= priorityCriticalAt:
		return domain.SeverityCritical
	case score >= priorityHighAt:
		return domain.SeverityHigh
	case score >= priorityModerateAt:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

// Scanner runs the population risk scan over batches of snapshots.
type Scanner struct {
	logger *logrus.Logger
}

// NewScanner creates a population scanner.
func NewScanner(logger *logrus.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// AssessPatient evaluates one snapshot against the scan rule set. Patients
// whose snapshot cannot produce an eGFR are skipped with an error rather
// than silently scored as healthy.
func (sc *Scanner) AssessPatient(s *domain.PatientSnapshot) (*domain.ScanAssessment, error) {
	egfr, err := ResolveEGFR(s)
	if err != nil {
		return nil, err
	}
	kdigo, err := ClassifyKDIGO(&egfr, s.UACR)
	if err != nil {
		return nil, err
	}

	c := scanContext{s: s, egfr: egfr, stage: kdigo.CKDStage}

	var alerts []domain.ScanAlert
	score := 0
	for _, r := range scanRules {
		if !r.when(c) {
			continue
		}
		alerts = append(alerts, domain.ScanAlert{
			Severity: r.severity,
			Code:     r.code,
			Message:  r.message(c),
			Action:   r.action,
			Points:   r.points,
		})
		score += r.points
	}

	return &domain.ScanAssessment{
		PatientID:          s.PatientID,
		Name:               s.Name,
		MRN:                s.MRN,
		CKDStage:           kdigo.CKDStage,
		EGFR:               egfr,
		Alerts:             alerts,
		SeverityScore:      score,
		Priority:           priorityForScore(score),
		RequiresMonitoring: score >= priorityModerateAt,
	}, nil
}

// ScanPopulation assesses every snapshot and aggregates a summary: flagged
// patients ordered by severity score descending, the priority distribution,
// and per-alert-code frequency. Unscorable snapshots are counted but
// excluded from results.
func (sc *Scanner) ScanPopulation(ctx context.Context, snapshots []*domain.PatientSnapshot, scanDate time.Time) *domain.ScanSummary {
	summary := &domain.ScanSummary{
		ScanDate:             scanDate,
		TotalPatients:        len(snapshots),
		PriorityDistribution: make(map[domain.AlertSeverity]int),
		AlertFrequency:       make(map[string]int),
	}

	for _, s := range snapshots {
		if err := ctx.Err(); err != nil {
			sc.logger.WithError(err).Warn("Population scan cancelled")
			break
		}

		assessment, err := sc.AssessPatient(s)
		if err != nil {
			sc.logger.WithFields(logrus.Fields{
				"patient_id": s.PatientID,
			}).WithError(err).Warn("Patient skipped during population scan")
			continue
		}
		if len(assessment.Alerts) == 0 {
			continue
		}

		summary.Patients = append(summary.Patients, *assessment)
		summary.PriorityDistribution[assessment.Priority]++
		for _, a := range assessment.Alerts {
			summary.AlertFrequency[a.Code]++
		}
		if assessment.Priority == domain.SeverityCritical || assessment.Priority == domain.SeverityHigh {
			summary.HighRiskPatients++
		}
	}

	sort.SliceStable(summary.Patients, func(i, j int) bool {
		return summary.Patients[i].SeverityScore > summary.Patients[j].SeverityScore
	})
	if summary.TotalPatients > 0 {
		summary.HighRiskPercentage = round1(float64(summary.HighRiskPatients) / float64(summary.TotalPatients) * 100)
	}

	sc.logger.WithFields(logrus.Fields{
		"total_patients": summary.TotalPatients,
		"flagged":        len(summary.Patients),
		"high_risk":      summary.HighRiskPatients,
	}).Info("Population scan complete")

	return summary
}
