package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Pipeline stage names, used in alert provenance and logs.
const (
	StageFetchSnapshot   = "FetchSnapshot"
	StageComputeEGFR     = "ComputeEGFR"
	StageClassifyKDIGO   = "ClassifyKDIGO"
	StageScreeningGaps   = "CheckScreeningGaps"
	StageMedSafety       = "CheckMedicationSafety"
	StageAdherence       = "CheckMedicationAdherence"
	StageUACRTrend       = "MonitorUACRTrend"
	StageTreatmentOpp    = "AssessTreatmentOpportunity"
	StageFinalize        = "Finalize"
)

// Orchestrator runs the evaluation pipeline over one patient at a time. All
// stages are pure computation except FetchSnapshot; each invocation is
// independent and idempotent, so concurrent evaluations of different
// patients need no coordination.
type Orchestrator struct {
	provider domain.SnapshotProvider
	logger   *logrus.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator over the given snapshot provider.
// The clock is injectable for reproducible date arithmetic in tests.
func NewOrchestrator(provider domain.SnapshotProvider, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the orchestrator's clock. Intended for tests and
// replayed evaluations.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Evaluate fetches the patient's snapshot and runs the full pipeline.
func (o *Orchestrator) Evaluate(ctx context.Context, patientID string) (*domain.ComprehensiveReport, error) {
	snapshot, err := o.provider.GetSnapshot(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageFetchSnapshot, err)
	}
	return o.EvaluateSnapshot(ctx, snapshot)
}

// EvaluateSnapshot runs the strictly ordered pipeline over an already
// resolved snapshot:
//
//	FetchSnapshot → ComputeEGFR → ClassifyKDIGO → CheckScreeningGaps →
//	CheckMedicationSafety → CheckMedicationAdherence → MonitorUACRTrend →
//	AssessTreatmentOpportunity → Finalize
//
// Stages append to the alert list and action plan but never remove prior
// entries. A snapshot with no kidney-function marker aborts at ComputeEGFR;
// every later stage assumes a valid eGFR.
func (o *Orchestrator) EvaluateSnapshot(ctx context.Context, s *domain.PatientSnapshot) (*domain.ComprehensiveReport, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", StageFetchSnapshot, err)
	}

	ref := o.now().UTC()
	log := o.logger.WithFields(logrus.Fields{
		"patient_id": s.PatientID,
		"age":        s.Age,
	})
	log.Info("Starting patient evaluation")

	report := &domain.ComprehensiveReport{
		ReportID:    uuid.New().String(),
		GeneratedAt: ref,
	}
	var alerts []domain.Alert
	var plan []domain.ActionItem

	// ComputeEGFR
	egfr, err := ResolveEGFR(s)
	if err != nil {
		log.WithError(err).Warn("Evaluation aborted: no usable kidney-function marker")
		return nil, fmt.Errorf("%s: %w", StageComputeEGFR, err)
	}
	snapshotWithEGFR := *s
	snapshotWithEGFR.EGFR = &egfr
	s = &snapshotWithEGFR
	log = log.WithField("egfr", egfr)

	// ClassifyKDIGO
	kdigo, err := ClassifyKDIGO(&egfr, s.UACR)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageClassifyKDIGO, err)
	}
	log.WithFields(logrus.Fields{
		"gfr_category": kdigo.GFRCategory,
		"albuminuria":  kdigo.AlbuminuriaCategory,
		"risk_color":   kdigo.RiskColor,
		"ckd_stage":    kdigo.CKDStage,
	}).Info("KDIGO classification complete")

	if kdigo.UACRMissing {
		alerts = append(alerts, domain.Alert{
			ID:       uuid.New().String(),
			Severity: domain.SeverityHigh,
			Code:     "MISSING_CRITICAL_SCREENING",
			Message:  "No uACR on record; albuminuria staging is incomplete",
			Action:   "Order urine albumin-to-creatinine ratio",
			Stage:    StageClassifyKDIGO,
		})
	}
	if kdigo.GFRCategory == domain.G4 || kdigo.GFRCategory == domain.G5 {
		alerts = append(alerts, domain.Alert{
			ID:       uuid.New().String(),
			Severity: domain.SeverityCritical,
			Code:     "ADVANCED_CKD",
			Message:  fmt.Sprintf("eGFR %.1f: advanced CKD (%s)", egfr, kdigo.GFRCategory),
			Action:   "Urgent nephrology referral; begin kidney-failure planning",
			Stage:    StageClassifyKDIGO,
		})
	}

	// Independent risk models. Model failures from missing optional inputs
	// are recorded, not fatal; KDIGO staging already succeeded.
	var models []domain.Classification
	type modelFn struct {
		name string
		run  func(*domain.PatientSnapshot) (*domain.Classification, error)
	}
	for _, m := range []modelFn{
		{"SCORED", SCORED},
		{"Framingham-CKD", FraminghamCKD},
		{"Nelson/CKD-PC", NelsonCKDPC},
		{"AHA-PREVENT", AHAPrevent},
		{"Bansal", Bansal},
	} {
		c, err := m.run(s)
		if err != nil {
			log.WithError(err).WithField("model", m.name).Debug("Risk model skipped")
			continue
		}
		models = append(models, *c)
	}

	kfre, err := KFRE(s)
	if err != nil {
		log.WithError(err).Debug("KFRE skipped")
		kfre = nil
	}
	if kfre != nil && !kfre.NotApplicable {
		models = append(models, kfre.Classification)
		if kfre.Risk5YearPct > 25 {
			alerts = append(alerts, domain.Alert{
				ID:       uuid.New().String(),
				Severity: domain.SeverityCritical,
				Code:     "HIGH_KIDNEY_FAILURE_RISK",
				Message:  fmt.Sprintf("KFRE 5-year kidney failure risk %.1f%%", kfre.Risk5YearPct),
				Action:   "Nephrology co-management; discuss modality preparation",
				Stage:    StageClassifyKDIGO,
			})
		}
	}

	gcua, err := GCUA(s)
	if err != nil {
		log.WithError(err).Debug("GCUA skipped")
		gcua = nil
	}

	// CheckScreeningGaps
	gaps := CheckScreeningGaps(s, kdigo.RiskColor, ref)
	for _, gap := range gaps {
		if gap.Missing {
			alerts = append(alerts, domain.Alert{
				ID:       uuid.New().String(),
				Severity: domain.SeverityHigh,
				Code:     "SCREENING_NEVER_DONE",
				Message:  fmt.Sprintf("Required screening never performed: %s", gap.Test),
				Action:   fmt.Sprintf("Order %s now", gap.Test),
				Stage:    StageScreeningGaps,
			})
		} else {
			alerts = append(alerts, domain.Alert{
				ID:       uuid.New().String(),
				Severity: domain.SeverityModerate,
				Code:     "SCREENING_OVERDUE",
				Message:  fmt.Sprintf("%s overdue by %d days (interval %d days)", gap.Test, gap.OverdueDays, gap.IntervalDays),
				Action:   fmt.Sprintf("Schedule %s", gap.Test),
				Stage:    StageScreeningGaps,
			})
		}
	}

	// CheckMedicationSafety
	findings := CheckMedicationSafety(s, egfr)
	for _, f := range findings {
		switch f.Guidance {
		case domain.GuidanceContraindicated:
			alerts = append(alerts, domain.Alert{
				ID:       uuid.New().String(),
				Severity: domain.SeverityCritical,
				Code:     "MEDICATION_CONTRAINDICATED",
				Message:  fmt.Sprintf("%s contraindicated at eGFR %.1f", f.Drug, egfr),
				Action:   f.Detail,
				Stage:    StageMedSafety,
			})
		case domain.GuidanceDoseReduce:
			alerts = append(alerts, domain.Alert{
				ID:       uuid.New().String(),
				Severity: domain.SeverityHigh,
				Code:     "MEDICATION_DOSE_ADJUST",
				Message:  fmt.Sprintf("%s needs renal dose adjustment at eGFR %.1f", f.Drug, egfr),
				Action:   f.Detail,
				Stage:    StageMedSafety,
			})
		}
	}

	// CheckMedicationAdherence
	adherence, err := ScoreAdherence(s, ref)
	if err != nil {
		log.WithError(err).Debug("Adherence scoring skipped")
		adherence = nil
	}
	if adherence != nil && adherence.AlertSeverity.Rank() <= domain.SeverityHigh.Rank() {
		alerts = append(alerts, domain.Alert{
			ID:       uuid.New().String(),
			Severity: adherence.AlertSeverity,
			Code:     "ADHERENCE_CONCERN",
			Message:  adherence.Interpretation,
			Action:   "Review medication adherence at next contact",
			Stage:    StageAdherence,
		})
	}

	// MonitorUACRTrend
	trend, err := MonitorUACR(s, ref)
	if err != nil {
		log.WithError(err).Debug("uACR trend monitoring skipped")
		trend = nil
	}
	if trend != nil && trend.AlertType != TrendStable {
		alerts = append(alerts, domain.Alert{
			ID:       uuid.New().String(),
			Severity: trend.Severity,
			Code:     "UACR_WORSENING",
			Message:  trend.Message,
			Action:   trendAction(trend.AlertType),
			Stage:    StageUACRTrend,
		})
	}

	// AssessTreatmentOpportunity
	plan = append(plan, o.treatmentOpportunities(s, kdigo, egfr)...)
	if gcua != nil && gcua.Eligible {
		for i, step := range gcua.Phenotype.Strategy {
			plan = append(plan, domain.ActionItem{
				Priority:  50 + i,
				Action:    step,
				Rationale: fmt.Sprintf("%s phenotype", gcua.Phenotype.DisplayName),
			})
		}
	}

	// Finalize: alerts highest urgency first, plan next step first. Sorts
	// are stable so within a severity band the stage order is preserved.
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
	sort.SliceStable(plan, func(i, j int) bool {
		return plan[i].Priority < plan[j].Priority
	})

	report.PatientSummary = domain.PatientSummary{
		PatientID:     s.PatientID,
		Age:           s.Age,
		Sex:           s.Sex,
		EGFR:          egfr,
		CKDStage:      kdigo.CKDStage,
		HasCKD:        kdigo.HasCKD,
		RiskColor:     kdigo.RiskColor,
		RiskCategory:  RiskCategoryForColor(kdigo.RiskColor),
		Comorbidities: s.Comorbidities(),
	}
	report.CriticalAlerts = alerts
	report.ActionPlan = plan
	report.Details = domain.ClinicalDetails{
		KDIGO:              kdigo,
		KFRE:               kfre,
		GCUA:               gcua,
		Adherence:          adherence,
		MedicationFindings: findings,
		ScreeningGaps:      gaps,
		ModelResults:       models,
	}

	log.WithFields(logrus.Fields{
		"report_id":    report.ReportID,
		"alerts":       len(alerts),
		"action_items": len(plan),
	}).Info("Patient evaluation complete")

	return report, nil
}

// treatmentOpportunities proposes guideline-directed therapy the patient is
// eligible for but not yet receiving.
func (o *Orchestrator) treatmentOpportunities(s *domain.PatientSnapshot, kdigo *domain.KDIGOResult, egfr float64) []domain.ActionItem {
	var plan []domain.ActionItem

	if !s.OnSGLT2i && egfr >= 20 && egfr <= 75 {
		eligible := (s.Diabetes && kdigo.CKDStage >= 2) ||
			(!s.Diabetes && kdigo.CKDStage >= 3) ||
			(s.UACR != nil && *s.UACR >= 200)
		if eligible {
			plan = append(plan, domain.ActionItem{
				Priority:  10,
				Action:    "Initiate SGLT2 inhibitor",
				Rationale: fmt.Sprintf("eGFR %.1f within the 20-75 initiation window; proven CKD progression benefit", egfr),
			})
		}
	}

	if !s.OnRASInhibitor && s.UACR != nil && *s.UACR >= 30 {
		plan = append(plan, domain.ActionItem{
			Priority:  11,
			Action:    "Initiate RAS inhibitor (ACEi or ARB)",
			Rationale: fmt.Sprintf("Albuminuria %.0f mg/g without RAS blockade", *s.UACR),
		})
	}

	if !s.NephrologyReferral && (kdigo.RiskColor == domain.ColorRed || kdigo.GFRCategory == domain.G4 || kdigo.GFRCategory == domain.G5) {
		plan = append(plan, domain.ActionItem{
			Priority:  5,
			Action:    "Refer to nephrology",
			Rationale: fmt.Sprintf("KDIGO %s risk without an active referral", kdigo.RiskColor),
		})
	}

	if s.SystolicBP != nil && kdigo.BPTarget != "" {
		target := 130.0
		if kdigo.RiskColor == domain.ColorGreen {
			target = 140
		}
		if *s.SystolicBP >= target {
			plan = append(plan, domain.ActionItem{
				Priority:  20,
				Action:    fmt.Sprintf("Intensify BP control toward %s", kdigo.BPTarget),
				Rationale: fmt.Sprintf("Current systolic %.0f mmHg above target", *s.SystolicBP),
			})
		}
	}

	plan = append(plan, domain.ActionItem{
		Priority:  90,
		Action:    fmt.Sprintf("Repeat renal panel and uACR: %s", kdigo.MonitoringFrequency),
		Rationale: fmt.Sprintf("KDIGO %s monitoring interval", kdigo.RiskColor),
	})

	return plan
}

func trendAction(t TrendAlertType) string {
	switch t {
	case TrendWorseningNonAdherent:
		return "Address medication adherence before escalating therapy"
	case TrendWorseningOnTreatment:
		return "Review and intensify renoprotective regimen"
	case TrendWorseningUntreated:
		return "Evaluate for RAS inhibitor and SGLT2 inhibitor initiation"
	default:
		return "Continue routine uACR monitoring"
	}
}
