package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// WorseningLevel grades the change between the two most recent uACR
// measurements. A category crossing (A1→A2, A2→A3) dominates the percent
// bands because it changes the management pathway regardless of magnitude.
type WorseningLevel string

const (
	WorseningNone        WorseningLevel = "NO_CHANGE"
	WorseningMild        WorseningLevel = "MILD"
	WorseningModerate    WorseningLevel = "MODERATE"
	WorseningSevere      WorseningLevel = "SEVERE"
	WorseningProgression WorseningLevel = "CATEGORY_PROGRESSION"
)

// UACRTrend is the result of comparing the two most recent uACR values.
type UACRTrend struct {
	Level            WorseningLevel              `json:"level"`
	PreviousValue    float64                     `json:"previous_value"`
	CurrentValue     float64                     `json:"current_value"`
	ChangePct        float64                     `json:"change_pct"`
	PreviousCategory domain.AlbuminuriaCategory  `json:"previous_category"`
	CurrentCategory  domain.AlbuminuriaCategory  `json:"current_category"`
	Worsening        bool                        `json:"worsening"`
}

// TrendAlertType distinguishes why a worsening trend matters: a treated
// patient who is not taking the drug, a treated patient whose regimen is
// failing, or an untreated patient with a treatment opportunity.
type TrendAlertType string

const (
	TrendStable                TrendAlertType = "stable"
	TrendWorseningNonAdherent  TrendAlertType = "worsening_on_treatment_nonadherent"
	TrendWorseningOnTreatment  TrendAlertType = "worsening_on_treatment_adherent"
	TrendWorseningUntreated    TrendAlertType = "worsening_untreated"
)

// SGLT2iEligibility is the result of the treatment-eligibility evaluation.
type SGLT2iEligibility struct {
	Eligible bool   `json:"eligible"`
	Urgent   bool   `json:"urgent"`
	Reason   string `json:"reason"`
}

// TrendReport is the full output of one uACR monitoring pass.
type TrendReport struct {
	PatientID   string             `json:"patient_id"`
	Trend       *UACRTrend         `json:"trend,omitempty"`
	PDC         *float64           `json:"pdc,omitempty"`
	Eligibility *SGLT2iEligibility `json:"sglt2i_eligibility,omitempty"`
	AlertType   TrendAlertType     `json:"alert_type"`
	Severity    domain.AlertSeverity `json:"severity"`
	Message     string             `json:"message"`
}

// AnalyzeUACRTrend compares the two most recent measurements in the uACR
// history. Needs at least two values; fewer is an InsufficientData error.
func AnalyzeUACRTrend(history []domain.LabResult) (*UACRTrend, error) {
	if len(history) < 2 {
		return nil, &domain.InsufficientDataError{Marker: "uACR history", Model: "uACR trend"}
	}

	sorted := make([]domain.LabResult, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	prev := sorted[len(sorted)-2]
	curr := sorted[len(sorted)-1]

	trend := &UACRTrend{
		PreviousValue:    prev.Value,
		CurrentValue:     curr.Value,
		PreviousCategory: ClassifyAlbuminuria(prev.Value),
		CurrentCategory:  ClassifyAlbuminuria(curr.Value),
	}
	if prev.Value > 0 {
		trend.ChangePct = round1((curr.Value - prev.Value) / prev.Value * 100)
	}

	categoryCrossed := albuminuriaRank(trend.CurrentCategory) > albuminuriaRank(trend.PreviousCategory)
	switch {
	case categoryCrossed:
		trend.Level = WorseningProgression
	case trend.ChangePct > 100:
		trend.Level = WorseningSevere
	case trend.ChangePct > 50:
		trend.Level = WorseningModerate
	case trend.ChangePct > 30:
		trend.Level = WorseningMild
	default:
		trend.Level = WorseningNone
	}
	trend.Worsening = trend.Level != WorseningNone

	return trend, nil
}

func albuminuriaRank(a domain.AlbuminuriaCategory) int {
	switch a {
	case domain.A1:
		return 1
	case domain.A2:
		return 2
	case domain.A3:
		return 3
	default:
		return 0
	}
}

// ComputePDC calculates the proportion of days covered: the union of
// refill-supply windows over the observation period from first fill to the
// reference date. Unlike MPR, overlapping fills do not double-count.
func ComputePDC(refills []domain.RefillRecord, ref time.Time) (float64, bool) {
	if len(refills) < 2 {
		return 0, false
	}

	sorted := make([]domain.RefillRecord, len(refills))
	copy(sorted, refills)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FillDate.Before(sorted[j].FillDate) })

	first := sorted[0].FillDate
	if !first.Before(ref) {
		return 0, false
	}
	windowDays := int(ref.Sub(first).Hours() / 24)
	if windowDays < 1 {
		return 0, false
	}

	covered := make(map[int]bool)
	for _, r := range sorted {
		start := int(r.FillDate.Sub(first).Hours() / 24)
		for d := start; d < start+r.DaysSupply && d < windowDays; d++ {
			if d >= 0 {
				covered[d] = true
			}
		}
	}

	return round2(float64(len(covered)) / float64(windowDays)), true
}

// EvaluateSGLT2iEligibility applies the initiation criteria: eGFR within the
// 20-75 window, plus diabetic CKD stage 2+ or non-diabetic stage 3+ with
// uACR ≥200. Urgency escalates at uACR ≥300 or stage 4+.
func EvaluateSGLT2iEligibility(s *domain.PatientSnapshot, egfr float64, stage int) SGLT2iEligibility {
	if s.OnSGLT2i {
		return SGLT2iEligibility{Reason: "Already on SGLT2 inhibitor."}
	}
	if egfr < 20 || egfr > 75 {
		return SGLT2iEligibility{Reason: fmt.Sprintf("eGFR %.1f outside the 20-75 initiation window.", egfr)}
	}

	eligible := (s.Diabetes && stage >= 2) ||
		(!s.Diabetes && stage >= 3 && s.UACR != nil && *s.UACR >= 200)
	if !eligible {
		return SGLT2iEligibility{Reason: "Initiation criteria not met (stage and albuminuria thresholds)."}
	}

	urgent := (s.UACR != nil && *s.UACR >= 300) || stage >= 4
	reason := "Meets SGLT2 inhibitor initiation criteria."
	if urgent {
		reason = "Meets initiation criteria with high-urgency markers; do not defer."
	}
	return SGLT2iEligibility{Eligible: true, Urgent: urgent, Reason: reason}
}

// MonitorUACR runs one monitoring pass: trend analysis over the uACR
// history, possession-based adherence, and treatment eligibility, combined
// into a typed alert. The reference date anchors the adherence window.
func MonitorUACR(s *domain.PatientSnapshot, ref time.Time) (*TrendReport, error) {
	trend, err := AnalyzeUACRTrend(s.UACRHistory)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{
		PatientID: s.PatientID,
		Trend:     trend,
		AlertType: TrendStable,
		Severity:  domain.SeverityLow,
		Message:   fmt.Sprintf("uACR stable at %.0f mg/g.", trend.CurrentValue),
	}

	if pdc, ok := ComputePDC(s.Refills, ref); ok {
		report.PDC = &pdc
	}

	if s.EGFR != nil {
		if kdigo, err := ClassifyKDIGO(s.EGFR, s.UACR); err == nil {
			elig := EvaluateSGLT2iEligibility(s, *s.EGFR, kdigo.CKDStage)
			report.Eligibility = &elig
		}
	}

	if !trend.Worsening {
		return report, nil
	}

	onTreatment := s.OnRASInhibitor || s.OnSGLT2i
	switch {
	case onTreatment && report.PDC != nil && *report.PDC < 0.80:
		report.AlertType = TrendWorseningNonAdherent
		report.Severity = domain.SeverityCritical
		report.Message = fmt.Sprintf("uACR worsening (%s, %+.1f%%) with PDC %.2f: address adherence before escalating therapy.",
			trend.Level, trend.ChangePct, *report.PDC)
	case onTreatment:
		report.AlertType = TrendWorseningOnTreatment
		report.Severity = domain.SeverityHigh
		report.Message = fmt.Sprintf("uACR worsening (%s, %+.1f%%) despite treatment and adequate adherence: regimen may be inadequate.",
			trend.Level, trend.ChangePct)
	default:
		report.AlertType = TrendWorseningUntreated
		report.Severity = domain.SeverityHigh
		report.Message = fmt.Sprintf("uACR worsening (%s, %+.1f%%) without renoprotective treatment.", trend.Level, trend.ChangePct)
		if report.Eligibility != nil && report.Eligibility.Eligible {
			report.Message += " " + report.Eligibility.Reason
			if report.Eligibility.Urgent {
				report.Severity = domain.SeverityCritical
			}
		}
	}

	return report, nil
}
