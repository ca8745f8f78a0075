package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Composite adherence weights when all three signals are available.
// Missing signals drop out and the remaining weights renormalize to sum 1,
// so an unmeasured signal never reads as zero adherence.
const (
	weightMPR        = 0.5
	weightLabTrend   = 0.3
	weightSelfReport = 0.2

	adherenceGoodThreshold = 0.90
	adherencePoorThreshold = 0.75
)

// Expected absolute eGFR benefit (mL/min/1.73m²) by drug class, used by the
// lab-trend signal to separate non-adherence from treatment inadequacy.
const (
	expectedBenefitSGLT2i = 4.0
	expectedBenefitRASi   = 2.0
)

// computeMPR derives a medication possession ratio from pharmacy refill
// records: total days supplied over the observation window from the first
// fill to the reference date, clamped to 1. At least two fills are needed
// for the window to mean anything.
func computeMPR(refills []domain.RefillRecord, ref time.Time) (float64, bool) {
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
	windowDays := ref.Sub(first).Hours() / 24
	if windowDays < 1 {
		return 0, false
	}

	supplied := 0.0
	for _, r := range sorted {
		if r.FillDate.After(ref) {
			continue
		}
		supplied += float64(r.DaysSupply)
	}

	mpr := supplied / windowDays
	if mpr > 1 {
		mpr = 1
	}
	if mpr < 0 {
		mpr = 0
	}
	return mpr, true
}

// labTrendScore infers adherence from the observed eGFR change since
// baseline against the expected benefit of the patient's active drug
// class. A response at or above expectation scores 0.95, a partial
// response 0.70, and a clearly absent response 0.40.
func labTrendScore(s *domain.PatientSnapshot) (float64, string, bool) {
	if !s.OnSGLT2i && !s.OnRASInhibitor {
		return 0, "", false
	}
	if s.EGFR == nil || s.EGFRBaseline == nil {
		return 0, "", false
	}

	expected := 0.0
	drug := ""
	if s.OnRASInhibitor {
		expected = expectedBenefitRASi
		drug = "RAS inhibitor"
	}
	if s.OnSGLT2i {
		expected = expectedBenefitSGLT2i
		drug = "SGLT2 inhibitor"
	}

	observed := *s.EGFR - *s.EGFRBaseline
	detail := fmt.Sprintf("observed ΔeGFR %+.1f vs expected %+.1f on %s", observed, expected, drug)

	switch {
	case observed >= expected:
		return 0.95, detail, true
	case observed >= expected-5:
		return 0.70, detail, true
	default:
		return 0.40, detail, true
	}
}

// labsWorsening reports whether the renal trend is deteriorating: an eGFR
// decline beyond 5% since the prior measurement, or a uACR rise above 30%
// across the recorded history.
func labsWorsening(s *domain.PatientSnapshot) bool {
	if s.EGFRChangePct != nil && *s.EGFRChangePct < -5 {
		return true
	}
	if len(s.UACRHistory) >= 2 {
		first := s.UACRHistory[0].Value
		last := s.UACRHistory[len(s.UACRHistory)-1].Value
		if first > 0 && (last-first)/first*100 > 30 {
			return true
		}
	}
	return false
}

// barrierSeverity assigns severity to a self-reported adherence barrier.
// Cost and side effects are actionable today; the rest default to moderate.
func barrierSeverity(barrier string) domain.AlertSeverity {
	switch strings.ToLower(strings.TrimSpace(barrier)) {
	case "cost", "side effects", "side_effects":
		return domain.SeverityHigh
	default:
		return domain.SeverityModerate
	}
}

// ScoreAdherence combines the pharmacy possession ratio, the lab-trend
// inference, and the patient's self report into one weighted composite.
// The reference date anchors the possession-ratio window so results are
// reproducible regardless of when the engine runs.
//
// Severity escalation distinguishes two failure modes: poor adherence with
// worsening labs is the patient not taking the drug (CRITICAL), good
// adherence with worsening labs is the drug not working (HIGH).
func ScoreAdherence(s *domain.PatientSnapshot, ref time.Time) (*domain.AdherenceResult, error) {
	components := make([]domain.AdherenceComponent, 0, 3)

	if mpr, ok := computeMPR(s.Refills, ref); ok {
		components = append(components, domain.AdherenceComponent{
			Signal:    domain.SignalMPR,
			Score:     mpr,
			Available: true,
			Weight:    weightMPR,
			Detail:    fmt.Sprintf("possession ratio %.2f over %d fills", mpr, len(s.Refills)),
		})
	} else {
		components = append(components, domain.AdherenceComponent{Signal: domain.SignalMPR, Weight: weightMPR})
	}

	if score, detail, ok := labTrendScore(s); ok {
		components = append(components, domain.AdherenceComponent{
			Signal:    domain.SignalLabTrend,
			Score:     score,
			Available: true,
			Weight:    weightLabTrend,
			Detail:    detail,
		})
	} else {
		components = append(components, domain.AdherenceComponent{Signal: domain.SignalLabTrend, Weight: weightLabTrend})
	}

	if s.SelfReportScore != nil {
		score := *s.SelfReportScore
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		components = append(components, domain.AdherenceComponent{
			Signal:    domain.SignalSelfReport,
			Score:     score,
			Available: true,
			Weight:    weightSelfReport,
			Detail:    "patient-reported adherence",
		})
	} else {
		components = append(components, domain.AdherenceComponent{Signal: domain.SignalSelfReport, Weight: weightSelfReport})
	}

	totalWeight := 0.0
	available := 0
	for _, c := range components {
		if c.Available {
			totalWeight += c.Weight
			available++
		}
	}
	if available == 0 {
		return nil, &domain.InsufficientDataError{Marker: "adherence signals", Model: "composite adherence"}
	}

	composite := 0.0
	for _, c := range components {
		if c.Available {
			composite += c.Score * (c.Weight / totalWeight)
		}
	}
	composite = round2(composite)

	var category domain.AdherenceCategory
	switch {
	case composite >= adherenceGoodThreshold:
		category = domain.AdherenceGood
	case composite >= adherencePoorThreshold:
		category = domain.AdherenceSuboptimal
	default:
		category = domain.AdherencePoor
	}

	var confidence domain.ConfidenceLevel
	switch available {
	case 3:
		confidence = domain.ConfidenceHigh
	case 2:
		confidence = domain.ConfidenceMedium
	default:
		confidence = domain.ConfidenceLow
	}

	barriers := make([]domain.AdherenceBarrier, 0, len(s.ReportedBarriers)+1)
	for _, b := range s.ReportedBarriers {
		barriers = append(barriers, domain.AdherenceBarrier{
			Barrier:  b,
			Severity: barrierSeverity(b),
			Source:   "self_report",
		})
	}
	if composite < adherencePoorThreshold && len(barriers) == 0 {
		barriers = append(barriers, domain.AdherenceBarrier{
			Barrier:  "access",
			Severity: domain.SeverityModerate,
			Source:   "inferred",
		})
	}

	worsening := labsWorsening(s)
	severity := domain.SeverityLow
	interpretation := fmt.Sprintf("Composite adherence %.2f (%s, %s confidence).", composite, category, strings.ToLower(string(confidence)))
	switch {
	case worsening && category == domain.AdherencePoor:
		severity = domain.SeverityCritical
		interpretation += " Poor adherence with worsening renal labs: address adherence before escalating therapy."
	case worsening && category == domain.AdherenceGood:
		severity = domain.SeverityHigh
		interpretation += " Labs worsening despite good adherence: current regimen may be inadequate."
	case category == domain.AdherencePoor:
		severity = domain.SeverityModerate
	}

	return &domain.AdherenceResult{
		CompositeScore: composite,
		Category:       category,
		Confidence:     confidence,
		Components:     components,
		Barriers:       barriers,
		LabsWorsening:  worsening,
		AlertSeverity:  severity,
		Interpretation: interpretation,
	}, nil
}
