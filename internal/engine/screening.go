package engine

import (
	"time"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// Screening test codes as stored in PatientSnapshot.LastScreenings.
const (
	ScreenRenalPanel = "renal_panel"
	ScreenUACR       = "uacr"
	ScreenHbA1c      = "hba1c"
	ScreenPotassium  = "potassium"
	ScreenLipids     = "lipid_panel"
)

// requiredScreenings returns the test codes this patient needs: the renal
// panel and uACR always, HbA1c for diabetics, potassium on RAS inhibitors,
// and a lipid panel when cardiovascular risk is established.
func requiredScreenings(s *domain.PatientSnapshot) []string {
	tests := []string{ScreenRenalPanel, ScreenUACR}
	if s.Diabetes {
		tests = append(tests, ScreenHbA1c)
	}
	if s.OnRASInhibitor {
		tests = append(tests, ScreenPotassium)
	}
	if s.CardiovascularDz || s.Diabetes {
		tests = append(tests, ScreenLipids)
	}
	return tests
}

// CheckScreeningGaps compares each required test's last-performed date
// against the monitoring interval implied by the KDIGO risk color (90, 180,
// or 365 days). The reference date is injected so results do not depend on
// wall-clock time. Missing tests sort ahead of merely overdue ones.
func CheckScreeningGaps(s *domain.PatientSnapshot, color domain.RiskColor, ref time.Time) []domain.ScreeningGap {
	interval := color.MonitoringIntervalDays()
	gaps := make([]domain.ScreeningGap, 0, 4)

	var overdue []domain.ScreeningGap
	for _, test := range requiredScreenings(s) {
		last, ok := s.LastScreenings[test]
		if !ok {
			gaps = append(gaps, domain.ScreeningGap{
				Test:         test,
				Missing:      true,
				IntervalDays: interval,
			})
			continue
		}
		due := last.AddDate(0, 0, interval)
		if ref.After(due) {
			overdue = append(overdue, domain.ScreeningGap{
				Test:         test,
				LastDone:     last,
				OverdueDays:  int(ref.Sub(due).Hours() / 24),
				IntervalDays: interval,
			})
		}
	}

	return append(gaps, overdue...)
}
